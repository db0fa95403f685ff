package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dd0wney/pvcgraph/pkg/algorithms"
	"github.com/dd0wney/pvcgraph/pkg/logging"
	"github.com/dd0wney/pvcgraph/pkg/scenario"
)

var tuiCmd = &cobra.Command{
	Use:   "tui <scenario>",
	Short: "Step through a scenario interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sess, err := newSession(cmd.Context(), args[0], cfg, logging.NewNopLogger())
	if err != nil {
		return err
	}
	defer sess.close()

	_, err = tea.NewProgram(newModel(sess), tea.WithAltScreen()).Run()
	return err
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

// maxEventLines bounds the event log shown under the island table
const maxEventLines = 10

type keyMap struct {
	Next  key.Binding
	All   key.Binding
	Reset key.Binding
	Up    key.Binding
	Down  key.Binding
	Quit  key.Binding
}

var keys = keyMap{
	Next: key.NewBinding(
		key.WithKeys("n", " ", "right"),
		key.WithHelp("n/space", "next step"),
	),
	All: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "run to end"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.All, k.Reset, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.All, k.Reset},
		{k.Up, k.Down},
		{k.Quit},
	}
}

type model struct {
	sess    *session
	islands table.Model
	help    help.Model
	keys    keyMap
	events  []string
	last    *scenario.StepReport
	message string
	failed  bool
	width   int
}

func newModel(sess *session) model {
	columns := []table.Column{
		{Title: "Island", Width: 8},
		{Title: "Size", Width: 6},
		{Title: "Pieces", Width: 50},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#FF00FF")).
		Bold(false)
	t.SetStyles(s)

	m := model{
		sess:    sess,
		islands: t,
		help:    help.New(),
		keys:    keys,
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Next):
			m.step()
			return m, nil

		case key.Matches(msg, m.keys.All):
			for !m.sess.runner.Done() && m.step() {
			}
			return m, nil

		case key.Matches(msg, m.keys.Reset):
			m.sess.mu.Lock()
			err := m.sess.runner.Reset()
			m.sess.mu.Unlock()
			m.sess.drain()
			m.events = nil
			m.last = nil
			m.setMessage("reset", err)
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.islands, cmd = m.islands.Update(msg)
	return m, cmd
}

// step runs one step and reports whether the run can continue
func (m *model) step() bool {
	if m.sess.runner.Done() {
		m.setMessage("scenario finished", nil)
		return false
	}
	rep, err := m.sess.step(true)
	m.last = &rep
	m.events = append(m.events, m.sess.drain()...)
	if n := len(m.events); n > maxEventLines {
		m.events = m.events[n-maxEventLines:]
	}
	m.setMessage(fmt.Sprintf("[%d] %s", rep.Index, rep.Step.Label()), err)
	m.refresh()
	return err == nil || errors.Is(err, scenario.ErrExpectation)
}

func (m *model) setMessage(msg string, err error) {
	m.failed = err != nil
	if err != nil {
		msg = err.Error()
	}
	m.message = msg
}

func (m *model) refresh() {
	snap := m.sess.runner.Snapshot()
	rows := make([]table.Row, len(snap.Islands))
	for i, is := range snap.Islands {
		rows[i] = table.Row{
			fmt.Sprintf("#%d", is.ID),
			fmt.Sprintf("%d", len(is.Pieces)),
			strings.Join(is.Pieces, " "),
		}
	}
	m.islands.SetRows(rows)
}

func (m model) View() string {
	var s strings.Builder

	r := m.sess.runner
	s.WriteString(titleStyle.Render(r.File().Name))
	s.WriteString("\n")
	topo := algorithms.Analyze(r.Graph())
	s.WriteString(headerStyle.Render(fmt.Sprintf("step %d/%d   tolerance %g   attachments %d   loops %d   open ends %d",
		r.Next(), len(r.File().Steps), m.sess.tolerance(), r.Graph().Attachments().Len(),
		topo.Loops, topo.OpenPoints)))
	s.WriteString("\n")

	s.WriteString(contentStyle.Render(m.islands.View()))
	s.WriteString("\n")

	if len(m.events) > 0 {
		s.WriteString(contentStyle.Render(eventStyle.Render(strings.Join(m.events, "\n"))))
		s.WriteString("\n")
	}

	if m.last != nil {
		for _, f := range m.last.Failed {
			s.WriteString("\n  " + errorStyle.Render("✗ "+f))
		}
	}

	if m.message != "" {
		s.WriteString("\n\n  ")
		if m.failed {
			s.WriteString(errorStyle.Render("✗ " + m.message))
		} else {
			s.WriteString(successStyle.Render("✓ " + m.message))
		}
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))

	return s.String()
}
