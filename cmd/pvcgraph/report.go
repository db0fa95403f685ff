package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/pvcgraph/pkg/algorithms"
	"github.com/dd0wney/pvcgraph/pkg/islands"
	"github.com/dd0wney/pvcgraph/pkg/scenario"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF"))

	stepStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	islandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	summaryStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 2)
)

func renderHeader(f *scenario.File, tolerance float64) string {
	return titleStyle.Render(fmt.Sprintf("%s: %d pieces, %d steps, tolerance %g",
		f.Name, len(f.Pieces), len(f.Steps), tolerance))
}

func renderIslands(snap scenario.Snapshot) string {
	parts := make([]string, len(snap.Islands))
	for i, is := range snap.Islands {
		parts[i] = fmt.Sprintf("#%d{%s}", is.ID, strings.Join(is.Pieces, " "))
	}
	return islandStyle.Render(strings.Join(parts, " "))
}

func renderStep(rep scenario.StepReport) string {
	mark := successStyle.Render("✓")
	if len(rep.Failed) > 0 {
		mark = errorStyle.Render("✗")
	}
	changed := ""
	if rep.Changed {
		changed = " changed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s%s  %s", mark,
		stepStyle.Render(fmt.Sprintf("[%d] %s", rep.Index, rep.Step.Label())),
		changed, renderIslands(rep.Snapshot))
	for _, f := range rep.Failed {
		b.WriteString("\n    " + errorStyle.Render(f))
	}
	return b.String()
}

func renderError(rep scenario.StepReport, err error) string {
	return errorStyle.Render(fmt.Sprintf("✗ [%d] %s: %v", rep.Index, rep.Step.Label(), err))
}

func renderSummary(r *scenario.Runner, failed int) string {
	stats := r.Graph().GetStatistics()
	topo := algorithms.Analyze(r.Graph())
	status := successStyle.Render("all expectations held")
	if failed > 0 {
		status = errorStyle.Render(fmt.Sprintf("%d step(s) failed", failed))
	}
	return summaryStyle.Render(fmt.Sprintf(
		"steps run:       %d/%d\npieces:          %d\nislands:         %d\nattachments:     %d\nloops:           %d\nopen ends:       %d\nislands created: %d\n%s",
		r.Next(), len(r.File().Steps), stats.Pieces, stats.Islands,
		stats.AttachmentPairs, topo.Loops, topo.OpenPoints, stats.IslandsCreated, status))
}

// describeEvent renders an event on one line
func describeEvent(e islands.Event) string {
	switch e.Kind {
	case islands.EventPieceAdded:
		return fmt.Sprintf("%s %s -> #%d", e.Kind, e.Piece(), e.Island)
	case islands.EventPieceRemoved:
		return fmt.Sprintf("%s %s from #%d (destroy=%v)", e.Kind, e.Piece(), e.Island, e.DestroyObject)
	case islands.EventAttachmentFormed, islands.EventAttachmentBroken:
		return fmt.Sprintf("%s %s <-> %s", e.Kind, e.From, e.To)
	case islands.EventIslandsMerged:
		return fmt.Sprintf("%s #%d absorbed #%d", e.Kind, e.Island, e.Absorbed)
	case islands.EventIslandSplit:
		return fmt.Sprintf("%s #%d created %v", e.Kind, e.Island, e.Created)
	default:
		return fmt.Sprintf("%s #%d", e.Kind, e.Island)
	}
}
