package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dd0wney/pvcgraph/pkg/islands"
	"github.com/dd0wney/pvcgraph/pkg/logging"
	"github.com/dd0wney/pvcgraph/pkg/piece"
)

var (
	// ErrDone is returned by Step once every step has run
	ErrDone = errors.New("scenario finished")
	// ErrExpectation is wrapped by every failed step expectation
	ErrExpectation = errors.New("expectation failed")
)

// placed is a declared piece together with the frame that positions it
type placed struct {
	spec  PieceSpec
	frame *piece.Frame
	piece *piece.Piece
	pipe  *piece.Pipe
}

// Runner replays a scenario step by step against its own graph
type Runner struct {
	file   *File
	config islands.Config
	graph  *islands.Graph
	pieces map[string]*placed
	next   int
	logger logging.Logger
}

// IslandSnapshot lists one island's pieces by id, in registration order
type IslandSnapshot struct {
	ID     islands.IslandID
	Pieces []string
}

// Snapshot is the graph state after a step
type Snapshot struct {
	Pieces      int
	Attachments int
	Islands     []IslandSnapshot
}

// StepReport describes the outcome of one step
type StepReport struct {
	Index    int
	Step     Step
	Changed  bool
	Snapshot Snapshot
	// Failed lists the expectations that did not hold
	Failed []string
}

// NewRunner builds the scenario's pieces and an empty graph. A positive
// scenario tolerance overrides cfg.Tolerance.
func NewRunner(f *File, cfg islands.Config) (*Runner, error) {
	if f.Tolerance > 0 {
		cfg.Tolerance = f.Tolerance
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	r := &Runner{
		file:   f,
		config: cfg,
		logger: cfg.Logger.With(logging.Component("scenario"), logging.String("scenario", f.Name)),
	}
	if err := r.Reset(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reset discards all progress and rebuilds pieces at their declared origins
func (r *Runner) Reset() error {
	g, err := islands.NewWithConfig(r.config)
	if err != nil {
		return err
	}
	pieces := make(map[string]*placed, len(r.file.Pieces))
	for _, spec := range r.file.Pieces {
		p, err := build(spec)
		if err != nil {
			return err
		}
		pieces[spec.ID] = p
	}
	r.graph = g
	r.pieces = pieces
	r.next = 0
	return nil
}

func build(spec PieceSpec) (*placed, error) {
	p := &placed{spec: spec, frame: piece.NewFrame(spec.Origin.R3())}
	switch spec.Kind {
	case KindPipe:
		length := spec.Length
		if length == 0 {
			length = piece.BaseLength
		}
		pipe, err := piece.NewPipe(spec.ID, p.frame, length)
		if err != nil {
			return nil, fmt.Errorf("piece %s: %w", spec.ID, err)
		}
		p.pipe = pipe
		p.piece = pipe.Piece
	default:
		points := make([]*piece.Point, len(spec.Points))
		for i, pt := range spec.Points {
			points[i] = piece.NewPoint(pt.Name, p.frame.At(pt.Offset.R3()))
		}
		p.piece = piece.New(spec.ID, spec.Kind, points...)
	}
	return p, nil
}

// Graph returns the graph the runner drives
func (r *Runner) Graph() *islands.Graph {
	return r.graph
}

// File returns the scenario being run
func (r *Runner) File() *File {
	return r.file
}

// Piece returns a declared piece by id
func (r *Runner) Piece(id string) (*piece.Piece, bool) {
	p, ok := r.pieces[id]
	if !ok {
		return nil, false
	}
	return p.piece, true
}

// Position returns the origin of a declared piece's frame
func (r *Runner) Position(id string) (Vec, bool) {
	p, ok := r.pieces[id]
	if !ok {
		return nil, false
	}
	o := p.frame.Origin()
	return Vec{o.X, o.Y, o.Z}, true
}

// Next is the index of the step Step will run
func (r *Runner) Next() int {
	return r.next
}

// Done reports whether every step has run
func (r *Runner) Done() bool {
	return r.next >= len(r.file.Steps)
}

// Step runs the next step. Graph errors abort the step; failed expectations
// are reported in StepReport.Failed and as an error wrapping ErrExpectation.
func (r *Runner) Step() (StepReport, error) {
	if r.Done() {
		return StepReport{}, ErrDone
	}
	idx := r.next
	step := r.file.Steps[idx]
	r.next++

	report := StepReport{Index: idx, Step: step}
	timer := logging.StartTimer(r.logger, "step",
		logging.Int("index", idx),
		logging.Operation(step.Action),
		logging.PieceID(step.Piece))
	changed, err := r.apply(step)
	if err != nil {
		timer.End(logging.Error(err))
		return report, fmt.Errorf("step %d (%s): %w", idx, step.Label(), err)
	}
	report.Changed = changed
	report.Snapshot = r.Snapshot()

	if step.Expect != nil {
		report.Failed = r.check(step.Expect, changed, report.Snapshot)
	}

	timer.End(
		logging.Bool("changed", changed),
		logging.Count(len(report.Snapshot.Islands)))

	if len(report.Failed) > 0 {
		return report, fmt.Errorf("step %d (%s): %w: %v", idx, step.Label(), ErrExpectation, report.Failed)
	}
	return report, nil
}

// Run executes every remaining step, stopping at the first error or when ctx
// is cancelled.
func (r *Runner) Run(ctx context.Context) ([]StepReport, error) {
	var reports []StepReport
	for !r.Done() {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := r.Step()
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func (r *Runner) apply(step Step) (bool, error) {
	p := r.pieces[step.Piece]

	switch step.Action {
	case ActionAdd:
		if err := r.graph.AddPiece(p.piece); err != nil {
			return false, err
		}
		return r.attached(p.piece), nil
	case ActionRemove:
		return true, r.graph.RemovePiece(p.piece, !step.Keep)
	case ActionMove:
		p.frame.MoveTo(step.To.R3())
	case ActionTranslate:
		p.frame.Translate(step.By.R3())
	case ActionResize:
		if err := p.pipe.SetLength(step.Length); err != nil {
			return false, err
		}
	}

	if !r.graph.Contains(p.piece) {
		// Moving an unregistered piece only changes where it will be added
		return false, nil
	}
	return r.graph.UpdateAttachments(p.piece)
}

func (r *Runner) attached(p *piece.Piece) bool {
	for _, pt := range p.Points() {
		if _, ok := r.graph.Attachments().MateOf(pt); ok {
			return true
		}
	}
	return false
}

// Snapshot captures the current islands by piece id
func (r *Runner) Snapshot() Snapshot {
	view := r.graph.Islands()
	snap := Snapshot{
		Pieces:      len(r.graph.AllPieces()),
		Attachments: r.graph.Attachments().Len(),
	}
	for _, id := range view.IDs() {
		members := view.Pieces(id)
		names := make([]string, len(members))
		for i, m := range members {
			names[i] = m.ID()
		}
		snap.Islands = append(snap.Islands, IslandSnapshot{ID: id, Pieces: names})
	}
	return snap
}

func (r *Runner) check(exp *Expectation, changed bool, snap Snapshot) []string {
	var failed []string
	if exp.Islands != nil && *exp.Islands != len(snap.Islands) {
		failed = append(failed, fmt.Sprintf("islands: got %d, want %d", len(snap.Islands), *exp.Islands))
	}
	if exp.Changed != nil && *exp.Changed != changed {
		failed = append(failed, fmt.Sprintf("changed: got %v, want %v", changed, *exp.Changed))
	}

	islandOf := func(id string) islands.IslandID {
		p := r.pieces[id].piece
		island, _ := r.graph.Islands().IslandOf(p)
		return island
	}
	for _, group := range exp.Together {
		first := islandOf(group[0])
		if first == islands.NoIsland || slices.ContainsFunc(group[1:], func(id string) bool {
			return islandOf(id) != first
		}) {
			failed = append(failed, fmt.Sprintf("together: %v are not on one island", group))
		}
	}
	for _, pair := range exp.Apart {
		a, b := islandOf(pair[0]), islandOf(pair[1])
		if a == islands.NoIsland || b == islands.NoIsland || a == b {
			failed = append(failed, fmt.Sprintf("apart: %v share an island", pair))
		}
	}
	return failed
}
