package islands

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dd0wney/pvcgraph/pkg/piece"
)

// spot is a movable point position standing in for the host transform
type spot struct {
	pos r3.Vec
}

func (s *spot) Position() r3.Vec { return s.pos }

// testPiece bundles a piece with handles to move its points
type testPiece struct {
	*piece.Piece
	spots []*spot
}

func (tp *testPiece) moveTo(i int, pos r3.Vec) {
	tp.spots[i].pos = pos
}

// newTestPiece creates a piece with one point per position
func newTestPiece(id string, positions ...r3.Vec) *testPiece {
	tp := &testPiece{}
	points := make([]*piece.Point, len(positions))
	for i, pos := range positions {
		s := &spot{pos: pos}
		tp.spots = append(tp.spots, s)
		points[i] = piece.NewPoint(string(rune('a'+i)), s)
	}
	tp.Piece = piece.New(id, "fitting", points...)
	return tp
}

// eventLog records every event a graph emits
type eventLog struct {
	events []Event
}

func (l *eventLog) HandleEvent(e Event) {
	l.events = append(l.events, e)
}

func (l *eventLog) count(kind EventKind) int {
	n := 0
	for _, e := range l.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) reset() {
	l.events = nil
}

// newTestGraph returns a graph that panics on any invariant violation
func newTestGraph(t *testing.T, tolerance float64) (*Graph, *eventLog) {
	t.Helper()
	log := &eventLog{}
	g, err := NewWithConfig(Config{
		Tolerance:       tolerance,
		Events:          log,
		CheckInvariants: true,
	})
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	return g, log
}

func mustAdd(t *testing.T, g *Graph, pieces ...*testPiece) {
	t.Helper()
	for _, p := range pieces {
		if err := g.AddPiece(p.Piece); err != nil {
			t.Fatalf("AddPiece(%s) failed: %v", p.ID(), err)
		}
	}
}

func mustUpdate(t *testing.T, g *Graph, p *testPiece) bool {
	t.Helper()
	changed, err := g.UpdateAttachments(p.Piece)
	if err != nil {
		t.Fatalf("UpdateAttachments(%s) failed: %v", p.ID(), err)
	}
	return changed
}

func islandOf(t *testing.T, g *Graph, p *testPiece) IslandID {
	t.Helper()
	id, ok := g.Islands().IslandOf(p.Piece)
	if !ok {
		t.Fatalf("piece %s has no island", p.ID())
	}
	return id
}

func ids(pieces []*piece.Piece) []string {
	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = p.ID()
	}
	return out
}

func vx(x float64) r3.Vec {
	return r3.Vec{X: x}
}
