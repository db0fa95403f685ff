package islands

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateAttachments_ToleranceBoundary(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		mated    bool
	}{
		{"well inside", 0.1, true},
		{"just inside", 0.4999, true},
		{"exactly at tolerance", 0.5, false},
		{"outside", 0.75, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGraph(t, tol)
			p1 := newTestPiece("P1", vx(0))
			p2 := newTestPiece("P2", vx(tt.distance))
			mustAdd(t, g, p1, p2)

			if got := g.Connections().Connected(p1.Piece, p2.Piece); got != tt.mated {
				t.Errorf("Connected = %v, want %v", got, tt.mated)
			}
		})
	}
}

func TestUpdateAttachments_BreaksAtTolerance(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	p1 := newTestPiece("P1", vx(0))
	p2 := newTestPiece("P2", vx(0))
	mustAdd(t, g, p1, p2)

	p2.moveTo(0, vx(0.4999))
	assert.False(t, mustUpdate(t, g, p2), "still within tolerance")

	p2.moveTo(0, vx(0.5))
	assert.True(t, mustUpdate(t, g, p2), "a squared distance equal to the tolerance breaks")
	assert.False(t, g.Connections().Connected(p1.Piece, p2.Piece))
}

func TestUpdateAttachments_NaNPositionBreaks(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	p1 := newTestPiece("P1", vx(0))
	p2 := newTestPiece("P2", vx(0))
	mustAdd(t, g, p1, p2)
	require.Equal(t, 1, g.Islands().Len())

	p2.moveTo(0, vx(math.NaN()))
	assert.True(t, mustUpdate(t, g, p2))
	assert.False(t, g.Connections().Connected(p1.Piece, p2.Piece))
	assert.Equal(t, 2, g.Islands().Len())

	assert.False(t, mustUpdate(t, g, p2), "a NaN position never mates")
}

func TestUpdateAttachments_NothingMoved(t *testing.T) {
	g, log := newTestGraph(t, tol)
	p1, p2, p3 := line(t, g)
	before := g.Islands().IDs()

	log.reset()
	for _, p := range []*testPiece{p1, p2, p3} {
		assert.False(t, mustUpdate(t, g, p), "re-checking %s", p.ID())
	}
	assert.Empty(t, log.events)
	assert.Equal(t, before, g.Islands().IDs())
}

func TestUpdateAttachments_FirstCandidateWins(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	p2 := newTestPiece("P2", vx(0.3))
	p3 := newTestPiece("P3", vx(-0.25))
	p1 := newTestPiece("P1", vx(100))
	mustAdd(t, g, p2, p3, p1)
	require.Equal(t, 3, g.Islands().Len())

	// P3 is closer, but P2 was registered first
	p1.moveTo(0, vx(0))
	assert.True(t, mustUpdate(t, g, p1))

	mate, ok := g.Attachments().MateOf(p1.Point(0))
	require.True(t, ok)
	assert.Same(t, p2.Piece, mate.Piece)
	assert.Equal(t, 0, g.Connections().Degree(p3.Piece), "a point takes one mate only")
}

func TestUpdateAttachments_SkipsMatedCandidates(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	p1 := newTestPiece("P1", vx(0))
	p2 := newTestPiece("P2", vx(0))
	p3 := newTestPiece("P3", vx(9))
	mustAdd(t, g, p1, p2, p3)

	p3.moveTo(0, vx(0))
	assert.False(t, mustUpdate(t, g, p3), "both candidates are already mated")
	assert.Equal(t, 2, g.Islands().Len())
}

func TestUpdateAttachments_NoRematchInSamePass(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	p1 := newTestPiece("P1", vx(0))
	p2 := newTestPiece("P2", vx(0))
	p3 := newTestPiece("P3", vx(5))
	mustAdd(t, g, p1, p2, p3)

	p1.moveTo(0, vx(5))
	assert.True(t, mustUpdate(t, g, p1))
	_, mated := g.Attachments().MateOf(p1.Point(0))
	assert.False(t, mated, "a point that broke does not search in the same call")

	assert.True(t, mustUpdate(t, g, p1))
	mate, mated := g.Attachments().MateOf(p1.Point(0))
	require.True(t, mated)
	assert.Same(t, p3.Piece, mate.Piece)
}

func TestUpdateAttachments_OwnPointsNeverMate(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	p := newTestPiece("P1", vx(0), vx(0))
	mustAdd(t, g, p)

	assert.Equal(t, 0, g.Attachments().Len())
	assert.False(t, mustUpdate(t, g, p))
}

func TestUpdateAttachments_MultiplePairsOneEdge(t *testing.T) {
	g, log := newTestGraph(t, tol)
	p1 := newTestPiece("P1", vx(0), vx(1))
	p2 := newTestPiece("P2", vx(0), vx(1))
	mustAdd(t, g, p1, p2)

	assert.Equal(t, 4, g.Attachments().Len(), "two pairs")
	assert.Equal(t, 1, g.Connections().Degree(p1.Piece), "one adjacency edge")
	assert.Equal(t, 1, g.GetStatistics().Edges)
	island := islandOf(t, g, p1)

	log.reset()
	p2.moveTo(1, vx(7))
	assert.True(t, mustUpdate(t, g, p2))
	assert.True(t, g.Connections().Connected(p1.Piece, p2.Piece), "remaining pair keeps the edge")
	assert.Equal(t, island, islandOf(t, g, p2))
	assert.Zero(t, log.count(EventIslandSplit))

	p2.moveTo(0, vx(-7))
	assert.True(t, mustUpdate(t, g, p2))
	assert.False(t, g.Connections().Connected(p1.Piece, p2.Piece))
	assert.Equal(t, 2, g.Islands().Len())
}

func TestUpdateAttachments_MergeKeepsLargerIsland(t *testing.T) {
	g, log := newTestGraph(t, tol)
	p1 := newTestPiece("P1", vx(0))
	p2 := newTestPiece("P2", vx(0), vx(10))
	p3 := newTestPiece("P3", vx(10), vx(20))
	lone := newTestPiece("P4", vx(50))
	mustAdd(t, g, p1, p2, p3, lone)

	big := islandOf(t, g, p1)
	small := islandOf(t, g, lone)
	require.Equal(t, 3, g.Islands().Size(big))

	log.reset()
	lone.moveTo(0, vx(20))
	require.True(t, mustUpdate(t, g, lone))

	require.NotEmpty(t, log.events)
	merged := log.events[0]
	assert.Equal(t, EventIslandsMerged, merged.Kind)
	assert.Equal(t, big, merged.Island, "the larger island survives")
	assert.Equal(t, small, merged.Absorbed)
	assert.Equal(t, big, islandOf(t, g, lone))
	assert.False(t, g.Islands().Exists(small))
	assert.Equal(t, 4, g.Islands().Size(big))
}

func TestUpdateAttachments_Events(t *testing.T) {
	g, log := newTestGraph(t, tol)
	p1 := newTestPiece("P1", vx(0))
	p2 := newTestPiece("P2", vx(3))
	mustAdd(t, g, p1, p2)

	log.reset()
	p2.moveTo(0, vx(0))
	mustUpdate(t, g, p2)

	kinds := make([]EventKind, len(log.events))
	for i, e := range log.events {
		kinds[i] = e.Kind
	}
	assert.Equal(t, []EventKind{EventIslandsMerged, EventIslandDestroyed, EventAttachmentFormed}, kinds)

	formed := log.events[2]
	assert.Same(t, p2.Piece, formed.From.Piece)
	assert.Same(t, p1.Point(0), formed.To.Point)
	assert.Equal(t, "P2.a", formed.From.String())
}
