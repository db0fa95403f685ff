package islands

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 0.5

// line builds P1–P2–P3 connected in a line. P1 has one point at 0, P2 has
// points at 0 and 10, P3 has one point at 10.
func line(t *testing.T, g *Graph) (p1, p2, p3 *testPiece) {
	t.Helper()
	p1 = newTestPiece("P1", vx(0))
	p2 = newTestPiece("P2", vx(0), vx(10))
	p3 = newTestPiece("P3", vx(10))
	mustAdd(t, g, p1, p2, p3)
	return p1, p2, p3
}

func TestNewWithConfig(t *testing.T) {
	g, err := NewWithConfig(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTolerance, g.Tolerance())

	for _, bad := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err = NewWithConfig(Config{Tolerance: bad})
		assert.ErrorIs(t, err, ErrInvalidTolerance, "tolerance %v", bad)
	}

	assert.Equal(t, DefaultTolerance, New().Tolerance())
}

func TestAddPiece_SingletonIsland(t *testing.T) {
	g, log := newTestGraph(t, tol)
	p := newTestPiece("P1", vx(0))
	mustAdd(t, g, p)

	id := islandOf(t, g, p)
	assert.Equal(t, IslandID(1), id, "first island handle")
	assert.Equal(t, []string{"P1"}, ids(g.Islands().Pieces(id)))
	assert.Equal(t, 0, g.Connections().Degree(p.Piece))
	assert.Equal(t, 1, log.count(EventIslandCreated))
	assert.Equal(t, 1, log.count(EventPieceAdded))
}

func TestAddPiece_Rejections(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	p := newTestPiece("P1", vx(0))
	mustAdd(t, g, p)

	err := g.AddPiece(p.Piece)
	assert.ErrorIs(t, err, ErrPieceExists)

	var gerr *GraphError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "AddPiece", gerr.Op)
	assert.Equal(t, "P1", gerr.Piece)

	assert.ErrorIs(t, g.AddPiece(nil), ErrNilPiece)
	assert.Equal(t, 1, g.Islands().Len(), "rejected calls must not mutate")
}

func TestAddPiece_PointsInUse(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	p1 := newTestPiece("P1", vx(0))
	p2 := newTestPiece("P2", vx(0))
	mustAdd(t, g, p1, p2)

	// P1's point is mated, so re-adding P1 trips the attachment check
	// before the duplicate-registration check.
	err := g.AddPiece(p1.Piece)
	assert.ErrorIs(t, err, ErrPointsInUse)
	assert.Equal(t, 2, g.Attachments().Len())
}

func TestAddPiece_AttachesImmediately(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	p1 := newTestPiece("P1", vx(0))
	p2 := newTestPiece("P2", vx(0.1))
	mustAdd(t, g, p1, p2)

	assert.True(t, g.Islands().SameIsland(p1.Piece, p2.Piece))
	assert.Equal(t, 1, g.Islands().Len())
}

func TestRemovePiece_NotRegistered(t *testing.T) {
	g, log := newTestGraph(t, tol)
	p := newTestPiece("P1", vx(0))

	err := g.RemovePiece(p.Piece, true)
	assert.ErrorIs(t, err, ErrPieceNotRegistered)
	assert.True(t, IsNotRegistered(err))
	assert.Empty(t, log.events)

	_, err = g.UpdateAttachments(p.Piece)
	assert.ErrorIs(t, err, ErrPieceNotRegistered)
}

func TestRemovePiece_LastPieceDestroysIsland(t *testing.T) {
	g, log := newTestGraph(t, tol)
	p := newTestPiece("P1", vx(0))
	mustAdd(t, g, p)
	id := islandOf(t, g, p)

	require.NoError(t, g.RemovePiece(p.Piece, true))

	assert.Equal(t, 0, g.Islands().Len())
	assert.False(t, g.Islands().Exists(id))
	assert.False(t, g.Contains(p.Piece))
	assert.Equal(t, 1, log.count(EventIslandDestroyed))

	last := log.events[len(log.events)-1]
	assert.Equal(t, EventPieceRemoved, last.Kind)
	assert.True(t, last.DestroyObject)
	assert.Same(t, p.Piece, last.Piece())
}

func TestRemovePiece_ReAdd(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	p1 := newTestPiece("P1", vx(0))
	p2 := newTestPiece("P2", vx(0))
	mustAdd(t, g, p1, p2)

	require.NoError(t, g.RemovePiece(p1.Piece, false))
	_, mated := g.Attachments().MateOf(p2.Point(0))
	assert.False(t, mated, "reverse entry must be removed with the piece")

	// The piece's points are free again, so it can come back
	require.NoError(t, g.AddPiece(p1.Piece))
	assert.True(t, g.Islands().SameIsland(p1.Piece, p2.Piece))
}

// Two pieces apart, then moved together, end up on one island
func TestUpdateAttachments_ConnectMergesIslands(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	p1 := newTestPiece("P1", vx(0))
	p2 := newTestPiece("P2", vx(10*tol))
	mustAdd(t, g, p1, p2)

	assert.Equal(t, 2, g.Islands().Len())
	assert.Equal(t, 0, g.Attachments().Len())

	p2.moveTo(0, vx(tol/2))
	assert.True(t, mustUpdate(t, g, p2))

	require.Equal(t, 1, g.Islands().Len())
	id := g.Islands().IDs()[0]
	assert.ElementsMatch(t, []string{"P1", "P2"}, ids(g.Islands().Pieces(id)))
	assert.Equal(t, 2, g.Attachments().Len(), "one pair, two entries")
	assert.True(t, g.Connections().Connected(p1.Piece, p2.Piece))
	assert.True(t, g.Connections().Connected(p2.Piece, p1.Piece))
}

// Breaking the end of a line splits off the moved piece
func TestRegenIsland_SplitLineKeepsLargerHandle(t *testing.T) {
	g, log := newTestGraph(t, tol)
	p1, p2, p3 := line(t, g)

	require.Equal(t, 1, g.Islands().Len())
	original := islandOf(t, g, p2)
	assert.Equal(t, 3, g.Islands().Size(original))

	log.reset()
	p1.moveTo(0, vx(-5))
	assert.True(t, mustUpdate(t, g, p1))

	assert.Equal(t, 2, g.Islands().Len())
	assert.Equal(t, original, islandOf(t, g, p2), "{P2,P3} keeps its handle")
	assert.Equal(t, original, islandOf(t, g, p3))
	assert.NotEqual(t, original, islandOf(t, g, p1), "P1 gets a new handle")
	assert.Equal(t, []string{"P1"}, ids(g.Islands().Pieces(islandOf(t, g, p1))))

	assert.Equal(t, 1, log.count(EventIslandSplit))
	assert.Equal(t, 1, log.count(EventIslandCreated))
	assert.Equal(t, 1, log.count(EventAttachmentBroken))
}

// Removing the middle of a line leaves two singletons
func TestRemovePiece_MiddleOfLine(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	p1, p2, p3 := line(t, g)
	original := islandOf(t, g, p2)

	require.NoError(t, g.RemovePiece(p2.Piece, true))

	assert.Equal(t, 0, g.Connections().Degree(p1.Piece))
	assert.Equal(t, 0, g.Connections().Degree(p3.Piece))
	assert.Equal(t, 0, g.Attachments().Len())
	assert.Equal(t, 2, g.Islands().Len())
	assert.False(t, g.Islands().SameIsland(p1.Piece, p3.Piece))

	i1, i3 := islandOf(t, g, p1), islandOf(t, g, p3)
	assert.True(t, i1 == original || i3 == original, "one of the singletons keeps the handle")
	assert.Equal(t, 1, g.Islands().Size(i1))
	assert.Equal(t, 1, g.Islands().Size(i3))

	for p, neighbours := range g.Connections().All() {
		assert.NotContains(t, neighbours, p2.Piece, "%s still references the removed piece", p.ID())
	}
}

// Breaking one edge of a cycle changes nothing structurally
func TestRegenIsland_CycleNoSplit(t *testing.T) {
	g, log := newTestGraph(t, tol)
	p1 := newTestPiece("P1", vx(0), vx(20))
	p2 := newTestPiece("P2", vx(0), vx(10))
	p3 := newTestPiece("P3", vx(10), vx(20))
	mustAdd(t, g, p1, p2, p3)

	require.Equal(t, 1, g.Islands().Len())
	original := islandOf(t, g, p1)
	created := g.GetStatistics().IslandsCreated

	log.reset()
	p1.moveTo(0, vx(-5)) // breaks P1–P2 only
	assert.True(t, mustUpdate(t, g, p1))

	assert.False(t, g.Connections().Connected(p1.Piece, p2.Piece))
	assert.True(t, g.Connections().Connected(p1.Piece, p3.Piece))
	assert.Equal(t, 1, g.Islands().Len())
	assert.Equal(t, original, islandOf(t, g, p2))
	assert.Equal(t, created, g.GetStatistics().IslandsCreated, "no handle allocated")
	assert.Zero(t, log.count(EventIslandCreated))
	assert.Zero(t, log.count(EventIslandSplit))

	regen, err := g.RegenIsland(original)
	require.NoError(t, err)
	assert.Equal(t, []IslandID{original}, regen)
}

func TestRegenIsland_Unknown(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	_, err := g.RegenIsland(42)
	assert.ErrorIs(t, err, ErrIslandNotFound)
	assert.Contains(t, err.Error(), "island 42")
}

func TestReset(t *testing.T) {
	g, log := newTestGraph(t, tol)
	line(t, g)

	log.reset()
	g.Reset()

	stats := g.GetStatistics()
	assert.Zero(t, stats.Pieces)
	assert.Zero(t, stats.Islands)
	assert.Zero(t, stats.IslandsCreated)
	assert.Equal(t, 1, log.count(EventIslandDestroyed))

	p := newTestPiece("P9", r3.Vec{})
	mustAdd(t, g, p)
	assert.Equal(t, IslandID(1), islandOf(t, g, p), "counter restarts after reset")
}

func TestSetTolerance(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	p1 := newTestPiece("P1", vx(0))
	p2 := newTestPiece("P2", vx(0.4))
	mustAdd(t, g, p1, p2)
	require.Equal(t, 1, g.Islands().Len())

	for _, bad := range []float64{0, -0.1, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, g.SetTolerance(bad), ErrInvalidTolerance, "tolerance %v", bad)
	}
	assert.Equal(t, tol, g.Tolerance(), "rejected values leave the tolerance alone")
	require.NoError(t, g.SetTolerance(0.1))

	assert.True(t, mustUpdate(t, g, p2), "tighter tolerance breaks the pair")
	assert.Equal(t, 2, g.Islands().Len())
}

func TestGetStatistics(t *testing.T) {
	g, _ := newTestGraph(t, tol)
	line(t, g)

	stats := g.GetStatistics()
	assert.Equal(t, 3, stats.Pieces)
	assert.Equal(t, 1, stats.Islands)
	assert.Equal(t, 2, stats.Edges)
	assert.Equal(t, 2, stats.AttachmentPairs)
}
