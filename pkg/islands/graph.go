package islands

import (
	"math"
	"slices"
	"sort"

	"github.com/dd0wney/pvcgraph/pkg/logging"
	"github.com/dd0wney/pvcgraph/pkg/metrics"
	"github.com/dd0wney/pvcgraph/pkg/piece"
)

// New creates an empty graph with the default configuration
func New() *Graph {
	g, _ := NewWithConfig(DefaultConfig())
	return g
}

// NewWithConfig creates an empty graph. A zero tolerance selects DefaultTolerance.
func NewWithConfig(config Config) (*Graph, error) {
	if config.Tolerance == 0 {
		config.Tolerance = DefaultTolerance
	}
	if !validTolerance(config.Tolerance) {
		return nil, &GraphError{Op: "NewWithConfig", Cause: ErrInvalidTolerance}
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	g := &Graph{
		tolerance:       config.Tolerance,
		logger:          logger.With(logging.Component("islands")),
		metrics:         config.Metrics,
		events:          config.Events,
		checkInvariants: config.CheckInvariants,
	}
	g.init()
	return g, nil
}

func (g *Graph) init() {
	g.connections = make(map[*piece.Piece]map[*piece.Piece]int)
	g.attachments = make(map[Attachment]Attachment)
	g.islandPieces = make(map[IslandID]map[*piece.Piece]struct{})
	g.islandOf = make(map[*piece.Piece]IslandID)
	g.order = nil
	g.seq = make(map[*piece.Piece]uint64)
	g.nextSeq = 0
	g.nextIsland = NoIsland
}

// validTolerance rejects zero, negative, NaN and infinite tolerances
func validTolerance(t float64) bool {
	return t > 0 && !math.IsInf(t, 1)
}

// Tolerance returns the current linear matching tolerance
func (g *Graph) Tolerance() float64 {
	return g.tolerance
}

// SetTolerance changes the matching tolerance. Existing attachments are
// re-evaluated against it on their pieces' next UpdateAttachments.
func (g *Graph) SetTolerance(tolerance float64) error {
	if !validTolerance(tolerance) {
		return &GraphError{Op: "SetTolerance", Cause: ErrInvalidTolerance}
	}
	g.logger.Info("tolerance changed",
		logging.Float64("from", g.tolerance),
		logging.Float64("to", tolerance),
	)
	g.tolerance = tolerance
	return nil
}

// Contains reports whether p is registered
func (g *Graph) Contains(p *piece.Piece) bool {
	_, ok := g.connections[p]
	return ok
}

// AllPieces returns every registered piece in registration order
func (g *Graph) AllPieces() []*piece.Piece {
	return slices.Clone(g.order)
}

// GetStatistics returns the current graph size
func (g *Graph) GetStatistics() Statistics {
	edges := 0
	for _, adj := range g.connections {
		edges += len(adj)
	}
	return Statistics{
		Pieces:          len(g.connections),
		Islands:         len(g.islandPieces),
		Edges:           edges / 2,
		AttachmentPairs: len(g.attachments) / 2,
		IslandsCreated:  uint64(g.nextIsland),
	}
}

// AddPiece registers p in a fresh singleton island, then attaches it to any
// unmated points it already touches.
func (g *Graph) AddPiece(p *piece.Piece) error {
	const op = "AddPiece"
	if p == nil {
		return pieceError(op, nil, ErrNilPiece)
	}

	for i := 0; i < p.NumPoints(); i++ {
		if _, inUse := g.attachments[Attachment{Piece: p, Point: p.Point(i)}]; inUse {
			return g.reject(op, p, ErrPointsInUse, "points_in_use")
		}
	}
	if g.Contains(p) {
		return g.reject(op, p, ErrPieceExists, "exists")
	}

	g.connections[p] = make(map[*piece.Piece]int)
	g.nextSeq++
	g.seq[p] = g.nextSeq
	g.order = append(g.order, p)

	id := g.createIsland()
	g.islandPieces[id][p] = struct{}{}
	g.islandOf[p] = id

	g.logger.Debug("piece added",
		logging.PieceID(p.ID()),
		logging.IslandID(uint64(id)),
		logging.Count(p.NumPoints()),
	)
	g.emit(Event{Kind: EventPieceAdded, Island: id, From: Attachment{Piece: p}})

	g.updateAttachments(p)
	g.afterMutation(op)
	return nil
}

// RemovePiece unregisters p. Every attachment involving p is broken in both
// directions and p's island is regenerated, which may split or destroy it.
// destroyObject is passed through to the host in the piece.removed event.
func (g *Graph) RemovePiece(p *piece.Piece, destroyObject bool) error {
	const op = "RemovePiece"
	if p == nil {
		return pieceError(op, nil, ErrNilPiece)
	}
	if !g.Contains(p) {
		return g.reject(op, p, ErrPieceNotRegistered, "not_registered")
	}

	for i := 0; i < p.NumPoints(); i++ {
		key := Attachment{Piece: p, Point: p.Point(i)}
		if mate, ok := g.attachments[key]; ok {
			g.dropAttachment(op, key, mate)
		}
	}
	invariant(len(g.connections[p]) == 0, op,
		"piece %s still has %d neighbours after its attachments were removed", p.ID(), len(g.connections[p]))
	delete(g.connections, p)

	if i := slices.Index(g.order, p); i >= 0 {
		g.order = slices.Delete(g.order, i, i+1)
	}
	delete(g.seq, p)

	id := g.islandOf[p]
	members, ok := g.islandPieces[id]
	invariant(ok, op, "piece %s refers to missing island %d", p.ID(), id)
	_, ok = members[p]
	invariant(ok, op, "piece %s wasn't in its island %d", p.ID(), id)
	delete(members, p)
	delete(g.islandOf, p)

	g.logger.Debug("piece removed",
		logging.PieceID(p.ID()),
		logging.IslandID(uint64(id)),
		logging.Bool("destroy", destroyObject),
	)

	g.regenIsland(id)
	g.emit(Event{Kind: EventPieceRemoved, Island: id, From: Attachment{Piece: p}, DestroyObject: destroyObject})
	g.afterMutation(op)
	return nil
}

// Reset removes every piece and island and restarts the island counter.
// An island.destroyed event is emitted for each live island.
func (g *Graph) Reset() {
	ids := make([]IslandID, 0, len(g.islandPieces))
	for id := range g.islandPieces {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	g.init()
	for _, id := range ids {
		g.emit(Event{Kind: EventIslandDestroyed, Island: id})
	}
	g.logger.Info("graph reset", logging.Count(len(ids)))
	g.afterMutation("Reset")
}

func (g *Graph) reject(op string, p *piece.Piece, cause error, reason string) error {
	g.logger.Warn("call rejected",
		logging.Operation(op),
		logging.PieceID(p.ID()),
		logging.String("reason", reason),
	)
	if g.metrics != nil {
		g.metrics.RecordRejected(op, reason)
	}
	return pieceError(op, p, cause)
}

// afterMutation refreshes size gauges and, in debug mode, checks every invariant
func (g *Graph) afterMutation(op string) {
	if g.metrics != nil {
		g.metrics.SetGraphSize(len(g.connections), len(g.islandPieces), len(g.attachments)/2)
	}
	if g.checkInvariants {
		if err := g.Verify(); err != nil {
			panic(&InvariantError{Op: op, Detail: err.Error()})
		}
	}
}

// sortedPieces returns the keys of set in registration order
func sortedPieces[V any](g *Graph, set map[*piece.Piece]V) []*piece.Piece {
	out := make([]*piece.Piece, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return g.seq[out[i]] < g.seq[out[j]] })
	return out
}

func recordIslandOp(r *metrics.Registry, op string) {
	if r != nil {
		r.RecordIslandOperation(op)
	}
}
