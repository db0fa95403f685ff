package islands

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dd0wney/pvcgraph/pkg/logging"
	"github.com/dd0wney/pvcgraph/pkg/metrics"
	"github.com/dd0wney/pvcgraph/pkg/piece"
)

// UpdateAttachments re-evaluates every attachment point of p against the
// current positions and reports whether any attachment formed or broke.
//
// For each point, in order: a mated point whose mate is now at least the
// tolerance away is detached (and does not look for a new mate in the same
// call); an unmated point mates with the first unmated point of another piece
// strictly within tolerance, scanning pieces in registration order.
//
// The scan is linear in the number of registered points, so a full sweep over
// all pieces is O(n·m). This is a known scaling limit.
func (g *Graph) UpdateAttachments(p *piece.Piece) (bool, error) {
	const op = "UpdateAttachments"
	if p == nil {
		return false, pieceError(op, nil, ErrNilPiece)
	}
	if !g.Contains(p) {
		return false, g.reject(op, p, ErrPieceNotRegistered, "not_registered")
	}

	changed := g.updateAttachments(p)
	if changed {
		g.afterMutation(op)
	}
	return changed, nil
}

func (g *Graph) updateAttachments(p *piece.Piece) bool {
	const op = "UpdateAttachments"
	start := time.Now()
	tolSq := g.tolerance * g.tolerance
	changed := false
	scanned := 0

	for i := 0; i < p.NumPoints(); i++ {
		point := p.Point(i)
		key := Attachment{Piece: p, Point: point}
		pos := point.Position()

		if mate, ok := g.attachments[key]; ok {
			// A non-finite distance (NaN position) breaks the mate
			if d := r3.Norm2(r3.Sub(pos, mate.Point.Position())); !(d < tolSq) {
				g.detach(op, key, mate)
				changed = true
			}
			continue
		}

		mate, n, ok := g.findMate(p, pos, tolSq)
		scanned += n
		if ok {
			g.attach(op, key, mate)
			changed = true
		}
	}

	if g.metrics != nil {
		g.metrics.RecordUpdate(changed, scanned, time.Since(start))
	}
	return changed
}

// findMate returns the first unmated point on another piece within tolerance
// of pos, and how many candidates were compared.
func (g *Graph) findMate(p *piece.Piece, pos r3.Vec, tolSq float64) (Attachment, int, bool) {
	scanned := 0
	for _, other := range g.order {
		if other == p {
			continue
		}
		for j := 0; j < other.NumPoints(); j++ {
			candidate := Attachment{Piece: other, Point: other.Point(j)}
			if _, mated := g.attachments[candidate]; mated {
				continue
			}
			scanned++
			if r3.Norm2(r3.Sub(pos, candidate.Point.Position())) < tolSq {
				return candidate, scanned, true
			}
		}
	}
	return Attachment{}, scanned, false
}

// attach records a new attachment pair and merges the two islands if needed
func (g *Graph) attach(op string, from, to Attachment) {
	g.attachments[from] = to
	g.attachments[to] = from
	g.link(op, from.Piece, to.Piece)

	island := g.islandOf[from.Piece]
	if other := g.islandOf[to.Piece]; other != island {
		island = g.mergeIslands(island, other)
	}

	if logging.Enabled(g.logger, logging.DebugLevel) {
		g.logger.Debug("attachment formed",
			logging.PieceID(from.Piece.ID()),
			logging.Point(from.Point.Name()),
			logging.PeerID(to.Piece.ID()),
			logging.String("peer_point", to.Point.Name()),
			logging.IslandID(uint64(island)),
		)
	}
	if g.metrics != nil {
		g.metrics.RecordAttachmentChange(metrics.ChangeFormed)
	}
	g.emit(Event{Kind: EventAttachmentFormed, Island: island, From: from, To: to})
}

// detach breaks an attachment pair and regenerates the island if that removed
// the last attachment between the two pieces
func (g *Graph) detach(op string, from, to Attachment) {
	island := g.islandOf[from.Piece]
	invariant(island == g.islandOf[to.Piece], op,
		"connected pieces %s and %s were on different islands", from.Piece.ID(), to.Piece.ID())

	if g.dropAttachment(op, from, to) {
		g.regenIsland(island)
	}
}

// dropAttachment removes both directions of an attachment pair and the
// adjacency it contributed. Returns whether the adjacency edge disappeared.
func (g *Graph) dropAttachment(op string, from, to Attachment) bool {
	back, ok := g.attachments[to]
	invariant(ok && back == from, op, "attachment %s -> %s is not symmetric", from, to)
	delete(g.attachments, from)
	delete(g.attachments, to)
	removed := g.unlink(op, from.Piece, to.Piece)

	island := g.islandOf[from.Piece]
	if logging.Enabled(g.logger, logging.DebugLevel) {
		g.logger.Debug("attachment broken",
			logging.PieceID(from.Piece.ID()),
			logging.Point(from.Point.Name()),
			logging.PeerID(to.Piece.ID()),
			logging.String("peer_point", to.Point.Name()),
			logging.IslandID(uint64(island)),
		)
	}
	if g.metrics != nil {
		g.metrics.RecordAttachmentChange(metrics.ChangeBroken)
	}
	g.emit(Event{Kind: EventAttachmentBroken, Island: island, From: from, To: to})
	return removed
}

func (g *Graph) link(op string, a, b *piece.Piece) {
	invariant(a != b, op, "piece %s cannot attach to itself", a.ID())
	g.connections[a][b]++
	g.connections[b][a]++
	invariant(g.connections[a][b] == g.connections[b][a], op,
		"adjacency between %s and %s is asymmetric", a.ID(), b.ID())
}

func (g *Graph) unlink(op string, a, b *piece.Piece) bool {
	ab, okA := g.connections[a][b]
	ba, okB := g.connections[b][a]
	invariant(okA && okB && ab == ba, op,
		"adjacency doesn't line up with attachments for %s and %s", a.ID(), b.ID())

	if ab > 1 {
		g.connections[a][b] = ab - 1
		g.connections[b][a] = ba - 1
		return false
	}
	delete(g.connections[a], b)
	delete(g.connections[b], a)
	return true
}
