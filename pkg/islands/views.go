package islands

import (
	"iter"
	"sort"

	"github.com/dd0wney/pvcgraph/pkg/piece"
)

// The views below borrow the graph's state without copying it. They are only
// valid until the next mutating call and must not be retained across one.

// AdjacencyView is a read-only view of piece adjacency
type AdjacencyView struct {
	g *Graph
}

// Connections returns a read-only view of the adjacency sets
func (g *Graph) Connections() AdjacencyView {
	return AdjacencyView{g: g}
}

// Len returns the number of registered pieces
func (v AdjacencyView) Len() int {
	return len(v.g.connections)
}

// Neighbors returns the pieces directly connected to p, in registration order.
// Pieces joined by several attachment pairs appear once.
func (v AdjacencyView) Neighbors(p *piece.Piece) []*piece.Piece {
	adj, ok := v.g.connections[p]
	if !ok {
		return nil
	}
	return sortedPieces(v.g, adj)
}

// Degree returns the number of distinct neighbours of p
func (v AdjacencyView) Degree(p *piece.Piece) int {
	return len(v.g.connections[p])
}

// Connected reports whether p and q are directly connected
func (v AdjacencyView) Connected(p, q *piece.Piece) bool {
	_, ok := v.g.connections[p][q]
	return ok
}

// All iterates pieces in registration order with their neighbours
func (v AdjacencyView) All() iter.Seq2[*piece.Piece, []*piece.Piece] {
	return func(yield func(*piece.Piece, []*piece.Piece) bool) {
		for _, p := range v.g.order {
			if !yield(p, v.Neighbors(p)) {
				return
			}
		}
	}
}

// AttachmentView is a read-only view of the attachment index
type AttachmentView struct {
	g *Graph
}

// Attachments returns a read-only view of the attachment index
func (g *Graph) Attachments() AttachmentView {
	return AttachmentView{g: g}
}

// Len returns the number of index entries; each mated pair contributes two
func (v AttachmentView) Len() int {
	return len(v.g.attachments)
}

// Mate returns the attachment a is mated with
func (v AttachmentView) Mate(a Attachment) (Attachment, bool) {
	mate, ok := v.g.attachments[a]
	return mate, ok
}

// MateOf is Mate for a point, using the point's owning piece
func (v AttachmentView) MateOf(point *piece.Point) (Attachment, bool) {
	return v.Mate(Attachment{Piece: point.Piece(), Point: point})
}

// All iterates index entries ordered by piece registration and point order
func (v AttachmentView) All() iter.Seq2[Attachment, Attachment] {
	return func(yield func(Attachment, Attachment) bool) {
		for _, p := range v.g.order {
			for i := 0; i < p.NumPoints(); i++ {
				key := Attachment{Piece: p, Point: p.Point(i)}
				if mate, ok := v.g.attachments[key]; ok {
					if !yield(key, mate) {
						return
					}
				}
			}
		}
	}
}

// IslandView is a read-only view of island membership in both directions
type IslandView struct {
	g *Graph
}

// Islands returns a read-only view of island membership
func (g *Graph) Islands() IslandView {
	return IslandView{g: g}
}

// Len returns the number of live islands
func (v IslandView) Len() int {
	return len(v.g.islandPieces)
}

// IDs returns the live island handles in ascending order
func (v IslandView) IDs() []IslandID {
	ids := make([]IslandID, 0, len(v.g.islandPieces))
	for id := range v.g.islandPieces {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Pieces returns the members of island id in registration order
func (v IslandView) Pieces(id IslandID) []*piece.Piece {
	members, ok := v.g.islandPieces[id]
	if !ok {
		return nil
	}
	return sortedPieces(v.g, members)
}

// Size returns the number of pieces on island id
func (v IslandView) Size(id IslandID) int {
	return len(v.g.islandPieces[id])
}

// Exists reports whether id names a live island
func (v IslandView) Exists(id IslandID) bool {
	_, ok := v.g.islandPieces[id]
	return ok
}

// IslandOf returns the island p belongs to
func (v IslandView) IslandOf(p *piece.Piece) (IslandID, bool) {
	id, ok := v.g.islandOf[p]
	return id, ok
}

// SameIsland reports whether p and q are registered on the same island
func (v IslandView) SameIsland(p, q *piece.Piece) bool {
	a, okA := v.g.islandOf[p]
	b, okB := v.g.islandOf[q]
	return okA && okB && a == b
}

// All iterates islands in handle order with their members
func (v IslandView) All() iter.Seq2[IslandID, []*piece.Piece] {
	return func(yield func(IslandID, []*piece.Piece) bool) {
		for _, id := range v.IDs() {
			if !yield(id, v.Pieces(id)) {
				return
			}
		}
	}
}
