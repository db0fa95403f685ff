package islands

import (
	"fmt"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/dd0wney/pvcgraph/pkg/piece"
)

// Verify checks every structural invariant of the graph and returns an error
// wrapping ErrInconsistent describing the first violation found:
//
//   - the attachment index is symmetric and only references registered pieces
//   - adjacency matches the attachment index, pair for pair
//   - islands partition the registered pieces and none is empty
//   - two pieces share an island exactly when a path joins them
//
// The last check recomputes connected components independently with gonum.
func (g *Graph) Verify() error {
	if err := g.verifyAttachments(); err != nil {
		return err
	}
	if err := g.verifyPartition(); err != nil {
		return err
	}
	return g.verifyConnectivity()
}

func inconsistent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistent, fmt.Sprintf(format, args...))
}

func (g *Graph) verifyAttachments() error {
	pairs := make(map[*piece.Piece]map[*piece.Piece]int)
	for from, to := range g.attachments {
		if from.Point.Piece() != from.Piece || to.Point.Piece() != to.Piece {
			return inconsistent("attachment %s -> %s names a point of another piece", from, to)
		}
		if back, ok := g.attachments[to]; !ok || back != from {
			return inconsistent("attachment %s -> %s has no matching reverse entry", from, to)
		}
		if from.Piece == to.Piece {
			return inconsistent("attachment %s -> %s joins a piece to itself", from, to)
		}
		if !g.Contains(from.Piece) || !g.Contains(to.Piece) {
			return inconsistent("attachment %s -> %s references an unregistered piece", from, to)
		}
		if pairs[from.Piece] == nil {
			pairs[from.Piece] = make(map[*piece.Piece]int)
		}
		pairs[from.Piece][to.Piece]++
	}

	for p, adj := range g.connections {
		if len(adj) != len(pairs[p]) {
			return inconsistent("piece %s has %d neighbours but attachments to %d pieces", p.ID(), len(adj), len(pairs[p]))
		}
		for q, n := range adj {
			if n != pairs[p][q] {
				return inconsistent("piece %s counts %d links to %s, attachments give %d", p.ID(), n, q.ID(), pairs[p][q])
			}
			if g.connections[q][p] != n {
				return inconsistent("adjacency between %s and %s is asymmetric", p.ID(), q.ID())
			}
		}
	}
	return nil
}

func (g *Graph) verifyPartition() error {
	if len(g.islandOf) != len(g.connections) {
		return inconsistent("%d pieces registered but %d have an island", len(g.connections), len(g.islandOf))
	}
	if len(g.order) != len(g.connections) {
		return inconsistent("%d pieces registered but %d in registration order", len(g.connections), len(g.order))
	}

	total := 0
	for id, members := range g.islandPieces {
		if len(members) == 0 {
			return inconsistent("island %d is empty", id)
		}
		if id > g.nextIsland || id == NoIsland {
			return inconsistent("island %d was never allocated", id)
		}
		for p := range members {
			if g.islandOf[p] != id {
				return inconsistent("piece %s listed on island %d but records island %d", p.ID(), id, g.islandOf[p])
			}
		}
		total += len(members)
	}
	if total != len(g.connections) {
		return inconsistent("islands hold %d pieces, %d are registered", total, len(g.connections))
	}
	return nil
}

func (g *Graph) verifyConnectivity() error {
	ug := simple.NewUndirectedGraph()
	byNode := make(map[int64]*piece.Piece, len(g.order))
	for _, p := range g.order {
		id := int64(g.seq[p])
		ug.AddNode(simple.Node(id))
		byNode[id] = p
	}
	for p, adj := range g.connections {
		for q := range adj {
			if g.seq[p] < g.seq[q] {
				ug.SetEdge(simple.Edge{F: simple.Node(int64(g.seq[p])), T: simple.Node(int64(g.seq[q]))})
			}
		}
	}

	components := topo.ConnectedComponents(ug)
	if len(components) != len(g.islandPieces) {
		return inconsistent("%d connected components but %d islands", len(components), len(g.islandPieces))
	}
	for _, component := range components {
		first := g.islandOf[byNode[component[0].ID()]]
		for _, node := range component[1:] {
			p := byNode[node.ID()]
			if g.islandOf[p] != first {
				return inconsistent("piece %s is connected to island %d but recorded on island %d", p.ID(), first, g.islandOf[p])
			}
		}
	}
	return nil
}
