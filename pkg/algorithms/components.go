// Package algorithms analyses the attachment graph of a piece network.
package algorithms

import (
	"container/list"

	"github.com/dd0wney/pvcgraph/pkg/islands"
	"github.com/dd0wney/pvcgraph/pkg/piece"
)

// ConnectedComponents finds the connected components of the attachment graph
// by breadth-first search, starting from pieces in the order given. It does
// not consult the graph's island bookkeeping, so it can be used to check it.
func ConnectedComponents(adj islands.AdjacencyView, pieces []*piece.Piece) [][]*piece.Piece {
	visited := make(map[*piece.Piece]bool, len(pieces))
	components := make([][]*piece.Piece, 0)

	for _, start := range pieces {
		if visited[start] {
			continue
		}

		component := make([]*piece.Piece, 0, 1)
		queue := list.New()
		queue.PushBack(start)
		visited[start] = true

		for queue.Len() > 0 {
			p, ok := queue.Remove(queue.Front()).(*piece.Piece)
			if !ok {
				continue
			}
			component = append(component, p)

			for _, n := range adj.Neighbors(p) {
				if !visited[n] {
					visited[n] = true
					queue.PushBack(n)
				}
			}
		}

		components = append(components, component)
	}

	return components
}
