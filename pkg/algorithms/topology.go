package algorithms

import (
	"github.com/dd0wney/pvcgraph/pkg/islands"
)

// Topology summarises the shape of a piece network
type Topology struct {
	Pieces     int
	Edges      int
	Components int
	// Loops is the number of independent cycles (edges - pieces + components).
	// Parallel attachments between the same two pieces count once.
	Loops int
	// DeadEnds counts pieces attached to at most one other piece
	DeadEnds int
	// OpenPoints counts attachment points with no mate
	OpenPoints int
	MaxDegree  int
}

// Analyze computes the topology of g
func Analyze(g *islands.Graph) Topology {
	adj := g.Connections()
	mates := g.Attachments()
	pieces := g.AllPieces()

	t := Topology{Pieces: len(pieces)}
	degreeSum := 0
	for _, p := range pieces {
		d := adj.Degree(p)
		degreeSum += d
		if d <= 1 {
			t.DeadEnds++
		}
		if d > t.MaxDegree {
			t.MaxDegree = d
		}
		for _, pt := range p.Points() {
			if _, ok := mates.MateOf(pt); !ok {
				t.OpenPoints++
			}
		}
	}

	t.Edges = degreeSum / 2
	t.Components = len(ConnectedComponents(adj, pieces))
	t.Loops = t.Edges - t.Pieces + t.Components
	return t
}

// HasLoop reports whether any island contains a cycle
func (t Topology) HasLoop() bool {
	return t.Loops > 0
}
