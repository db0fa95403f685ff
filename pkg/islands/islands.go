package islands

import (
	"container/list"
	"sort"
	"time"

	"github.com/dd0wney/pvcgraph/pkg/logging"
	"github.com/dd0wney/pvcgraph/pkg/metrics"
	"github.com/dd0wney/pvcgraph/pkg/piece"
)

func (g *Graph) createIsland() IslandID {
	g.nextIsland++
	id := g.nextIsland
	g.islandPieces[id] = make(map[*piece.Piece]struct{})

	recordIslandOp(g.metrics, metrics.OpCreate)
	g.emit(Event{Kind: EventIslandCreated, Island: id})
	return id
}

func (g *Graph) destroyIsland(id IslandID) {
	delete(g.islandPieces, id)

	recordIslandOp(g.metrics, metrics.OpDestroy)
	g.emit(Event{Kind: EventIslandDestroyed, Island: id})
}

// mergeIslands moves every piece of the smaller island into the larger one and
// destroys the smaller handle. On a tie, first survives. Returns the survivor.
func (g *Graph) mergeIslands(first, second IslandID) IslandID {
	keep, absorb := first, second
	if len(g.islandPieces[absorb]) > len(g.islandPieces[keep]) {
		keep, absorb = absorb, keep
	}

	survivors := g.islandPieces[keep]
	for p := range g.islandPieces[absorb] {
		g.islandOf[p] = keep
		survivors[p] = struct{}{}
	}
	moved := len(g.islandPieces[absorb])

	g.logger.Info("islands merged",
		logging.IslandID(uint64(keep)),
		logging.Uint64("absorbed", uint64(absorb)),
		logging.Count(moved),
	)
	recordIslandOp(g.metrics, metrics.OpMerge)
	g.emit(Event{Kind: EventIslandsMerged, Island: keep, Absorbed: absorb})
	g.destroyIsland(absorb)
	return keep
}

// RegenIsland recomputes the connected components of island id after edges
// inside it were removed, and returns the resulting handles with id first.
// An empty island is destroyed and nil is returned.
func (g *Graph) RegenIsland(id IslandID) ([]IslandID, error) {
	const op = "RegenIsland"
	if _, ok := g.islandPieces[id]; !ok {
		return nil, islandError(op, id, ErrIslandNotFound)
	}
	ids := g.regenIsland(id)
	g.afterMutation(op)
	return ids, nil
}

// regenIsland flood-fills the island's pieces along the adjacency graph.
//
// One component leaves the island untouched. With several, the largest
// component keeps the handle (ties go to the one discovered first, scanning
// in registration order) and every other component gets a new handle.
func (g *Graph) regenIsland(id IslandID) []IslandID {
	const op = "RegenIsland"
	members, ok := g.islandPieces[id]
	invariant(ok, op, "island %d does not exist", id)

	start := time.Now()
	componentOf := make(map[*piece.Piece]int, len(members))
	var components [][]*piece.Piece

	for _, p := range sortedPieces(g, members) {
		if _, seen := componentOf[p]; seen {
			continue
		}
		components = append(components, g.floodFill(op, id, p, len(components), componentOf))
	}

	if g.metrics != nil {
		g.metrics.RecordRegen(len(components), time.Since(start))
	}

	switch len(components) {
	case 0:
		g.logger.Debug("empty island destroyed", logging.IslandID(uint64(id)))
		g.destroyIsland(id)
		return nil
	case 1:
		return []IslandID{id}
	}

	sort.SliceStable(components, func(i, j int) bool {
		return len(components[i]) > len(components[j])
	})

	kept := make(map[*piece.Piece]struct{}, len(components[0]))
	for _, p := range components[0] {
		kept[p] = struct{}{}
	}
	g.islandPieces[id] = kept

	ids := make([]IslandID, 1, len(components))
	ids[0] = id
	for _, component := range components[1:] {
		newID := g.createIsland()
		set := g.islandPieces[newID]
		for _, p := range component {
			set[p] = struct{}{}
			g.islandOf[p] = newID
		}
		ids = append(ids, newID)
	}

	g.logger.Info("island split",
		logging.IslandID(uint64(id)),
		logging.Count(len(components)),
		logging.Int("kept", len(components[0])),
	)
	recordIslandOp(g.metrics, metrics.OpSplit)
	g.emit(Event{Kind: EventIslandSplit, Island: id, Created: ids[1:]})
	return ids
}

// floodFill collects the component containing start with a breadth-first
// search, labelling each visited piece with idx
func (g *Graph) floodFill(op string, island IslandID, start *piece.Piece, idx int, componentOf map[*piece.Piece]int) []*piece.Piece {
	component := []*piece.Piece{start}
	componentOf[start] = idx

	queue := list.New()
	queue.PushBack(start)
	for queue.Len() > 0 {
		current, ok := queue.Remove(queue.Front()).(*piece.Piece)
		if !ok {
			continue
		}
		for next := range g.connections[current] {
			if _, seen := componentOf[next]; seen {
				continue
			}
			invariant(g.islandOf[next] == island, op,
				"piece %s is connected to %s but on island %d instead of %d",
				next.ID(), current.ID(), g.islandOf[next], island)
			componentOf[next] = idx
			component = append(component, next)
			queue.PushBack(next)
		}
	}
	return component
}
