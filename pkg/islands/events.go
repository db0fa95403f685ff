package islands

import "github.com/dd0wney/pvcgraph/pkg/piece"

// EventKind names a lifecycle event
type EventKind string

const (
	EventPieceAdded       EventKind = "piece.added"
	EventPieceRemoved     EventKind = "piece.removed"
	EventAttachmentFormed EventKind = "attachment.formed"
	EventAttachmentBroken EventKind = "attachment.broken"
	EventIslandCreated    EventKind = "island.created"
	EventIslandDestroyed  EventKind = "island.destroyed"
	EventIslandsMerged    EventKind = "island.merged"
	EventIslandSplit      EventKind = "island.split"
)

// Event tells the host that something it may own a counterpart for changed.
// The core never creates or destroys host objects itself.
type Event struct {
	Kind EventKind

	// Island is the island the event concerns. For merges it is the survivor,
	// for splits the island that kept its handle.
	Island IslandID
	// Absorbed is the island destroyed by a merge
	Absorbed IslandID
	// Created lists the islands allocated by a split
	Created []IslandID

	// From and To are the two sides of an attachment event. Piece events
	// carry the piece in From.Piece.
	From Attachment
	To   Attachment

	// DestroyObject asks the host to destroy the removed piece's object
	DestroyObject bool
}

// Piece returns the primary piece of the event, if any
func (e Event) Piece() *piece.Piece {
	return e.From.Piece
}

// EventSink receives graph events synchronously, in the order they happen.
// Sinks must not call back into the graph.
type EventSink interface {
	HandleEvent(Event)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(Event)

// HandleEvent implements EventSink
func (f EventSinkFunc) HandleEvent(e Event) {
	f(e)
}

func (g *Graph) emit(e Event) {
	if g.events != nil {
		g.events.HandleEvent(e)
	}
}
