package islands

import (
	"fmt"

	"github.com/dd0wney/pvcgraph/pkg/logging"
	"github.com/dd0wney/pvcgraph/pkg/metrics"
	"github.com/dd0wney/pvcgraph/pkg/piece"
)

// DefaultTolerance is the default margin of error for mating two points: 1/5 mm
const DefaultTolerance = 0.0002

// IslandID is an opaque island handle. Handles are allocated from a counter
// owned by the graph and are never reused until Reset.
type IslandID uint64

// NoIsland is the zero handle; it never names a live island
const NoIsland IslandID = 0

// Attachment identifies one attachment point of one piece
type Attachment struct {
	Piece *piece.Piece
	Point *piece.Point
}

func (a Attachment) String() string {
	if a.Piece == nil || a.Point == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s.%s", a.Piece.ID(), a.Point.Name())
}

// Config holds configuration for a Graph
type Config struct {
	// Tolerance is the linear distance below which two points mate.
	// It is squared for comparison.
	Tolerance float64
	// Logger receives structured logs; nil means no logging
	Logger logging.Logger
	// Metrics is optional
	Metrics *metrics.Registry
	// Events receives island and attachment lifecycle events; optional
	Events EventSink
	// CheckInvariants runs Verify after every mutation and panics on failure
	CheckInvariants bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Tolerance: DefaultTolerance,
	}
}

// Graph tracks pieces, their attachments and the islands they form.
//
// A Graph is not safe for concurrent use. Callers serialise access, usually by
// driving it from a single update loop.
type Graph struct {
	tolerance float64

	// connections[p][q] counts the attachment pairs joining p and q. The set
	// of keys is the adjacency set; an entry exists only while the count is positive.
	connections map[*piece.Piece]map[*piece.Piece]int
	attachments map[Attachment]Attachment

	islandPieces map[IslandID]map[*piece.Piece]struct{}
	islandOf     map[*piece.Piece]IslandID

	// Registration order, used wherever iteration order is observable
	order   []*piece.Piece
	seq     map[*piece.Piece]uint64
	nextSeq uint64

	nextIsland IslandID

	logger          logging.Logger
	metrics         *metrics.Registry
	events          EventSink
	checkInvariants bool
}

// Statistics summarises the graph's size
type Statistics struct {
	Pieces          int
	Islands         int
	Edges           int
	AttachmentPairs int
	IslandsCreated  uint64
}
