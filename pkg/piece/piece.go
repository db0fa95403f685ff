// Package piece models the vertices of the attachment graph: pieces that own a
// fixed, ordered set of attachment points whose positions come from the host.
package piece

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// Locator supplies the live position of an attachment point. Implementations
// belong to the host's positioning system; positions are polled, never cached.
type Locator interface {
	Position() r3.Vec
}

// LocatorFunc adapts a function to the Locator interface
type LocatorFunc func() r3.Vec

// Position implements Locator
func (f LocatorFunc) Position() r3.Vec {
	return f()
}

// Fixed is a Locator that always reports the same position
type Fixed r3.Vec

// Position implements Locator
func (f Fixed) Position() r3.Vec {
	return r3.Vec(f)
}

// Point is an attachment point. It belongs to exactly one Piece for its lifetime.
type Point struct {
	name  string
	loc   Locator
	owner *Piece
}

// NewPoint creates an attachment point backed by the given locator
func NewPoint(name string, loc Locator) *Point {
	return &Point{name: name, loc: loc}
}

// Name returns the point's name within its piece
func (p *Point) Name() string {
	return p.name
}

// Position reads the point's current position from its locator
func (p *Point) Position() r3.Vec {
	return p.loc.Position()
}

// Piece returns the piece that owns this point
func (p *Point) Piece() *Piece {
	return p.owner
}

func (p *Point) String() string {
	if p.owner == nil {
		return p.name
	}
	return p.owner.id + "." + p.name
}

// Piece is an identity owning an ordered list of attachment points.
// Two pieces are equal only if they are the same pointer.
type Piece struct {
	id     string
	kind   string
	points []*Point
}

// New creates a piece that takes ownership of the given points. An empty id
// is replaced by a generated UUID.
func New(id, kind string, points ...*Point) *Piece {
	if id == "" {
		id = uuid.NewString()
	}
	p := &Piece{
		id:     id,
		kind:   kind,
		points: make([]*Point, len(points)),
	}
	for i, pt := range points {
		if pt.owner != nil && pt.owner != p {
			panic("piece: attachment point " + pt.name + " already belongs to " + pt.owner.id)
		}
		pt.owner = p
		p.points[i] = pt
	}
	return p
}

// ID returns the piece's display identifier
func (p *Piece) ID() string {
	return p.id
}

// Kind returns the piece type (e.g. "pipe", "fitting")
func (p *Piece) Kind() string {
	return p.kind
}

// Points returns the piece's attachment points in creation order.
// The returned slice is a copy; the point set is fixed.
func (p *Piece) Points() []*Point {
	out := make([]*Point, len(p.points))
	copy(out, p.points)
	return out
}

// NumPoints returns the number of attachment points
func (p *Piece) NumPoints() int {
	return len(p.points)
}

// Point returns the i-th attachment point
func (p *Piece) Point(i int) *Point {
	return p.points[i]
}

func (p *Piece) String() string {
	return p.id
}
