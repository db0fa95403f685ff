package piece

import "gonum.org/v1/gonum/spatial/r3"

// Frame is a movable origin that points can be attached to by offset.
// It stands in for a host transform in tools and tests.
type Frame struct {
	origin r3.Vec
}

// NewFrame creates a frame at the given origin
func NewFrame(origin r3.Vec) *Frame {
	return &Frame{origin: origin}
}

// Origin returns the frame's current origin
func (f *Frame) Origin() r3.Vec {
	return f.origin
}

// MoveTo places the frame's origin at an absolute position
func (f *Frame) MoveTo(origin r3.Vec) {
	f.origin = origin
}

// Translate moves the frame by delta
func (f *Frame) Translate(delta r3.Vec) {
	f.origin = r3.Add(f.origin, delta)
}

// At returns a locator for a point at a fixed offset from the frame origin
func (f *Frame) At(offset r3.Vec) Locator {
	return LocatorFunc(func() r3.Vec {
		return r3.Add(f.origin, offset)
	})
}
