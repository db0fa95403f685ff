package piece

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

// BaseLength is the length of an unscaled pipe: 10 feet in metres
const BaseLength = 3.048

// Pipe end point names
const (
	PipeStart = "start"
	PipeEnd   = "end"
)

// ErrInvalidLength is returned when a pipe length is not positive
var ErrInvalidLength = errors.New("pipe length must be positive")

// Pipe is a straight piece with one attachment point at each end. The pipe
// runs along the x axis of its frame, centred on the frame origin.
type Pipe struct {
	*Piece
	frame *Frame
	scale float64
}

// NewPipe creates a pipe of the given length in frame
func NewPipe(id string, frame *Frame, length float64) (*Pipe, error) {
	if length <= 0 {
		return nil, ErrInvalidLength
	}
	pipe := &Pipe{frame: frame, scale: length / BaseLength}
	start := NewPoint(PipeStart, LocatorFunc(func() r3.Vec {
		return r3.Add(pipe.frame.Origin(), r3.Vec{X: -pipe.Length() / 2})
	}))
	end := NewPoint(PipeEnd, LocatorFunc(func() r3.Vec {
		return r3.Add(pipe.frame.Origin(), r3.Vec{X: pipe.Length() / 2})
	}))
	pipe.Piece = New(id, "pipe", start, end)
	return pipe, nil
}

// Length returns the pipe's current length
func (p *Pipe) Length() float64 {
	return BaseLength * p.scale
}

// SetLength rescales the pipe. The end points move immediately; the graph
// notices on the next UpdateAttachments for this piece.
func (p *Pipe) SetLength(length float64) error {
	if length <= 0 {
		return ErrInvalidLength
	}
	p.scale = length / BaseLength
	return nil
}

// Frame returns the frame the pipe is positioned in
func (p *Pipe) Frame() *Frame {
	return p.frame
}
