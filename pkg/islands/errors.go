package islands

import (
	"errors"
	"fmt"

	"github.com/dd0wney/pvcgraph/pkg/piece"
)

// Caller-facing errors. None of them leave the graph modified.
var (
	ErrNilPiece           = errors.New("piece is nil")
	ErrPieceExists        = errors.New("piece already registered")
	ErrPointsInUse        = errors.New("attachment points already in use")
	ErrPieceNotRegistered = errors.New("piece not registered")
	ErrIslandNotFound     = errors.New("island not found")
	ErrInvalidTolerance   = errors.New("tolerance must be positive and finite")
	ErrInconsistent       = errors.New("graph state is inconsistent")
)

// GraphError provides structured error information for rejected calls
type GraphError struct {
	Op     string   // Operation that failed (e.g. "AddPiece")
	Piece  string   // Piece ID, if applicable
	Island IslandID // Island handle, if applicable
	Cause  error
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	switch {
	case e.Piece != "":
		return fmt.Sprintf("%s piece %s: %v", e.Op, e.Piece, e.Cause)
	case e.Island != NoIsland:
		return fmt.Sprintf("%s island %d: %v", e.Op, e.Island, e.Cause)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
}

// Unwrap returns the underlying cause for error chain support.
func (e *GraphError) Unwrap() error {
	return e.Cause
}

func pieceError(op string, p *piece.Piece, cause error) error {
	e := &GraphError{Op: op, Cause: cause}
	if p != nil {
		e.Piece = p.ID()
	}
	return e
}

func islandError(op string, id IslandID, cause error) error {
	return &GraphError{Op: op, Island: id, Cause: cause}
}

// InvariantError is the panic value raised when internal state is found
// corrupted. It signals a bug or a caller protocol violation (for example
// concurrent mutation) and is not meant to be recovered from.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("islands: invariant violated in %s: %s", e.Op, e.Detail)
}

func invariant(cond bool, op, format string, args ...any) {
	if !cond {
		panic(&InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)})
	}
}

// IsNotRegistered returns true if err reports an unknown piece
func IsNotRegistered(err error) bool {
	return errors.Is(err, ErrPieceNotRegistered)
}
