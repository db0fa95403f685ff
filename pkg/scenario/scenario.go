// Package scenario describes scripted sequences of piece placements and moves,
// loaded from YAML or TOML, and replays them against an island graph.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/dd0wney/pvcgraph/pkg/validation"
)

// Piece kinds a scenario can declare
const (
	KindPipe    = "pipe"
	KindFitting = "fitting"
)

// Step actions
const (
	ActionAdd       = "add"
	ActionRemove    = "remove"
	ActionMove      = "move"
	ActionTranslate = "translate"
	ActionResize    = "resize"
)

// Formats accepted by Parse
const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

var (
	// ErrUnknownFormat is returned for files that are neither YAML nor TOML
	ErrUnknownFormat = errors.New("unknown scenario format")
	// ErrInvalid wraps every semantic validation failure
	ErrInvalid = errors.New("invalid scenario")
)

// Vec is a position or offset written as [x, y, z]
type Vec []float64

// R3 converts v to a gonum vector. An empty Vec is the origin.
func (v Vec) R3() r3.Vec {
	if len(v) != 3 {
		return r3.Vec{}
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// PointSpec declares one attachment point of a fitting
type PointSpec struct {
	Name   string `yaml:"name" toml:"name" validate:"required,ident"`
	Offset Vec    `yaml:"offset" toml:"offset" validate:"len=3"`
}

// PieceSpec declares a piece. Pipes get "start" and "end" points from their
// length; fittings list their points explicitly.
type PieceSpec struct {
	ID     string      `yaml:"id" toml:"id" validate:"required,ident"`
	Kind   string      `yaml:"kind" toml:"kind" validate:"oneof=pipe fitting"`
	Origin Vec         `yaml:"origin" toml:"origin" validate:"omitempty,len=3"`
	Length float64     `yaml:"length" toml:"length" validate:"gte=0"`
	Points []PointSpec `yaml:"points" toml:"points" validate:"dive"`
}

// Expectation is checked after a step runs
type Expectation struct {
	// Islands is the expected island count
	Islands *int `yaml:"islands" toml:"islands" validate:"omitempty,gte=0"`
	// Together lists groups of pieces that must share one island
	Together [][]string `yaml:"together" toml:"together" validate:"dive,min=2,dive,ident"`
	// Apart lists pairs of pieces that must be on different islands
	Apart [][]string `yaml:"apart" toml:"apart" validate:"dive,len=2,dive,ident"`
	// Changed is the expected result of the step's attachment update
	Changed *bool `yaml:"changed" toml:"changed"`
}

// Step is one scripted action
type Step struct {
	Name   string  `yaml:"name" toml:"name"`
	Action string  `yaml:"action" toml:"action" validate:"oneof=add remove move translate resize"`
	Piece  string  `yaml:"piece" toml:"piece" validate:"required,ident"`
	To     Vec     `yaml:"to" toml:"to" validate:"omitempty,len=3"`
	By     Vec     `yaml:"by" toml:"by" validate:"omitempty,len=3"`
	Length float64 `yaml:"length" toml:"length" validate:"gte=0"`
	// Keep removes the piece without asking the host to destroy its object
	Keep   bool         `yaml:"keep" toml:"keep"`
	Expect *Expectation `yaml:"expect" toml:"expect"`
}

// Label returns the step's name, or a description of its action
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Action + " " + s.Piece
}

// File is a complete scenario
type File struct {
	Name string `yaml:"name" toml:"name"`
	// Tolerance overrides the configured tolerance when positive
	Tolerance float64     `yaml:"tolerance" toml:"tolerance" validate:"gte=0"`
	Pieces    []PieceSpec `yaml:"pieces" toml:"pieces" validate:"dive"`
	Steps     []Step      `yaml:"steps" toml:"steps" validate:"dive"`
}

// Load reads a scenario file, choosing the format from its extension
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return f, nil
}

// FormatOf maps a file extension to a format
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Parse decodes and validates a scenario. Unknown keys are rejected.
func Parse(data []byte, format string) (*File, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks struct tags, then the cross references between pieces and steps
func (f *File) Validate() error {
	if err := validation.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	declared := make(map[string]PieceSpec, len(f.Pieces))
	for i, p := range f.Pieces {
		if _, dup := declared[p.ID]; dup {
			return invalid("pieces[%d]: duplicate id %q", i, p.ID)
		}
		declared[p.ID] = p

		switch p.Kind {
		case KindPipe:
			if len(p.Points) > 0 {
				return invalid("pieces[%d]: pipe %q cannot declare points", i, p.ID)
			}
		case KindFitting:
			if p.Length != 0 {
				return invalid("pieces[%d]: fitting %q cannot have a length", i, p.ID)
			}
			names := make(map[string]bool, len(p.Points))
			for _, pt := range p.Points {
				if names[pt.Name] {
					return invalid("pieces[%d]: duplicate point %q on %q", i, pt.Name, p.ID)
				}
				names[pt.Name] = true
			}
		}
	}

	for i, s := range f.Steps {
		spec, ok := declared[s.Piece]
		if !ok {
			return invalid("steps[%d]: unknown piece %q", i, s.Piece)
		}
		switch s.Action {
		case ActionMove:
			if len(s.To) == 0 {
				return invalid("steps[%d]: move needs 'to'", i)
			}
		case ActionTranslate:
			if len(s.By) == 0 {
				return invalid("steps[%d]: translate needs 'by'", i)
			}
		case ActionResize:
			if spec.Kind != KindPipe {
				return invalid("steps[%d]: only pipes can be resized", i)
			}
			if s.Length <= 0 {
				return invalid("steps[%d]: resize needs a positive length", i)
			}
		}
		if s.Expect != nil {
			for _, group := range append(s.Expect.Together, s.Expect.Apart...) {
				for _, id := range group {
					if _, ok := declared[id]; !ok {
						return invalid("steps[%d]: expectation names unknown piece %q", i, id)
					}
				}
			}
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
