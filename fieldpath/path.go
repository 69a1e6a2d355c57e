// Package fieldpath parses descriptor path expressions and resolves them
// against decoded calldata trees and transaction envelopes.
//
// The grammar, left to right: an optional container prefix "@." followed by
// to|from|value, or a dotted chain of identifiers with optional index and
// slice suffixes ("[2]", "[-1]", "[4:24]", "[-20:]"). Bracket groups may
// trail an identifier or stand as their own dotted segment.
package fieldpath

import "fmt"

type SegmentKind int

const (
	Container SegmentKind = iota
	Field
	Index
	Slice
)

func (k SegmentKind) String() string {
	switch k {
	case Container:
		return "container"
	case Field:
		return "field"
	case Index:
		return "index"
	case Slice:
		return "slice"
	}
	return fmt.Sprintf("segment(%d)", int(k))
}

// Segment is one step of a parsed path. Name is set for Container and Field,
// Idx for Index, Start/End for Slice with nil meaning an omitted bound.
type Segment struct {
	Kind  SegmentKind
	Name  string
	Idx   int
	Start *int
	End   *int
}

// Path is a parsed, immutable path expression.
type Path struct {
	Raw      string
	Segments []Segment
}

// IsContainer reports whether the path addresses the transaction envelope
// rather than decoded calldata.
func (p *Path) IsContainer() bool {
	return len(p.Segments) == 1 && p.Segments[0].Kind == Container
}

// ContainerName returns to, from or value for container paths.
func (p *Path) ContainerName() string {
	if p.IsContainer() {
		return p.Segments[0].Name
	}
	return ""
}

// RootField returns the first identifier of a calldata path, which is the
// ABI parameter the path enters through.
func (p *Path) RootField() (string, bool) {
	if len(p.Segments) == 0 || p.Segments[0].Kind != Field {
		return "", false
	}
	return p.Segments[0].Name, true
}
