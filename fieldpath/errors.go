package fieldpath

import "fmt"

// Reason names why a path failed to parse or resolve. Resolution is total:
// every failure carries exactly one reason, never a bare nil result.
type Reason int

const (
	// MalformedPath means the expression itself doesn't follow the grammar.
	MalformedPath Reason = iota
	// Broken means a named step doesn't exist in the tree, or the path
	// stopped on a composite value.
	Broken
	// OutOfBounds means an index or slice fell outside the addressed
	// sequence or byte string after normalization.
	OutOfBounds
)

func (r Reason) String() string {
	switch r {
	case MalformedPath:
		return "malformed path"
	case Broken:
		return "broken path"
	case OutOfBounds:
		return "out of bounds"
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

type ResolveError struct {
	Reason Reason
	Path   string
	Detail string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Reason, e.Path, e.Detail)
}

func newErr(reason Reason, path, format string, args ...interface{}) *ResolveError {
	return &ResolveError{Reason: reason, Path: path, Detail: fmt.Sprintf(format, args...)}
}
