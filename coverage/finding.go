// Package coverage diffs a function's declared display fields against what
// its sampled transactions actually do on-chain.
package coverage

import "fmt"

type FindingKind int

const (
	// HiddenParameter: an abi parameter no display field ever shows.
	HiddenParameter FindingKind = iota
	// RequiredMissing: a path the descriptor requires is not displayed or
	// doesn't resolve on any sample.
	RequiredMissing
	// ExcludedPresent: a path is both excluded and displayed.
	ExcludedPresent
	// BrokenPath: a declared path is malformed or doesn't exist in the
	// decoded tree.
	BrokenPath
	// NativeAmountUndisclosed: the call moves native currency but no field
	// shows @.value.
	NativeAmountUndisclosed
	// OutOfBoundsIndex: a declared index or slice falls outside the value
	// it addresses.
	OutOfBoundsIndex
	// TokenDirectionMismatch: a tokenAmount field labels a token that the
	// observed transfers never touch. Heuristic, advisory only.
	TokenDirectionMismatch
)

func (k FindingKind) String() string {
	switch k {
	case HiddenParameter:
		return "HiddenParameter"
	case RequiredMissing:
		return "RequiredMissing"
	case ExcludedPresent:
		return "ExcludedPresent"
	case BrokenPath:
		return "BrokenPath"
	case NativeAmountUndisclosed:
		return "NativeAmountUndisclosed"
	case OutOfBoundsIndex:
		return "OutOfBoundsIndex"
	case TokenDirectionMismatch:
		return "TokenDirectionMismatch"
	}
	return fmt.Sprintf("FindingKind(%d)", int(k))
}

func (k FindingKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityAdvisory
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityAdvisory:
		return "advisory"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Finding is one diagnosed issue. TxHash, when set, names a sample that
// evidences the issue.
type Finding struct {
	Kind     FindingKind
	Severity Severity
	Path     string
	Detail   string
	TxHash   string
}

// State tracks one function's progress through an audit run.
type State int

const (
	// Pending: no samples obtained yet; with the no-data marker set this is
	// a terminal state distinct from "no issues found".
	Pending State = iota
	Sampled
	Resolved
	Reported
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Sampled:
		return "Sampled"
	case Resolved:
		return "Resolved"
	case Reported:
		return "Reported"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
