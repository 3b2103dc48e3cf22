package tree

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind discriminates the closed set of failure categories a tree operation
// can report.
type Kind int

const (
	// KindNotFound indicates a missing root, node, or key where absence is
	// not itself a legitimate answer to the query (e.g. Open of a tree
	// whose config blob does not exist).
	KindNotFound Kind = iota
	// KindCorrupted indicates a node failed to parse, a digest did not
	// match its claimed content, or an internal node referenced a child
	// digest that storage does not have.
	KindCorrupted
	// KindIO indicates a storage backend transport failure, surfaced
	// unchanged.
	KindIO
	// KindInvariant indicates an internal invariant was violated. Fatal
	// and non-recoverable for the affected tree handle.
	KindInvariant
	// KindInvalidArgument indicates a caller-supplied argument violated a
	// documented precondition (empty key, invalid Config, mismatched
	// Config on Open, mismatched Config on Diff, ...).
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindCorrupted:
		return "corrupted"
	case KindIO:
		return "io"
	case KindInvariant:
		return "invariant"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// Error is the discriminated error type returned across every fallible
// boundary in this package. Callers distinguish categories with errors.As
// and inspect Kind, rather than matching on message text.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tree: %s: %s: %s", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("tree: %s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// LogFields lets pkg/log attach this error's Kind and Op as structured
// attributes on a log line, without pkg/log importing this package (which
// itself imports pkg/log for Tree's optional logger).
func (e *Error) LogFields() []any {
	return []any{"kind", e.Kind.String(), "op", e.Op}
}

// Is allows errors.Is(err, ErrNotFound) style sentinel checks by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

func wrapErr(op string, kind Kind, msg string, cause error) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg, Err: errors.Wrap(cause, msg)}
}

// Sentinel instances usable with errors.Is for each Kind. Their Op/Msg
// fields are not inspected by Is; only Kind participates in equality.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrCorrupted       = &Error{Kind: KindCorrupted}
	ErrIO              = &Error{Kind: KindIO}
	ErrInvariant       = &Error{Kind: KindInvariant}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
)

// KindOf extracts the Kind from err if it is (or wraps) a *Error, and
// reports whether extraction succeeded.
func KindOf(err error) (Kind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return 0, false
}
