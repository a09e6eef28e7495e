// Package errkind defines the error taxonomy shared by every arena-api package.
//
// Each kind is a sentinel that callers test with errors.Is. Operations return
// either a sentinel wrapped with fmt.Errorf("%w: ...") or an *Error when extra
// structure (operation name, suggestions) is useful to the caller.
package errkind

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrOutOfRange        = errors.New("out of range")
	ErrIllegalState      = errors.New("illegal state")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrTimeout           = errors.New("timeout")
	ErrNotImplemented    = errors.New("not implemented")
	ErrNotAvailable      = errors.New("not available")
	ErrInvalidValue      = errors.New("invalid value")
	ErrBufferTooSmall    = errors.New("buffer too small")

	// ErrAborted is returned to a caller blocked in a wait when the
	// stream or channel it waits on is stopped by another goroutine.
	ErrAborted = errors.New("aborted")

	// ErrTargetDestroyed is returned when a callback is deregistered after
	// the node or device it was registered on has been destroyed.
	ErrTargetDestroyed = errors.New("callback target destroyed")
)

// Error carries a kind together with the failing operation and, for lookups,
// a list of close matches.
type Error struct {
	Kind        error
	Op          string
	Reason      string
	Suggestions []string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Suggestions) > 0 {
		b.WriteString(" (did you mean ")
		for i, s := range e.Suggestions {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("%q", s))
		}
		b.WriteString("?)")
	}
	return b.String()
}

// Unwrap returns the kind so errors.Is matches the sentinel.
func (e *Error) Unwrap() error { return e.Kind }

// New returns an *Error of the given kind.
func New(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Reason: fmt.Sprintf(format, args...)}
}

// Suggestions extracts the suggestion list from err, if any.
func Suggestions(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Suggestions
	}
	return nil
}

// Kind returns the sentinel kind of err, or nil when err does not belong to
// the taxonomy.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// ErrAborted and ErrTargetDestroyed are checked first since they are the
// most specific.
var kinds = []error{
	ErrAborted,
	ErrTargetDestroyed,
	ErrInvalidArgument,
	ErrOutOfRange,
	ErrIllegalState,
	ErrNotFound,
	ErrAlreadyRegistered,
	ErrTypeMismatch,
	ErrTimeout,
	ErrNotImplemented,
	ErrNotAvailable,
	ErrInvalidValue,
	ErrBufferTooSmall,
}
