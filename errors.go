package xstream

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/gogpu/xstream/device"
)

// Condition errors. They are returned wrapped in an *Error of kind
// KindCondition; test for them with errors.Is.
var (
	// ErrDestroyed is returned when a destroyed stream or event is used,
	// including a second Destroy.
	ErrDestroyed = errors.New("xstream: object destroyed")

	// ErrNotRecorded is returned when an event that was never recorded is
	// synchronized.
	ErrNotRecorded = errors.New("xstream: event not recorded")

	// ErrAlreadyRecorded is returned when an event is recorded twice.
	ErrAlreadyRecorded = errors.New("xstream: event already recorded")

	// ErrCrossDevice is returned when a stream waits on an event recorded
	// on a device it cannot wait on.
	ErrCrossDevice = errors.New("xstream: cross-device wait not supported")

	// ErrNilStream is returned when an operation requires a stream.
	ErrNilStream = errors.New("xstream: nil stream")

	// ErrNilEvent is returned when an operation requires an event.
	ErrNilEvent = errors.New("xstream: nil event")

	// ErrNilRegion is returned when a nil region is dispatched.
	ErrNilRegion = errors.New("xstream: nil region")

	// ErrInvalidDevice is returned for a device index the backend does not
	// have.
	ErrInvalidDevice = errors.New("xstream: invalid device")

	// ErrClosed is returned when a closed runtime is used.
	ErrClosed = errors.New("xstream: runtime closed")

	// ErrNoBackend is returned when no device backend can be initialized.
	ErrNoBackend = errors.New("xstream: no backend available")

	// ErrUnknownStrategy is returned by ParseStrategy.
	ErrUnknownStrategy = errors.New("xstream: unknown dispatch strategy")
)

// Status is the numeric result of an operation.
type Status int

const (
	// StatusSuccess reports success.
	StatusSuccess Status = 0

	// StatusBackend reports that the device backend rejected the call.
	StatusBackend Status = -1

	// StatusCondition reports a violated precondition.
	StatusCondition Status = -2
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusBackend:
		return "Backend"
	case StatusCondition:
		return "Condition"
	default:
		return "Unknown"
	}
}

// Kind classifies an *Error.
type Kind int

const (
	// KindBackend means the underlying device call failed.
	KindBackend Kind = iota

	// KindCondition means a precondition was violated by the caller.
	KindCondition
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBackend:
		return "backend error"
	case KindCondition:
		return "condition error"
	default:
		return "unknown error"
	}
}

// Error is the error returned by every failing xstream operation.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Op is the operation name, e.g. "event_record".
	Op string

	// Location is the file:line where the failure was detected.
	Location string

	// Err is the underlying error.
	Err error
}

// Error formats the error with its kind, operation and location.
func (e *Error) Error() string {
	return fmt.Sprintf("xstream: %s: %s at %s: %v", e.Op, e.Kind, e.Location, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind with no
// operation set, so that errors.Is(err, &Error{Kind: KindCondition})
// matches any condition error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// IsBackend reports whether err is a backend error.
func IsBackend(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindBackend
}

// IsCondition reports whether err is a condition error.
func IsCondition(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindCondition
}

// StatusOf maps err to a Status. Errors that are not *Error count as
// backend failures.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	if IsCondition(err) {
		return StatusCondition
	}
	return StatusBackend
}

// newError builds an *Error located at the caller's caller.
func newError(kind Kind, op string, err error) *Error {
	loc := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		loc = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return &Error{Kind: kind, Op: op, Location: loc, Err: err}
}

func conditionError(op string, err error) error {
	return newError(KindCondition, op, err)
}

// deviceError classifies an error returned by a device call. Misuse of
// device objects is a condition; anything else is a backend failure.
func deviceError(op string, err error) error {
	var xe *Error
	if errors.As(err, &xe) {
		return err
	}
	switch {
	case errors.Is(err, device.ErrDestroyed),
		errors.Is(err, device.ErrAlreadyRecorded),
		errors.Is(err, device.ErrNotRecorded),
		errors.Is(err, device.ErrClosed),
		errors.Is(err, device.ErrNoDevice),
		errors.Is(err, device.ErrNilOp):
		return newError(KindCondition, op, err)
	default:
		return newError(KindBackend, op, err)
	}
}
