package apperr

import "errors"

// Sentinel kinds. Every expected failure returned by the services wraps exactly one of them.
var (
	// ErrInvalid is returned when the input fails domain validation (wrong PIN, bad coordinates).
	ErrInvalid = errors.New("invalid input")
	// ErrConflict indicates a uniqueness or state conflict, e.g. a delivery already taken.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates that the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the caller is not a party of the delivery.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition is returned when the requested status is not allowed from the current one.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnavailable means the rider cannot take work right now.
	ErrUnavailable = errors.New("unavailable")
)

// Error carries a human readable message for one of the sentinel kinds.
type Error struct {
	kind error
	msg  string
}

// New returns an error that matches kind with errors.Is.
func New(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error { return e.kind }

var kinds = []struct {
	err  error
	name string
}{
	{ErrNotFound, "not_found"},
	{ErrConflict, "conflict"},
	{ErrForbidden, "forbidden"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrInvalid, "invalid_input"},
	{ErrUnavailable, "unavailable"},
}

// KindOf returns the stable kind string of err, or "internal" for unexpected errors.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}

// Expected reports whether err is one of the recoverable kinds.
func Expected(err error) bool {
	return KindOf(err) != "internal"
}

// Message returns the text to show to a caller. Unexpected errors are not leaked.
func Message(err error) string {
	if Expected(err) {
		return err.Error()
	}
	return "internal error"
}
