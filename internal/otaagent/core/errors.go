package core

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrNetwork covers connectivity, timeout and TLS failures.
	ErrNetwork = errors.New("network error")
	// ErrProtocol covers malformed or unexpected responses.
	ErrProtocol = errors.New("protocol error")
	// ErrRedirectLimit is returned when a redirect answers the single allowed hop.
	ErrRedirectLimit = errors.New("redirect limit exceeded")
	// ErrWrite covers flash write and commit failures.
	ErrWrite = errors.New("write error")
	// ErrSizeMismatch is returned when the written byte count differs from the expected size.
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrIntegrity is returned when the written image does not match the published digest.
	ErrIntegrity = errors.New("integrity check failed")
)

// Error attaches a kind and the failing operation to a cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

// NewError wraps err with a kind. A nil err yields an error carrying only the kind.
func NewError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Errorf builds an Error whose cause is formatted from the arguments.
func Errorf(op string, kind error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// RedirectError reports that a reference answered with a relocation instead of content.
type RedirectError struct {
	Reference string
	Location  string
	Status    int
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("%s redirected (%d) to %s", e.Reference, e.Status, e.Location)
}
