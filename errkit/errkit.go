// Package errkit defines the client synchronization runtime's error kinds.
//
// Each kind is a distinct type satisfying error, constructed by wrapping a
// cause with golang.org/x/xerrors so callers can errors.As down to the
// specific kind and still see the underlying cause in %+v output.
package errkit

import (
	"golang.org/x/xerrors"
)

// ConnectError reports that the transport could not (re)connect after
// exhausting its retry budget.
type ConnectError struct {
	Retries int
	err     error
}

func NewConnectError(retries int, cause error) *ConnectError {
	return &ConnectError{Retries: retries, err: xerrors.Errorf("connect failed after %d retries: %w", retries, cause)}
}

func (e *ConnectError) Error() string { return e.err.Error() }
func (e *ConnectError) Unwrap() error { return e.err }

// InvalidCredential reports that the REST verify-api-key endpoint rejected
// the credential (HTTP 401).
type InvalidCredential struct {
	err error
}

func NewInvalidCredential(cause error) *InvalidCredential {
	return &InvalidCredential{err: xerrors.Errorf("invalid api key: %w", cause)}
}

func (e *InvalidCredential) Error() string { return e.err.Error() }
func (e *InvalidCredential) Unwrap() error { return e.err }

// TimeoutError reports that an RPC call did not receive a response within
// its timeout.
type TimeoutError struct {
	Method string
	err    error
}

func NewTimeoutError(method string, cause error) *TimeoutError {
	return &TimeoutError{Method: method, err: xerrors.Errorf("call %q timed out: %w", method, cause)}
}

func (e *TimeoutError) Error() string { return e.err.Error() }
func (e *TimeoutError) Unwrap() error { return e.err }

// ProtocolError reports a malformed frame, unknown method, missing
// result.data, or a decoder shape mismatch.
type ProtocolError struct {
	err error
}

func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{err: xerrors.Errorf("protocol error: "+format, args...)}
}

func (e *ProtocolError) Error() string { return e.err.Error() }
func (e *ProtocolError) Unwrap() error { return e.err }

// LookupError reports a registry miss for a referenced id.
type LookupError struct {
	Registry string
	ID       string
	err      error
}

func NewLookupError(registry, id string) *LookupError {
	return &LookupError{
		Registry: registry,
		ID:       id,
		err:      xerrors.Errorf("%s registry: no entry for id %q", registry, id),
	}
}

func (e *LookupError) Error() string { return e.err.Error() }
func (e *LookupError) Unwrap() error { return e.err }

// InvariantError reports a forbidden assignment, such as setting grad_fn
// outside the grad-fn-assignment gate.
type InvariantError struct {
	err error
}

func NewInvariantError(format string, args ...interface{}) *InvariantError {
	return &InvariantError{err: xerrors.Errorf("invariant violated: "+format, args...)}
}

func (e *InvariantError) Error() string { return e.err.Error() }
func (e *InvariantError) Unwrap() error { return e.err }

// TypeError reports that the encoder or decoder cannot handle a value.
type TypeError struct {
	err error
}

func NewTypeError(format string, args ...interface{}) *TypeError {
	return &TypeError{err: xerrors.Errorf("type error: "+format, args...)}
}

func (e *TypeError) Error() string { return e.err.Error() }
func (e *TypeError) Unwrap() error { return e.err }

// Ensure every kind satisfies the error interface and carries a frame via
// its wrapped xerrors.Errorf cause.
var (
	_ error = (*ConnectError)(nil)
	_ error = (*InvalidCredential)(nil)
	_ error = (*TimeoutError)(nil)
	_ error = (*ProtocolError)(nil)
	_ error = (*LookupError)(nil)
	_ error = (*InvariantError)(nil)
	_ error = (*TypeError)(nil)
)

// String helpers used by handlers that must format a result message.
func okResult() map[string]string { return map[string]string{"message": "Ok"} }

// OkResult is the canonical {"message":"Ok"} acknowledgement body emitted by
// inbound handlers and awaited by outbound attribute writes (spec.md §4.3).
func OkResult() map[string]string { return okResult() }

// IsOk reports whether a decoded update_variable-style result is the
// canonical acknowledgement.
func IsOk(result map[string]string) bool {
	return result != nil && result["message"] == "Ok"
}
