package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected during engine execution.
//
// Runtime errors include:
//   - Illegal transition: a lifecycle phase was skipped or repeated
//   - Reduce failed: the reducer rejected an event (state is unchanged)
//   - Store failed: an event could not be appended to the log
//   - Unknown strategy: replay found a custom strategy it cannot rebind
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// OperationID identifies the affected operation.
	OperationID string

	// InvocationID identifies the affected invocation.
	InvocationID string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeIllegalTransition indicates a lifecycle phase transition that
	// the state machine does not allow.
	ErrCodeIllegalTransition RuntimeErrorCode = "ILLEGAL_TRANSITION"

	// ErrCodeReduceFailed indicates the reducer returned an error.
	ErrCodeReduceFailed RuntimeErrorCode = "REDUCE_FAILED"

	// ErrCodeStoreFailed indicates the event log write failed.
	ErrCodeStoreFailed RuntimeErrorCode = "STORE_FAILED"

	// ErrCodeUnknownStrategy indicates replay could not resolve a strategy.
	ErrCodeUnknownStrategy RuntimeErrorCode = "UNKNOWN_STRATEGY"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.InvocationID != "" {
		msg += fmt.Sprintf(" (operation=%s, invocation=%s)", e.OperationID, e.InvocationID)
	} else if e.OperationID != "" {
		msg += fmt.Sprintf(" (operation=%s)", e.OperationID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// IsIllegalTransition returns true if the error is an illegal phase transition.
// Uses errors.As to handle wrapped errors.
func IsIllegalTransition(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeIllegalTransition
	}
	return false
}

// IsReduceError returns true if the reducer rejected an event.
func IsReduceError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeReduceFailed
	}
	return false
}

// FatalTransportError reports a call that failed without a response body,
// e.g. a refused connection. The invocation ends without a Fail event and
// its loading flag stays set; the error goes to the engine's fatal handler.
type FatalTransportError struct {
	OperationID  string
	InvocationID string
	Err          error
}

func (e *FatalTransportError) Error() string {
	return fmt.Sprintf("fatal transport error (operation=%s, invocation=%s): %v", e.OperationID, e.InvocationID, e.Err)
}

func (e *FatalTransportError) Unwrap() error { return e.Err }

// IsFatalTransport returns true if err is a *FatalTransportError.
func IsFatalTransport(err error) bool {
	var fe *FatalTransportError
	return errors.As(err, &fe)
}
