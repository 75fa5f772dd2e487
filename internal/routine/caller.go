package routine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/routine/internal/ir"
)

// Caller performs the async work behind an operation. It is called exactly
// once per invocation with the invocation payload. Timeouts and retries are
// the Caller's business; the context it receives is never cancelled by the
// engine.
type Caller func(ctx context.Context, payload ...ir.Value) (*Response, error)

// Response is what a Caller produces: a status and a decoded body.
type Response struct {
	Status int
	Data   ir.Value
}

// ResponseError is a recoverable call failure: the server answered, and its
// body becomes the Fail event's error. Any other error returned by a Caller
// is fatal for the invocation.
type ResponseError struct {
	Response *Response
	Err      error
}

func (e *ResponseError) Error() string {
	status := 0
	if e.Response != nil {
		status = e.Response.Status
	}
	if e.Err != nil {
		return fmt.Sprintf("response error (status %d): %v", status, e.Err)
	}
	return fmt.Sprintf("response error (status %d)", status)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// AsResponseError extracts a *ResponseError that carries a response.
// A ResponseError without a response is treated like any other error.
func AsResponseError(err error) (*ResponseError, bool) {
	var re *ResponseError
	if errors.As(err, &re) && re.Response != nil {
		return re, true
	}
	return nil, false
}
