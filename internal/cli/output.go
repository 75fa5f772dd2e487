package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario failed, replay diverged, invocation failed fatally
	ExitCommandError = 2 // Invalid paths, missing database, bad flags
)

// Result markers for text output.
const (
	markOK   = "\u2713"
	markFail = "\u2717"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string
	Err     error // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func newFormatter(opts *RootOptions, w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: w}
}

// JSON reports whether output is JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Respond writes data as an "ok" response, or as an "error" response
// carrying cliErr when it is non-nil. Only valid in JSON mode.
func (f *OutputFormatter) Respond(data any, cliErr *CLIError) error {
	resp := CLIResponse{Status: "ok", Data: data}
	if cliErr != nil {
		resp.Status = "error"
		resp.Error = cliErr
	}
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// Error outputs a command error in the configured format and returns it as
// an ExitError with ExitCommandError.
func (f *OutputFormatter) Error(code, message string, err error) error {
	if f.JSON() {
		details := any(nil)
		if err != nil {
			details = err.Error()
		}
		_ = f.Respond(nil, &CLIError{Code: code, Message: message, Details: details})
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
		if err != nil {
			fmt.Fprintf(f.Writer, "  %v\n", err)
		}
	}
	return WrapExitError(ExitCommandError, message, err)
}

// Printf writes text output. It is a no-op in JSON mode so that stdout
// stays a single JSON document.
func (f *OutputFormatter) Printf(format string, args ...any) {
	if f.JSON() {
		return
	}
	fmt.Fprintf(f.Writer, format, args...)
}

// CLI error codes.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeNotFound   = "E002" // Path not found
	ErrCodeLoadFailed = "E003" // Manifest load or compile failed
	ErrCodeStore      = "E004" // Event log could not be opened or read
	ErrCodeBadArgs    = "E005" // Flag or argument invalid
	ErrCodeFatal      = "E006" // Invocation ended with a fatal transport error
	ErrCodeReplay     = "E007" // Replay diverged
	ErrCodeTestFailed = "E008" // Scenario failures
	ErrCodeValidation = "E009" // Manifest validation failed
)
