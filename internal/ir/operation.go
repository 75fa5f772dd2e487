package ir

import "fmt"

// OperationDef is a compiled, declarative operation from a manifest.
// Unlike routine.Operation it holds no callable: the endpoint is bound to a
// transport when the manifest is loaded.
type OperationDef struct {
	Name       string       `json:"name"`
	Prefix     string       `json:"prefix"`
	ID         string       `json:"id,omitempty"` // Defaults to Prefix
	ReducerKey KeyPath      `json:"reducer_key"`
	Transform  string       `json:"transform"`
	Endpoint   *EndpointDef `json:"endpoint,omitempty"`
	OnSuccess  string       `json:"on_success,omitempty"` // Operation name, dispatched with the payload
	OnFail     string       `json:"on_fail,omitempty"`    // Operation name, dispatched with no payload
}

// OperationID returns the explicit ID or, when unset, the prefix.
func (d OperationDef) OperationID() string {
	if d.ID != "" {
		return d.ID
	}
	return d.Prefix
}

// EndpointDef describes the HTTP call behind an operation.
type EndpointDef struct {
	Method  string `json:"method"`
	URL     string `json:"url"`
	BodyArg int    `json:"body_arg"` // Payload index sent as JSON body, -1 for none
}

// ValidMethods defines the allowed endpoint methods.
var ValidMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks an OperationDef in isolation.
// Returns all errors (not fail-fast) for better developer experience.
// Cross-operation rules (duplicate ids, follow-up references) live in the
// compiler.
func (d *OperationDef) Validate() []ValidationError {
	var errs []ValidationError

	if d.Prefix == "" {
		errs = append(errs, ValidationError{Field: "prefix", Message: "prefix is required"})
	}

	if err := d.ReducerKey.Validate(); err != nil {
		errs = append(errs, ValidationError{Field: "reducer_key", Message: err.Error()})
	}

	if _, err := ParseStrategy(d.Transform); err != nil {
		errs = append(errs, ValidationError{Field: "transform", Message: err.Error()})
	}

	if d.Endpoint != nil {
		if !ValidMethods[d.Endpoint.Method] {
			errs = append(errs, ValidationError{
				Field:   "endpoint.method",
				Message: fmt.Sprintf("invalid method %q, must be one of: GET, POST, PUT, PATCH, DELETE", d.Endpoint.Method),
			})
		}
		if d.Endpoint.URL == "" {
			errs = append(errs, ValidationError{Field: "endpoint.url", Message: "url is required"})
		}
		if d.Endpoint.BodyArg < -1 {
			errs = append(errs, ValidationError{Field: "endpoint.body_arg", Message: "body_arg must be -1 or a payload index"})
		}
	}

	return errs
}
