package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/routine/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrInvalid = "E100" // any other field error

	// Single operation errors (E101-E109)
	ErrPrefixInvalid     = "E101" // prefix missing, blank, or ending in /
	ErrReducerKeyInvalid = "E102" // empty key path or empty segment
	ErrUnknownTransform  = "E103" // transform is not a built-in strategy
	ErrEndpointInvalid   = "E104" // bad method, url or body_arg
	ErrIDBlank           = "E105" // explicit id is whitespace

	// Cross-operation errors (E110-E119)
	ErrDuplicateName        = "E110" // two operations share a name
	ErrDuplicateOperationID = "E111" // two operations share an operation id
	ErrUnknownFollowUp      = "E112" // on_success/on_fail names no operation
)

// ValidationError represents a manifest validation error.
type ValidationError struct {
	Operation string `json:"operation"`
	Field     string `json:"field"`
	Message   string `json:"message"`
	Code      string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Operation, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks one operation definition.
// Returns all errors found (does not fail-fast).
func Validate(def *ir.OperationDef) []ValidationError {
	var errs []ValidationError

	for _, e := range def.Validate() {
		errs = append(errs, ValidationError{
			Operation: def.Name,
			Field:     e.Field,
			Message:   e.Message,
			Code:      codeForField(e.Field),
		})
	}

	// Stricter than ir: a prefix is also an action type root.
	if strings.TrimSpace(def.Prefix) == "" && def.Prefix != "" {
		errs = append(errs, ValidationError{
			Operation: def.Name,
			Field:     "prefix",
			Message:   "prefix must not be blank",
			Code:      ErrPrefixInvalid,
		})
	}
	if strings.HasSuffix(def.Prefix, "/") {
		errs = append(errs, ValidationError{
			Operation: def.Name,
			Field:     "prefix",
			Message:   "prefix must not end with /",
			Code:      ErrPrefixInvalid,
		})
	}
	if def.ID != "" && strings.TrimSpace(def.ID) == "" {
		errs = append(errs, ValidationError{
			Operation: def.Name,
			Field:     "id",
			Message:   "id must not be blank",
			Code:      ErrIDBlank,
		})
	}

	return errs
}

// ValidateOperations validates every definition and the references
// between them. Errors are returned in definition order.
func ValidateOperations(defs []*ir.OperationDef) []ValidationError {
	var errs []ValidationError

	names := make(map[string]bool, len(defs))
	ids := make(map[string]string, len(defs))

	for _, def := range defs {
		errs = append(errs, Validate(def)...)

		if names[def.Name] {
			errs = append(errs, ValidationError{
				Operation: def.Name,
				Field:     "name",
				Message:   "duplicate operation name",
				Code:      ErrDuplicateName,
			})
		}
		names[def.Name] = true

		id := def.OperationID()
		if other, ok := ids[id]; ok {
			errs = append(errs, ValidationError{
				Operation: def.Name,
				Field:     "id",
				Message:   fmt.Sprintf("operation id %q already used by %s", id, other),
				Code:      ErrDuplicateOperationID,
			})
		} else {
			ids[id] = def.Name
		}
	}

	for _, def := range defs {
		for _, ref := range [...]struct{ field, target string }{
			{"on_success", def.OnSuccess},
			{"on_fail", def.OnFail},
		} {
			if ref.target != "" && !names[ref.target] {
				errs = append(errs, ValidationError{
					Operation: def.Name,
					Field:     ref.field,
					Message:   fmt.Sprintf("unknown operation %q", ref.target),
					Code:      ErrUnknownFollowUp,
				})
			}
		}
	}

	return errs
}

func codeForField(field string) string {
	switch {
	case field == "prefix":
		return ErrPrefixInvalid
	case field == "reducer_key":
		return ErrReducerKeyInvalid
	case field == "transform":
		return ErrUnknownTransform
	case strings.HasPrefix(field, "endpoint"):
		return ErrEndpointInvalid
	default:
		return ErrInvalid
	}
}
