package transform

import (
	"errors"
	"fmt"

	"github.com/roach88/routine/internal/ir"
)

// TypeMismatchError reports a value whose shape does not fit the strategy or
// path being applied. It is returned instead of silently producing wrong data.
type TypeMismatchError struct {
	Strategy ir.StrategyName // Empty for path walking errors
	Path     ir.KeyPath      // Path being applied, nil inside Mutate
	Want     string
	Got      ir.Value
	Detail   string
}

func (e *TypeMismatchError) Error() string {
	where := ""
	if len(e.Path) > 0 {
		where = fmt.Sprintf(" at %q", e.Path.String())
	}
	if e.Strategy != "" {
		where = fmt.Sprintf(" (%s)%s", e.Strategy, where)
	}
	msg := fmt.Sprintf("type mismatch%s: want %s, got %s", where, e.Want, ir.TypeName(e.Got))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// IsTypeMismatch returns true if err is a *TypeMismatchError.
func IsTypeMismatch(err error) bool {
	var tm *TypeMismatchError
	return errors.As(err, &tm)
}
