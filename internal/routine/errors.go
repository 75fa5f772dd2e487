package routine

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid operation declaration.
// It is returned by New, never at invocation time.
type ConfigurationError struct {
	Prefix  string
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Prefix == "" {
		return fmt.Sprintf("routine: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("routine %q: %s: %s", e.Prefix, e.Field, e.Message)
}

// IsConfigurationError returns true if err is a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
