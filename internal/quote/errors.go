package quote

import (
	"fmt"
	"strings"
)

// FieldProblem is one rejected request field.
type FieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every problem found in a LeaseRequest.
type ValidationError struct {
	Problems []FieldProblem `json:"problems"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Message)
	}
	return "invalid lease request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Problems = append(e.Problems, FieldProblem{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// ConfigError means the rule set cannot serve a valid request: a table is
// missing a key or its values contradict each other.
type ConfigError struct {
	Table string
	Key   string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rule set %s[%s]: %v", e.Table, e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
