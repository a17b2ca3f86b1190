package schema

import (
	"fmt"
	"strings"
)

// Violation is one failed constraint, addressed by a JSON path such as
// "candidates[2].confidence".
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// ValidationError is returned when a value fails a schema. It lists every
// violated constraint, not just the first.
type ValidationError struct {
	Schema     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s schema invalid (%d violations): %s", e.Schema, len(e.Violations), strings.Join(parts, "; "))
}
