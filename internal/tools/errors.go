package tools

import (
	"fmt"
	"sort"
	"strings"
)

// ErrToolUnavailable is returned when a call names a tool that is not
// registered. The generator picked a name outside the registered set;
// callers treat it as a miss, not a crash.
type ErrToolUnavailable struct {
	ToolName string
}

func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool %q is not available", e.ToolName)
}

// DuplicateToolError is returned by Register when the name is taken.
type DuplicateToolError struct {
	ToolName string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.ToolName)
}

// FieldError describes one argument that failed schema validation.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError lists every argument of a call that does not match the
// tool's input schema. Fields are sorted by name.
type ValidationError struct {
	ToolName string
	Fields   []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Reason
	}
	return fmt.Sprintf("invalid arguments for tool %q: %s", e.ToolName, strings.Join(parts, "; "))
}

// FieldNames returns the offending field names in order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return names
}

func (e *ValidationError) sort() {
	sort.SliceStable(e.Fields, func(i, j int) bool {
		return e.Fields[i].Field < e.Fields[j].Field
	})
}
