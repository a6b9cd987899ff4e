// Package tools defines the tools the agent loop may call and the
// registry that validates and dispatches those calls.
package tools

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/llm"
)

// UnknownToolObservation is the observation recorded when the generator
// names a tool that is not registered.
const UnknownToolObservation = "not found"

// Executor runs a tool with arguments that already passed schema
// validation. A lookup that finds nothing returns the tool's miss text,
// not an error.
type Executor func(ctx context.Context, args map[string]any) (string, error)

// ToolSpec describes a callable tool.
type ToolSpec struct {
	Name        string
	Description string
	// InputSchema is a JSON-schema object with "properties" and
	// "required". Property types are limited to JSON primitives.
	InputSchema map[string]any
	Executor    Executor
	// Miss is the text the tool answers with when it has no result. It is
	// also the observation recorded when a call fails validation.
	Miss string
}

// Registry holds available tools. Register every tool at startup; after
// that the registry is only read and is safe for concurrent use.
type Registry struct {
	tools map[string]*ToolSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*ToolSpec)}
}

// Register adds a tool. It fails with *DuplicateToolError when the name
// is taken, or with a plain error when the spec is incomplete.
func (r *Registry) Register(spec ToolSpec) error {
	if spec.Name == "" {
		return errors.New("tool name is required")
	}
	if spec.Executor == nil {
		return fmt.Errorf("tool %q has no executor", spec.Name)
	}
	if _, ok := r.tools[spec.Name]; ok {
		return &DuplicateToolError{ToolName: spec.Name}
	}
	if err := checkSchema(spec.InputSchema); err != nil {
		return fmt.Errorf("tool %q: %w", spec.Name, err)
	}
	// The registry owns its schema; callers keep theirs.
	spec.InputSchema = cloneSchema(spec.InputSchema)
	r.tools[spec.Name] = &spec
	return nil
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tools in the form sent to the generator,
// sorted by name so prompts are stable.
func (r *Registry) Definitions() []llm.ToolDefinition {
	names := r.Names()
	defs := make([]llm.ToolDefinition, len(names))
	for i, name := range names {
		t := r.tools[name]
		defs[i] = llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  cloneSchema(t.InputSchema),
		}
	}
	return defs
}

// Invoke validates args against the tool's schema and runs it. Unknown
// names fail with *ErrToolUnavailable and bad arguments with
// *ValidationError; in both cases no executor runs.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", &ErrToolUnavailable{ToolName: name}
	}
	if verr := validateArgs(name, t.InputSchema, args); verr != nil {
		return "", verr
	}
	if args == nil {
		args = map[string]any{}
	}
	out, err := t.Executor(ctx, args)
	if err != nil {
		return "", fmt.Errorf("tool %s: %w", name, err)
	}
	return out, nil
}

// cloneSchema deep-copies a decoded JSON schema.
func cloneSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	return cloneValue(schema).(map[string]any)
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(v)
	default:
		return v
	}
}

// Observation is the outcome of Observe.
type Observation struct {
	Output string
	// Rejected is the lookup or validation error that was turned into a
	// miss. It is nil when the executor ran.
	Rejected error
}

// Observe is Invoke with call mistakes recovered: an unknown tool yields
// UnknownToolObservation and invalid arguments yield the tool's Miss
// text. Only executor failures are returned as errors.
func (r *Registry) Observe(ctx context.Context, name string, args map[string]any) (Observation, error) {
	out, err := r.Invoke(ctx, name, args)
	if err == nil {
		return Observation{Output: out}, nil
	}

	var unavailable *ErrToolUnavailable
	if errors.As(err, &unavailable) {
		return Observation{Output: UnknownToolObservation, Rejected: err}, nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		miss := r.tools[name].Miss
		if miss == "" {
			miss = UnknownToolObservation
		}
		return Observation{Output: miss, Rejected: err}, nil
	}
	return Observation{}, err
}
