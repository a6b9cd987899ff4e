package llm

import "time"

// Message roles shared by all providers. Adapters translate them to the
// provider's own vocabulary at the wire boundary.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
	ToolName   string     `json:"tool_name,omitempty"`    // For tool responses; Gemini keys results by name
}

// ToolCall represents a tool call requested by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the name and decoded arguments of a tool call.
type ToolFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition advertises a callable tool to the model. Parameters is a
// JSON-schema object with "properties" and "required".
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Options are generation parameters. Zero values leave the provider
// default in place.
type Options struct {
	Temperature     float64
	MaxOutputTokens int
}

// ChatRequest is a single generator call.
type ChatRequest struct {
	Model    string
	Messages []Message
	Tools    []ToolDefinition
	Options  Options
}

// ChatResponse is the unified response from any LLM provider.
// All fields use proper Go types; wire format conversion happens
// at provider boundaries (ollama.go, gemini.go, openai.go).
type ChatResponse struct {
	Model     string
	CreatedAt time.Time
	Message   Message

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int

	// Duration is the wall time of the provider call.
	Duration time.Duration
}

// HasToolCalls reports whether the model asked for at least one tool.
func (r *ChatResponse) HasToolCalls() bool {
	return r != nil && len(r.Message.ToolCalls) > 0
}
