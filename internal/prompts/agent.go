package prompts

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/llm"
)

// Step is one tool call the loop executed, with its observation.
type Step struct {
	ToolCallID  string
	ToolName    string
	ToolInput   map[string]any
	Observation string
}

// CallID returns the step's tool call id, deriving call_<index> when the
// generator supplied none.
func (s Step) CallID(index int) string {
	if s.ToolCallID != "" {
		return s.ToolCallID
	}
	return fmt.Sprintf("call_%d", index)
}

// ConversationState is everything one resolution feeds the generator. It
// lives for a single request.
type ConversationState struct {
	SystemInstruction string
	UserInput         string
	Scratchpad        []Step
}

// Compose renders state into generator messages: the system instruction,
// the user input, then an assistant tool call and a tool observation for
// every scratchpad step, in order.
func Compose(state ConversationState) []llm.Message {
	msgs := make([]llm.Message, 0, 2+2*len(state.Scratchpad))
	msgs = append(msgs,
		llm.Message{Role: llm.RoleSystem, Content: SystemInstruction(state.SystemInstruction)},
		llm.Message{Role: llm.RoleUser, Content: state.UserInput},
	)

	for i, step := range state.Scratchpad {
		id := step.CallID(i)
		msgs = append(msgs,
			llm.Message{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{{
					ID: id,
					Function: llm.ToolFunction{
						Name:      step.ToolName,
						Arguments: maps.Clone(step.ToolInput),
					},
				}},
			},
			llm.Message{
				Role:       llm.RoleTool,
				Content:    step.Observation,
				ToolCallID: id,
				ToolName:   step.ToolName,
			},
		)
	}
	return msgs
}

// RenderTranscript renders state as plain text in thought/action/
// observation blocks. It is used for debug logs and the ask command.
func RenderTranscript(state ConversationState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "System: %s\n", SystemInstruction(state.SystemInstruction))
	fmt.Fprintf(&b, "Human: %s\n", state.UserInput)

	for _, step := range state.Scratchpad {
		fmt.Fprintf(&b, "Thought: I should call %s\n", step.ToolName)
		fmt.Fprintf(&b, "Action: %s\n", step.ToolName)
		fmt.Fprintf(&b, "Action Input: %s\n", actionInput(step.ToolInput))
		fmt.Fprintf(&b, "Observation: %s\n", step.Observation)
	}
	return b.String()
}

// actionInput encodes args as JSON. encoding/json sorts map keys, which
// keeps the transcript stable.
func actionInput(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}
