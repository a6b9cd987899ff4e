package prompts

import (
	"reflect"
	"strings"
	"testing"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/llm"
)

func sampleState() ConversationState {
	return ConversationState{
		SystemInstruction: "You are a helpful assistant",
		UserInput:         "What is for breakfast?",
		Scratchpad: []Step{
			{
				ToolName:    "getMenu",
				ToolInput:   map[string]any{"category": "breakfast", "day": "today"},
				Observation: "Idli, Dosa",
			},
		},
	}
}

func TestCompose_Layout(t *testing.T) {
	msgs := Compose(sampleState())

	if len(msgs) != 4 {
		t.Fatalf("len(msgs) = %d, want 4", len(msgs))
	}

	roles := []string{msgs[0].Role, msgs[1].Role, msgs[2].Role, msgs[3].Role}
	want := []string{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleTool}
	if !reflect.DeepEqual(roles, want) {
		t.Errorf("roles = %v, want %v", roles, want)
	}

	if msgs[1].Content != "What is for breakfast?" {
		t.Errorf("user content = %q", msgs[1].Content)
	}

	call := msgs[2].ToolCalls[0]
	if call.ID != "call_0" || call.Function.Name != "getMenu" || call.Function.Arguments["category"] != "breakfast" {
		t.Errorf("tool call = %+v", call)
	}
	if msgs[3].ToolCallID != "call_0" || msgs[3].ToolName != "getMenu" || msgs[3].Content != "Idli, Dosa" {
		t.Errorf("tool message = %+v", msgs[3])
	}
}

func TestCompose_Idempotent(t *testing.T) {
	state := sampleState()
	first := Compose(state)
	second := Compose(state)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Compose not stable:\n%+v\n%+v", first, second)
	}

	if RenderTranscript(state) != RenderTranscript(state) {
		t.Error("RenderTranscript not stable")
	}
}

func TestCompose_DoesNotAliasInput(t *testing.T) {
	state := sampleState()
	msgs := Compose(state)
	msgs[2].ToolCalls[0].Function.Arguments["category"] = "dinner"

	if state.Scratchpad[0].ToolInput["category"] != "breakfast" {
		t.Error("mutating composed args changed the scratchpad")
	}
}

func TestCompose_KeepsProviderCallID(t *testing.T) {
	state := sampleState()
	state.Scratchpad[0].ToolCallID = "call_abc"
	msgs := Compose(state)
	if msgs[2].ToolCalls[0].ID != "call_abc" || msgs[3].ToolCallID != "call_abc" {
		t.Errorf("call ids = %q/%q", msgs[2].ToolCalls[0].ID, msgs[3].ToolCallID)
	}
}

func TestCompose_DefaultSystemInstruction(t *testing.T) {
	msgs := Compose(ConversationState{UserInput: "hi"})
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Content != DefaultSystemInstruction {
		t.Errorf("system = %q", msgs[0].Content)
	}
}

func TestRenderTranscript(t *testing.T) {
	got := RenderTranscript(sampleState())
	want := strings.Join([]string{
		"System: You are a helpful assistant",
		"Human: What is for breakfast?",
		"Thought: I should call getMenu",
		"Action: getMenu",
		`Action Input: {"category":"breakfast","day":"today"}`,
		"Observation: Idli, Dosa",
		"",
	}, "\n")
	if got != want {
		t.Errorf("RenderTranscript =\n%s\nwant\n%s", got, want)
	}
}
