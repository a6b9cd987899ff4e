package agent

import (
	"testing"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/prompts"
)

func TestExtract(t *testing.T) {
	step := func(obs string) []prompts.Step {
		return []prompts.Step{{ToolName: "getMenu", Observation: obs}}
	}

	tests := []struct {
		name string
		in   *Result
		want Outcome
	}{
		{
			name: "text only",
			in:   &Result{FinalText: "X"},
			want: Answered("X"),
		},
		{
			name: "observation only",
			in:   &Result{Scratchpad: step("Y"), Exhausted: true},
			want: AnsweredFromObservation("Y"),
		},
		{
			name: "observation beats text",
			in:   &Result{FinalText: "X", Scratchpad: step("Y"), Exhausted: true},
			want: AnsweredFromObservation("Y"),
		},
		{
			name: "last observation wins",
			in: &Result{Scratchpad: []prompts.Step{
				{ToolName: "getMenu", Observation: "first"},
				{ToolName: "getMenu", Observation: "second"},
			}},
			want: AnsweredFromObservation("second"),
		},
		{
			name: "empty observation still counts",
			in:   &Result{FinalText: "X", Scratchpad: step("")},
			want: AnsweredFromObservation(""),
		},
		{
			name: "exhausted with nothing",
			in:   &Result{Exhausted: true},
			want: Exhausted(),
		},
		{
			name: "nothing",
			in:   &Result{},
			want: Failed(NoAnswerReason),
		},
		{
			name: "nil result",
			in:   nil,
			want: Failed(NoAnswerReason),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extract(tt.in); got != tt.want {
				t.Errorf("Extract() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOutcome_IsAnswer(t *testing.T) {
	if !Answered("x").IsAnswer() || !AnsweredFromObservation("x").IsAnswer() {
		t.Error("answered outcomes should report IsAnswer")
	}
	if Exhausted().IsAnswer() || Failed("r").IsAnswer() {
		t.Error("exhausted/failed outcomes should not report IsAnswer")
	}
}
