// Package agent implements the bounded tool-calling loop that resolves a
// query, and the policy that turns the loop's final state into an answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/llm"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/prompts"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/tools"
)

// State is a step of the loop's state machine.
type State string

const (
	StateThinking        State = "thinking"
	StateToolRequested   State = "tool_requested"
	StateExecuting       State = "executing"
	StateDone            State = "done"
	StateBudgetExhausted State = "budget_exhausted"
)

// Config is the fixed configuration of a Loop.
type Config struct {
	Model        string
	Provider     string // recorded on resolutions, not used for routing
	SystemPrompt string
	// MaxIterations caps generator calls per resolution. Values below 1
	// mean 1.
	MaxIterations int
	Options       llm.Options
}

// Loop resolves queries against a generator and a tool registry. It holds
// no per-request state; one Loop serves all requests concurrently.
type Loop struct {
	logger    *slog.Logger
	generator llm.Client
	registry  *tools.Registry
	cfg       Config
	observers []Observer
}

// NewLoop creates a loop. Observers are told about every resolution made
// through Resolve.
func NewLoop(logger *slog.Logger, generator llm.Client, registry *tools.Registry, cfg Config, observers ...Observer) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 1
	}
	cfg.SystemPrompt = prompts.SystemInstruction(cfg.SystemPrompt)
	return &Loop{
		logger:    logger,
		generator: generator,
		registry:  registry,
		cfg:       cfg,
		observers: observers,
	}
}

// MaxIterations returns the effective iteration budget.
func (l *Loop) MaxIterations() int { return l.cfg.MaxIterations }

// Model returns the configured model name.
func (l *Loop) Model() string { return l.cfg.Model }

// Result is the terminal state of one run.
type Result struct {
	Input             string
	SystemInstruction string
	FinalText         string
	Scratchpad        []prompts.Step
	Exhausted         bool
	Iterations        int
	Model             string
	InputTokens       int
	OutputTokens      int
	Trace             []State
}

// LastObservation returns the observation of the most recent tool call.
func (r *Result) LastObservation() (string, bool) {
	if r == nil || len(r.Scratchpad) == 0 {
		return "", false
	}
	return r.Scratchpad[len(r.Scratchpad)-1].Observation, true
}

// Transcript renders the run as thought/action/observation text.
func (r *Result) Transcript() string {
	return prompts.RenderTranscript(prompts.ConversationState{
		SystemInstruction: r.SystemInstruction,
		UserInput:         r.Input,
		Scratchpad:        r.Scratchpad,
	})
}

func (r *Result) enter(s State) {
	r.Trace = append(r.Trace, s)
}

// Run drives the loop for one input until the generator answers or the
// iteration budget is spent. Only generator and tool executor failures
// are returned as errors; an unknown tool or invalid arguments become the
// tool's miss observation.
func (l *Loop) Run(ctx context.Context, input string) (*Result, error) {
	state := prompts.ConversationState{
		SystemInstruction: l.cfg.SystemPrompt,
		UserInput:         input,
	}
	res := &Result{
		Input:             input,
		SystemInstruction: l.cfg.SystemPrompt,
		Model:             l.cfg.Model,
	}
	defs := l.registry.Definitions()

	for {
		res.enter(StateThinking)

		resp, err := l.generator.Chat(ctx, llm.ChatRequest{
			Model:    l.cfg.Model,
			Messages: prompts.Compose(state),
			Tools:    defs,
			Options:  l.cfg.Options,
		})
		res.Iterations++
		if err != nil {
			return nil, fmt.Errorf("generator call %d: %w", res.Iterations, err)
		}
		if resp == nil {
			resp = &llm.ChatResponse{}
		}
		if resp.Model != "" {
			res.Model = resp.Model
		}
		res.InputTokens += resp.InputTokens
		res.OutputTokens += resp.OutputTokens

		text := strings.TrimSpace(resp.Message.Content)

		if !resp.HasToolCalls() {
			res.FinalText = text
			res.enter(StateDone)
			break
		}

		calls := resp.Message.ToolCalls
		if len(calls) > 1 {
			l.logger.Warn("generator requested several tools, keeping the first",
				"requested", len(calls),
				"kept", calls[0].Function.Name,
			)
		}
		call := calls[0]

		res.enter(StateToolRequested)
		res.enter(StateExecuting)
		obs, err := l.registry.Observe(ctx, call.Function.Name, call.Function.Arguments)
		if err != nil {
			return nil, err
		}
		var verr *tools.ValidationError
		switch {
		case errors.As(obs.Rejected, &verr):
			l.logger.Debug("tool call rejected", "tool", call.Function.Name, "fields", verr.FieldNames())
		case obs.Rejected != nil:
			l.logger.Debug("tool call rejected", "tool", call.Function.Name, "error", obs.Rejected)
		}
		l.logger.Debug("tool executed",
			"tool", call.Function.Name,
			"iteration", res.Iterations,
			"observation_len", len(obs.Output),
		)

		state.Scratchpad = append(state.Scratchpad, prompts.Step{
			ToolCallID:  call.ID,
			ToolName:    call.Function.Name,
			ToolInput:   call.Function.Arguments,
			Observation: obs.Output,
		})

		if res.Iterations < l.cfg.MaxIterations {
			continue
		}

		res.Exhausted = true
		res.FinalText = text
		res.enter(StateBudgetExhausted)
		break
	}

	res.Scratchpad = state.Scratchpad
	return res, nil
}

// Resolution is one finished request as reported to observers.
type Resolution struct {
	RequestID string
	Provider  string
	Model     string
	Started   time.Time
	Duration  time.Duration
	Result    *Result // nil when Err is set
	Outcome   Outcome
	Err       error
}

// Observer receives every resolution made through Loop.Resolve.
type Observer interface {
	ObserveResolution(ctx context.Context, r Resolution)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, r Resolution)

// ObserveResolution calls f.
func (f ObserverFunc) ObserveResolution(ctx context.Context, r Resolution) { f(ctx, r) }

// Resolve runs the loop, extracts the outcome and notifies observers. An
// empty requestID gets a generated one.
func (l *Loop) Resolve(ctx context.Context, requestID, input string) (Resolution, error) {
	if requestID == "" {
		requestID = NewRequestID()
	}
	log := l.logger.With("request_id", requestID)

	rz := Resolution{
		RequestID: requestID,
		Provider:  l.cfg.Provider,
		Model:     l.cfg.Model,
		Started:   time.Now(),
	}
	log.Info("resolution started", "model", l.cfg.Model, "input_len", len(input))

	res, err := l.Run(ctx, input)
	rz.Duration = time.Since(rz.Started)
	if err != nil {
		rz.Err = err
		rz.Outcome = Failed(err.Error())
		log.Error("resolution failed", "error", err, "elapsed", rz.Duration.Round(time.Millisecond))
	} else {
		rz.Result = res
		rz.Outcome = Extract(res)
		if res.Model != "" {
			rz.Model = res.Model
		}
		log.Info("resolution finished",
			"outcome", rz.Outcome.Kind,
			"iterations", res.Iterations,
			"exhausted", res.Exhausted,
			"tool_calls", len(res.Scratchpad),
			"input_tokens", res.InputTokens,
			"output_tokens", res.OutputTokens,
			"elapsed", rz.Duration.Round(time.Millisecond),
		)
		log.Log(ctx, llm.LevelTrace, "resolution transcript", "transcript", res.Transcript())
	}

	for _, o := range l.observers {
		o.ObserveResolution(ctx, rz)
	}
	return rz, err
}

// NewRequestID returns a short request identifier: "r_" and eight hex
// characters.
func NewRequestID() string {
	id := uuid.New()
	return fmt.Sprintf("r_%x", id[:4])
}
