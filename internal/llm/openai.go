package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAIClient creates a client for the OpenAI API or, when baseURL is
// set, a compatible server.
func NewOpenAIClient(apiKey, baseURL string, httpClient *http.Client, logger *slog.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		logger: logger,
	}
}

// Chat sends one chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	wire, err := toOpenAIRequest(req)
	if err != nil {
		return nil, err
	}

	if c.logger.Enabled(ctx, LevelTrace) {
		if body, err := json.Marshal(wire); err == nil {
			c.logger.Log(ctx, LevelTrace, "openai request", "body", string(body))
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, wire)
	if err != nil {
		return nil, mapOpenAIError(err)
	}

	out, err := fromOpenAIResponse(resp)
	if err != nil {
		return nil, err
	}
	out.Duration = time.Since(start)

	c.logger.Log(ctx, LevelTrace, "openai response",
		"model", out.Model,
		"content", out.Message.Content,
		"tool_calls", len(out.Message.ToolCalls),
	)
	return out, nil
}

// Ping lists models, which needs a valid key but no tokens.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return mapOpenAIError(err)
	}
	return nil
}

func toOpenAIRequest(req ChatRequest) (openai.ChatCompletionRequest, error) {
	wire := openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: float32(req.Options.Temperature),
		MaxTokens:   req.Options.MaxOutputTokens,
	}

	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Function.Arguments)
			if err != nil {
				return wire, fmt.Errorf("marshal tool call %s arguments: %w", tc.Function.Name, err)
			}
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: string(args),
				},
			})
		}
		wire.Messages = append(wire.Messages, msg)
	}

	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return wire, nil
}

func fromOpenAIResponse(resp openai.ChatCompletionResponse) (*ChatResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{
			Provider: "openai",
			Code:     ErrorCodeEmptyResponse,
			Message:  "no choices in response",
		}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, &ProviderError{
			Provider: "openai",
			Code:     ErrorCodeContentBlocked,
			Message:  "content blocked by content filter",
		}
	}

	out := &ChatResponse{
		Model: resp.Model,
		Message: Message{
			Role:    RoleAssistant,
			Content: choice.Message.Content,
		},
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if resp.Created > 0 {
		out.CreatedAt = time.Unix(resp.Created, 0)
	}

	for i, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			// Malformed arguments are dropped. The registry then sees no
			// arguments and rejects any call with required fields.
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = nil
			}
		}
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		out.Message.ToolCalls = append(out.Message.ToolCalls, ToolCall{
			ID:       id,
			Function: ToolFunction{Name: tc.Function.Name, Arguments: args},
		})
	}
	return out, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   "openai",
			Code:       codeForStatus(apiErr.HTTPStatusCode),
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Underlying: err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{
			Provider:   "openai",
			Code:       codeForStatus(reqErr.HTTPStatusCode),
			StatusCode: reqErr.HTTPStatusCode,
			Message:    "request failed",
			Underlying: err,
		}
	}
	return transportError("openai", err)
}
