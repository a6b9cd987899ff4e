package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiAPI is the slice of the genai SDK the Gemini adapter uses. It
// exists so tests can substitute canned responses.
type GeminiAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GetModel(ctx context.Context, model string) error
}

// sdkGemini adapts *genai.Client to GeminiAPI.
type sdkGemini struct {
	client *genai.Client
}

func (s *sdkGemini) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return s.client.Models.GenerateContent(ctx, model, contents, config)
}

func (s *sdkGemini) GetModel(ctx context.Context, model string) error {
	_, err := s.client.Models.Get(ctx, model, nil)
	return err
}

// GeminiClient talks to the Gemini API through the genai SDK.
type GeminiClient struct {
	api    GeminiAPI
	model  string // used by Ping
	logger *slog.Logger
}

// NewGeminiClient creates a Gemini client backed by the genai SDK. The
// httpClient carries timeouts and the User-Agent; the SDK never retries
// on its own.
func NewGeminiClient(ctx context.Context, apiKey, model string, httpClient *http.Client, logger *slog.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required (generator.api_key or GEMINI_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return NewGeminiClientWithAPI(&sdkGemini{client: client}, model, logger), nil
}

// NewGeminiClientWithAPI wraps an existing GeminiAPI implementation.
func NewGeminiClientWithAPI(api GeminiAPI, model string, logger *slog.Logger) *GeminiClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiClient{api: api, model: model, logger: logger}
}

// Chat sends one GenerateContent call.
func (c *GeminiClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	contents, system := toGeminiContents(req.Messages)
	config := toGeminiConfig(req, system)

	c.logger.Log(ctx, LevelTrace, "gemini request",
		"model", req.Model,
		"contents", len(contents),
		"tools", len(req.Tools),
	)

	start := time.Now()
	resp, err := c.api.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, mapGeminiError(err)
	}

	out, err := fromGeminiResponse(resp, req.Model)
	if err != nil {
		return nil, err
	}
	out.Duration = time.Since(start)

	c.logger.Log(ctx, LevelTrace, "gemini response",
		"model", out.Model,
		"content", out.Message.Content,
		"tool_calls", len(out.Message.ToolCalls),
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
	)
	return out, nil
}

// Ping fetches the configured model's metadata.
func (c *GeminiClient) Ping(ctx context.Context) error {
	if err := c.api.GetModel(ctx, c.model); err != nil {
		return mapGeminiError(err)
	}
	return nil
}

// toGeminiContents converts messages to Gemini contents. System messages
// are pulled out and returned separately for the SystemInstruction field.
func toGeminiContents(messages []Message) ([]*genai.Content, *genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if msg.Content != "" {
				system = append(system, msg.Content)
			}
		case RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Function.Name, tc.Function.Arguments))
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case RoleTool:
			part := genai.NewPartFromFunctionResponse(msg.ToolName, map[string]any{"output": msg.Content})
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	if len(system) == 0 {
		return contents, nil
	}
	return contents, genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
}

func toGeminiConfig(req ChatRequest, system *genai.Content) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Tools:             toGeminiTools(req.Tools),
	}
	if req.Options.Temperature != 0 {
		config.Temperature = genai.Ptr(float32(req.Options.Temperature))
	}
	if req.Options.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.Options.MaxOutputTokens)
	}
	return config
}

// toGeminiTools converts tool definitions to Gemini function declarations.
func toGeminiTools(tools []ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		fd := &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
		}
		if tool.Parameters != nil {
			fd.Parameters = toGeminiSchema(tool.Parameters)
		}
		decls = append(decls, fd)
	}

	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGeminiSchema converts a JSON-schema map to a Gemini Schema. Only the
// keywords the tool registry emits are carried over.
func toGeminiSchema(m map[string]any) *genai.Schema {
	typ, _ := m["type"].(string)
	schema := &genai.Schema{Type: toGeminiType(typ)}
	if d, ok := m["description"].(string); ok {
		schema.Description = d
	}

	switch enum := m["enum"].(type) {
	case []string:
		schema.Enum = enum
	case []any:
		for _, v := range enum {
			if s, ok := v.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}

	if props, ok := m["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				schema.Properties[name] = toGeminiSchema(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		schema.Items = toGeminiSchema(items)
	}

	switch req := m["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, v := range req {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

func toGeminiType(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// fromGeminiResponse converts the first candidate to a ChatResponse.
func fromGeminiResponse(resp *genai.GenerateContentResponse, model string) (*ChatResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &ProviderError{
			Provider: "gemini",
			Code:     ErrorCodeEmptyResponse,
			Message:  "no candidates in response",
		}
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, &ProviderError{
			Provider: "gemini",
			Code:     ErrorCodeContentBlocked,
			Message:  "content blocked by safety filters",
		}
	}

	out := &ChatResponse{
		Model:     model,
		CreatedAt: resp.CreateTime,
		Message:   Message{Role: RoleAssistant},
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	// A candidate can come back with no content at all (e.g. MAX_TOKENS
	// before any output). That is a reply with neither text nor tools.
	if candidate.Content == nil {
		return out, nil
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", len(out.Message.ToolCalls))
			}
			out.Message.ToolCalls = append(out.Message.ToolCalls, ToolCall{
				ID: id,
				Function: ToolFunction{
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				},
			})
			continue
		}
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}
	out.Message.Content = text.String()
	return out, nil
}

// mapGeminiError maps SDK errors to *ProviderError.
func mapGeminiError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   "gemini",
			Code:       codeForStatus(apiErr.Code),
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Underlying: err,
		}
	}
	return transportError("gemini", err)
}
