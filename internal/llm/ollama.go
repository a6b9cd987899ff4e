package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/httpkit"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaClient is a client for the Ollama API.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a new Ollama client. A nil httpClient gets the
// shared httpkit client with a five minute timeout; large models with
// tools need time.
func NewOllamaClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if httpClient == nil {
		httpClient = httpkit.NewClient(httpkit.WithTimeout(5 * time.Minute))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

type ollamaWireRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaWireMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Tools    []ollamaWireTool    `json:"tools,omitempty"`
	Options  *ollamaWireOptions  `json:"options,omitempty"`
}

type ollamaWireMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function ToolFunction `json:"function"` // Ollama returns arguments as an object, not a string
}

type ollamaWireTool struct {
	Type     string         `json:"type"`
	Function ToolDefinition `json:"function"`
}

type ollamaWireOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// ollamaWireResponse is the non-streaming /api/chat response body.
type ollamaWireResponse struct {
	Model     string            `json:"model"`
	CreatedAt string            `json:"created_at"`
	Message   ollamaWireMessage `json:"message"`
	Done      bool              `json:"done"`

	TotalDuration   int64 `json:"total_duration,omitempty"`
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
}

func (w *ollamaWireResponse) toChatResponse() *ChatResponse {
	resp := &ChatResponse{
		Model: w.Model,
		Message: Message{
			Role:    w.Message.Role,
			Content: w.Message.Content,
		},
		InputTokens:  w.PromptEvalCount,
		OutputTokens: w.EvalCount,
		Duration:     time.Duration(w.TotalDuration),
	}
	if t, err := time.Parse(time.RFC3339Nano, w.CreatedAt); err == nil {
		resp.CreatedAt = t
	}
	for i, tc := range w.Message.ToolCalls {
		resp.Message.ToolCalls = append(resp.Message.ToolCalls, ToolCall{
			ID:       fmt.Sprintf("call_%d", i),
			Function: tc.Function,
		})
	}
	return resp
}

func toOllamaRequest(req ChatRequest) ollamaWireRequest {
	wire := ollamaWireRequest{Model: req.Model}
	for _, m := range req.Messages {
		wm := ollamaWireMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, ollamaToolCall{Function: tc.Function})
		}
		wire.Messages = append(wire.Messages, wm)
	}
	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, ollamaWireTool{Type: "function", Function: t})
	}
	if req.Options != (Options{}) {
		wire.Options = &ollamaWireOptions{
			Temperature: req.Options.Temperature,
			NumPredict:  req.Options.MaxOutputTokens,
		}
	}
	return wire
}

// Chat sends a non-streaming chat request to Ollama.
func (c *OllamaClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	jsonData, err := json.Marshal(toOllamaRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	c.logger.Log(ctx, LevelTrace, "ollama request", "body", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError("ollama", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 2048)
		return nil, &ProviderError{
			Provider:   "ollama",
			Code:       codeForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(body),
		}
	}

	var wire ollamaWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	chatResp := wire.toChatResponse()
	if chatResp.Duration == 0 {
		chatResp.Duration = time.Since(start)
	}

	// Some models emit tool calls as JSON text instead of tool_calls.
	if len(chatResp.Message.ToolCalls) == 0 && chatResp.Message.Content != "" {
		if parsed := parseTextToolCalls(chatResp.Message.Content, toolNames(req.Tools)); len(parsed) > 0 {
			chatResp.Message.ToolCalls = parsed
			chatResp.Message.Content = ""
		}
	}

	c.logger.Log(ctx, LevelTrace, "ollama response",
		"model", chatResp.Model,
		"content", chatResp.Message.Content,
		"tool_calls", len(chatResp.Message.ToolCalls),
	)
	return chatResp, nil
}

type textToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// parseTextToolCalls extracts tool calls that a model wrote into its
// content instead of the tool_calls field. It understands a raw object,
// an array of objects, concatenated objects and <tool_call> tags. When
// validTools is non-empty, calls naming other tools are dropped.
func parseTextToolCalls(content string, validTools []string) []ToolCall {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if start := strings.Index(content, "<tool_call>"); start != -1 {
		rest := content[start+len("<tool_call>"):]
		if end := strings.Index(rest, "</tool_call>"); end != -1 {
			rest = rest[:end]
		}
		content = strings.TrimSpace(rest)
	}

	var raw []textToolCall
	if err := json.Unmarshal([]byte(content), &raw); err != nil || len(raw) == 0 {
		raw = raw[:0]
		dec := json.NewDecoder(strings.NewReader(content))
		for dec.More() {
			var one textToolCall
			if err := dec.Decode(&one); err != nil {
				return nil
			}
			raw = append(raw, one)
		}
	}

	allowed := make(map[string]bool, len(validTools))
	for _, n := range validTools {
		allowed[n] = true
	}

	var calls []ToolCall
	for _, r := range raw {
		if r.Name == "" {
			continue
		}
		if len(allowed) > 0 && !allowed[r.Name] {
			continue
		}
		calls = append(calls, ToolCall{
			ID:       fmt.Sprintf("call_%d", len(calls)),
			Function: ToolFunction{Name: r.Name, Arguments: r.Arguments},
		})
	}
	return calls
}

func toolNames(defs []ToolDefinition) []string {
	if len(defs) == 0 {
		return nil
	}
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// Ping checks if Ollama is reachable.
func (c *OllamaClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return transportError("ollama", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return &ProviderError{
			Provider:   "ollama",
			Code:       codeForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    "ping failed",
		}
	}
	return nil
}
