package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaWireResponse_BasicChat(t *testing.T) {
	raw := `{
		"model": "qwen3:4b",
		"created_at": "2026-02-11T15:00:00.123456789Z",
		"message": {
			"role": "assistant",
			"content": "Breakfast today is Idli and Dosa."
		},
		"done": true,
		"total_duration": 1234567890,
		"prompt_eval_count": 42,
		"eval_count": 15
	}`

	var wire ollamaWireResponse
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	resp := wire.toChatResponse()

	if resp.Model != "qwen3:4b" {
		t.Errorf("Model = %q, want %q", resp.Model, "qwen3:4b")
	}
	if resp.CreatedAt.Year() != 2026 || resp.CreatedAt.Month() != time.February {
		t.Errorf("CreatedAt = %v, expected 2026-02", resp.CreatedAt)
	}
	if resp.Message.Content != "Breakfast today is Idli and Dosa." {
		t.Errorf("Message.Content = %q", resp.Message.Content)
	}
	if resp.InputTokens != 42 || resp.OutputTokens != 15 {
		t.Errorf("tokens = %d/%d, want 42/15", resp.InputTokens, resp.OutputTokens)
	}
	if resp.Duration != 1234567890*time.Nanosecond {
		t.Errorf("Duration = %v", resp.Duration)
	}
}

func TestOllamaWireResponse_ToolCalls(t *testing.T) {
	raw := `{
		"model": "qwen3:4b",
		"message": {
			"role": "assistant",
			"content": "",
			"tool_calls": [
				{"function": {"name": "getMenu", "arguments": {"category": "dinner"}}}
			]
		},
		"done": true
	}`

	var wire ollamaWireResponse
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	resp := wire.toChatResponse()

	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(resp.Message.ToolCalls))
	}
	tc := resp.Message.ToolCalls[0]
	if tc.ID != "call_0" || tc.Function.Name != "getMenu" || tc.Function.Arguments["category"] != "dinner" {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestOllamaChat_Server(t *testing.T) {
	var got ollamaWireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"qwen3:4b","message":{"role":"assistant","content":"{\"name\":\"getMenu\",\"arguments\":{\"category\":\"lunch\"}}"},"done":true}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, srv.Client(), nil)
	resp, err := c.Chat(context.Background(), ChatRequest{
		Model:    "qwen3:4b",
		Messages: []Message{{Role: RoleUser, Content: "lunch?"}},
		Tools:    []ToolDefinition{{Name: "getMenu", Parameters: map[string]any{"type": "object"}}},
		Options:  Options{Temperature: 0.7, MaxOutputTokens: 128},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if got.Stream {
		t.Error("request should not stream")
	}
	if len(got.Tools) != 1 || got.Tools[0].Type != "function" || got.Tools[0].Function.Name != "getMenu" {
		t.Errorf("tools on wire = %+v", got.Tools)
	}
	if got.Options == nil || got.Options.NumPredict != 128 {
		t.Errorf("options on wire = %+v", got.Options)
	}

	// The text tool call is lifted into ToolCalls.
	if resp.Message.Content != "" {
		t.Errorf("Content = %q, want empty", resp.Message.Content)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.ToolCalls[0].Function.Name != "getMenu" {
		t.Errorf("ToolCalls = %+v", resp.Message.ToolCalls)
	}
}

func TestOllamaChat_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, srv.Client(), nil)
	_, err := c.Chat(context.Background(), ChatRequest{Model: "nope"})

	var pe *ProviderError
	if !asProviderError(err, &pe) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if pe.StatusCode != http.StatusNotFound || pe.Code != ErrorCodeInvalidModel {
		t.Errorf("ProviderError = %+v", pe)
	}
}

func TestOllamaPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	if err := NewOllamaClient(srv.URL, srv.Client(), nil).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestParseTextToolCalls(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		validTools []string
		wantCount  int
		wantName   string
	}{
		{name: "empty content", content: ""},
		{name: "whitespace only", content: "   \n\t  "},
		{name: "plain text", content: "Dinner is Biryani tonight."},
		{
			name:      "single object",
			content:   `{"name": "getMenu", "arguments": {"category": "lunch"}}`,
			wantCount: 1,
			wantName:  "getMenu",
		},
		{
			name:      "array",
			content:   `[{"name": "getMenu", "arguments": {"category": "lunch"}}, {"name": "getMenu", "arguments": {"category": "dinner"}}]`,
			wantCount: 2,
			wantName:  "getMenu",
		},
		{
			name:      "concatenated objects",
			content:   `{"name": "getMenu", "arguments": {}}{"name": "getHours", "arguments": {}}`,
			wantCount: 2,
			wantName:  "getMenu",
		},
		{
			name:      "tagged with preamble",
			content:   `Let me check. <tool_call>{"name": "getMenu", "arguments": {"category": "breakfast"}}</tool_call>`,
			wantCount: 1,
			wantName:  "getMenu",
		},
		{
			name:      "tagged without closing tag",
			content:   `<tool_call>{"name": "getMenu", "arguments": {}}`,
			wantCount: 1,
			wantName:  "getMenu",
		},
		{name: "malformed JSON", content: `{"name": "getMenu", "arguments": {`},
		{name: "no name", content: `{"foo": "bar", "arguments": {}}`},
		{
			name:       "unknown tool filtered",
			content:    `{"name": "dropTables", "arguments": {}}`,
			validTools: []string{"getMenu"},
		},
		{
			name:       "mixed valid and unknown",
			content:    `[{"name": "dropTables", "arguments": {}}, {"name": "getMenu", "arguments": {}}]`,
			validTools: []string{"getMenu"},
			wantCount:  1,
			wantName:   "getMenu",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTextToolCalls(tt.content, tt.validTools)
			if len(got) != tt.wantCount {
				t.Fatalf("parseTextToolCalls() returned %d calls, want %d", len(got), tt.wantCount)
			}
			if tt.wantCount > 0 && got[0].Function.Name != tt.wantName {
				t.Errorf("first call = %q, want %q", got[0].Function.Name, tt.wantName)
			}
		})
	}
}
