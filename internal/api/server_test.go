package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/agent"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/config"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/connwatch"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/llm"
	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/tools"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedGenerator returns the same response for every call.
type scriptedGenerator struct {
	resp *llm.ChatResponse
	err  error
}

func (g scriptedGenerator) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return g.resp, g.err
}

func (g scriptedGenerator) Ping(context.Context) error { return nil }

func newTestServer(t *testing.T, gen llm.Client, chat config.ChatConfig) http.Handler {
	t.Helper()
	registry, err := tools.NewDefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	loop := agent.NewLoop(quietLogger(), gen, registry, agent.Config{Model: "test-model", MaxIterations: 1})
	return NewServer("", 0, loop, chat, nil, quietLogger()).Handler()
}

func postChat(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, ChatResponse) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %q", w.Body.String())
	}
	return w, resp
}

func menuCallResponse(category string) *llm.ChatResponse {
	return &llm.ChatResponse{Message: llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{
			ID:       "call_0",
			Function: llm.ToolFunction{Name: tools.MenuToolName, Arguments: map[string]any{"category": category}},
		}},
	}}
}

func TestChat_MenuObservationIs404(t *testing.T) {
	h := newTestServer(t, scriptedGenerator{resp: menuCallResponse("breakfast")}, config.ChatConfig{})

	w, resp := postChat(t, h, `{"input":"What is for breakfast?"}`)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if resp.Message != tools.DefaultMenus["breakfast"] {
		t.Errorf("message = %q, want breakfast menu", resp.Message)
	}
	if got := w.Header().Get(HeaderOutcome); got != string(agent.OutcomeAnsweredFromObservation) {
		t.Errorf("%s = %q", HeaderOutcome, got)
	}
	if got := w.Header().Get(HeaderRequestID); !strings.HasPrefix(got, "r_") {
		t.Errorf("%s = %q", HeaderRequestID, got)
	}
}

func TestChat_ObservationAsSuccess(t *testing.T) {
	h := newTestServer(t, scriptedGenerator{resp: menuCallResponse("lunch")}, config.ChatConfig{ObservationAsSuccess: true})

	w, resp := postChat(t, h, `{"input":"lunch?"}`)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if resp.Message != tools.DefaultMenus["lunch"] {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestChat_Answered(t *testing.T) {
	gen := scriptedGenerator{resp: &llm.ChatResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: "The capital is Paris."}}}
	h := newTestServer(t, gen, config.ChatConfig{})

	w, resp := postChat(t, h, `{"input":"What is the capital of France?"}`)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if resp.Message != "The capital is Paris." {
		t.Errorf("message = %q", resp.Message)
	}
	if got := w.Header().Get(HeaderOutcome); got != string(agent.OutcomeAnswered) {
		t.Errorf("%s = %q", HeaderOutcome, got)
	}
}

func TestChat_EmptyGeneratorOutput(t *testing.T) {
	gen := scriptedGenerator{resp: &llm.ChatResponse{}}

	for _, tt := range []struct {
		name string
		chat config.ChatConfig
		want string
	}{
		{"default message", config.ChatConfig{}, config.DefaultFailureMessage},
		{"configured message", config.ChatConfig{FailureMessage: "Nothing to say"}, "Nothing to say"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := postChat(t, newTestServer(t, gen, tt.chat), `{"input":"hi"}`)
			if w.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", w.Code)
			}
			if resp.Message != tt.want {
				t.Errorf("message = %q, want %q", resp.Message, tt.want)
			}
			if got := w.Header().Get(HeaderOutcome); got != string(agent.OutcomeFailed) {
				t.Errorf("%s = %q", HeaderOutcome, got)
			}
		})
	}
}

func TestChat_GeneratorErrorIs500(t *testing.T) {
	gen := scriptedGenerator{err: &llm.ProviderError{Provider: "gemini", Code: llm.ErrorCodeAuth, Message: "bad key"}}
	h := newTestServer(t, gen, config.ChatConfig{})

	w, resp := postChat(t, h, `{"input":"hi"}`)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if resp.Message != "Something went wrong" {
		t.Errorf("message = %q", resp.Message)
	}
	if strings.Contains(w.Body.String(), "bad key") {
		t.Error("backend error detail leaked to the client")
	}
}

func TestChat_InvalidBody(t *testing.T) {
	h := newTestServer(t, scriptedGenerator{err: errors.New("must not be called")}, config.ChatConfig{})

	for _, body := range []string{`{"input":`, `not json`, `["input"]`} {
		w, resp := postChat(t, h, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
		if resp.Message != "invalid request body" {
			t.Errorf("body %q: message = %q", body, resp.Message)
		}
	}
}

func TestChat_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t, scriptedGenerator{}, config.ChatConfig{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/chat", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestHealthAndVersion(t *testing.T) {
	h := newTestServer(t, scriptedGenerator{}, config.ChatConfig{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"healthy"`) {
		t.Errorf("GET /health = %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/v1/version", nil))
	var info map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("version is not JSON: %v", err)
	}
	if info["version"] == "" || info["go_version"] == "" {
		t.Errorf("version info = %v", info)
	}
}

func TestRoot(t *testing.T) {
	landing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("landing"))
	})
	registry, _ := tools.NewDefaultRegistry()
	loop := agent.NewLoop(quietLogger(), scriptedGenerator{}, registry, agent.Config{})

	with := NewServer("", 0, loop, config.ChatConfig{}, landing, quietLogger()).Handler()
	w := httptest.NewRecorder()
	with.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Body.String() != "landing" {
		t.Errorf("GET / with landing = %q", w.Body.String())
	}

	without := NewServer("", 0, loop, config.ChatConfig{}, nil, quietLogger()).Handler()
	w = httptest.NewRecorder()
	without.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if !strings.Contains(w.Body.String(), `"menuagent"`) {
		t.Errorf("GET / without landing = %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	with.ServeHTTP(w, httptest.NewRequest("GET", "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /nope = %d, want 404", w.Code)
	}
}

func TestStatusRecorder(t *testing.T) {
	var logged strings.Builder
	logger := slog.New(slog.NewTextHandler(&logged, nil))

	h := withLogging(logger, "request", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))

	if !strings.Contains(logged.String(), "status=418") || !strings.Contains(logged.String(), "path=/x") {
		t.Errorf("log line = %q", logged.String())
	}
}

func TestHealth_GeneratorWatch(t *testing.T) {
	registry, _ := tools.NewDefaultRegistry()
	loop := agent.NewLoop(quietLogger(), scriptedGenerator{}, registry, agent.Config{})

	for _, tt := range []struct {
		name  string
		probe connwatch.ProbeFunc
		want  string
	}{
		{"reachable", func(context.Context) error { return nil }, `"status":"healthy"`},
		{"unreachable", func(context.Context) error { return errors.New("dial tcp: refused") }, `"status":"degraded"`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			watch := connwatch.Start(t.Context(), "generator", tt.probe, connwatch.Schedule{}, quietLogger())
			t.Cleanup(watch.Stop)

			deadline := time.Now().Add(2 * time.Second)
			for watch.Status().Probes == 0 {
				if time.Now().After(deadline) {
					t.Fatal("no probe ran")
				}
				time.Sleep(time.Millisecond)
			}

			srv := NewServer("", 0, loop, config.ChatConfig{}, nil, quietLogger())
			srv.SetGeneratorWatch(watch)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

			if w.Code != http.StatusOK {
				t.Errorf("status code = %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) || !strings.Contains(w.Body.String(), `"name":"generator"`) {
				t.Errorf("GET /health = %q", w.Body.String())
			}
		})
	}
}
