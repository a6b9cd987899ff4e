package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/buildinfo"
)

func TestLandingPage(t *testing.T) {
	old := buildinfo.Version
	buildinfo.Version = "test-v1.0.0"
	t.Cleanup(func() { buildinfo.Version = old })

	page, err := NewPage(nil, PageLanding)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}

	w := httptest.NewRecorder()
	page.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := w.Body.String()
	for _, want := range []string{"<!DOCTYPE html>", "<h1>Menu agent</h1>", "<table>", "/api/chat", "test-v1.0.0"} {
		if !strings.Contains(body, want) {
			t.Errorf("landing page missing %q", want)
		}
	}
	if strings.Contains(body, "new WebSocket") {
		t.Error("landing page should not carry the chat client")
	}
}

func TestRelayPage(t *testing.T) {
	page, err := NewPage(nil, PageRelay)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}

	w := httptest.NewRecorder()
	page.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	body := w.Body.String()
	for _, want := range []string{"<h1>Message relay</h1>", "new WebSocket", "/socket", "chat-message"} {
		if !strings.Contains(body, want) {
			t.Errorf("relay page missing %q", want)
		}
	}
}

func TestNewPage_Unknown(t *testing.T) {
	if _, err := NewPage(nil, "dashboard"); err == nil {
		t.Error("expected error for unknown page")
	}
}

func TestRenderMarkdown(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"heading", "# Hi", "<h1>Hi</h1>"},
		{"code", "`x`", "<code>x</code>"},
		{"table", "| a |\n|---|\n| b |", "<td>b</td>"},
		{"raw html omitted", "<script>alert(1)</script>", "<!-- raw HTML omitted -->"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderMarkdown([]byte(tt.src))
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(got), tt.want) {
				t.Errorf("RenderMarkdown(%q) = %q, want it to contain %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + 10*time.Minute, "2h 10m"},
		{50 * time.Hour, "2d 2h"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
