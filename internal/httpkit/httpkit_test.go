package httpkit

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient_DefaultTimeout(t *testing.T) {
	c := NewClient()
	if c.Timeout != DefaultTimeout {
		t.Errorf("expected %v timeout, got %v", DefaultTimeout, c.Timeout)
	}
}

func TestNewClient_CustomTimeout(t *testing.T) {
	c := NewClient(WithTimeout(5 * time.Second))
	if c.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", c.Timeout)
	}
}

func echoUserAgent(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, c *http.Client, url string) string {
	t.Helper()
	resp, err := c.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func TestNewClient_UserAgent(t *testing.T) {
	srv := echoUserAgent(t)

	got := get(t, NewClient(withUserAgent("TestBot/1.0")), srv.URL)
	if got != "TestBot/1.0" {
		t.Errorf("expected TestBot/1.0, got %q", got)
	}
}

func TestNewClient_DefaultUserAgent(t *testing.T) {
	srv := echoUserAgent(t)

	got := get(t, NewClient(), srv.URL)
	if !strings.HasPrefix(got, "menuagent/") {
		t.Errorf("expected menuagent/ prefix, got %q", got)
	}
}

func TestNewClient_EmptyUserAgent(t *testing.T) {
	srv := echoUserAgent(t)

	got := get(t, NewClient(withUserAgent("")), srv.URL)
	if strings.HasPrefix(got, "menuagent/") {
		t.Errorf("expected Go default UA, got %q", got)
	}
}

func TestNewClient_KeepsCallerUserAgent(t *testing.T) {
	srv := echoUserAgent(t)

	req, err := http.NewRequest("GET", srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("User-Agent", "caller/2")
	resp, err := NewClient().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "caller/2" {
		t.Errorf("User-Agent = %q, want caller/2", body)
	}
}

func TestNewClient_SharesTransport(t *testing.T) {
	a := NewClient(withUserAgent(""))
	b := NewClient(withUserAgent(""))
	if a.Transport != b.Transport || a.Transport != Transport() {
		t.Error("clients do not share the pooled transport")
	}
}

func TestNewClient_NoRetryOnRefused(t *testing.T) {
	// A closed server refuses connections; the client must fail once
	// rather than retrying.
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	url := srv.URL
	srv.Close()

	c := NewClient(WithTimeout(2 * time.Second))
	if _, err := c.Get(url); err == nil {
		t.Fatal("expected connection error")
	}
	if hits != 0 {
		t.Errorf("hits = %d, want 0", hits)
	}
}

func TestReadErrorBody(t *testing.T) {
	rc := io.NopCloser(strings.NewReader("quota exceeded for project"))
	got := ReadErrorBody(rc, 5)
	if got != "quota" {
		t.Errorf("ReadErrorBody = %q, want %q", got, "quota")
	}
	if ReadErrorBody(nil, 10) != "" {
		t.Error("nil body should return empty string")
	}
}
