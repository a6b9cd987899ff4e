// Package web serves the human-facing pages: the query service landing
// document and the relay chat page. Pages are markdown embedded in the
// binary and rendered to HTML once, at startup.
package web

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/buildinfo"
)

// Page names accepted by NewPage.
const (
	PageLanding = "landing"
	PageRelay   = "relay"
)

var pageTitles = map[string]string{
	PageLanding: "Menu agent",
	PageRelay:   "Message relay",
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown converts markdown to an HTML fragment. Raw HTML in the
// source is omitted.
func RenderMarkdown(src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// Page is a rendered document served at a fixed path.
type Page struct {
	logger *slog.Logger
	tmpl   *template.Template
	title  string
	body   template.HTML
	chat   bool
}

type pageData struct {
	Title   string
	Body    template.HTML
	Chat    bool
	Version string
	Uptime  time.Duration
}

// NewPage renders the named embedded document. The relay page also
// carries the browser chat client.
func NewPage(logger *slog.Logger, name string) (*Page, error) {
	if logger == nil {
		logger = slog.Default()
	}
	title, ok := pageTitles[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", name)
	}
	src, err := contentFiles.ReadFile("content/" + name + ".md")
	if err != nil {
		return nil, fmt.Errorf("read page %s: %w", name, err)
	}
	body, err := RenderMarkdown(src)
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", name, err)
	}
	return &Page{
		logger: logger,
		tmpl:   loadLayout(),
		title:  title,
		body:   body,
		chat:   name == PageRelay,
	}, nil
}

// ServeHTTP writes the page inside the layout.
func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	err := p.tmpl.Execute(w, pageData{
		Title:   p.title,
		Body:    p.body,
		Chat:    p.chat,
		Version: buildinfo.Version,
		Uptime:  buildinfo.Uptime(),
	})
	if err != nil {
		p.logger.Error("page render failed", "page", p.title, "error", err)
	}
}
