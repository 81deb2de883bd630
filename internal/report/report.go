// Package report renders the Markdown research report for browsers and
// terminals.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// Terminal styles accepted by RenderTerminal.
const (
	StyleAuto  = "auto"
	StyleDark  = "dark"
	StyleLight = "light"
	StyleNoTTY = "notty"
)

// DefaultWidth is the wrap width used when none is given.
const DefaultWidth = 80

// policy strips scripts, event handlers and unsafe URLs from rendered HTML.
// It is safe for concurrent use.
var policy = bluemonday.UGCPolicy()

// RenderHTML converts Markdown to sanitized HTML. Model output is untrusted,
// so the result is always run through the sanitizer.
func RenderHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return policy.SanitizeBytes(markdown.Render(doc, renderer))
}

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { max-width: 48rem; margin: 2rem auto; padding: 0 1rem; font-family: system-ui, sans-serif; line-height: 1.6; }
pre, code { background: #f5f5f5; }
</style>
</head>
<body>
<article>
{{.Body}}
</article>
</body>
</html>
`))

// RenderPage wraps RenderHTML output in a standalone HTML document.
func RenderPage(title, md string) ([]byte, error) {
	if strings.TrimSpace(title) == "" {
		title = "Research Report"
	}
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{
		Title: title,
		// Already sanitized by RenderHTML.
		Body: template.HTML(RenderHTML(md)),
	})
	if err != nil {
		return nil, fmt.Errorf("render report page: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderTerminal renders Markdown with ANSI styling for a terminal of the
// given width. style is one of the Style constants; empty means StyleAuto.
func RenderTerminal(md string, width int, style string) (string, error) {
	if width <= 0 {
		width = DefaultWidth
	}

	styleOpt := glamour.WithAutoStyle()
	switch style {
	case "", StyleAuto:
	case StyleDark, StyleLight, StyleNoTTY:
		styleOpt = glamour.WithStandardStyle(style)
	default:
		return "", fmt.Errorf("unknown terminal style %q", style)
	}

	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("create terminal renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return out, nil
}
