// Package markdown renders Markdown snippets embedded in page data.
package markdown

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Renderer converts CommonMark (with GitHub extensions) to HTML.
// Raw HTML in the source is dropped. A Renderer is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New returns a Renderer with tables, strikethrough, autolinks and task lists enabled.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Typographer),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

// ToHTML renders src. The result is trusted HTML for html/template.
func (r *Renderer) ToHTML(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	// #nosec G203 - goldmark escapes raw HTML unless WithUnsafe is set
	return template.HTML(buf.String()), nil
}
