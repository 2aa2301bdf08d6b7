package transform

import (
	"fmt"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

const (
	mimeCSS  = "text/css"
	mimeHTML = "text/html"
	mimeSVG  = "image/svg+xml"
	mimeJS   = "application/javascript"
)

// Minifier bundles the CSS, HTML and SVG minifiers. It is safe for concurrent use.
type Minifier struct {
	m *minify.M
}

// NewMinifier configures minifiers for every media type the stages emit.
// HTML keeps document, end tags and quotes so templates that rely on them
// render the same; whitespace, comments and inline CSS/JS are compacted.
func NewMinifier() *Minifier {
	m := minify.New()
	m.AddFunc(mimeCSS, css.Minify)
	m.Add(mimeHTML, &html.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepDefaultAttrVals: true,
	})
	m.AddFunc(mimeSVG, svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	return &Minifier{m: m}
}

// CSS minifies a stylesheet and strips comments.
func (mm *Minifier) CSS(src []byte) ([]byte, error) {
	out, err := mm.m.Bytes(mimeCSS, src)
	if err != nil {
		return nil, fmt.Errorf("minify css: %w", err)
	}
	return out, nil
}

// HTML minifies a rendered page including inline styles and scripts.
func (mm *Minifier) HTML(src []byte) ([]byte, error) {
	out, err := mm.m.Bytes(mimeHTML, src)
	if err != nil {
		return nil, fmt.Errorf("minify html: %w", err)
	}
	return out, nil
}

// SVG minifies an SVG document.
func (mm *Minifier) SVG(src []byte) ([]byte, error) {
	out, err := mm.m.Bytes(mimeSVG, src)
	if err != nil {
		return nil, fmt.Errorf("minify svg: %w", err)
	}
	return out, nil
}

// Stylesheet runs the post-compile CSS chain: vendor prefixing, then minification.
func (mm *Minifier) Stylesheet(compiled []byte) ([]byte, error) {
	prefixed, err := Prefix(compiled)
	if err != nil {
		return nil, err
	}
	return mm.CSS(prefixed)
}
