package templates

import (
	_ "embed"
	"html/template"
	"io"
	"time"
)

//go:embed index.html.tmpl
var indexTemplateSource string

var indexTemplate = template.Must(template.New("index").Parse(indexTemplateSource))

// IndexEntry is one rendered page listed on the generated index.
type IndexEntry struct {
	Name  string // file name, used as the sort key
	Title string // <title> text, may be empty
	Path  string // slash path relative to the destination root
	URL   string // link relative to the index page
}

// IndexPage is the data rendered into the index template.
type IndexPage struct {
	Title     string
	Generated time.Time
	Entries   []IndexEntry
}

// RenderIndex writes the index document.
func RenderIndex(w io.Writer, page IndexPage) error {
	return indexTemplate.Execute(w, page)
}
