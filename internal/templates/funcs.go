// Package templates renders page templates and the generated index page.
package templates

import (
	"html/template"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
	"git.home.luguber.info/inful/sitebuilder/internal/pagedata"
)

// FuncMap returns the helpers available to every page template.
//
//	markdown  renders a Markdown string to HTML
//	jsonpath  queries the page data with a JSONPath expression
//	year      returns the current year
func FuncMap(data pagedata.Context, md *markdown.Renderer, now func() time.Time) template.FuncMap {
	if now == nil {
		now = time.Now
	}
	if md == nil {
		md = markdown.New()
	}
	return template.FuncMap{
		"markdown": md.ToHTML,
		"jsonpath": data.Query,
		"year":     func() int { return now().Year() },
	}
}
