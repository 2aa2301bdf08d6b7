package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"path"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
	"git.home.luguber.info/inful/sitebuilder/internal/pagedata"
)

// Options configures a Set.
type Options struct {
	LeftDelim  string
	RightDelim string
	Data       pagedata.Context
	Markdown   *markdown.Renderer
	Now        func() time.Time
}

// Set holds the partials shared by every page. Pages are rendered against a
// clone, so rendering one page never leaks definitions into another.
type Set struct {
	opts  Options
	base  *template.Template
	names map[string]string // base name -> first partial path registered under it
}

// NewSet returns an empty set.
func NewSet(opts Options) *Set {
	if opts.Data == nil {
		opts.Data = pagedata.Context{}
	}
	return &Set{
		opts:  opts,
		base:  newTemplate("", opts),
		names: make(map[string]string),
	}
}

func newTemplate(name string, opts Options) *template.Template {
	return template.New(name).
		Delims(opts.LeftDelim, opts.RightDelim).
		Funcs(FuncMap(opts.Data, opts.Markdown, opts.Now)).
		Option("missingkey=zero")
}

// AddPartial registers a partial under its slash path and, when unambiguous,
// its base name. A partial that does not parse is rejected without affecting
// the set.
func (s *Set) AddPartial(name, content string) error {
	if _, err := newTemplate(name, s.opts).Parse(content); err != nil {
		return fmt.Errorf("parse partial %s: %w", name, err)
	}
	if _, err := s.base.New(name).Parse(content); err != nil {
		return fmt.Errorf("parse partial %s: %w", name, err)
	}

	short := path.Base(name)
	if short == name {
		return nil
	}
	if prev, taken := s.names[short]; taken {
		return fmt.Errorf("partial %s shadows %s; reference it by path", name, prev)
	}
	s.names[short] = name
	_, err := s.base.New(short).Parse(content)
	return err
}

// Render parses content as page name and executes it with the page data as dot.
func (s *Set) Render(name, content string) ([]byte, error) {
	t, err := s.base.Clone()
	if err != nil {
		return nil, fmt.Errorf("clone template set: %w", err)
	}
	page, err := t.New(name).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := page.Execute(&buf, s.opts.Data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
