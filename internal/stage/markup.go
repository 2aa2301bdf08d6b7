package stage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/pagedata"
	"git.home.luguber.info/inful/sitebuilder/internal/templates"
)

// markupStage renders page templates against the page data context.
// .ejs and .xhtml pages become .html. Partials are shared and never emitted.
type markupStage struct{ base }

func (s *markupStage) Run(_ context.Context) (*Result, error) {
	start := time.Now()
	res := newResult(s.name)
	cfg := s.deps.Config

	files, err := s.files()
	if err != nil {
		return res.finish(start, ferrors.WrapError(err, ferrors.CategoryFileSystem, "collect templates").Build())
	}

	data := pagedata.Load(cfg.DataPath())
	set := templates.NewSet(templates.Options{
		LeftDelim:  cfg.Markup.LeftDelim,
		RightDelim: cfg.Markup.RightDelim,
		Data:       data,
	})

	dataRel := filepath.ToSlash(cfg.DataFile)
	var pages []string
	for _, rel := range files {
		switch {
		case rel == dataRel:
			continue
		case isPartial(rel, cfg.Markup.PartialPrefix):
			content, err := os.ReadFile(s.src(rel))
			if err != nil {
				s.failed(res, rel, err)
				continue
			}
			if err := set.AddPartial(rel, string(content)); err != nil {
				s.failed(res, rel, ferrors.RenderError("partial rejected").WithCause(err).WithContext("path", rel).Build())
			}
		default:
			pages = append(pages, rel)
		}
	}

	forEach(pages, func(rel string) {
		content, err := os.ReadFile(s.src(rel))
		if err != nil {
			s.failed(res, rel, err)
			return
		}
		out, err := set.Render(rel, string(content))
		if err != nil {
			s.failed(res, rel, ferrors.RenderError("template render failed").WithCause(err).WithContext("path", rel).Build())
			return
		}
		if cfg.IsProduction() {
			if out, err = s.deps.Minifier.HTML(out); err != nil {
				s.failed(res, rel, ferrors.TransformError("html minification failed").WithCause(err).WithContext("path", rel).Build())
				return
			}
		}
		s.emit(res, rel, OutputPath(cfg, s.name, rel), out)
	})
	return res.finish(start, nil)
}

// pageDest normalizes alternate markup extensions to .html.
func pageDest(rel string) string {
	switch strings.ToLower(filepath.Ext(rel)) {
	case ".ejs", ".xhtml":
		return replaceExt(rel, ".html")
	}
	return rel
}
