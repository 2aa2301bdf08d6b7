// Package stage implements the six transform stages. Each stage owns a
// disjoint set of source files (see Layout), maps them into the destination
// tree under a fixed rule, and isolates per-file failures so one broken file
// never stops its siblings.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/incremental"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/transform"
)

// Stage is one transform rule. Run is idempotent and independent of other stages.
// The returned Result is never nil; the error is a stage-level failure only.
type Stage interface {
	Name() Name
	Run(ctx context.Context) (*Result, error)
}

// Deps are the collaborators shared by all stages.
type Deps struct {
	Config    *config.Config
	Layout    *Layout
	Compiler  transform.StyleCompiler
	Minifier  *transform.Minifier
	Optimizer transform.ImageOptimizer
	// Cache is optional; without it every stale image is re-optimized.
	Cache  *incremental.OptimizedCache
	Logger *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Layout == nil {
		d.Layout = NewLayout(d.Config)
	}
	if d.Minifier == nil {
		d.Minifier = transform.NewMinifier()
	}
	if d.Compiler == nil {
		d.Compiler = transform.NewDartSass("")
	}
	if d.Optimizer == nil {
		d.Optimizer = transform.NewCodecOptimizer(d.Config.Images.JPEGQuality, d.Config.Images.PNGCompression, d.Minifier)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// New returns the stage called name.
func New(name Name, deps Deps) (Stage, error) {
	deps = deps.withDefaults()
	base := base{name: name, deps: deps, log: deps.Logger.With(logfields.Stage(string(name)))}
	switch name {
	case Styles:
		return &stylesStage{base}, nil
	case Scripts:
		return &scriptsStage{base}, nil
	case Images:
		return &imagesStage{base}, nil
	case Markup:
		return &markupStage{base}, nil
	case Lib:
		return &copyStage{base: base, incremental: false}, nil
	case Static:
		return &copyStage{base: base, incremental: true}, nil
	default:
		return nil, fmt.Errorf("unknown stage %q", name)
	}
}

// All returns every stage in Names order, sharing one set of dependencies.
func All(deps Deps) []Stage {
	deps = deps.withDefaults()
	stages := make([]Stage, 0, len(Names()))
	for _, name := range Names() {
		s, _ := New(name, deps)
		stages = append(stages, s)
	}
	return stages
}

type base struct {
	name Name
	deps Deps
	log  *slog.Logger
}

func (b base) Name() Name { return b.name }

func (b base) files() ([]string, error) {
	return collect(b.deps.Layout, b.name, b.deps.Config.SourcePath())
}

func (b base) src(rel string) string {
	return filepath.Join(b.deps.Config.SourcePath(), filepath.FromSlash(rel))
}

func (b base) dest(rel string) string {
	return filepath.Join(b.deps.Config.DistPath(), filepath.FromSlash(rel))
}

// emit writes data for destRel and records it in res.
func (b base) emit(res *Result, srcRel, destRel string, data []byte) {
	written, err := writeIfChanged(b.dest(destRel), data)
	if err != nil {
		b.failed(res, srcRel, err)
		return
	}
	if written {
		res.wrote(destRel)
		b.log.Debug("Wrote file", logfields.Path(srcRel), logfields.Dest(destRel))
		return
	}
	res.skip()
}

// emitFresh always writes, so the destination mtime moves past the source.
func (b base) emitFresh(res *Result, srcRel, destRel string, data []byte) {
	if err := writeFile(b.dest(destRel), data); err != nil {
		b.failed(res, srcRel, err)
		return
	}
	res.wrote(destRel)
	b.log.Debug("Wrote file", logfields.Path(srcRel), logfields.Dest(destRel))
}

func (b base) failed(res *Result, rel string, err error) {
	res.fail(rel, err)
	b.log.Warn("File failed", logfields.Path(rel), logfields.Error(err))
}
