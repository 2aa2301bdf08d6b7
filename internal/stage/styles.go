package stage

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/transform"
)

// stylesStage compiles SCSS to prefixed, minified CSS. Partials are import-only.
type stylesStage struct{ base }

func (s *stylesStage) Run(_ context.Context) (*Result, error) {
	start := time.Now()
	res := newResult(s.name)

	files, err := s.files()
	if err != nil {
		return res.finish(start, ferrors.WrapError(err, ferrors.CategoryFileSystem, "collect styles").Build())
	}

	cfg := s.deps.Config
	includes := []string{
		s.src(cfg.Layout.Styles),
		s.src(cfg.Layout.Lib),
	}

	var (
		once     sync.Once
		stageErr error
	)
	forEach(files, func(rel string) {
		if isPartial(rel, "_") {
			return
		}
		source, err := os.ReadFile(s.src(rel))
		if err != nil {
			s.failed(res, rel, err)
			return
		}
		compiled, err := s.deps.Compiler.Compile(transform.SassInput{
			Path:         s.src(rel),
			Source:       string(source),
			IncludePaths: includes,
		})
		if err != nil {
			if errors.Is(err, transform.ErrCompilerUnavailable) {
				once.Do(func() {
					stageErr = ferrors.WrapError(err, ferrors.CategoryBuild, "styles stage unavailable").Build()
				})
				return
			}
			s.failed(res, rel, ferrors.TransformError("sass compile failed").WithCause(err).WithContext("path", rel).Build())
			return
		}
		out, err := s.deps.Minifier.Stylesheet([]byte(compiled))
		if err != nil {
			s.failed(res, rel, ferrors.TransformError("css post-processing failed").WithCause(err).WithContext("path", rel).Build())
			return
		}
		s.emit(res, rel, OutputPath(cfg, s.name, rel), out)
	})

	if stageErr != nil {
		s.log.Error("Stage failed", "error", stageErr)
	}
	return res.finish(start, stageErr)
}
