package stage

import (
	"context"
	"os"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/transform"
)

// scriptsStage minifies standalone scripts with the same relative layout.
type scriptsStage struct{ base }

func (s *scriptsStage) Run(_ context.Context) (*Result, error) {
	start := time.Now()
	res := newResult(s.name)

	files, err := s.files()
	if err != nil {
		return res.finish(start, ferrors.WrapError(err, ferrors.CategoryFileSystem, "collect scripts").Build())
	}

	forEach(files, func(rel string) {
		source, err := os.ReadFile(s.src(rel))
		if err != nil {
			s.failed(res, rel, err)
			return
		}
		out, err := transform.MinifyJS(source, rel)
		if err != nil {
			s.failed(res, rel, ferrors.TransformError("script minification failed").WithCause(err).WithContext("path", rel).Build())
			return
		}
		s.emit(res, rel, rel, out)
	})
	return res.finish(start, nil)
}
