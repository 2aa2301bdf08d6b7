package stage

import (
	"context"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/incremental"
)

// copyStage copies owned files verbatim. The incremental variant skips files
// whose destination is not older than the source.
type copyStage struct {
	base
	incremental bool
}

func (s *copyStage) Run(_ context.Context) (*Result, error) {
	start := time.Now()
	res := newResult(s.name)

	files, err := s.files()
	if err != nil {
		return res.finish(start, ferrors.WrapError(err, ferrors.CategoryFileSystem, "collect "+string(s.name)).Build())
	}

	forEach(files, func(rel string) {
		if s.incremental {
			stale, err := incremental.NeedsUpdate(s.src(rel), s.dest(rel))
			if err != nil {
				s.failed(res, rel, err)
				return
			}
			if !stale {
				res.skip()
				return
			}
		}
		if err := copyFile(s.src(rel), s.dest(rel)); err != nil {
			s.failed(res, rel, ferrors.FileSystemError("copy failed").WithCause(err).WithContext("path", rel).Build())
			return
		}
		res.wrote(rel)
	})
	return res.finish(start, nil)
}
