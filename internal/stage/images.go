package stage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/incremental"
	"git.home.luguber.info/inful/sitebuilder/internal/transform"
)

// imagesStage optimizes images whose destination is missing or stale.
// Optimizer output is cached by content fingerprint, so a wiped dist tree
// is restored without re-encoding anything.
type imagesStage struct{ base }

func (s *imagesStage) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := newResult(s.name)

	files, err := s.files()
	if err != nil {
		return res.finish(start, ferrors.WrapError(err, ferrors.CategoryFileSystem, "collect images").Build())
	}

	opt := s.deps.Optimizer
	signature := opt.Signature()

	forEach(files, func(rel string) {
		stale, err := incremental.NeedsUpdate(s.src(rel), s.dest(rel))
		if err != nil {
			s.failed(res, rel, err)
			return
		}
		if !stale {
			res.skip()
			return
		}

		original, err := os.ReadFile(s.src(rel))
		if err != nil {
			s.failed(res, rel, err)
			return
		}

		key := incremental.Fingerprint(original, signature)
		if cache := s.deps.Cache; cache != nil {
			cached, ok, err := cache.Lookup(ctx, key)
			if err != nil {
				s.log.Warn("Image cache lookup failed", "path", rel, "error", err)
			} else if ok {
				res.cacheHit()
				s.emitFresh(res, rel, rel, cached)
				return
			}
		}

		optimized, err := opt.Optimize(filepath.Ext(rel), original)
		if err != nil {
			s.failed(res, rel, ferrors.TransformError("image optimization failed").WithCause(err).WithContext("path", rel).Build())
			return
		}
		out := transform.SmallestOf(original, optimized)

		if cache := s.deps.Cache; cache != nil {
			if err := cache.Store(ctx, key, out, rel, len(original)); err != nil {
				s.log.Warn("Image cache store failed", "path", rel, "error", err)
			}
		}
		s.emitFresh(res, rel, rel, out)
	})
	return res.finish(start, nil)
}
