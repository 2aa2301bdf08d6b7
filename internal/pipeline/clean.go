package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/stage"
)

// Clean removes the destination tree and the generated index.
// Anything already missing counts as clean.
func (o *Orchestrator) Clean(_ context.Context) error {
	dist := o.cfg.DistPath()
	if err := os.RemoveAll(dist); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to remove destination tree").
			Fatal().WithContext("path", dist).Build()
	}
	index := o.cfg.IndexPath()
	if err := os.Remove(index); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to remove index page").
			Fatal().WithContext("path", index).Build()
	}
	return nil
}

// Prune removes directories left empty under the destination root, deepest
// first. The root itself is kept. Returns the number of directories removed.
func (o *Orchestrator) Prune(_ context.Context) (int, error) {
	dist := o.cfg.DistPath()
	var dirs []string
	err := filepath.WalkDir(dist, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dist && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() && p != dist {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		return 0, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to walk destination tree").
			Fatal().WithContext("path", dist).Build()
	}

	// WalkDir visits parents before children, so reverse order is bottom-up.
	removed := 0
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err != nil {
			return removed, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read directory").
				Fatal().WithContext("path", dirs[i]).Build()
		}
		if len(entries) > 0 {
			continue
		}
		if err := os.Remove(dirs[i]); err != nil {
			return removed, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to remove empty directory").
				Fatal().WithContext("path", dirs[i]).Build()
		}
		removed++
	}
	return removed, nil
}

// RemoveOutput deletes the destination file produced from the source file
// srcRel by stage name, once that source no longer exists. It returns the
// removed dist-relative path, or "" when nothing was removed.
func (o *Orchestrator) RemoveOutput(_ context.Context, name stage.Name, srcRel string) (string, error) {
	src := filepath.Join(o.cfg.SourcePath(), filepath.FromSlash(srcRel))
	if _, err := os.Lstat(src); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	destRel := stage.OutputPath(o.cfg, name, srcRel)
	if destRel == "" {
		return "", nil
	}
	dest := filepath.Join(o.cfg.DistPath(), filepath.FromSlash(destRel))
	if err := os.Remove(dest); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to remove stale output").
			WithContext("path", dest).Build()
	}
	o.logger.Debug("Removed output of deleted source", logfields.Stage(string(name)), logfields.Path(srcRel), logfields.Dest(destRel))
	return destRel, nil
}
