package stage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
)

// collect returns the source-relative (slash) paths owned by name, sorted.
// A missing stage root yields no files.
func collect(l *Layout, name Name, sourceRoot string) ([]string, error) {
	d := l.Descriptor(name)
	root := filepath.Join(sourceRoot, filepath.FromSlash(d.Root))

	var files []string
	err := filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if p == root && isNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(sourceRoot, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if l.Owns(name, rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// forEach runs fn over files with bounded parallelism and waits for all of them.
// fn reports its own failures; forEach never stops early.
func forEach(files []string, fn func(rel string)) {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, rel := range files {
		g.Go(func() error {
			fn(rel)
			return nil
		})
	}
	_ = g.Wait()
}

// writeIfChanged writes data to dest unless dest already holds identical bytes.
// It reports whether a write happened.
func writeIfChanged(dest string, data []byte) (bool, error) {
	if existing, err := os.ReadFile(dest); err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	return true, writeFile(dest, data)
}

func writeFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

// copyFile copies src to dest verbatim and carries over the source mtime.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}

// replaceExt swaps the extension of a slash path.
func replaceExt(rel, ext string) string {
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + ext
}

func isPartial(rel, prefix string) bool {
	return prefix != "" && strings.HasPrefix(filepath.Base(rel), prefix)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// OutputPath returns the dist-relative file stage name writes for the
// source-relative file rel, or "" when rel produces no output of its own
// (style and markup partials, the page data file).
func OutputPath(cfg *config.Config, name Name, rel string) string {
	rel = filepath.ToSlash(rel)
	switch name {
	case Styles:
		if isPartial(rel, "_") {
			return ""
		}
		return replaceExt(rel, ".css")
	case Markup:
		if rel == filepath.ToSlash(cfg.DataFile) || isPartial(rel, cfg.Markup.PartialPrefix) {
			return ""
		}
		return pageDest(rel)
	default:
		return rel
	}
}
