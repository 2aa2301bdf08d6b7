package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/templates"
)

// GenerateIndex lists every rendered page in the destination tree on a single
// page written outside it. Returns the number of pages listed.
func (o *Orchestrator) GenerateIndex(_ context.Context) (int, error) {
	entries, err := o.collectPages()
	if err != nil {
		return 0, err
	}
	sortEntries(entries)

	page := templates.IndexPage{
		Title:     filepath.Base(o.cfg.ProjectDir),
		Generated: o.now(),
		Entries:   entries,
	}
	var buf bytes.Buffer
	if err := templates.RenderIndex(&buf, page); err != nil {
		return 0, ferrors.RenderError("failed to render index page").WithCause(err).Fatal().Build()
	}

	index := o.cfg.IndexPath()
	if err := os.MkdirAll(filepath.Dir(index), 0o750); err != nil {
		return 0, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create index directory").
			Fatal().WithContext("path", index).Build()
	}
	if err := os.WriteFile(index, buf.Bytes(), 0o600); err != nil {
		return 0, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write index page").
			Fatal().WithContext("path", index).Build()
	}
	return len(entries), nil
}

func (o *Orchestrator) collectPages() ([]templates.IndexEntry, error) {
	dist := o.cfg.DistPath()
	indexDir := filepath.Dir(o.cfg.IndexPath())
	var entries []templates.IndexEntry

	err := filepath.WalkDir(dist, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dist && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".html") {
			return nil
		}
		rel, err := filepath.Rel(dist, p)
		if err != nil {
			return err
		}
		link, err := filepath.Rel(indexDir, p)
		if err != nil {
			return err
		}
		entries = append(entries, templates.IndexEntry{
			Name:  d.Name(),
			Title: o.pageTitle(p),
			Path:  filepath.ToSlash(rel),
			URL:   filepath.ToSlash(link),
		})
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to walk destination tree").
			Fatal().WithContext("path", dist).Build()
	}
	return entries, nil
}

// pageTitle never fails the index; an unreadable page is listed by name.
func (o *Orchestrator) pageTitle(p string) string {
	f, err := os.Open(p)
	if err != nil {
		o.logger.Warn("Cannot read page title", logfields.Path(p), logfields.Error(err))
		return ""
	}
	defer f.Close()
	title, err := templates.ExtractTitle(f)
	if err != nil {
		o.logger.Warn("Cannot parse page title", logfields.Path(p), logfields.Error(err))
		return ""
	}
	return title
}

// sortEntries orders by file name using English collation, then by path.
func sortEntries(entries []templates.IndexEntry) {
	c := collate.New(language.English)
	sort.SliceStable(entries, func(i, j int) bool {
		if cmp := c.CompareString(entries[i].Name, entries[j].Name); cmp != 0 {
			return cmp < 0
		}
		return entries[i].Path < entries[j].Path
	})
}
