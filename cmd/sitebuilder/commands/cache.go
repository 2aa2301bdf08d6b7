package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/storage"
)

// CacheCmd implements the 'cache' command.
type CacheCmd struct {
	Clear bool `help:"Remove every cached object"`
}

func (c *CacheCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	dir := cfg.CachePath()

	if c.Clear {
		if err := os.RemoveAll(dir); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to clear image cache").
				WithContext("path", dir).Build()
		}
		fmt.Printf("Cleared %s\n", dir)
		return nil
	}

	store, err := storage.NewFSStore(dir)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "open image cache").
			WithContext("path", dir).Build()
	}
	defer func() { _ = store.Close() }()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "read image cache").
			WithContext("path", dir).Build()
	}
	printCacheStats(os.Stdout, dir, stats)
	return nil
}

func printCacheStats(w io.Writer, dir string, stats storage.Stats) {
	_, _ = fmt.Fprintf(w, "Cache: %s\n", dir)
	_, _ = fmt.Fprintf(w, "  objects: %d (%s)\n", stats.Objects, humanize.IBytes(uint64(stats.Bytes)))

	types := make([]string, 0, len(stats.ByType))
	for t := range stats.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		_, _ = fmt.Fprintf(w, "  %s: %d\n", t, stats.ByType[storage.ObjectType(t)])
	}
}
