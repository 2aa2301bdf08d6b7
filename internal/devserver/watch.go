package devserver

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitebuilder/internal/devserver/events"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/stage"
)

// stageWatcher watches one stage's source root and publishes ChangeEvents
// for the files that stage owns.
type stageWatcher struct {
	name       stage.Name
	sourceRoot string
	root       string
	layout     *stage.Layout
	bus        *events.Bus
	watcher    *fsnotify.Watcher
	logger     *slog.Logger
}

func newStageWatcher(name stage.Name, sourceRoot string, layout *stage.Layout, bus *events.Bus, logger *slog.Logger) (*stageWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WatchError("failed to create watcher").WithCause(err).WithContext("stage", string(name)).Build()
	}
	root := filepath.Join(sourceRoot, filepath.FromSlash(layout.Descriptor(name).Root))
	sw := &stageWatcher{
		name:       name,
		sourceRoot: sourceRoot,
		root:       root,
		layout:     layout,
		bus:        bus,
		watcher:    w,
		logger:     logger.With(logfields.Stage(string(name))),
	}
	// A missing root is watched from its nearest existing ancestor so that
	// creating it later is noticed.
	addDirsRecursive(w, nearestExisting(root, sourceRoot), logger)
	return sw, nil
}

// run forwards owned events until ctx ends or the watcher is closed.
// Watcher errors are logged and never stop the loop.
func (sw *stageWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handle(ctx, ev)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (sw *stageWatcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return
	}
	if isEditorTemp(filepath.Base(ev.Name)) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			addDirsRecursive(sw.watcher, ev.Name, sw.logger)
			return
		}
	}
	rel, err := filepath.Rel(sw.sourceRoot, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	if !sw.layout.Owns(sw.name, rel) {
		return
	}

	sw.logger.Debug("File change detected", logfields.Path(rel), logfields.Event(ev.Op.String()))
	err = sw.bus.Publish(ctx, events.ChangeEvent{
		Stage:  sw.name,
		Path:   rel,
		Op:     ev.Op.String(),
		Origin: events.OriginWatch,
		At:     time.Now(),
	})
	if err != nil && ctx.Err() == nil {
		sw.logger.Warn("Failed to publish change", logfields.Path(rel), logfields.Error(err))
	}
}

func (sw *stageWatcher) close() error {
	return sw.watcher.Close()
}

// watchers is the set of per-stage watchers.
type watchers struct {
	list []*stageWatcher
	wg   sync.WaitGroup
}

func startWatchers(ctx context.Context, sourceRoot string, layout *stage.Layout, bus *events.Bus, logger *slog.Logger) (*watchers, error) {
	ws := &watchers{}
	for _, name := range stage.Names() {
		sw, err := newStageWatcher(name, sourceRoot, layout, bus, logger)
		if err != nil {
			_ = ws.close()
			return nil, err
		}
		ws.list = append(ws.list, sw)
	}
	for _, sw := range ws.list {
		ws.wg.Add(1)
		go func() {
			defer ws.wg.Done()
			sw.run(ctx)
		}()
	}
	return ws, nil
}

// close stops every watcher and waits for their loops to exit.
func (ws *watchers) close() error {
	var errs []error
	for _, sw := range ws.list {
		if err := sw.close(); err != nil {
			errs = append(errs, err)
		}
	}
	ws.wg.Wait()
	if len(errs) > 0 {
		return ferrors.WatchError("failed to close watchers").WithCause(errs[0]).Build()
	}
	return nil
}

func addDirsRecursive(w *fsnotify.Watcher, root string, logger *slog.Logger) {
	_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.Add(p); err != nil {
				logger.Warn("Watch add failed", logfields.Path(p), logfields.Error(err))
			}
		}
		return nil
	})
}

func nearestExisting(dir, stop string) string {
	for {
		if _, err := os.Stat(dir); err == nil || dir == stop {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// isEditorTemp reports swap, backup and OS metadata files.
func isEditorTemp(base string) bool {
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasSuffix(base, ".tmp"),
		strings.HasPrefix(base, ".#"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"),
		base == ".DS_Store",
		base == "Thumbs.db",
		base == "4913": // vim write probe
		return true
	}
	return false
}
