package devserver

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/devserver/events"
	"git.home.luguber.info/inful/sitebuilder/internal/stage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsEditorTemp(t *testing.T) {
	for _, name := range []string{"main.scss~", ".main.scss.swp", "#notes#", ".#lock", ".DS_Store", "4913"} {
		assert.True(t, isEditorTemp(name), name)
	}
	for _, name := range []string{"main.scss", ".htaccess", "app.js"} {
		assert.False(t, isEditorTemp(name), name)
	}
}

func TestWatchers_RouteByOwnership(t *testing.T) {
	cfg := config.Default(t.TempDir())
	src := cfg.SourcePath()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "assets", "js"), 0o750))

	bus := events.NewBus()
	changes, unsub := events.Subscribe[events.ChangeEvent](bus, 64)
	defer unsub()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	ws, err := startWatchers(ctx, src, stage.NewLayout(cfg), bus, testLogger())
	require.NoError(t, err)
	defer func() {
		cancel()
		_ = ws.close()
		bus.Close()
	}()

	require.NoError(t, os.WriteFile(filepath.Join(src, "assets", "js", "app.js"), []byte("var a;"), 0o600))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-changes:
			if ev.Path != "assets/js/app.js" {
				continue
			}
			assert.Equal(t, stage.Scripts, ev.Stage)
			assert.Equal(t, events.OriginWatch, ev.Origin)
			return
		case <-deadline:
			t.Fatal("no change event for assets/js/app.js")
		}
	}
}
