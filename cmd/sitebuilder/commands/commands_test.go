package commands

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/journal"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/stage"
	"git.home.luguber.info/inful/sitebuilder/internal/storage"
)

// newProject writes files under <tmp>/develop and makes <tmp> the working directory.
func newProject(t *testing.T, files map[string]string) string {
	t.Helper()
	t.Setenv("SITEBUILDER_ENV", "")
	t.Setenv("NODE_ENV", "")
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, config.DefaultSourceDir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	t.Chdir(dir)
	return dir
}

func quietGlobal() *Global {
	return &Global{Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}
}

func TestParseLogLevel(t *testing.T) {
	t.Setenv("SITEBUILDER_LOG_LEVEL", "")
	assert.Equal(t, slog.LevelInfo, parseLogLevel(false))
	assert.Equal(t, slog.LevelDebug, parseLogLevel(true))

	t.Setenv("SITEBUILDER_LOG_LEVEL", "WARN")
	assert.Equal(t, slog.LevelWarn, parseLogLevel(false))
	t.Setenv("SITEBUILDER_LOG_LEVEL", "error")
	assert.Equal(t, slog.LevelError, parseLogLevel(false))
	t.Setenv("SITEBUILDER_LOG_LEVEL", "debug")
	assert.Equal(t, slog.LevelDebug, parseLogLevel(false))
}

func TestLoadConfig(t *testing.T) {
	dir := newProject(t, nil)

	t.Run("default file is optional", func(t *testing.T) {
		cfg, err := (&CLI{}).loadConfig()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "view"), cfg.DistPath())
		assert.Equal(t, config.ModeDevelopment, cfg.Mode)
	})

	t.Run("explicit file is required", func(t *testing.T) {
		_, err := (&CLI{Config: "missing.yaml"}).loadConfig()
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
	})

	t.Run("mode flag wins over environment", func(t *testing.T) {
		t.Setenv("SITEBUILDER_ENV", "development")
		cfg, err := (&CLI{Mode: "production"}).loadConfig()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})

	t.Run("bad mode is a validation error", func(t *testing.T) {
		_, err := (&CLI{Mode: "staging"}).loadConfig()
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	})

	t.Run("develop flags override ports", func(t *testing.T) {
		cfg, err := (&CLI{}).loadConfig(config.WithPorts(4000, 4001), config.WithLiveReload(false))
		require.NoError(t, err)
		assert.Equal(t, 4000, cfg.Server.Port)
		assert.Equal(t, 4001, cfg.Server.ControlPort)
		assert.False(t, cfg.Server.LiveReloadEnabled())
	})
}

func TestBuildCmd_WritesSiteAndJournal(t *testing.T) {
	dir := newProject(t, map[string]string{
		"a.html":           "<html><head><title>Alpha</title></head><body>a</body></html>",
		"assets/js/app.js": "function hello ( name ) { return 'hi ' + name ; }",
		"robots.txt":       "User-agent: *",
	})

	root := &CLI{}
	require.NoError(t, (&BuildCmd{}).Run(quietGlobal(), root))

	assert.FileExists(t, filepath.Join(dir, "view", "a.html"))
	assert.FileExists(t, filepath.Join(dir, "view", "assets", "js", "app.js"))
	assert.FileExists(t, filepath.Join(dir, "view", "robots.txt"))
	assert.FileExists(t, filepath.Join(dir, "index.html"))

	j, err := journal.Open(filepath.Join(dir, ".sitebuilder", "journal.db"))
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	builds, err := journal.Recent(context.Background(), j, 5)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, string(pipeline.OutcomeSuccess), builds[0].Status)
}

func TestBuildCmd_StrictFailsOnPartialBuild(t *testing.T) {
	newProject(t, map[string]string{
		"a.html":           "<html><body>a</body></html>",
		"assets/js/bad.js": "function ( {",
	})

	require.NoError(t, (&BuildCmd{}).Run(quietGlobal(), &CLI{}))

	err := (&BuildCmd{Strict: true}).Run(quietGlobal(), &CLI{})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryBuild))
}

func TestCleanCmd_RemovesOutput(t *testing.T) {
	dir := newProject(t, map[string]string{"a.html": "<html><body>a</body></html>"})
	require.NoError(t, (&BuildCmd{}).Run(quietGlobal(), &CLI{}))
	require.DirExists(t, filepath.Join(dir, "view"))

	require.NoError(t, (&CleanCmd{}).Run(quietGlobal(), &CLI{}))
	assert.NoDirExists(t, filepath.Join(dir, "view"))
	assert.NoFileExists(t, filepath.Join(dir, "index.html"))
}

func TestStageCmd(t *testing.T) {
	dir := newProject(t, map[string]string{
		"robots.txt": "User-agent: *",
		"a.html":     "<html><body>a</body></html>",
	})

	require.NoError(t, (&StageCmd{Name: "static"}).Run(quietGlobal(), &CLI{}))
	assert.FileExists(t, filepath.Join(dir, "view", "robots.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "view", "a.html"))

	err := (&StageCmd{Name: "fonts"}).Run(quietGlobal(), &CLI{})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestHistoryCmd_DisabledJournal(t *testing.T) {
	dir := newProject(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultConfigFile), []byte("journal: off\n"), 0o600))

	err := (&HistoryCmd{Limit: 5}).Run(nil, &CLI{})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestPrintReport(t *testing.T) {
	report := &pipeline.Report{
		BuildID:  "b1",
		Outcome:  pipeline.OutcomePartial,
		Duration: 1500 * time.Millisecond,
		Pages:    2,
		Stages: []*stage.Result{
			{Stage: stage.Scripts, Written: []string{"assets/js/app.js"}, Skipped: 1},
			{Stage: stage.Images, CacheHits: 3, Failures: []stage.FileError{{Path: "assets/images/x.png", Err: assert.AnError}}},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()
	assert.Contains(t, out, "Build b1: partial in 1.5s")
	assert.Contains(t, out, "scripts  written=1 skipped=1")
	assert.Contains(t, out, "cache_hits=3 failed=1")
	assert.Contains(t, out, "assets/images/x.png: "+assert.AnError.Error())
	assert.Contains(t, out, "index pages=2")
}

func TestPrintHistory(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	var empty bytes.Buffer
	printHistory(&empty, nil, now)
	assert.Equal(t, "No builds recorded yet\n", empty.String())

	var buf bytes.Buffer
	printHistory(&buf, []*journal.BuildSummary{{
		BuildID:   "abc",
		Status:    "failed",
		Mode:      "production",
		StartedAt: now.Add(-2 * time.Hour),
		Duration:  time.Second,
		Failures:  1,
		Error:     "boom",
	}}, now)
	out := buf.String()
	assert.Contains(t, out, "abc  failed")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "error: boom")
}

func TestPrintCacheStats(t *testing.T) {
	var buf bytes.Buffer
	printCacheStats(&buf, "/tmp/cache", storage.Stats{
		Objects: 2,
		Bytes:   2048,
		ByType:  map[storage.ObjectType]int{storage.ObjectTypeOptimizedImage: 2},
	})
	out := buf.String()
	assert.Contains(t, out, "objects: 2 (2.0 KiB)")
	assert.Contains(t, out, "optimized_image: 2")
}
