package commands

import (
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/incremental"
	"git.home.luguber.info/inful/sitebuilder/internal/journal"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/stage"
	"git.home.luguber.info/inful/sitebuilder/internal/storage"
	"git.home.luguber.info/inful/sitebuilder/internal/transform"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (default sitebuilder.yaml, optional)" placeholder:"PATH"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Mode    string           `help:"Build mode (development|production); overrides SITEBUILDER_ENV and NODE_ENV"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Clean, transform every stage, prune and write the index page"`
	Develop DevelopCmd `cmd:"" help:"Build, watch sources and serve with live reload"`
	Clean   CleanCmd   `cmd:"" help:"Remove the destination tree and the index page"`
	Stage   StageCmd   `cmd:"" help:"Run a single transform stage"`
	History HistoryCmd `cmd:"" help:"List recent builds from the build journal"`
	Cache   CacheCmd   `cmd:"" help:"Show image cache statistics"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel honours -v first, then SITEBUILDER_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("SITEBUILDER_LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig resolves the configuration for this invocation. A missing
// sitebuilder.yaml is fine; a missing file named with --config is not.
func (c *CLI) loadConfig(opts ...config.Option) (*config.Config, error) {
	path, required := c.Config, c.Config != ""
	if path == "" {
		path = config.DefaultConfigFile
	}
	if c.Mode != "" {
		mode, err := config.ParseMode(c.Mode)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid --mode").
				WithContext("mode", c.Mode).Build()
		}
		opts = append(opts, config.WithMode(mode))
	}
	return config.Load(path, required, opts...)
}

// buildEnv bundles the orchestrator with the resources it owns.
type buildEnv struct {
	orch     *pipeline.Orchestrator
	compiler *transform.DartSass
	store    *storage.FSStore
	journal  journal.Journal
}

// newBuildEnv wires the stages, image cache and journal for cfg.
func newBuildEnv(cfg *config.Config, logger *slog.Logger, rec metrics.Recorder) (*buildEnv, error) {
	rt := &buildEnv{compiler: transform.NewDartSass(os.Getenv("SITEBUILDER_SASS_BINARY"))}

	store, err := storage.NewFSStore(cfg.CachePath())
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "open image cache").
			WithContext("path", cfg.CachePath()).Build()
	}
	rt.store = store

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if rec != nil {
		opts = append(opts, pipeline.WithRecorder(rec))
	}
	if p := cfg.JournalPath(); p != "" {
		j, err := journal.Open(p)
		if err != nil {
			// The journal is informational; builds run without it.
			logger.Warn("Build journal unavailable", "path", p, "error", err)
		} else {
			rt.journal = j
			opts = append(opts, pipeline.WithJournal(j))
		}
	}

	rt.orch = pipeline.New(cfg, stage.Deps{
		Config:   cfg,
		Compiler: rt.compiler,
		Cache:    incremental.NewOptimizedCache(store).WithLogger(logger),
		Logger:   logger,
	}, opts...)
	return rt, nil
}

func (rt *buildEnv) Close() {
	if err := rt.compiler.Close(); err != nil {
		slog.Debug("Sass compiler close failed", "error", err)
	}
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			slog.Warn("Failed to close build journal", "error", err)
		}
	}
	if rt.store != nil {
		_ = rt.store.Close()
	}
}

func loggerFrom(g *Global) *slog.Logger {
	if g != nil && g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
