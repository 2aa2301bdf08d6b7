// Package devserver serves the project root over HTTP after a full build,
// watches every stage's sources and reruns only the affected stage on change,
// then tells connected browsers to hot-swap assets or reload.
package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/devserver/events"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Config       *config.Config
	Orchestrator *pipeline.Orchestrator
	// Registry is served on /metrics; nil serves the default gatherer.
	Registry prom.Gatherer
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// Server is the develop command's runtime.
type Server struct {
	cfg      *config.Config
	orch     *pipeline.Orchestrator
	registry prom.Gatherer
	recorder metrics.Recorder
	logger   *slog.Logger
}

// New returns a server; call Run to start it.
func New(opts Options) *Server {
	s := &Server{
		cfg:      opts.Config,
		orch:     opts.Orchestrator,
		registry: opts.Registry,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
	if s.recorder == nil {
		s.recorder = metrics.NoopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run binds both ports, performs a full build, then serves and watches until
// ctx is canceled. Only a bind or watcher setup failure is returned; build
// failures are logged and the session continues.
func (s *Server) Run(ctx context.Context) error {
	docsLn, controlLn, err := listen(s.cfg.Server.Port, s.cfg.Server.ControlPort)
	if err != nil {
		return err
	}

	if _, err := s.orch.Build(ctx); err != nil {
		s.logger.Error("Initial build failed; serving previous output", logfields.Error(err))
	}

	bus := events.NewBus()
	hub := NewHub(s.recorder)
	dispatcher := NewDispatcher(DispatcherConfig{
		Runner:    s.orch,
		Notifier:  hub,
		Recorder:  s.recorder,
		Logger:    s.logger,
		Debounce:  s.cfg.Server.Debounce,
		URLPrefix: s.distURLPrefix(),
	})
	dispatched := dispatcher.Start(ctx, bus)

	ws, err := startWatchers(ctx, s.cfg.SourcePath(), s.orch.Layout(), bus, s.logger)
	if err != nil {
		bus.Close()
		<-dispatched
		_ = docsLn.Close()
		_ = controlLn.Close()
		return err
	}

	var poller *Poller
	if s.cfg.Server.Poll > 0 {
		if poller, err = NewPoller(s.cfg.SourcePath(), s.orch.Layout(), bus, s.logger); err == nil {
			err = poller.Start(ctx, s.cfg.Server.Poll)
		}
		if err != nil {
			s.logger.Warn("Polling disabled", logfields.Error(err))
			poller = nil
		}
	}

	servers := startHTTP(handlerDeps{
		root:        s.cfg.ProjectDir,
		controlPort: s.cfg.Server.ControlPort,
		liveReload:  s.cfg.Server.LiveReloadEnabled(),
		hub:         hub,
		status:      s.orch,
		rebuild: func(ctx context.Context, reason string) error {
			return bus.Publish(ctx, events.RebuildRequested{Reason: reason, At: time.Now()})
		},
		registry: s.registry,
		started:  time.Now(),
		errors:   ferrors.NewHTTPErrorAdapter(s.logger),
	}, docsLn, controlLn, s.logger)

	s.logger.Info("Dev server listening",
		slog.String("docs_url", fmt.Sprintf("http://localhost:%d", s.cfg.Server.Port)),
		slog.String("control_url", fmt.Sprintf("http://localhost:%d", s.cfg.Server.ControlPort)),
		slog.Bool("live_reload", s.cfg.Server.LiveReloadEnabled()))

	<-ctx.Done()
	s.logger.Info("Shutting down dev server")

	if poller != nil {
		if err := poller.Stop(); err != nil {
			s.logger.Warn("Poller shutdown error", logfields.Error(err))
		}
	}
	if err := ws.close(); err != nil {
		s.logger.Warn("Watcher shutdown error", logfields.Error(err))
	}
	hub.Shutdown()

	// Publishers (watchers, poller, POST /rebuild) are gone before the bus closes.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := servers.stop(shutdownCtx); err != nil {
		s.logger.Warn("HTTP shutdown error", logfields.Error(err))
	}
	bus.Close()
	<-dispatched
	return nil
}

// distURLPrefix is the URL path of the destination root as served from the project root.
func (s *Server) distURLPrefix() string {
	rel, err := filepath.Rel(s.cfg.ProjectDir, s.cfg.DistPath())
	if err != nil {
		return "/"
	}
	return "/" + filepath.ToSlash(rel) + "/"
}
