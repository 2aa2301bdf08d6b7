// Package pipeline sequences a full build: clean, run every stage
// concurrently behind a join barrier, prune empty directories, then generate
// the index page. It also runs single stages for the dev server.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/journal"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/observability"
	"git.home.luguber.info/inful/sitebuilder/internal/stage"
)

// Orchestrator runs builds. It is safe for concurrent use; single-stage runs
// for different stages may overlap.
type Orchestrator struct {
	cfg      *config.Config
	layout   *stage.Layout
	stages   map[stage.Name]stage.Stage
	recorder metrics.Recorder
	journal  *journal.Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.RWMutex
	last *Report
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithJournal records build history in j.
func WithJournal(j journal.Journal) Option {
	return func(o *Orchestrator) { o.journal = journal.NewRecorder(j) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides time.Now for the index timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New builds an orchestrator over all stages constructed from deps.
func New(cfg *config.Config, deps stage.Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	deps.Config = cfg
	if deps.Layout == nil {
		deps.Layout = stage.NewLayout(cfg)
	}
	if deps.Logger == nil {
		deps.Logger = o.logger
	}
	o.layout = deps.Layout
	o.stages = make(map[stage.Name]stage.Stage, len(stage.Names()))
	for _, s := range stage.All(deps) {
		o.stages[s.Name()] = s
	}
	return o
}

// Layout returns the stage ownership table.
func (o *Orchestrator) Layout() *stage.Layout { return o.layout }

// Last returns the most recent report, or nil before the first run.
func (o *Orchestrator) Last() *Report {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

// Build runs clean, transform, prune and index. A non-nil error means a fatal
// phase failure; per-file and stage-level failures only mark the report partial.
func (o *Orchestrator) Build(ctx context.Context) (*Report, error) {
	start := time.Now()
	buildID := uuid.NewString()
	ctx = observability.WithBuildID(ctx, buildID)
	log := observability.Logger(ctx, o.logger)

	report := &Report{BuildID: buildID, Mode: string(o.cfg.Mode), StartedAt: start}
	o.journalErr(log, o.journal.BuildStarted(ctx, buildID, journal.BuildStarted{
		Mode:   report.Mode,
		Stages: nameStrings(stage.Names()),
	}))
	log.Info("Build started", logfields.Mode(report.Mode))

	err := o.build(ctx, report)
	return o.finish(ctx, log, start, report, err)
}

func (o *Orchestrator) build(ctx context.Context, report *Report) error {
	if err := o.layout.CheckDisjoint(o.cfg.SourcePath()); err != nil {
		return err
	}
	if err := o.Clean(ctx); err != nil {
		return err
	}

	report.Stages = o.transform(ctx)

	pruned, err := o.Prune(ctx)
	report.Pruned = pruned
	if err != nil {
		return err
	}

	pages, err := o.GenerateIndex(ctx)
	report.Pages = pages
	return err
}

// transform runs every stage concurrently and waits for all of them.
func (o *Orchestrator) transform(ctx context.Context) []*stage.Result {
	names := stage.Names()
	results := make([]*stage.Result, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			results[i] = o.runStage(ctx, name)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// RunStage reruns a single stage outside a full build. Markup also
// regenerates the index page.
func (o *Orchestrator) RunStage(ctx context.Context, name stage.Name) (*Report, error) {
	if _, ok := o.stages[name]; !ok {
		return nil, ferrors.ValidationError("unknown stage").WithContext("stage", string(name)).Build()
	}

	start := time.Now()
	buildID := uuid.NewString()
	ctx = observability.WithBuildID(ctx, buildID)
	log := observability.Logger(ctx, o.logger)

	report := &Report{BuildID: buildID, Mode: string(o.cfg.Mode), StartedAt: start}
	o.journalErr(log, o.journal.BuildStarted(ctx, buildID, journal.BuildStarted{
		Mode:   report.Mode,
		Stages: []string{string(name)},
	}))

	report.Stages = []*stage.Result{o.runStage(ctx, name)}

	var err error
	if name == stage.Markup {
		report.Pages, err = o.GenerateIndex(ctx)
	}
	return o.finish(ctx, log, start, report, err)
}

func (o *Orchestrator) runStage(ctx context.Context, name stage.Name) *stage.Result {
	ctx = observability.WithStage(ctx, string(name))
	log := observability.Logger(ctx, o.logger)

	res, err := o.stages[name].Run(ctx)

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultFatal
		log.Error("Stage failed", logfields.Error(err))
	case len(res.Failures) > 0:
		result = metrics.ResultWarning
		log.Warn("Stage completed with failures",
			logfields.Files(len(res.Written)), slog.Int("failed", len(res.Failures)), logfields.Duration(res.Duration))
	default:
		log.Info("Stage completed", logfields.Files(len(res.Written)), logfields.Duration(res.Duration))
	}

	o.recorder.ObserveStageDuration(string(name), res.Duration)
	o.recorder.IncStageResult(string(name), result)
	o.recorder.AddStageFiles(string(name), len(res.Written), res.Skipped, len(res.Failures))
	if res.CacheHits > 0 {
		o.recorder.AddCacheHits(string(name), res.CacheHits)
	}

	entry := journal.StageCompleted{
		Stage:      string(name),
		Written:    len(res.Written),
		Skipped:    res.Skipped,
		CacheHits:  res.CacheHits,
		Failed:     len(res.Failures),
		DurationMS: res.Duration.Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	o.journalErr(log, o.journal.StageCompleted(ctx, observability.BuildID(ctx), entry))
	return res
}

func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, start time.Time, report *Report, err error) (*Report, error) {
	report.settle(start, err)

	o.recorder.ObserveBuildDuration(report.Duration)
	o.recorder.IncBuildOutcome(string(report.Outcome))
	o.journalErr(log, o.journal.BuildFinished(ctx, report.BuildID, journal.BuildFinished{
		Outcome:    string(report.Outcome),
		DurationMS: report.Duration.Milliseconds(),
		Failures:   report.Failures(),
		Error:      report.Error,
	}))

	o.mu.Lock()
	o.last = report
	o.mu.Unlock()

	if err != nil {
		log.Error("Build failed", logfields.Error(err), logfields.Duration(report.Duration))
		return report, err
	}
	log.Info("Build finished",
		slog.String("outcome", string(report.Outcome)),
		slog.Int("failures", report.Failures()),
		slog.Int("pages", report.Pages),
		logfields.Duration(report.Duration))
	return report, nil
}

// journalErr logs journal write failures; history is best effort.
func (o *Orchestrator) journalErr(log *slog.Logger, err error) {
	if err != nil {
		log.Warn("Failed to write build journal", logfields.Error(err))
	}
}

func nameStrings(names []stage.Name) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
