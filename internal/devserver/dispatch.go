package devserver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/devserver/events"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/stage"
)

// Runner executes builds. *pipeline.Orchestrator implements it.
type Runner interface {
	Build(ctx context.Context) (*pipeline.Report, error)
	RunStage(ctx context.Context, name stage.Name) (*pipeline.Report, error)
	RemoveOutput(ctx context.Context, name stage.Name, srcRel string) (string, error)
}

// Notifier delivers live reload messages. *Hub implements it.
type Notifier interface {
	Broadcast(msg Message)
}

// worker debounces triggers and runs at most one job at a time with at most
// one more queued behind it.
type worker struct {
	name     string
	debounce time.Duration
	job      func(ctx context.Context, paths []string)

	mu    sync.Mutex
	timer *time.Timer
	paths map[string]struct{}
	req   chan struct{}
}

func newWorker(name string, debounce time.Duration, job func(ctx context.Context, paths []string)) *worker {
	return &worker{
		name:     name,
		debounce: debounce,
		job:      job,
		paths:    map[string]struct{}{},
		req:      make(chan struct{}, 1),
	}
}

// trigger records path and (re)starts the quiet window.
func (w *worker) trigger(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if path != "" {
		w.paths[path] = struct{}{}
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.req <- struct{}{}:
		default:
		}
	})
}

func (w *worker) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.paths))
	for p := range w.paths {
		paths = append(paths, p)
	}
	clear(w.paths)
	return paths
}

func (w *worker) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// loop runs jobs until ctx ends. A job in progress always completes.
func (w *worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.req:
			w.job(context.WithoutCancel(ctx), w.drain())
		}
	}
}

// Dispatcher is the single consumer of change events. It routes each event to
// the owning stage's worker; workers for different stages run concurrently.
type Dispatcher struct {
	runner    Runner
	notify    Notifier
	recorder  metrics.Recorder
	logger    *slog.Logger
	urlPrefix string

	// full rebuilds clean the destination tree, so they exclude stage runs
	buildMu sync.RWMutex

	workers map[stage.Name]*worker
	full    *worker
	wg      sync.WaitGroup
}

// DispatcherConfig configures NewDispatcher.
type DispatcherConfig struct {
	Runner   Runner
	Notifier Notifier
	Recorder metrics.Recorder
	Logger   *slog.Logger
	Debounce time.Duration
	// URLPrefix maps destination-relative paths to URL paths, e.g. "/view/".
	URLPrefix string
}

// NewDispatcher creates workers for every stage and the full rebuild.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		runner:    cfg.Runner,
		notify:    cfg.Notifier,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
		urlPrefix: cfg.URLPrefix,
		workers:   make(map[stage.Name]*worker, len(stage.Names())),
	}
	if d.recorder == nil {
		d.recorder = metrics.NoopRecorder{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.urlPrefix == "" {
		d.urlPrefix = "/"
	}
	for _, name := range stage.Names() {
		d.workers[name] = newWorker(string(name), cfg.Debounce, d.stageJob(name))
	}
	d.full = newWorker("full", cfg.Debounce, d.fullJob)
	return d
}

// Start subscribes to the bus and consumes it in the background until ctx
// ends or the bus closes. The returned channel closes once every running job
// has finished.
func (d *Dispatcher) Start(ctx context.Context, bus *events.Bus) <-chan struct{} {
	changes, unsubChanges := events.Subscribe[events.ChangeEvent](bus, 64)
	rebuilds, unsubRebuilds := events.Subscribe[events.RebuildRequested](bus, 4)

	workerCtx, cancel := context.WithCancel(ctx)
	all := append([]*worker{d.full}, d.workerList()...)
	for _, w := range all {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			w.loop(workerCtx)
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			unsubChanges()
			unsubRebuilds()
			for _, w := range all {
				w.stop()
			}
			cancel()
			d.wg.Wait()
		}()
		d.consume(ctx, changes, rebuilds)
	}()
	return done
}

func (d *Dispatcher) consume(ctx context.Context, changes <-chan events.ChangeEvent, rebuilds <-chan events.RebuildRequested) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-changes:
			if !ok {
				return
			}
			d.route(ev)
		case ev, ok := <-rebuilds:
			if !ok {
				return
			}
			d.logger.Info("Full rebuild requested", "reason", ev.Reason)
			d.full.trigger("")
		}
	}
}

func (d *Dispatcher) workerList() []*worker {
	out := make([]*worker, 0, len(d.workers))
	for _, name := range stage.Names() {
		out = append(out, d.workers[name])
	}
	return out
}

func (d *Dispatcher) route(ev events.ChangeEvent) {
	w, ok := d.workers[ev.Stage]
	if !ok {
		d.logger.Warn("No worker for stage", logfields.Stage(string(ev.Stage)), logfields.Path(ev.Path))
		return
	}
	d.recorder.IncWatchEvent(string(ev.Stage))
	w.trigger(ev.Path)
}

func (d *Dispatcher) stageJob(name stage.Name) func(ctx context.Context, paths []string) {
	return func(ctx context.Context, paths []string) {
		d.logger.Info("Change detected; rerunning stage", logfields.Stage(string(name)), logfields.Files(len(paths)))

		d.buildMu.RLock()
		removed := d.removeStale(ctx, name, paths)
		report, err := d.runner.RunStage(ctx, name)
		d.buildMu.RUnlock()
		if err != nil {
			d.logger.Warn("Stage rerun failed", logfields.Stage(string(name)), logfields.Error(err))
		}
		msg, ok := d.message(name, report, err)
		if removed > 0 {
			msg, ok = Message{Kind: KindReload, Stage: string(name)}, true
		}
		if ok {
			d.notify.Broadcast(msg)
		}
	}
}

// removeStale deletes the outputs of changed sources that no longer exist.
func (d *Dispatcher) removeStale(ctx context.Context, name stage.Name, paths []string) int {
	removed := 0
	for _, rel := range paths {
		dest, err := d.runner.RemoveOutput(ctx, name, rel)
		if err != nil {
			d.logger.Warn("Failed to remove stale output", logfields.Stage(string(name)), logfields.Path(rel), logfields.Error(err))
			continue
		}
		if dest != "" {
			removed++
		}
	}
	return removed
}

func (d *Dispatcher) fullJob(ctx context.Context, _ []string) {
	d.buildMu.Lock()
	_, err := d.runner.Build(ctx)
	d.buildMu.Unlock()
	if err != nil {
		d.logger.Warn("Rebuild failed", logfields.Error(err))
	}
	d.notify.Broadcast(Message{Kind: KindReload})
}

// message picks an in-place inject for styles and images when the stage
// succeeded, and a full reload otherwise. Nothing is sent when an injectable
// stage wrote nothing.
func (d *Dispatcher) message(name stage.Name, report *pipeline.Report, err error) (Message, bool) {
	reload := Message{Kind: KindReload, Stage: string(name)}
	if err != nil || report == nil || len(report.Stages) != 1 || !name.InjectsInPlace() {
		return reload, true
	}
	res := report.Stages[0]
	if !res.OK() {
		return reload, true
	}
	if len(res.Written) == 0 {
		return Message{}, false
	}
	paths := make([]string, 0, len(res.Written))
	for _, rel := range res.Written {
		paths = append(paths, d.urlPrefix+rel)
	}
	return Message{Kind: KindInject, Stage: string(name), Paths: paths}, true
}
