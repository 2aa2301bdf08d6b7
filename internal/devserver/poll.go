package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/sitebuilder/internal/devserver/events"
	"git.home.luguber.info/inful/sitebuilder/internal/incremental"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/stage"
)

// Poller is the change-detection fallback for filesystems without reliable
// notifications. A gocron duration job fingerprints each stage's owned files
// and publishes a ChangeEvent for every stage whose fingerprint moved.
type Poller struct {
	scheduler  gocron.Scheduler
	sourceRoot string
	layout     *stage.Layout
	bus        *events.Bus
	logger     *slog.Logger

	mu         sync.Mutex
	signatures map[stage.Name]string
}

// NewPoller creates a poller and takes the baseline fingerprints.
func NewPoller(sourceRoot string, layout *stage.Layout, bus *events.Bus, logger *slog.Logger) (*Poller, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	p := &Poller{
		scheduler:  s,
		sourceRoot: sourceRoot,
		layout:     layout,
		bus:        bus,
		logger:     logger,
		signatures: map[stage.Name]string{},
	}
	for _, name := range stage.Names() {
		p.signatures[name] = p.signature(name)
	}
	return p, nil
}

// Start schedules polling every interval.
func (p *Poller) Start(ctx context.Context, interval time.Duration) error {
	_, err := p.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func(ctx context.Context) { p.Poll(ctx) }),
		gocron.WithContext(ctx),
		gocron.WithName("source-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create poll job: %w", err)
	}
	p.scheduler.Start()
	p.logger.Info("Polling for changes", logfields.Duration(interval))
	return nil
}

// Stop shuts the scheduler down.
func (p *Poller) Stop() error {
	return p.scheduler.Shutdown()
}

// Poll compares fingerprints once and publishes changes. It returns the
// stages that changed.
func (p *Poller) Poll(ctx context.Context) []stage.Name {
	var changed []stage.Name
	p.mu.Lock()
	for _, name := range stage.Names() {
		sig := p.signature(name)
		if sig != p.signatures[name] {
			p.signatures[name] = sig
			changed = append(changed, name)
		}
	}
	p.mu.Unlock()

	for _, name := range changed {
		err := p.bus.Publish(ctx, events.ChangeEvent{Stage: name, Origin: events.OriginPoll, At: time.Now()})
		if err != nil && ctx.Err() == nil {
			p.logger.Warn("Failed to publish poll change", logfields.Stage(string(name)), logfields.Error(err))
		}
	}
	return changed
}

func (p *Poller) signature(name stage.Name) string {
	files, err := p.layout.Files(name, p.sourceRoot)
	if err != nil {
		p.logger.Warn("Poll walk failed", logfields.Stage(string(name)), logfields.Error(err))
		return ""
	}
	stats := make([]incremental.FileStat, 0, len(files))
	for _, rel := range files {
		fi, err := os.Stat(filepath.Join(p.sourceRoot, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		stats = append(stats, incremental.FileStat{Path: rel, Size: fi.Size(), ModTime: fi.ModTime()})
	}
	return incremental.TreeSignature(stats)
}
