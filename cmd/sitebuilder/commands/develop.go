package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/devserver"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// DevelopCmd implements the 'develop' command.
type DevelopCmd struct {
	Port         int           `help:"Port for the project server (default 3000)"`
	ControlPort  int           `name:"control-port" help:"Port for live reload, status and metrics (default 3001)"`
	Poll         time.Duration `help:"Also poll sources at this interval (for filesystems without reliable change events)"`
	NoLiveReload bool          `name:"no-live-reload" help:"Do not inject the live reload client or notify browsers"`
}

func (d *DevelopCmd) Run(g *Global, root *CLI) error {
	opts := []config.Option{config.WithPorts(d.Port, d.ControlPort)}
	if d.Poll > 0 {
		opts = append(opts, config.WithPoll(d.Poll))
	}
	if d.NoLiveReload {
		opts = append(opts, config.WithLiveReload(false))
	}
	cfg, err := root.loadConfig(opts...)
	if err != nil {
		return err
	}
	log := loggerFrom(g)

	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder(reg)

	env, err := newBuildEnv(cfg, log, rec)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return devserver.New(devserver.Options{
		Config:       cfg,
		Orchestrator: env.orch,
		Registry:     reg,
		Recorder:     rec,
		Logger:       log,
	}).Run(ctx)
}
