package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitebuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration   *prom.HistogramVec
	buildDuration   prom.Histogram
	stageResults    *prom.CounterVec
	buildOutcome    *prom.CounterVec
	stageFiles      *prom.CounterVec
	cacheHits       *prom.CounterVec
	watchEvents     *prom.CounterVec
	reloadBroadcast *prom.CounterVec
	reloadClients   prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual stage runs",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		stageFiles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_files_total",
			Help:      "Files handled by stages, by disposition",
		}, []string{"stage", "disposition"}),
		cacheHits: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Optimizer cache hits",
		}, []string{"stage"}),
		watchEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "File change events routed to stages",
		}, []string{"stage"}),
		reloadBroadcast: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "livereload_broadcasts_total",
			Help:      "Live reload notifications sent, by kind",
		}, []string{"kind"}),
		reloadClients: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "livereload_clients",
			Help:      "Connected live reload clients",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome,
		pr.stageFiles, pr.cacheHits, pr.watchEvents, pr.reloadBroadcast, pr.reloadClients)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) AddStageFiles(stage string, written, skipped, failed int) {
	p.stageFiles.WithLabelValues(stage, "written").Add(float64(written))
	p.stageFiles.WithLabelValues(stage, "skipped").Add(float64(skipped))
	p.stageFiles.WithLabelValues(stage, "failed").Add(float64(failed))
}

func (p *PrometheusRecorder) AddCacheHits(stage string, n int) {
	p.cacheHits.WithLabelValues(stage).Add(float64(n))
}

func (p *PrometheusRecorder) IncWatchEvent(stage string) {
	p.watchEvents.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) IncLiveReloadBroadcast(kind string) {
	p.reloadBroadcast.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) SetLiveReloadClients(n int) {
	p.reloadClients.Set(float64(n))
}
