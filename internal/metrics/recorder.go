package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning" // per-file failures only
	ResultFatal   ResultLabel = "fatal"   // stage-level error
)

// Recorder defines observability hooks for builds, stages and the dev server.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome string) // success|partial|failed
	AddStageFiles(stage string, written, skipped, failed int)
	AddCacheHits(stage string, n int)
	IncWatchEvent(stage string)
	IncLiveReloadBroadcast(kind string)
	SetLiveReloadClients(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncBuildOutcome(string)                     {}
func (NoopRecorder) AddStageFiles(string, int, int, int)        {}
func (NoopRecorder) AddCacheHits(string, int)                   {}
func (NoopRecorder) IncWatchEvent(string)                       {}
func (NoopRecorder) IncLiveReloadBroadcast(string)              {}
func (NoopRecorder) SetLiveReloadClients(int)                   {}
