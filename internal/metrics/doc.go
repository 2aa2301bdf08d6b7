// Package metrics provides build and dev-server metrics.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check:
//
//	orch := pipeline.New(cfg, stages, pipeline.WithRecorder(metrics.NoopRecorder{}))
//
// The develop command swaps in a PrometheusRecorder and serves its registry on
// the control port via HTTPHandler.
package metrics
