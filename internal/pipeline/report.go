package pipeline

import (
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/stage"
)

// Outcome is the overall result of a build.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial" // some files or stages failed
	OutcomeFailed  Outcome = "failed"  // a fatal phase error aborted the build
)

// Report summarizes one build or single-stage run.
type Report struct {
	BuildID   string          `json:"build_id"`
	Mode      string          `json:"mode"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Outcome   Outcome         `json:"outcome"`
	Stages    []*stage.Result `json:"stages"`
	Pruned    int             `json:"pruned_dirs"`
	Pages     int             `json:"index_pages"`
	Error     string          `json:"error,omitempty"`

	err error
}

// Err returns the fatal error that aborted the build, if any.
func (r *Report) Err() error { return r.err }

// Failures counts per-file failures plus stage-level errors.
func (r *Report) Failures() int {
	n := 0
	for _, res := range r.Stages {
		n += len(res.Failures)
		if res.Err != nil {
			n++
		}
	}
	return n
}

func (r *Report) settle(start time.Time, err error) {
	r.Duration = time.Since(start)
	r.err = err
	switch {
	case err != nil:
		r.Outcome = OutcomeFailed
		r.Error = err.Error()
	case r.Failures() > 0:
		r.Outcome = OutcomePartial
	default:
		r.Outcome = OutcomeSuccess
	}
}
