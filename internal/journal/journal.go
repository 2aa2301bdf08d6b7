package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Journal persists build events and answers history queries.
type Journal interface {
	Append(ctx context.Context, buildID, eventType string, payload []byte, metadata map[string]string) error
	Events(ctx context.Context, buildID string) ([]Event, error)
	RecentBuildIDs(ctx context.Context, limit int) ([]string, error)
	Close() error
}

// Recorder writes typed events to a Journal. A nil Journal makes every call a no-op.
type Recorder struct {
	j Journal
}

// NewRecorder wraps j.
func NewRecorder(j Journal) *Recorder { return &Recorder{j: j} }

func (r *Recorder) record(ctx context.Context, buildID, eventType string, v any) error {
	if r == nil || r.j == nil {
		return nil
	}
	payload, err := marshalPayload(buildID, eventType, v)
	if err != nil {
		return err
	}
	return r.j.Append(ctx, buildID, eventType, payload, nil)
}

func (r *Recorder) BuildStarted(ctx context.Context, buildID string, e BuildStarted) error {
	return r.record(ctx, buildID, TypeBuildStarted, e)
}

func (r *Recorder) StageCompleted(ctx context.Context, buildID string, e StageCompleted) error {
	return r.record(ctx, buildID, TypeStageCompleted, e)
}

func (r *Recorder) BuildFinished(ctx context.Context, buildID string, e BuildFinished) error {
	return r.record(ctx, buildID, TypeBuildFinished, e)
}

// BuildSummary is the read model for one build.
type BuildSummary struct {
	BuildID     string           `json:"build_id"`
	Status      string           `json:"status"` // running or the finished outcome
	Mode        string           `json:"mode,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Duration    time.Duration    `json:"duration,omitempty"`
	Failures    int              `json:"failures"`
	Error       string           `json:"error,omitempty"`
	Stages      []StageCompleted `json:"stages,omitempty"`
}

const statusRunning = "running"

// Summarize folds a build's events into a BuildSummary.
func Summarize(buildID string, events []Event) (*BuildSummary, error) {
	s := &BuildSummary{BuildID: buildID, Status: statusRunning}
	for _, e := range events {
		switch e.Type {
		case TypeBuildStarted:
			var p BuildStarted
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return nil, fmt.Errorf("decode %s: %w", e.Type, err)
			}
			s.Mode = p.Mode
			s.StartedAt = e.Timestamp
		case TypeStageCompleted:
			var p StageCompleted
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return nil, fmt.Errorf("decode %s: %w", e.Type, err)
			}
			s.Stages = append(s.Stages, p)
		case TypeBuildFinished:
			var p BuildFinished
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return nil, fmt.Errorf("decode %s: %w", e.Type, err)
			}
			ts := e.Timestamp
			s.CompletedAt = &ts
			s.Status = p.Outcome
			s.Duration = time.Duration(p.DurationMS) * time.Millisecond
			s.Failures = p.Failures
			s.Error = p.Error
		}
	}
	sort.Slice(s.Stages, func(i, j int) bool { return s.Stages[i].Stage < s.Stages[j].Stage })
	return s, nil
}

// Recent returns summaries of the newest builds, newest first.
func Recent(ctx context.Context, j Journal, limit int) ([]*BuildSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	ids, err := j.RecentBuildIDs(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*BuildSummary, 0, len(ids))
	for _, id := range ids {
		events, err := j.Events(ctx, id)
		if err != nil {
			return nil, err
		}
		s, err := Summarize(id, events)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
