// Package journal records build history in an append-only SQLite event log.
package journal

import (
	"encoding/json"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Event types written to the journal.
const (
	TypeBuildStarted   = "BuildStarted"
	TypeStageCompleted = "StageCompleted"
	TypeBuildFinished  = "BuildFinished"
)

// Event is one stored journal row.
type Event struct {
	ID        int64
	BuildID   string
	Type      string
	Timestamp time.Time
	Payload   []byte
	Metadata  map[string]string
}

// BuildStarted is recorded before the clean phase.
type BuildStarted struct {
	Mode   string   `json:"mode"`
	Stages []string `json:"stages"`
}

// StageCompleted is recorded once per stage run.
type StageCompleted struct {
	Stage      string `json:"stage"`
	Written    int    `json:"written"`
	Skipped    int    `json:"skipped"`
	CacheHits  int    `json:"cache_hits"`
	Failed     int    `json:"failed"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// BuildFinished is recorded after the index is generated, or after a fatal error.
type BuildFinished struct {
	Outcome    string `json:"outcome"` // success|partial|failed
	DurationMS int64  `json:"duration_ms"`
	Failures   int    `json:"failures"`
	Error      string `json:"error,omitempty"`
}

func marshalPayload(buildID, eventType string, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, ferrors.InternalError("failed to marshal journal payload").
			WithCause(err).
			WithContext("build_id", buildID).
			WithContext("event_type", eventType).
			Build()
	}
	return b, nil
}
