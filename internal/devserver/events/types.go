package events

import (
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/stage"
)

// Origin identifies what produced a change event.
type Origin string

const (
	OriginWatch Origin = "watch"
	OriginPoll  Origin = "poll"
)

// ChangeEvent reports that a source file owned by Stage changed.
// Path is source-relative and slash-separated; it is empty for poll events.
type ChangeEvent struct {
	Stage  stage.Name
	Path   string
	Op     string
	Origin Origin
	At     time.Time
}

// RebuildRequested asks for every stage to rerun.
type RebuildRequested struct {
	Reason string
	At     time.Time
}
