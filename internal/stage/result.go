package stage

import (
	"sort"
	"sync"
	"time"
)

// FileError is a per-file failure. Siblings of the failing file still run.
type FileError struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e FileError) Unwrap() error { return e.Err }

// Result summarizes one stage run.
type Result struct {
	Stage     Name          `json:"stage"`
	Written   []string      `json:"written,omitempty"` // dist-relative, slash-separated
	Skipped   int           `json:"skipped"`
	CacheHits int           `json:"cache_hits"`
	Failures  []FileError   `json:"failures,omitempty"`
	Duration  time.Duration `json:"duration"`
	// Err is the stage-level error, if any. It is also returned from Run.
	Err error `json:"-"`

	mu sync.Mutex
}

func newResult(name Name) *Result {
	return &Result{Stage: name}
}

func (r *Result) wrote(rel string) {
	r.mu.Lock()
	r.Written = append(r.Written, rel)
	r.mu.Unlock()
}

func (r *Result) skip() {
	r.mu.Lock()
	r.Skipped++
	r.mu.Unlock()
}

func (r *Result) cacheHit() {
	r.mu.Lock()
	r.CacheHits++
	r.mu.Unlock()
}

func (r *Result) fail(rel string, err error) {
	r.mu.Lock()
	r.Failures = append(r.Failures, FileError{Path: rel, Err: err})
	r.mu.Unlock()
}

// finish sorts collected paths so results are deterministic regardless of worker order.
func (r *Result) finish(start time.Time, err error) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Strings(r.Written)
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].Path < r.Failures[j].Path })
	r.Duration = time.Since(start)
	r.Err = err
	return r, err
}

// OK reports whether the stage ran without a stage error or file failures.
func (r *Result) OK() bool {
	return r.Err == nil && len(r.Failures) == 0
}
