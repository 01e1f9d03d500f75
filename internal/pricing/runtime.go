package pricing

import "sync/atomic"

// Runtime publishes the active Ruleset to concurrent readers. Publication
// is a single atomic pointer swap: a reader sees either the old snapshot or
// the new one in full, never a mix of the two.
//
// Decision paths must call Get once and use that snapshot for the whole
// decision instead of re-reading mid-computation.
type Runtime struct {
	current atomic.Pointer[Ruleset]
}

// NewRuntime creates a runtime holder with an initial ruleset.
func NewRuntime(initial *Ruleset) *Runtime {
	r := &Runtime{}
	r.current.Store(initial)
	return r
}

// Get returns the currently published ruleset.
func (r *Runtime) Get() *Ruleset {
	return r.current.Load()
}

// Set atomically replaces the published ruleset.
func (r *Runtime) Set(next *Ruleset) {
	r.current.Store(next)
}
