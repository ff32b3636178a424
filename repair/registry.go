// Copyright (C) 2017 ScyllaDB

package repair

import (
	"sync"

	"github.com/scylladb/repaird/uuid"
)

// runnerRegistry tracks active segment runners so that at most one runner
// operates on a segment at any time. The registry is process wide only, it
// is explicitly not a cluster wide lock.
type runnerRegistry struct {
	mu      sync.Mutex
	runners map[uuid.UUID]*SegmentRunner
}

func newRunnerRegistry() *runnerRegistry {
	return &runnerRegistry{
		runners: make(map[uuid.UUID]*SegmentRunner),
	}
}

// tryAdd registers the runner under the segment id iff the id is absent.
func (g *runnerRegistry) tryAdd(id uuid.UUID, r *SegmentRunner) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.runners[id]; ok {
		return false
	}
	g.runners[id] = r
	repairActiveRunners.Inc()
	return true
}

// remove drops the registration, it is idempotent.
func (g *runnerRegistry) remove(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.runners[id]; ok {
		delete(g.runners, id)
		repairActiveRunners.Dec()
	}
}

func (g *runnerRegistry) has(id uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.runners[id]
	return ok
}
