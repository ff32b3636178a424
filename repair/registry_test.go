// Copyright (C) 2017 ScyllaDB

package repair

import (
	"sync"
	"testing"

	"github.com/scylladb/repaird/uuid"
	"go.uber.org/atomic"
)

func TestRunnerRegistryTryAdd(t *testing.T) {
	t.Parallel()

	g := newRunnerRegistry()
	id := uuid.MustRandom()

	var (
		wins atomic.Int64
		wg   sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.tryAdd(id, &SegmentRunner{}) {
				wins.Inc()
			}
		}()
	}
	wg.Wait()

	if n := wins.Load(); n != 1 {
		t.Fatal("winners", n)
	}
	if !g.has(id) {
		t.Fatal("registration lost")
	}
	g.remove(id)
}

func TestRunnerRegistryDistinctSegments(t *testing.T) {
	t.Parallel()

	g := newRunnerRegistry()
	id0 := uuid.MustRandom()
	id1 := uuid.MustRandom()

	if !g.tryAdd(id0, &SegmentRunner{}) {
		t.Fatal("add", id0)
	}
	if !g.tryAdd(id1, &SegmentRunner{}) {
		t.Fatal("add", id1)
	}
	g.remove(id0)
	g.remove(id1)
}

func TestRunnerRegistryRemoveIdempotent(t *testing.T) {
	t.Parallel()

	g := newRunnerRegistry()
	id := uuid.MustRandom()

	g.remove(id)

	if !g.tryAdd(id, &SegmentRunner{}) {
		t.Fatal("add failed")
	}
	g.remove(id)
	g.remove(id)

	if g.has(id) {
		t.Fatal("still registered")
	}
	if !g.tryAdd(id, &SegmentRunner{}) {
		t.Fatal("cannot re-add after remove")
	}
	g.remove(id)
}
