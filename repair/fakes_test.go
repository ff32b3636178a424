// Copyright (C) 2017 ScyllaDB

package repair

import (
	"context"
	"sync"

	"github.com/scylladb/repaird"
	"github.com/scylladb/repaird/uuid"
)

// memStorage is an in-memory Storage for tests, records are copied on read
// and write so that concurrent mutation resembles independent storage rows.
type memStorage struct {
	mu       sync.Mutex
	segments map[uuid.UUID]Segment
	runs     map[uuid.UUID]Run
	units    map[uuid.UUID]Unit
}

var _ Storage = (*memStorage)(nil)

func newMemStorage() *memStorage {
	return &memStorage{
		segments: make(map[uuid.UUID]Segment),
		runs:     make(map[uuid.UUID]Run),
		units:    make(map[uuid.UUID]Unit),
	}
}

func (s *memStorage) GetSegment(_ context.Context, id uuid.UUID) (*Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.segments[id]
	if !ok {
		return nil, repaird.ErrNotFound
	}
	return &v, nil
}

func (s *memStorage) UpdateSegment(_ context.Context, v *Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.segments[v.ID] = *v
	return nil
}

func (s *memStorage) GetRun(_ context.Context, id uuid.UUID) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.runs[id]
	if !ok {
		return nil, repaird.ErrNotFound
	}
	return &v, nil
}

func (s *memStorage) UpdateRun(_ context.Context, v *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[v.ID] = *v
	return nil
}

func (s *memStorage) GetUnit(_ context.Context, id uuid.UUID) (*Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.units[id]
	if !ok {
		return nil, repaird.ErrNotFound
	}
	return &v, nil
}

func (s *memStorage) segment(id uuid.UUID) Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.segments[id]
}

func (s *memStorage) run(id uuid.UUID) Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runs[id]
}

// fakeProxy is a scripted NodeProxy.
type fakeProxy struct {
	mu            sync.Mutex
	host          string
	owners        []string
	pending       int
	repairRunning bool
	commandID     int32
	triggerErr    error

	// triggered receives the command id once TriggerRepair was called, it
	// lets tests deliver notifications only after the repair was requested.
	triggered    chan int32
	triggerCalls int
	cancelCalls  int
}

var _ NodeProxy = (*fakeProxy)(nil)

func newFakeProxy(host string) *fakeProxy {
	return &fakeProxy{
		host:      host,
		triggered: make(chan int32, 1),
	}
}

func (p *fakeProxy) Host() string {
	return p.host
}

func (p *fakeProxy) TriggerRepair(_ context.Context, _, _ int64, _ string, _ Parallelism, _ []string) (int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.triggerCalls++
	if p.triggerErr != nil {
		return 0, p.triggerErr
	}
	select {
	case p.triggered <- p.commandID:
	default:
	}
	return p.commandID, nil
}

func (p *fakeProxy) TokenRangeOwners(_ context.Context, _ string, _, _ int64) ([]string, error) {
	return p.owners, nil
}

func (p *fakeProxy) PendingCompactions(_ context.Context) (int, error) {
	return p.pending, nil
}

func (p *fakeProxy) IsRepairRunning(_ context.Context) (bool, error) {
	return p.repairRunning, nil
}

func (p *fakeProxy) CancelAllRepairs(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelCalls++
	return nil
}

func (p *fakeProxy) Close() error {
	return nil
}

func (p *fakeProxy) cancelCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cancelCalls
}

func (p *fakeProxy) triggerCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.triggerCalls
}

// fakeFactory is a scripted ProxyFactory, it records the order hosts were
// connected to and captures the handler registered with ConnectAny.
type fakeFactory struct {
	mu            sync.Mutex
	coordinator   *fakeProxy
	hosts         map[string]*fakeProxy
	connectErr    map[string]error
	connectAnyErr error

	handler   EventHandler
	connected []string
}

var _ ProxyFactory = (*fakeFactory)(nil)

func newFakeFactory(coordinator *fakeProxy) *fakeFactory {
	return &fakeFactory{
		coordinator: coordinator,
		hosts:       make(map[string]*fakeProxy),
		connectErr:  make(map[string]error),
	}
}

func (f *fakeFactory) Connect(_ context.Context, host string) (NodeProxy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.connectErr[host]; err != nil {
		return nil, err
	}
	f.connected = append(f.connected, host)

	if p, ok := f.hosts[host]; ok {
		return p, nil
	}
	return newFakeProxy(host), nil
}

func (f *fakeFactory) ConnectAny(_ context.Context, handler EventHandler, hosts []string) (NodeProxy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.connectAnyErr != nil {
		return nil, f.connectAnyErr
	}
	f.handler = handler
	return f.coordinator, nil
}

func (f *fakeFactory) eventHandler() EventHandler {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.handler
}

func (f *fakeFactory) connectedHosts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := make([]string, len(f.connected))
	copy(v, f.connected)
	return v
}
