// Copyright (C) 2017 ScyllaDB

package repair

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/repaird/uuid"
)

// Service coordinates segment repairs. It owns the registry of active
// runners, deciding which segments to repair and when is left to the
// calling scheduler.
type Service struct {
	config  Config
	storage Storage
	factory ProxyFactory
	logger  log.Logger

	registry *runnerRegistry
}

// NewService creates a repair Service.
func NewService(config Config, storage Storage, factory ProxyFactory, logger log.Logger) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if storage == nil {
		return nil, errors.New("invalid storage")
	}
	if factory == nil {
		return nil, errors.New("invalid proxy factory")
	}

	return &Service{
		config:   config,
		storage:  storage,
		factory:  factory,
		logger:   logger,
		registry: newRunnerRegistry(),
	}, nil
}

// RepairSegment executes a single repair attempt of the segment using one of
// the candidate coordinator hosts, blocking until the repair concludes, is
// postponed or times out. It returns the delay the caller should pause for
// before submitting the next segment.
func (s *Service) RepairSegment(ctx context.Context, segmentID uuid.UUID, candidates []string) (time.Duration, error) {
	return s.newSegmentRunner(segmentID, candidates).Run(ctx)
}

func (s *Service) newSegmentRunner(segmentID uuid.UUID, candidates []string) *SegmentRunner {
	return &SegmentRunner{
		segmentID:  segmentID,
		candidates: candidates,
		timeout:    s.config.SegmentTimeout,
		intensity:  s.config.Intensity,

		storage:  s.storage,
		factory:  s.factory,
		registry: s.registry,
		logger:   s.logger.Named("segment").With("segment_id", segmentID),

		done: make(chan struct{}),
	}
}
