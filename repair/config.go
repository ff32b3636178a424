// Copyright (C) 2017 ScyllaDB

package repair

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Config specifies the repair service configuration.
type Config struct {
	// SegmentTimeout bounds how long a runner waits for a triggered repair
	// to report FINISHED before the segment is considered stuck.
	SegmentTimeout time.Duration `yaml:"segment_timeout"`
	// Intensity controls the fraction of time spent repairing, 1 means
	// back-to-back segments, values close to 0 mean proportionally long
	// idle gaps.
	Intensity float64 `yaml:"intensity"`
}

// DefaultConfig returns a Config initialized with default values.
func DefaultConfig() Config {
	return Config{
		SegmentTimeout: 30 * time.Minute,
		Intensity:      1,
	}
}

// Validate checks if all the fields are properly set.
func (c Config) Validate() (err error) {
	if c.SegmentTimeout <= 0 {
		err = multierr.Append(err, errors.New("invalid segment_timeout, must be > 0"))
	}
	if c.Intensity <= 0 || c.Intensity > 1 {
		err = multierr.Append(err, errors.New("invalid intensity, must be in (0, 1]"))
	}

	return
}
