// Copyright (C) 2017 ScyllaDB

package repair

import "errors"

// Repair errors
var (
	// ErrSegmentOwned is returned when a runner for the segment is already
	// registered in this process. It signals a contract violation, the
	// failing attempt performs no state changes.
	ErrSegmentOwned = errors.New("segment owned by another runner")
)
