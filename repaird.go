// Copyright (C) 2017 ScyllaDB

package repaird

import "errors"

// Common errors
var (
	// ErrNotFound is returned by storage lookups when a requested record
	// does not exist, as opposed to an I/O failure.
	ErrNotFound = errors.New("not found")
)
