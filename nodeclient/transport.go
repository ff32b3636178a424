// Copyright (C) 2017 ScyllaDB

package nodeclient

import (
	"net/http"

	"github.com/scylladb/go-log"
	"github.com/scylladb/repaird/internal/timeutc"
)

// transport is an http.RoundTripper that logs requests and responses and
// invokes the parent RoundTripper.
type transport struct {
	parent http.RoundTripper
	logger log.Logger
}

func (t transport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	start := timeutc.Now()
	resp, err := t.parent.RoundTrip(r)

	if resp != nil {
		t.logger.Debug(ctx, "Response",
			"method", r.Method,
			"path", r.URL.Path,
			"status", resp.StatusCode,
			"duration", timeutc.Since(start),
		)
	} else {
		t.logger.Debug(ctx, "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}

	return resp, err
}
