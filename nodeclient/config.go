// Copyright (C) 2017 ScyllaDB

package nodeclient

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Config specifies the node management client configuration.
type Config struct {
	// Scheme and APIPort locate the management API on a node.
	Scheme  string `yaml:"scheme"`
	APIPort string `yaml:"api_port"`
	// RequestTimeout bounds a single API call.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// PollLongWait is how long the node may hold an event poll request
	// before responding with an empty batch.
	PollLongWait time.Duration `yaml:"poll_long_wait"`

	// Transport allows for overriding the HTTP transport, used in tests.
	Transport http.RoundTripper `yaml:"-"`
}

// DefaultConfig returns a Config initialized with default values.
func DefaultConfig() Config {
	return Config{
		Scheme:         "http",
		APIPort:        "10000",
		RequestTimeout: 30 * time.Second,
		PollLongWait:   10 * time.Second,
	}
}

// Validate checks if all the fields are properly set.
func (c Config) Validate() (err error) {
	if c.Scheme == "" {
		err = multierr.Append(err, errors.New("missing scheme"))
	}
	if c.APIPort == "" {
		err = multierr.Append(err, errors.New("missing api_port"))
	}
	if c.RequestTimeout <= 0 {
		err = multierr.Append(err, errors.New("invalid request_timeout, must be > 0"))
	}
	if c.PollLongWait <= 0 {
		err = multierr.Append(err, errors.New("invalid poll_long_wait, must be > 0"))
	}

	return
}
