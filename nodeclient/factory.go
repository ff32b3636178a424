// Copyright (C) 2017 ScyllaDB

package nodeclient

import (
	"context"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/repaird/repair"
	"go.uber.org/multierr"
)

// Factory opens management connections to cluster nodes. It implements
// repair.ProxyFactory.
type Factory struct {
	config Config
	logger log.Logger
}

var _ repair.ProxyFactory = (*Factory)(nil)

// NewFactory creates a node connection factory.
func NewFactory(config Config, logger log.Logger) (*Factory, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &Factory{
		config: config,
		logger: logger,
	}, nil
}

// Connect opens a connection to a given host, it fails if the host is not
// reachable.
func (f *Factory) Connect(ctx context.Context, host string) (repair.NodeProxy, error) {
	return f.connect(ctx, host)
}

func (f *Factory) connect(ctx context.Context, host string) (*Client, error) {
	c := newClient(host, f.config, f.logger.Named("node").With("host", host))
	if err := c.ping(ctx); err != nil {
		return nil, errors.Wrapf(err, "host %s not available", host)
	}
	return c, nil
}

// ConnectAny opens a connection to the first reachable candidate host and
// registers handler for repair notifications observed on that host. The
// notifications are consumed until the returned proxy is closed.
func (f *Factory) ConnectAny(ctx context.Context, handler repair.EventHandler, hosts []string) (repair.NodeProxy, error) {
	if len(hosts) == 0 {
		return nil, errors.New("no candidate hosts")
	}

	var errs error
	for _, host := range hosts {
		c, err := f.connect(ctx, host)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		c.watcher = startWatcher(c, handler)
		return c, nil
	}

	return nil, errors.Wrap(errs, "no coordinator available")
}
