// Copyright (C) 2017 ScyllaDB

package nodeclient

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/scylladb/go-log"
	"github.com/scylladb/repaird/repair"
	"go.uber.org/atomic"
)

// repairEvent is a single repair progress notification reported by a node.
type repairEvent struct {
	Seq       int64                `json:"seq"`
	CommandID int32                `json:"command_id"`
	Status    repair.CommandStatus `json:"status"`
	Message   string               `json:"message"`
}

// watcher long-polls the node repair event feed and dispatches every
// notification to the registered handler. Filtering events by command id is
// up to the handler, the feed carries notifications of all commands running
// on the node.
type watcher struct {
	client  *Client
	handler repair.EventHandler
	logger  log.Logger
	seq     atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

func startWatcher(c *Client, handler repair.EventHandler) *watcher {
	ctx, cancel := context.WithCancel(context.Background())

	w := &watcher{
		client:  c,
		handler: handler,
		logger:  c.logger.Named("events"),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go w.loop(ctx)

	return w
}

func (w *watcher) loop(ctx context.Context) {
	defer close(w.done)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0

	for {
		events, err := w.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d := b.NextBackOff()
			w.logger.Info(ctx, "Failed to poll repair events",
				"error", err,
				"wait", d,
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
			continue
		}
		b.Reset()

		for _, e := range events {
			w.handler.HandleRepairEvent(ctx, e.CommandID, e.Status, e.Message)
			w.seq.Store(e.Seq)
		}
	}
}

func (w *watcher) poll(ctx context.Context) ([]repairEvent, error) {
	q := url.Values{}
	q.Set("since", strconv.FormatInt(w.seq.Load(), 10))
	q.Set("wait_seconds", strconv.Itoa(int(w.client.config.PollLongWait.Seconds())))

	var events []repairEvent
	timeout := w.client.config.PollLongWait + w.client.config.RequestTimeout
	if err := w.client.get(ctx, "/storage_service/repair_events", q, timeout, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// stop terminates the poll loop and waits for it to exit.
func (w *watcher) stop() {
	w.cancel()
	<-w.done
}
