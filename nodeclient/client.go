// Copyright (C) 2017 ScyllaDB

package nodeclient

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/repaird/repair"
)

// Client provides access to the management REST API of a single Cassandra
// compatible node. It implements repair.NodeProxy.
type Client struct {
	host   string
	config Config
	client *http.Client
	logger log.Logger

	// watcher is set when the client was opened with ConnectAny and feeds
	// repair notifications to the registered handler.
	watcher *watcher
}

var _ repair.NodeProxy = (*Client)(nil)

func newClient(host string, config Config, logger log.Logger) *Client {
	t := config.Transport
	if t == nil {
		t = http.DefaultTransport
	}

	return &Client{
		host:   host,
		config: config,
		client: &http.Client{
			Transport: transport{parent: t, logger: logger},
		},
		logger: logger,
	}
}

// Host returns the address of the connected node.
func (c *Client) Host() string {
	return c.host
}

// PendingCompactions returns the node compaction backlog.
func (c *Client) PendingCompactions(ctx context.Context) (int, error) {
	var v int
	if err := c.get(ctx, "/compaction_manager/pending_tasks", nil, c.config.RequestTimeout, &v); err != nil {
		return 0, errors.Wrap(err, "pending compactions")
	}
	return v, nil
}

// IsRepairRunning tells if there are active repair commands on the node.
func (c *Client) IsRepairRunning(ctx context.Context) (bool, error) {
	var v []int32
	if err := c.get(ctx, "/storage_service/active_repair", nil, c.config.RequestTimeout, &v); err != nil {
		return false, errors.Wrap(err, "active repairs")
	}
	return len(v) > 0, nil
}

// TriggerRepair requests an asynchronous repair of the token range and
// returns the command id, 0 means there is nothing to repair.
func (c *Client) TriggerRepair(ctx context.Context, startToken, endToken int64, keyspace string, parallelism repair.Parallelism, tables []string) (int32, error) {
	q := url.Values{}
	q.Set("start_token", strconv.FormatInt(startToken, 10))
	q.Set("end_token", strconv.FormatInt(endToken, 10))
	q.Set("parallelism", parallelism.String())
	if len(tables) > 0 {
		q.Set("column_families", strings.Join(tables, ","))
	}

	var id int32
	if err := c.post(ctx, "/storage_service/repair_async/"+keyspace, q, &id); err != nil {
		return 0, errors.Wrap(err, "trigger repair")
	}
	return id, nil
}

// TokenRangeOwners returns addresses of the nodes owning the token range in
// a keyspace.
func (c *Client) TokenRangeOwners(ctx context.Context, keyspace string, startToken, endToken int64) ([]string, error) {
	q := url.Values{}
	q.Set("start_token", strconv.FormatInt(startToken, 10))
	q.Set("end_token", strconv.FormatInt(endToken, 10))

	var hosts []string
	if err := c.get(ctx, "/storage_service/range_to_endpoint/"+keyspace, q, c.config.RequestTimeout, &hosts); err != nil {
		return nil, errors.Wrap(err, "token range owners")
	}
	return hosts, nil
}

// CancelAllRepairs terminates all repairs in-flight on the node.
func (c *Client) CancelAllRepairs(ctx context.Context) error {
	if err := c.post(ctx, "/storage_service/force_terminate_repair", nil, nil); err != nil {
		return errors.Wrap(err, "cancel repairs")
	}
	return nil
}

// ping probes node reachability.
func (c *Client) ping(ctx context.Context) error {
	return c.get(ctx, "/storage_service/release_version", nil, c.config.RequestTimeout, nil)
}

// Close stops the notification watcher if any and releases idle connections.
func (c *Client) Close() error {
	if c.watcher != nil {
		c.watcher.stop()
		c.watcher = nil
	}
	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, timeout time.Duration, v interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, timeout, v)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, v interface{}) error {
	return c.do(ctx, http.MethodPost, path, query, c.config.RequestTimeout, v)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, timeout time.Duration, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := url.URL{
		Scheme:   c.config.Scheme,
		Host:     net.JoinHostPort(c.host, c.config.APIPort),
		Path:     path,
		RawQuery: query.Encode(),
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return errors.Errorf("unexpected status %d", resp.StatusCode)
	}
	if v == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
