// Copyright (C) 2017 ScyllaDB

package nodeclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/scylladb/go-log"
	"github.com/scylladb/repaird/repair"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()

	s := httptest.NewServer(h)
	t.Cleanup(s.Close)

	host, port, err := net.SplitHostPort(s.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	config := DefaultConfig()
	config.APIPort = port
	config.RequestTimeout = 5 * time.Second
	config.PollLongWait = 50 * time.Millisecond

	c := newClient(host, config, log.NewDevelopment())
	t.Cleanup(func() {
		c.Close()
	})
	return c
}

func TestClientPendingCompactions(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/compaction_manager/pending_tasks" {
			t.Error("path", r.URL.Path)
		}
		fmt.Fprint(w, "5")
	}))

	v, err := c.PendingCompactions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v != 5 {
		t.Fatal("got", v)
	}
}

func TestClientIsRepairRunning(t *testing.T) {
	t.Parallel()

	table := []struct {
		Name     string
		Response string
		Running  bool
	}{
		{
			Name:     "active commands",
			Response: "[1, 2]",
			Running:  true,
		},
		{
			Name:     "idle",
			Response: "[]",
			Running:  false,
		},
	}

	for i, test := range table {
		i, test := i, test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/storage_service/active_repair" {
					t.Error("path", r.URL.Path)
				}
				fmt.Fprint(w, test.Response)
			}))

			v, err := c.IsRepairRunning(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if v != test.Running {
				t.Fatal(i, "got", v)
			}
		})
	}
}

func TestClientTriggerRepair(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Error("method", r.Method)
		}
		if r.URL.Path != "/storage_service/repair_async/test_keyspace" {
			t.Error("path", r.URL.Path)
		}
		q := r.URL.Query()
		if s := q.Get("start_token"); s != "100" {
			t.Error("start_token", s)
		}
		if s := q.Get("end_token"); s != "200" {
			t.Error("end_token", s)
		}
		if s := q.Get("parallelism"); s != "sequential" {
			t.Error("parallelism", s)
		}
		if s := q.Get("column_families"); s != "test_table_0,test_table_1" {
			t.Error("column_families", s)
		}
		fmt.Fprint(w, "42")
	}))

	id, err := c.TriggerRepair(context.Background(), 100, 200, "test_keyspace",
		repair.ParallelismSequential, []string{"test_table_0", "test_table_1"})
	if err != nil {
		t.Fatal(err)
	}
	if id != 42 {
		t.Fatal("command id", id)
	}
}

func TestClientTokenRangeOwners(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage_service/range_to_endpoint/test_keyspace" {
			t.Error("path", r.URL.Path)
		}
		q := r.URL.Query()
		if s := q.Get("start_token"); s != "100" {
			t.Error("start_token", s)
		}
		if s := q.Get("end_token"); s != "200" {
			t.Error("end_token", s)
		}
		fmt.Fprint(w, `["192.168.100.11", "192.168.100.12"]`)
	}))

	hosts, err := c.TokenRangeOwners(context.Background(), "test_keyspace", 100, 200)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(hosts, []string{"192.168.100.11", "192.168.100.12"}); diff != "" {
		t.Fatal("diff", diff)
	}
}

func TestClientCancelAllRepairs(t *testing.T) {
	t.Parallel()

	called := make(chan struct{}, 1)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Error("method", r.Method)
		}
		if r.URL.Path != "/storage_service/force_terminate_repair" {
			t.Error("path", r.URL.Path)
		}
		called <- struct{}{}
	}))

	if err := c.CancelAllRepairs(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case <-called:
	default:
		t.Fatal("request not issued")
	}
}

func TestClientStatusError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))

	if _, err := c.PendingCompactions(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
