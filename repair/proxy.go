// Copyright (C) 2017 ScyllaDB

package repair

import "context"

// NodeProxy is a management connection to a single node. Implementations
// must be safe to close on every exit path, Close releases all resources
// including the notification intake if the proxy was opened with ConnectAny.
type NodeProxy interface {
	// Host returns the address of the connected node.
	Host() string
	// TriggerRepair requests an asynchronous repair of the token range and
	// returns the command id correlating future notifications. Command id 0
	// means there is nothing to repair, for instance the range is empty or
	// the keyspace is not replicated.
	TriggerRepair(ctx context.Context, startToken, endToken int64, keyspace string, parallelism Parallelism, tables []string) (int32, error)
	// TokenRangeOwners returns addresses of the nodes owning the token range
	// in a keyspace.
	TokenRangeOwners(ctx context.Context, keyspace string, startToken, endToken int64) ([]string, error)
	// PendingCompactions returns the node compaction backlog.
	PendingCompactions(ctx context.Context) (int, error)
	// IsRepairRunning tells if a repair is already running on the node.
	IsRepairRunning(ctx context.Context) (bool, error)
	// CancelAllRepairs terminates all repairs in-flight on the node.
	CancelAllRepairs(ctx context.Context) error
	Close() error
}

// EventHandler consumes asynchronous repair progress notifications. The node
// management layer invokes it for every notification observed on the
// connected node, handlers are expected to discard notifications of commands
// they do not own.
type EventHandler interface {
	HandleRepairEvent(ctx context.Context, commandID int32, status CommandStatus, message string)
}

// ProxyFactory opens management connections to cluster nodes.
type ProxyFactory interface {
	// Connect opens a connection to a given host, it fails if the host is
	// not reachable.
	Connect(ctx context.Context, host string) (NodeProxy, error)
	// ConnectAny opens a connection to the first reachable host of the
	// candidate set and registers handler for repair notifications observed
	// on that host. It fails if no candidate is reachable.
	ConnectAny(ctx context.Context, handler EventHandler, hosts []string) (NodeProxy, error)
}
