// Copyright (C) 2017 ScyllaDB

package repair

import (
	"fmt"
	"time"

	"github.com/scylladb/repaird/uuid"
)

// SegmentState specifies the repair state of a segment.
type SegmentState string

// SegmentState enumeration.
const (
	SegmentStateNotStarted SegmentState = "NOT_STARTED"
	SegmentStateRunning    SegmentState = "RUNNING"
	SegmentStateDone       SegmentState = "DONE"
)

func (s SegmentState) String() string {
	return string(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s SegmentState) MarshalText() (text []byte, err error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SegmentState) UnmarshalText(text []byte) error {
	switch SegmentState(text) {
	case SegmentStateNotStarted:
		*s = SegmentStateNotStarted
	case SegmentStateRunning:
		*s = SegmentStateRunning
	case SegmentStateDone:
		*s = SegmentStateDone
	default:
		return fmt.Errorf("unrecognized SegmentState %q", text)
	}
	return nil
}

// CommandStatus specifies the status of a repair command reported by a node.
type CommandStatus string

// CommandStatus enumeration, FINISHED is always reported last regardless of
// session results.
const (
	CommandStarted        CommandStatus = "STARTED"
	CommandSessionSuccess CommandStatus = "SESSION_SUCCESS"
	CommandSessionFailed  CommandStatus = "SESSION_FAILED"
	CommandFinished       CommandStatus = "FINISHED"
)

func (s CommandStatus) String() string {
	return string(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s CommandStatus) MarshalText() (text []byte, err error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *CommandStatus) UnmarshalText(text []byte) error {
	switch CommandStatus(text) {
	case CommandStarted:
		*s = CommandStarted
	case CommandSessionSuccess:
		*s = CommandSessionSuccess
	case CommandSessionFailed:
		*s = CommandSessionFailed
	case CommandFinished:
		*s = CommandFinished
	default:
		return fmt.Errorf("unrecognized CommandStatus %q", text)
	}
	return nil
}

// Parallelism specifies how repair sessions of a segment are coordinated
// across replicas.
type Parallelism string

// Parallelism enumeration.
const (
	ParallelismSequential Parallelism = "sequential"
	ParallelismParallel   Parallelism = "parallel"
	ParallelismDCParallel Parallelism = "dc_parallel"
)

func (p Parallelism) String() string {
	return string(p)
}

// MarshalText implements encoding.TextMarshaler.
func (p Parallelism) MarshalText() (text []byte, err error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Parallelism) UnmarshalText(text []byte) error {
	switch Parallelism(text) {
	case ParallelismSequential:
		*p = ParallelismSequential
	case ParallelismParallel:
		*p = ParallelismParallel
	case ParallelismDCParallel:
		*p = ParallelismDCParallel
	default:
		return fmt.Errorf("unrecognized Parallelism %q", text)
	}
	return nil
}

// Segment is a token range unit of repair work within a run. Segments are
// owned by storage, the service reads and updates them but never creates
// nor deletes them.
type Segment struct {
	ID     uuid.UUID
	RunID  uuid.UUID
	UnitID uuid.UUID

	StartToken int64
	EndToken   int64

	State           SegmentState
	CoordinatorHost string
	CommandID       int32
	StartTime       time.Time
	EndTime         time.Time
	FailCount       int
}

// Run is a collection of segments representing one full repair of a keyspace.
// The service only appends human readable events to it as an audit trail.
type Run struct {
	ID        uuid.UUID
	ClusterID uuid.UUID
	LastEvent string
	StartTime time.Time
}

// Unit specifies what shall be repaired, it is shared by all segments of
// a run.
type Unit struct {
	ID          uuid.UUID
	Keyspace    string `db:"keyspace_name"`
	Tables      []string
	Parallelism Parallelism
}
