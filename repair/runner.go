// Copyright (C) 2017 ScyllaDB

package repair

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/scylladb/go-log"
	"github.com/scylladb/go-set/strset"
	"github.com/scylladb/repaird/internal/timeutc"
	"github.com/scylladb/repaird/uuid"
)

// maxPendingCompactions is the compaction backlog above which a node is not
// admitted as a repair participant.
const maxPendingCompactions = 20

// SegmentRunner drives a single repair attempt of one segment to completion.
// It triggers the repair on a coordinator node, consumes asynchronous
// progress notifications and reconciles the final segment state. A runner
// is single use, create a new one for every attempt.
type SegmentRunner struct {
	segmentID  uuid.UUID
	candidates []string
	timeout    time.Duration
	intensity  float64

	storage  Storage
	factory  ProxyFactory
	registry *runnerRegistry
	logger   log.Logger

	// mu is the runner monitor. It guards command id assignment and segment
	// state mutation so that HandleRepairEvent never races with the trigger
	// sequence or with the post-wake reconciliation.
	mu        sync.Mutex
	commandID int32
	done      chan struct{}
	closeOnce sync.Once
}

var _ EventHandler = (*SegmentRunner)(nil)

// Run executes the repair attempt and returns the intensity based delay the
// caller should pause for before issuing the next segment. A postponed
// attempt is not an error, the segment fail count records it for the
// scheduler. ErrSegmentOwned is returned if a runner for the segment is
// already active in this process.
func (r *SegmentRunner) Run(ctx context.Context) (time.Duration, error) {
	if err := r.repair(ctx); err != nil {
		return 0, err
	}
	return r.delay(ctx), nil
}

func (r *SegmentRunner) repair(ctx context.Context) error {
	segment, err := r.storage.GetSegment(ctx, r.segmentID)
	if err != nil {
		return errors.Wrap(err, "get segment")
	}
	run, err := r.storage.GetRun(ctx, segment.RunID)
	if err != nil {
		return errors.Wrap(err, "get run")
	}

	if !r.registry.tryAdd(r.segmentID, r) {
		return errors.Wrapf(ErrSegmentOwned, "segment %s", r.segmentID)
	}
	// Past this point the registry slot must be released on every exit
	// path, postpone releases it itself.

	coordinator, err := r.factory.ConnectAny(ctx, r, r.candidates)
	if err != nil {
		r.logger.Info(ctx, "Failed to connect to a coordinator node",
			"candidates", r.candidates,
			"error", err,
		)
		r.updateRunEvent(ctx, run, "Postponed due to inability to connect any coordinator")
		r.postpone(ctx, segment)
		return nil
	}
	defer coordinator.Close()

	unit, err := r.storage.GetUnit(ctx, segment.UnitID)
	if err != nil {
		r.registry.remove(r.segmentID)
		return errors.Wrap(err, "get unit")
	}

	if !r.canRepair(ctx, segment, unit.Keyspace, coordinator, run) {
		r.postpone(ctx, segment)
		return nil
	}

	r.mu.Lock()
	commandID, err := coordinator.TriggerRepair(ctx, segment.StartToken, segment.EndToken,
		unit.Keyspace, unit.Parallelism, unit.Tables)
	if err != nil {
		r.mu.Unlock()
		r.logger.Info(ctx, "Failed to trigger repair",
			"host", coordinator.Host(),
			"error", err,
		)
		r.updateRunEvent(ctx, run, fmt.Sprintf("Postponed due to inability to trigger repair via host %s", coordinator.Host()))
		r.postpone(ctx, segment)
		return nil
	}

	if commandID == 0 {
		// The coordinator reports there is nothing to repair, the range is
		// empty or the keyspace replication factor is below two.
		r.logger.Info(ctx, "Nothing to repair", "keyspace", unit.Keyspace)
		segment.State = SegmentStateDone
		segment.CoordinatorHost = coordinator.Host()
		r.updateSegmentLogError(ctx, segment)
		r.registry.remove(r.segmentID)
		r.mu.Unlock()
		return nil
	}

	r.logger.Debug(ctx, "Triggered repair", "command_id", commandID)
	r.commandID = commandID
	segment.CoordinatorHost = coordinator.Host()
	segment.CommandID = commandID
	r.updateSegmentLogError(ctx, segment)
	r.updateRunEvent(ctx, run, fmt.Sprintf("Triggered repair of segment %s via host %s", segment.ID, coordinator.Host()))
	r.logger.Info(ctx, "Repair started, waiting for status",
		"command_id", commandID,
		"timeout", r.timeout,
	)
	r.mu.Unlock()

	wait := time.NewTimer(r.timeout)
	select {
	case <-r.done:
		wait.Stop()
	case <-wait.C:
		r.logger.Info(ctx, "Waiting for repair status timed out", "command_id", commandID)
	case <-ctx.Done():
		wait.Stop()
		r.logger.Info(ctx, "Waiting for repair status interrupted",
			"command_id", commandID,
			"error", ctx.Err(),
		)
	}

	return r.reconcile(ctx, coordinator)
}

// reconcile re-reads the persisted segment state after wake-up, the wake
// reason alone cannot be trusted to tell a finished repair from a timeout.
func (r *SegmentRunner) reconcile(ctx context.Context, coordinator NodeProxy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	segment, err := r.storage.GetSegment(ctx, r.segmentID)
	if err != nil {
		r.registry.remove(r.segmentID)
		return errors.Wrap(err, "get segment")
	}
	r.logger.Info(ctx, "Repair command returned",
		"command_id", segment.CommandID,
		"state", segment.State,
	)

	switch segment.State {
	case SegmentStateRunning:
		// FINISHED never arrived, the repair is stuck on the coordinator.
		r.abort(ctx, segment, coordinator)
	case SegmentStateDone:
		d := segment.EndTime.Sub(segment.StartTime)
		r.logger.Debug(ctx, "Segment repaired", "duration", d)
		repairDurationSeconds.Observe(d.Seconds())
		r.registry.remove(segment.ID)
	default:
		// The event handler postponed the segment already, release is
		// idempotent.
		r.registry.remove(segment.ID)
	}
	return nil
}

// canRepair checks all the nodes owning the segment token range for pending
// compactions and running repairs. It declines on the first failing node
// without checking the remaining ones, each decline appends a message to the
// run audit trail.
func (r *SegmentRunner) canRepair(ctx context.Context, segment *Segment, keyspace string, coordinator NodeProxy, run *Run) bool {
	owners, err := coordinator.TokenRangeOwners(ctx, keyspace, segment.StartToken, segment.EndToken)
	if err != nil {
		r.logger.Info(ctx, "Failed to get token range owners",
			"keyspace", keyspace,
			"error", err,
		)
		r.updateRunEvent(ctx, run, fmt.Sprintf("Postponed due to inability to get token range owners from host %s", coordinator.Host()))
		repairAdmissionDeclined.WithLabelValues("unreachable").Inc()
		return false
	}

	seen := strset.New()
	for _, host := range owners {
		if seen.Has(host) {
			continue
		}
		seen.Add(host)

		if !r.checkHost(ctx, run, host) {
			return false
		}
	}

	r.logger.Info(ctx, "Segment admitted for repair", "run_id", segment.RunID)
	return true
}

func (r *SegmentRunner) checkHost(ctx context.Context, run *Run, host string) bool {
	r.logger.Debug(ctx, "Checking host for pending compactions and running repairs", "host", host)

	proxy, err := r.factory.Connect(ctx, host)
	if err != nil {
		r.logger.Info(ctx, "Declined to repair segment, host not reachable",
			"host", host,
			"error", err,
		)
		r.updateRunEvent(ctx, run, fmt.Sprintf("Postponed due to inability to connect host %s", host))
		repairAdmissionDeclined.WithLabelValues("unreachable").Inc()
		return false
	}
	defer proxy.Close()

	pending, err := proxy.PendingCompactions(ctx)
	if err != nil {
		r.logger.Info(ctx, "Declined to repair segment, cannot read compaction backlog",
			"host", host,
			"error", err,
		)
		r.updateRunEvent(ctx, run, fmt.Sprintf("Postponed due to inability to connect host %s", host))
		repairAdmissionDeclined.WithLabelValues("unreachable").Inc()
		return false
	}
	if pending > maxPendingCompactions {
		r.logger.Info(ctx, "Declined to repair segment, too many pending compactions",
			"host", host,
			"pending", pending,
		)
		r.updateRunEvent(ctx, run, fmt.Sprintf("Postponed due to pending compactions (%d)", pending))
		repairAdmissionDeclined.WithLabelValues("compactions").Inc()
		return false
	}

	running, err := proxy.IsRepairRunning(ctx)
	if err != nil {
		r.logger.Info(ctx, "Declined to repair segment, cannot read repair state",
			"host", host,
			"error", err,
		)
		r.updateRunEvent(ctx, run, fmt.Sprintf("Postponed due to inability to connect host %s", host))
		repairAdmissionDeclined.WithLabelValues("unreachable").Inc()
		return false
	}
	if running {
		r.logger.Info(ctx, "Declined to repair segment, host already involved in a repair", "host", host)
		r.updateRunEvent(ctx, run, "Postponed due to affected hosts already doing repairs")
		repairAdmissionDeclined.WithLabelValues("repair_running").Inc()
		return false
	}

	return true
}

// postpone returns the segment to the NOT_STARTED state and releases the
// registry slot, the segment fail count tells the scheduler how many times
// this happened. Postponing is the sole retry mechanism, re-submission is up
// to the scheduler.
func (r *SegmentRunner) postpone(ctx context.Context, segment *Segment) {
	r.logger.Info(ctx, "Postponing segment", "fail_count", segment.FailCount+1)
	segment.State = SegmentStateNotStarted
	segment.CoordinatorHost = ""
	segment.CommandID = 0
	segment.StartTime = time.Time{}
	segment.FailCount++
	r.updateSegmentLogError(ctx, segment)
	r.registry.remove(segment.ID)
	repairSegmentsPostponed.Inc()
}

// abort postpones the segment and terminates all repairs in-flight on the
// coordinator. Used only when a segment is found RUNNING after the wait, the
// remote side never signaled completion.
func (r *SegmentRunner) abort(ctx context.Context, segment *Segment, coordinator NodeProxy) {
	host := segment.CoordinatorHost
	r.postpone(ctx, segment)
	r.logger.Info(ctx, "Aborting repair", "host", host)
	if err := coordinator.CancelAllRepairs(ctx); err != nil {
		r.logger.Error(ctx, "Cannot cancel repairs",
			"host", host,
			"error", err,
		)
	}
}

// HandleRepairEvent implements EventHandler. It is invoked by the node
// management layer for every repair notification observed on the
// coordinator, the notification channel is not filtered per segment so
// events of other commands are discarded here. Only FINISHED wakes the
// waiting runner, the other statuses mutate persisted state.
func (r *SegmentRunner) HandleRepairEvent(ctx context.Context, commandID int32, status CommandStatus, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug(ctx, "Notification",
		"command_id", commandID,
		"status", status,
		"message", message,
	)
	if r.commandID == 0 || commandID != r.commandID {
		r.logger.Debug(ctx, "Discarding notification of another command",
			"command_id", commandID,
			"want", r.commandID,
		)
		return
	}

	segment, err := r.storage.GetSegment(ctx, r.segmentID)
	if err != nil {
		r.logger.Error(ctx, "Cannot get segment", "error", err)
		return
	}

	switch status {
	case CommandStarted:
		segment.State = SegmentStateRunning
		segment.StartTime = timeutc.Now()
		r.updateSegmentLogError(ctx, segment)
	case CommandSessionSuccess:
		segment.State = SegmentStateDone
		segment.EndTime = timeutc.Now()
		r.updateSegmentLogError(ctx, segment)
	case CommandSessionFailed:
		r.logger.Info(ctx, "Repair session failed", "command_id", commandID)
		r.postpone(ctx, segment)
	case CommandFinished:
		// Reported last regardless of session results.
		r.signal()
	}
}

func (r *SegmentRunner) signal() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

// delay computes the pause separating this segment from the next one based
// on the measured repair duration and the configured intensity. Segments
// that never ran, including postponed ones, yield no delay.
func (r *SegmentRunner) delay(ctx context.Context) time.Duration {
	segment, err := r.storage.GetSegment(ctx, r.segmentID)
	if err != nil {
		r.logger.Error(ctx, "Cannot get segment to calculate delay", "error", err)
		return 0
	}

	if segment.StartTime.IsZero() != segment.EndTime.IsZero() {
		r.logger.Error(ctx, "Segment has inconsistent start and end time, assuming no delay",
			"start_time", segment.StartTime,
			"end_time", segment.EndTime,
		)
		return 0
	}

	d := intensityBasedDelay(segment.StartTime, segment.EndTime, r.intensity)
	r.logger.Debug(ctx, "Scheduling next segment with delay", "delay", d)
	return d
}

// intensityBasedDelay is a pure function of the segment timestamps and the
// intensity, duration/intensity - duration. Unset timestamps yield zero.
func intensityBasedDelay(startTime, endTime time.Time, intensity float64) time.Duration {
	if startTime.IsZero() || endTime.IsZero() {
		return 0
	}
	d := endTime.Sub(startTime)
	return time.Duration(float64(d)/intensity) - d
}

func (r *SegmentRunner) updateSegmentLogError(ctx context.Context, segment *Segment) {
	if err := r.storage.UpdateSegment(ctx, segment); err != nil {
		r.logger.Error(ctx, "Cannot update segment", "error", err)
	}
}

// updateRunEvent appends a human readable event to the run audit trail, this
// is the only run mutation the service performs.
func (r *SegmentRunner) updateRunEvent(ctx context.Context, run *Run, msg string) {
	run.LastEvent = msg
	if err := r.storage.UpdateRun(ctx, run); err != nil {
		r.logger.Error(ctx, "Cannot update run",
			"run_id", run.ID,
			"error", err,
		)
	}
}
