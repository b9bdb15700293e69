// Package runner implements the per-target sleep-probe-record-confirm loop
// from SPEC_FULL.md §4.4.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ifpj/netwatch/internal/eventbus"
	"github.com/ifpj/netwatch/internal/history"
	"github.com/ifpj/netwatch/internal/probe"
	"github.com/ifpj/netwatch/internal/statemachine"
	"github.com/ifpj/netwatch/internal/types"
)

// Runner owns one target's probe loop, history, and confirmation state.
// It exclusively owns its TargetStatus behind mu; readers take a snapshot
// copy via Status(), matching the ownership rule in SPEC_FULL.md §3.
type Runner struct {
	registry *probe.Registry
	bus      *eventbus.Bus
	logger   *slog.Logger

	mu           sync.RWMutex
	target       types.Target
	known        bool
	currentUp    bool
	confirmedAt  time.Time
	pendingUp    bool
	pendingCount int

	history *history.Store
	sm      *statemachine.Machine
}

// New creates a Runner for target with fresh (Unknown) state.
func New(target types.Target, registry *probe.Registry, bus *eventbus.Bus, retention time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		registry: registry,
		bus:      bus,
		logger:   logger,
		target:   target,
		history:  history.New(retention),
		sm:       statemachine.New(target.Threshold),
	}
}

// Restore seeds the Runner's history and confirmed state from a snapshot,
// per §4.8: pending counters are dropped as stale.
func (r *Runner) Restore(status types.TargetStatus) {
	r.history.Restore(status.Records)
	if status.CurrentState != nil {
		r.sm.Restore(*status.CurrentState)
		r.mu.Lock()
		r.known = true
		r.currentUp = *status.CurrentState
		if status.ConfirmedAt != nil {
			r.confirmedAt = *status.ConfirmedAt
		}
		r.mu.Unlock()
	}
}

// SetRetention updates the retention window applied to future history
// appends, used when a hot-reload changes data_retention_days without
// otherwise restarting this runner.
func (r *Runner) SetRetention(retention time.Duration) {
	r.history.SetRetention(retention)
}

// UpdateTarget replaces the runner's target definition in place, used by
// the Supervisor when a hot-reload changes only non-content fields (e.g.
// name) so the running probe loop isn't restarted but its display fields
// still reflect the edit.
func (r *Runner) UpdateTarget(target types.Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = target
}

// Target returns the runner's current target definition, including any
// replacement installed by UpdateTarget.
func (r *Runner) Target() types.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.target
}

// Run executes the sleep-probe-record-confirm loop until ctx is canceled.
// The first iteration runs immediately (no initial sleep) so the dashboard
// is meaningful as soon as the process starts, per §4.4.
func (r *Runner) Run(ctx context.Context) error {
	target := r.Target()
	interval := target.Interval()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		r.tick(ctx)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		timer.Reset(interval)
	}
}

func (r *Runner) tick(ctx context.Context) {
	target := r.Target()

	outcome := r.registry.Probe(ctx, target)
	if ctx.Err() != nil {
		// Cancellation fired while the probe was in flight; don't record
		// or publish a probe that was abandoned mid-flight.
		return
	}

	record := types.RecordFromOutcome(outcome)
	r.history.Append(record)

	transitioned, newUp, first := r.sm.Feed(outcome.Success)

	r.mu.Lock()
	var fromPtr *bool
	if transitioned {
		if !first {
			prev := r.currentUp
			fromPtr = &prev
		}
		r.known = true
		r.currentUp = newUp
		r.confirmedAt = outcome.Timestamp
	}
	pendingUp, pendingCount := r.sm.PendingState()
	r.pendingUp = pendingUp
	r.pendingCount = pendingCount
	status := r.snapshotLocked(recentWindow)
	r.mu.Unlock()

	r.bus.PublishStatus(status)

	if transitioned {
		r.logger.Info("confirmed transition",
			"target", target.ID,
			"name", target.Name,
			"up", newUp,
		)
		r.bus.PublishTransition(types.Transition{
			Target:    target,
			From:      fromPtr,
			To:        newUp,
			Message:   outcome.Message,
			Timestamp: outcome.Timestamp,
		})
	}
}

// recentWindow bounds the records included in per-probe status-update
// broadcasts (§4.6): full history is still available via the status
// endpoint, which calls Status() with no truncation.
const recentWindow = 20

func (r *Runner) snapshotLocked(recordLimit int) types.TargetStatus {
	status := types.TargetStatus{
		Target:       r.target,
		PendingCount: r.pendingCount,
	}
	if r.known {
		up := r.currentUp
		status.CurrentState = &up
		confirmedAt := r.confirmedAt
		status.ConfirmedAt = &confirmedAt
	}
	if r.pendingCount > 0 {
		pending := r.pendingUp
		status.PendingState = &pending
	}
	if recordLimit < 0 {
		status.Records = r.history.Snapshot()
	} else {
		status.Records = r.history.Recent(recordLimit)
	}
	return status
}

// Status returns a full snapshot of the runner's current state, including
// its complete (retention-bounded) history. Used by the status HTTP
// endpoint and by the Persistence Manager when writing a snapshot.
func (r *Runner) Status() types.TargetStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(-1)
}
