// Package supervisor implements the hot-reload reconciliation controller
// from SPEC_FULL.md §4.5: it owns the live set of Target Runners and
// reconciles it against a new Config using target identity plus a
// content hash, so unchanged targets keep their in-memory history and
// confirmed state across a reload.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ifpj/netwatch/internal/eventbus"
	"github.com/ifpj/netwatch/internal/probe"
	"github.com/ifpj/netwatch/internal/runner"
	"github.com/ifpj/netwatch/internal/types"
)

// restartBackoff is the delay before restarting a runner goroutine that
// exited unexpectedly, per §7's "runner is restarted after a 1-s backoff".
const restartBackoff = time.Second

type handle struct {
	runner *runner.Runner
	hash   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns runners: map<target_id, RunnerHandle> and serializes all
// reconciliations under mu, per §4.5's "Supervisor serializes
// reconciliations; concurrent config POSTs are applied in arrival order".
type Supervisor struct {
	registry *probe.Registry
	bus      *eventbus.Bus
	logger   *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	retention time.Duration
	runners   map[string]*handle
}

// New creates an empty Supervisor. Call Start before ApplyConfig.
func New(registry *probe.Registry, bus *eventbus.Bus, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		registry: registry,
		bus:      bus,
		logger:   logger,
		runners:  make(map[string]*handle),
	}
}

// Start binds the Supervisor's lifetime to ctx and performs the initial
// reconciliation against cfg, restoring any targets present in snapshot.
// All runner goroutines are children of ctx and stop when it is canceled.
func (s *Supervisor) Start(ctx context.Context, cfg types.Config, snapshot map[string]types.TargetStatus) {
	s.mu.Lock()
	s.ctx = ctx
	s.retention = cfg.RetentionWindow()
	s.mu.Unlock()

	s.ApplyConfig(cfg, snapshot)
}

// ApplyConfig reconciles the live runner set against a new configuration,
// per steps 1-3 in §4.5; persisting the config to disk (step 4) is left to
// the caller. snapshot is only consulted for brand-new
// target ids (the startup path); on ordinary hot-reloads pass nil.
func (s *Supervisor) ApplyConfig(cfg types.Config, snapshot map[string]types.TargetStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retention = cfg.RetentionWindow()
	for _, h := range s.runners {
		h.runner.SetRetention(s.retention)
	}

	newIDs := make(map[string]types.Target, len(cfg.Targets))
	for _, t := range cfg.Targets {
		newIDs[t.ID] = t
	}

	// Step 2: stop and drop runners for targets no longer present.
	for id, h := range s.runners {
		if _, ok := newIDs[id]; !ok {
			s.stop(h)
			delete(s.runners, id)
			s.logger.Info("target removed, runner stopped", "target", id)
		}
	}

	// Step 3: start new runners, or restart in place if content changed.
	for id, target := range newIDs {
		existing, ok := s.runners[id]
		newHash := target.ContentHash()

		if !ok {
			var restored *types.TargetStatus
			if snapshot != nil {
				if st, ok := snapshot[id]; ok {
					restored = &st
				}
			}
			s.startLocked(target, newHash, restored)
			continue
		}

		if existing.hash == newHash {
			// Unchanged: leave running, but still refresh display-only
			// fields (name) so a rename shows up without restarting the
			// probe loop.
			existing.runner.UpdateTarget(target)
			continue
		}

		// Changed: stop the old runner but carry over its records and
		// confirmed state into the replacement, per §4.5 step 3.
		carryOver := existing.runner.Status()
		s.stop(existing)
		s.startLocked(target, newHash, &carryOver)
		s.logger.Info("target content changed, runner restarted", "target", id)
	}
}

func (s *Supervisor) startLocked(target types.Target, hash string, restore *types.TargetStatus) {
	r := runner.New(target, s.registry, s.bus, s.retention, s.logger)
	if restore != nil {
		r.Restore(*restore)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	h := &handle{runner: r, hash: hash, cancel: cancel, done: make(chan struct{})}
	s.runners[target.ID] = h

	go s.supervise(ctx, h)
}

// supervise runs r to completion, restarting it after a backoff if
// it exits for any reason other than context cancellation, per §7's
// InternalInvariantViolation policy. It does not hold the Supervisor's
// mutex while running or sleeping.
func (s *Supervisor) supervise(ctx context.Context, h *handle) {
	defer close(h.done)
	for {
		err := runSafely(ctx, h.runner)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("target runner exited unexpectedly, restarting",
			"target", h.runner.Target().ID, "error", err)

		select {
		case <-time.After(restartBackoff):
		case <-ctx.Done():
			return
		}
	}
}

// runSafely invokes r.Run, converting a panic into an error so a bug in
// one probe executor cannot take down the whole process.
func runSafely(ctx context.Context, r *runner.Runner) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p}
		}
	}()
	return r.Run(ctx)
}

type panicError struct{ value any }

func (e *panicError) Error() string { return "panic in target runner" }

func (s *Supervisor) stop(h *handle) {
	h.cancel()
	<-h.done
}

// Statuses returns a snapshot of every currently running target's status,
// used by GET /api/status.
func (s *Supervisor) Statuses() []types.TargetStatus {
	s.mu.Lock()
	handles := make([]*handle, 0, len(s.runners))
	for _, h := range s.runners {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	out := make([]types.TargetStatus, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.runner.Status())
	}
	return out
}

// Shutdown stops every runner and waits for them to finish, honoring the
// Shutdown Coordinator's bounded wait from §4.9.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	handles := make([]*handle, 0, len(s.runners))
	for _, h := range s.runners {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		s.stop(h)
	}
}
