// Package shutdown implements the Shutdown Coordinator from SPEC_FULL.md
// §4.9: trap termination signals, quiesce runners, flush the webhook
// dispatcher, write a final snapshot, and hard-abort on a second signal.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// abortWindow is how long after the first signal a second one triggers an
// immediate abort, per §4.9.
const abortWindow = 2 * time.Second

// Hooks are the coordinator's collaborators, supplied by the entrypoint.
type Hooks struct {
	// Cancel signals every runner and the webhook dispatcher to cancel. It
	// does not stop the HTTP surface from accepting config writes.
	Cancel context.CancelFunc
	// WaitRunners blocks (bounded by the caller via ctx) until all target
	// runners have returned.
	WaitRunners func(ctx context.Context)
	// FlushWebhooks blocks (bounded by the caller via ctx) until the
	// webhook dispatcher's queues have drained.
	FlushWebhooks func(ctx context.Context)
	// WriteSnapshot persists final state to the cache file.
	WriteSnapshot func() error
	// RunnerDrainTimeout bounds step 3 ("wait up to max(timeout_s)+1s").
	RunnerDrainTimeout time.Duration
}

// Run blocks until SIGINT or SIGTERM arrives, then executes the shutdown
// sequence and returns the process exit code: 0 on a clean shutdown, 130
// if a second signal forced an immediate abort.
func Run(logger *slog.Logger, hooks Hooks) int {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	<-sigCh
	logger.Info("shutdown signal received, quiescing")
	abortDeadline := time.Now().Add(abortWindow)

	done := make(chan struct{})
	go func() {
		defer close(done)
		runSequence(logger, hooks)
	}()

	// Defensive upper bound: the sequence above is itself bounded by
	// RunnerDrainTimeout and a 5s webhook flush, so this should never fire
	// in practice.
	overallBound := time.After(abortWindow + hooks.RunnerDrainTimeout + 5*time.Second)

	for {
		select {
		case <-done:
			logger.Info("graceful shutdown complete")
			return 0
		case <-sigCh:
			if time.Now().Before(abortDeadline) {
				logger.Warn("second signal received within abort window, aborting immediately")
				return 130
			}
			logger.Warn("second signal received after abort window, ignoring")
		case <-overallBound:
			logger.Error("shutdown sequence exceeded its bound, aborting")
			return 130
		}
	}
}

func runSequence(logger *slog.Logger, hooks Hooks) {
	hooks.Cancel()

	runnerCtx, cancel := context.WithTimeout(context.Background(), hooks.RunnerDrainTimeout)
	hooks.WaitRunners(runnerCtx)
	cancel()

	webhookCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	hooks.FlushWebhooks(webhookCtx)
	cancel()

	if err := hooks.WriteSnapshot(); err != nil {
		logger.Error("final snapshot write failed", "error", err)
	}
}
