// Package probe implements the protocol-specific reachability checks from
// SPEC_FULL.md §4.1, registered behind an Executor/Registry abstraction in
// the style of the agent executor registry this project was modeled on:
// each Executor declares its own external dependency, and the Registry
// verifies it once at registration time instead of failing probe-by-probe.
package probe

import (
	"context"
	"fmt"

	"github.com/ifpj/netwatch/internal/types"
)

// Executor runs probes for exactly one protocol.
type Executor interface {
	// Protocol identifies which Target.Protocol this executor handles.
	Protocol() types.Protocol

	// CheckDependency verifies any OS facility or binary the executor needs
	// (e.g. the system ping binary for ICMP). Called once at Register time.
	CheckDependency() error

	// Probe runs a single check against target, honoring ctx's deadline.
	// It must not return an error for expected reachability failures —
	// those are reported via ProbeOutcome.Success/Message.
	Probe(ctx context.Context, target types.Target) types.ProbeOutcome
}

// Registry holds one Executor per protocol.
type Registry struct {
	executors map[types.Protocol]Executor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[types.Protocol]Executor)}
}

// Register verifies the executor's dependency and adds it to the registry.
// A failed dependency check is a fatal startup error per §4.1 and the
// "ICMP privileges" design note: it surfaces once, clearly, rather than as
// a stream of per-probe failures.
func (r *Registry) Register(e Executor) error {
	if err := e.CheckDependency(); err != nil {
		return fmt.Errorf("probe executor %s: dependency check failed: %w", e.Protocol(), err)
	}
	r.executors[e.Protocol()] = e
	return nil
}

// Get returns the executor registered for protocol, if any.
func (r *Registry) Get(p types.Protocol) (Executor, bool) {
	e, ok := r.executors[p]
	return e, ok
}

// Probe dispatches target to its protocol's executor and enforces the
// target's timeout as a context deadline, per §4.1's "each probe enforces
// its own deadline" requirement.
func (r *Registry) Probe(ctx context.Context, target types.Target) types.ProbeOutcome {
	e, ok := r.Get(target.Protocol)
	if !ok {
		return types.ProbeOutcome{
			Success:   false,
			Message:   fmt.Sprintf("no probe executor registered for protocol %s", target.Protocol),
			Timestamp: nowUTC(),
		}
	}

	deadline, cancel := context.WithTimeout(ctx, target.Timeout())
	defer cancel()
	return e.Probe(deadline, target)
}
