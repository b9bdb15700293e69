// Package statemachine implements the flap-suppression confirmation logic
// described in SPEC_FULL.md §4.3: raw probe outcomes are converted into
// confirmed up/down transitions only after `threshold` consecutive
// disagreeing probes, or immediately on the very first observation.
package statemachine

// Machine tracks one target's confirmed state plus its in-progress
// pending vote. It is not safe for concurrent use; callers (the Runner)
// serialize access the same way history.Store serializes appends.
type Machine struct {
	threshold int

	known        bool // has a confirmed state ever been set
	currentUp    bool
	pendingUp    bool
	pendingCount int
}

// New creates a Machine requiring threshold consecutive disagreeing probes
// to confirm a transition.
func New(threshold int) *Machine {
	if threshold < 1 {
		threshold = 1
	}
	return &Machine{threshold: threshold}
}

// Known reports whether a confirmed state has ever been established.
func (m *Machine) Known() bool { return m.known }

// CurrentUp reports the last confirmed state. Only meaningful if Known().
func (m *Machine) CurrentUp() bool { return m.currentUp }

// Restore seeds the machine with a previously confirmed state, discarding
// any pending vote (§4.8 restore semantics: pending counters are stale and
// dropped on snapshot restore).
func (m *Machine) Restore(up bool) {
	m.known = true
	m.currentUp = up
	m.pendingCount = 0
}

// Feed applies a new probe outcome and reports whether a confirmed
// transition occurred, the new confirmed state, and whether this was the
// very first observation (in which case the transition has no "from"
// state, it originates from Unknown).
func (m *Machine) Feed(success bool) (transitioned bool, newUp bool, first bool) {
	if !m.known {
		m.known = true
		m.currentUp = success
		m.pendingCount = 0
		return true, m.currentUp, true
	}

	s := m.currentUp
	if success == s {
		m.pendingCount = 0
		m.pendingUp = s
		return false, s, false
	}

	// success disagrees with the current confirmed state.
	if m.pendingCount > 0 && m.pendingUp == success {
		m.pendingCount++
	} else {
		m.pendingUp = success
		m.pendingCount = 1
	}

	if m.pendingCount >= m.threshold {
		m.currentUp = success
		m.pendingCount = 0
		return true, m.currentUp, false
	}

	return false, s, false
}

// PendingState returns the in-progress candidate state, whether set or not.
func (m *Machine) PendingState() (state bool, count int) {
	return m.pendingUp, m.pendingCount
}
