// Package history implements the per-target bounded, retention-trimmed
// record ring described in SPEC_FULL.md §4.2.
package history

import (
	"sync"
	"time"

	"github.com/ifpj/netwatch/internal/types"
)

// maxRecords is the absolute cap mentioned in §3: even with a generous
// retention window, a target's history never exceeds this many records.
const maxRecords = 25000

// Store holds one target's ordered, newest-first probe history. All
// methods are safe for concurrent use; writes are serialized per target
// as required by §5's ordering guarantee.
type Store struct {
	mu        sync.Mutex
	retention time.Duration
	records   []types.ProbeRecord // newest-first
}

// New creates a Store with the given retention window.
func New(retention time.Duration) *Store {
	return &Store{retention: retention}
}

// SetRetention updates the retention window used by future Append calls.
// Used when a hot-reload changes data_retention_days.
func (s *Store) SetRetention(retention time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retention = retention
}

// Append adds a record to the front of the history and evicts anything
// older than the retention window or beyond the absolute cap.
func (s *Store) Append(r types.ProbeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append([]types.ProbeRecord{r}, s.records...)
	s.trimLocked(r.Timestamp)
}

func (s *Store) trimLocked(now time.Time) {
	cutoff := now.Add(-s.retention)
	cut := len(s.records)
	for i, rec := range s.records {
		if rec.Timestamp.Before(cutoff) {
			cut = i
			break
		}
	}
	if cut < len(s.records) {
		s.records = s.records[:cut]
	}
	if len(s.records) > maxRecords {
		s.records = s.records[:maxRecords]
	}
}

// Snapshot returns a copy of the full newest-first record slice, safe for
// the caller to retain or mutate.
func (s *Store) Snapshot() []types.ProbeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ProbeRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Recent returns a copy of up to n newest records, used to bound SSE
// update payloads per §4.6.
func (s *Store) Recent(n int) []types.ProbeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.records) {
		n = len(s.records)
	}
	out := make([]types.ProbeRecord, n)
	copy(out, s.records[:n])
	return out
}

// Len reports the current number of retained records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Restore replaces the history wholesale, used by the Persistence Manager
// when rehydrating from a snapshot at startup. The input is assumed
// newest-first already; it is trimmed against the current retention window,
// measured back from the current time, and against the absolute cap.
func (s *Store) Restore(records []types.ProbeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]types.ProbeRecord(nil), records...)
	if len(s.records) > 0 {
		s.trimLocked(time.Now().UTC())
	}
}
