package history

import (
	"testing"
	"time"

	"github.com/ifpj/netwatch/internal/types"
)

func record(t time.Time) types.ProbeRecord {
	return types.ProbeRecord{Success: true, Timestamp: t}
}

func TestStore_AppendIsNewestFirst(t *testing.T) {
	s := New(time.Hour)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Append(record(base))
	s.Append(record(base.Add(time.Second)))
	s.Append(record(base.Add(2 * time.Second)))

	got := s.Snapshot()
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("expected newest record first, got %v", got[0].Timestamp)
	}
}

func TestStore_TrimsByRetention(t *testing.T) {
	s := New(10 * time.Second)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Append(record(base))
	s.Append(record(base.Add(5 * time.Second)))
	s.Append(record(base.Add(20 * time.Second)))

	got := s.Snapshot()
	if len(got) != 1 {
		t.Fatalf("expected retention to drop both records older than 10s, got %d records: %+v", len(got), got)
	}
	for _, r := range got {
		if r.Timestamp.Before(base.Add(20 * time.Second).Add(-10 * time.Second)) {
			t.Fatalf("found record older than retention window: %v", r.Timestamp)
		}
	}
}

func TestStore_EnforcesAbsoluteCap(t *testing.T) {
	s := New(365 * 24 * time.Hour)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < maxRecords+50; i++ {
		s.Append(record(base.Add(time.Duration(i) * time.Second)))
	}

	if got := s.Len(); got != maxRecords {
		t.Fatalf("expected cap of %d records, got %d", maxRecords, got)
	}
}

func TestStore_RecentBoundsResults(t *testing.T) {
	s := New(time.Hour)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.Append(record(base.Add(time.Duration(i) * time.Second)))
	}

	got := s.Recent(2)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(4 * time.Second)) {
		t.Fatalf("expected newest record first in Recent, got %v", got[0].Timestamp)
	}
}

func TestStore_RestoreTrimsAgainstCurrentRetention(t *testing.T) {
	s := New(time.Hour)
	now := time.Now().UTC()

	stale := []types.ProbeRecord{
		{Success: true, Timestamp: now.Add(-30 * time.Minute)},
		{Success: false, Timestamp: now.Add(-2 * time.Hour)},
	}
	s.Restore(stale)

	got := s.Snapshot()
	if len(got) != 1 {
		t.Fatalf("expected restore to drop the record outside retention, got %d", len(got))
	}
}
