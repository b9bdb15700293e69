// Package persistence implements the snapshot half of SPEC_FULL.md §4.8:
// atomic load/save of the per-target status cache that bridges restarts.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ifpj/netwatch/internal/types"
)

const DefaultCachePath = "cache.json"

// LoadSnapshot reads and parses the cache file at path. A missing file is
// not an error (cold start); a malformed file degrades gracefully to a
// cold start per the SnapshotCorrupt error kind in §7, with ok=false.
func LoadSnapshot(path string) (snapshot types.Snapshot, ok bool, err error) {
	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			return types.Snapshot{}, false, nil
		}
		return types.Snapshot{}, false, fmt.Errorf("read snapshot: %w", readErr)
	}

	if jsonErr := json.Unmarshal(raw, &snapshot); jsonErr != nil {
		return types.Snapshot{}, false, nil
	}
	if snapshot.Version != types.SnapshotVersion {
		return types.Snapshot{}, false, nil
	}
	return snapshot, true, nil
}

// SaveSnapshot writes statuses atomically (temp + rename), matching the
// config writer's approach so a reader never observes a partial cache file.
func SaveSnapshot(path string, statuses map[string]types.TargetStatus) error {
	snapshot := types.Snapshot{Version: types.SnapshotVersion, Statuses: statuses}

	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".netwatch-cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// Restore merges a loaded snapshot against the live config's target ids,
// per §4.8: targets absent from the new config are discarded, and only
// current_state/confirmed_at/records survive — pending counters are always
// dropped as stale regardless of what the snapshot held.
func Restore(snapshot types.Snapshot, cfg types.Config) map[string]types.TargetStatus {
	wanted := make(map[string]struct{}, len(cfg.Targets))
	for _, t := range cfg.Targets {
		wanted[t.ID] = struct{}{}
	}

	restored := make(map[string]types.TargetStatus, len(snapshot.Statuses))
	for id, status := range snapshot.Statuses {
		if _, ok := wanted[id]; !ok {
			continue
		}
		restored[id] = types.TargetStatus{
			Target:       status.Target,
			CurrentState: status.CurrentState,
			ConfirmedAt:  status.ConfirmedAt,
			Records:      status.Records,
		}
	}
	return restored
}

// PathFromEnv resolves the cache path from NETWATCH_CACHE_PATH, falling
// back to def when unset.
func PathFromEnv(def string) string {
	if v := os.Getenv("NETWATCH_CACHE_PATH"); v != "" {
		return v
	}
	return def
}
