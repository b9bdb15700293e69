package persistence

import (
	"context"
	"log/slog"
	"time"

	"github.com/ifpj/netwatch/internal/types"
)

// snapshotInterval is the periodic save cadence from §4.8: "written on
// graceful shutdown and periodically (every 5 min)".
const snapshotInterval = 5 * time.Minute

// StatusSource supplies the live set of target statuses to snapshot. The
// Supervisor satisfies this via its Statuses method.
type StatusSource func() []types.TargetStatus

// Manager periodically writes a snapshot of live status to path, and can
// be asked to write one final time on shutdown.
type Manager struct {
	path   string
	source StatusSource
	logger *slog.Logger
}

// NewManager creates a Manager that writes snapshots to path using source.
func NewManager(path string, source StatusSource, logger *slog.Logger) *Manager {
	return &Manager{path: path, source: source, logger: logger}
}

// Run ticks every snapshotInterval until ctx is canceled, writing a
// snapshot on each tick. It does not write on entry; callers that want an
// immediate baseline snapshot should call WriteNow directly.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.WriteNow(); err != nil {
				m.logger.Warn("periodic snapshot write failed", "error", err)
			}
		}
	}
}

// WriteNow writes a snapshot immediately, keyed by target id.
func (m *Manager) WriteNow() error {
	statuses := m.source()
	byID := make(map[string]types.TargetStatus, len(statuses))
	for _, s := range statuses {
		byID[s.Target.ID] = s
	}
	return SaveSnapshot(m.path, byID)
}
