// Package diag reports process-level health diagnostics for the healthz
// endpoint, grounded on the teacher's metrics collector but sampling the
// netwatch process itself rather than a fleet of remote agents.
package diag

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is the point-in-time process health reading exposed by
// GET /api/healthz.
type Snapshot struct {
	Goroutines int     `json:"goroutines"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
}

// Collect samples the current process's resource usage. Failures reading
// any individual metric degrade to a zero value rather than failing the
// whole healthz response; liveness must not depend on diagnostics.
func Collect() Snapshot {
	snapshot := Snapshot{Goroutines: runtime.NumGoroutine()}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return snapshot
	}

	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		snapshot.RSSBytes = mem.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		snapshot.CPUPercent = cpu
	}

	return snapshot
}
