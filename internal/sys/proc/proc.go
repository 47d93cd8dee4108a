// Package proc reads statistics about the host process.
package proc

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Stats is a point-in-time view of the host process.
type Stats struct {
	PID        int32         `json:"pid"`
	OSThreads  int32         `json:"os_threads"`
	Goroutines int           `json:"goroutines"`
	CPUUser    time.Duration `json:"cpu_user"`
	CPUSystem  time.Duration `json:"cpu_system"`
	RSSBytes   uint64        `json:"rss_bytes"`
}

// CPUTotal returns user plus system CPU time.
func (s Stats) CPUTotal() time.Duration {
	return s.CPUUser + s.CPUSystem
}

// Self returns statistics for the current process. Fields the platform
// cannot provide are left zero; an error is returned only when the process
// handle itself cannot be opened.
func Self() (*Stats, error) {
	pid := int32(os.Getpid()) //nolint:gosec // G115: pids fit in int32.

	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("failed to open process %d: %w", pid, err)
	}

	stats := &Stats{
		PID:        pid,
		Goroutines: runtime.NumGoroutine(),
	}

	if n, err := p.NumThreads(); err == nil {
		stats.OSThreads = n
	}
	if times, err := p.Times(); err == nil {
		stats.CPUUser = seconds(times.User)
		stats.CPUSystem = seconds(times.System)
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}

	return stats, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
