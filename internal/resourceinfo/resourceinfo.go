// Package resourceinfo logs a one-shot resource snapshot at startup —
// container memory limit, host CPU count, and current process RSS — so
// an operator staring at a stalled node has something to compare against
// the harness's resource grant. It never gates or throttles anything;
// the original ws/cgroup.go used the same cgroup read to size a
// connection pool, but a stdio node program has no pool to size.
package resourceinfo

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is a point-in-time resource reading.
type Snapshot struct {
	ContainerMemoryLimitBytes  int64 // 0 if undetected (no cgroup limit, or not containerized)
	HostCPUCount               int
	ProcessRSSBytes            uint64
	SystemMemoryAvailableBytes uint64
}

// Capture reads the current resource snapshot. Errors from individual
// probes are swallowed and leave the corresponding field at its zero
// value — a diagnostic snapshot shouldn't be able to crash the node it's
// describing.
func Capture() Snapshot {
	var snap Snapshot

	snap.ContainerMemoryLimitBytes, _ = cgroupMemoryLimit()

	if n, err := cpu.Counts(true); err == nil {
		snap.HostCPUCount = n
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.SystemMemoryAvailableBytes = vm.Available
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			snap.ProcessRSSBytes = info.RSS
		}
	}

	return snap
}

// Log emits the snapshot as a single structured log line.
func (s Snapshot) Log(logger zerolog.Logger) {
	logger.Info().
		Int64("container_memory_limit_bytes", s.ContainerMemoryLimitBytes).
		Int("host_cpu_count", s.HostCPUCount).
		Uint64("process_rss_bytes", s.ProcessRSSBytes).
		Uint64("system_memory_available_bytes", s.SystemMemoryAvailableBytes).
		Msg("resource snapshot")
}

// cgroupMemoryLimit reads the container memory limit from the cgroup
// filesystem, trying v2 before falling back to v1. Returns 0 with a nil
// error when no limit is detected (bare metal, VMs, unlimited container).
func cgroupMemoryLimit() (int64, error) {
	if data, err := os.ReadFile("/sys/fs/cgroup/memory.max"); err == nil {
		limitStr := strings.TrimSpace(string(data))
		if limitStr != "max" {
			return strconv.ParseInt(limitStr, 10, 64)
		}
		return 0, nil
	}

	if data, err := os.ReadFile("/sys/fs/cgroup/memory/memory.limit_in_bytes"); err == nil {
		limitStr := strings.TrimSpace(string(data))
		return strconv.ParseInt(limitStr, 10, 64)
	}

	return 0, nil
}
