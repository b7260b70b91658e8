// Package sysutil wraps the Linux-specific syscalls the relay datapath
// needs: CPU pinning, real-time scheduling, and the capability set a
// non-root relay process must carry. Grounded on the teacher's
// setCPUAffinity/detectNUMATopology (root-level utils.go) for pinning, and
// on relay_loop.rs's capability raise and SCHED_FIFO helpers for the rest.
package sysutil

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// PinCurrentThread locks the calling goroutine to its OS thread and sets
// that thread's CPU affinity to a single core, following setCPUAffinity.
// Falls back to core 0 if cpu is out of range for the host.
func PinCurrentThread(cpu int) error {
	runtime.LockOSThread()

	if n := runtime.NumCPU(); cpu >= n {
		cpu = 0
	}

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	tid := unix.Gettid()
	if err := unix.SchedSetaffinity(tid, &set); err != nil {
		return fmt.Errorf("pin thread %d to cpu %d: %w", tid, cpu, err)
	}
	return nil
}

// Topology reports coarse NUMA/core-count awareness, following
// detectNUMATopology's tiering.
type Topology struct {
	NumCPU int
	Ideal  bool // >= 4 cores: datapath and metrics server can each get a dedicated core
}

func DetectTopology() Topology {
	n := runtime.NumCPU()
	return Topology{NumCPU: n, Ideal: n >= 4}
}
