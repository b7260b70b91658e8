package sysutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FIFOPriorityBounds returns the min/max real-time priority values the
// kernel allows for SCHED_FIFO, mirroring fifo_priority_bounds().
func FIFOPriorityBounds() (min, max int, err error) {
	minRC, err := unix.SchedGetPriorityMin(unix.SCHED_FIFO)
	if err != nil {
		return 0, 0, fmt.Errorf("sched_get_priority_min(SCHED_FIFO): %w", err)
	}
	maxRC, err := unix.SchedGetPriorityMax(unix.SCHED_FIFO)
	if err != nil {
		return 0, 0, fmt.Errorf("sched_get_priority_max(SCHED_FIFO): %w", err)
	}
	return minRC, maxRC, nil
}

// SetCurrentThreadFIFO switches the calling thread to SCHED_FIFO at the
// given priority, following set_current_thread_sched_fifo. Requires
// CAP_SYS_NICE; failure here is non-fatal for the relay (it degrades to
// the default scheduler rather than refusing to run).
func SetCurrentThreadFIFO(priority int) error {
	param := unix.SchedParam{Priority: int32(priority)}
	if err := unix.SchedSetscheduler(0, unix.SCHED_FIFO, &param); err != nil {
		return fmt.Errorf("sched_setscheduler(SCHED_FIFO, %d): %w", priority, err)
	}
	return nil
}

// RaiseDatapathPriority is the convenience entry point the relay's
// datapath goroutine calls at startup: resolve the max SCHED_FIFO priority
// and switch to it.
func RaiseDatapathPriority() error {
	_, max, err := FIFOPriorityBounds()
	if err != nil {
		return err
	}
	return SetCurrentThreadFIFO(max)
}
