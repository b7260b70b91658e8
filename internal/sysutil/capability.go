package sysutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Capability bits the relay process depends on: binding an AF_XDP socket
// and attaching an XDP program needs CAP_NET_ADMIN/CAP_NET_RAW/CAP_BPF;
// real-time scheduling needs CAP_SYS_NICE. Grounded on relay_loop.rs's
// capability raise (CAP_NET_ADMIN, CAP_NET_RAW, CAP_SYS_NICE) plus the
// specification's addition of CAP_BPF for program loading.
const (
	CapNetAdmin = 12
	CapNetRaw   = 13
	CapSysNice  = 23
	CapBPF      = 39
)

// RequiredCapabilities lists every capability the relay datapath needs at
// runtime.
var RequiredCapabilities = []int{CapNetAdmin, CapNetRaw, CapBPF, CapSysNice}

// RaiseCapabilities adds the given capability bits to the calling thread's
// effective and permitted sets, using the raw capget/capset syscalls.
// Requires the bits to already be present in the process's permitted set
// (e.g. via file capabilities or running as root); this only moves them
// into "effective", it never escalates beyond what was granted at exec.
func RaiseCapabilities(caps []int) error {
	hdr := unix.CapUserHeader{
		Version: unix.LINUX_CAPABILITY_VERSION_3,
		Pid:     int32(unix.Gettid()),
	}
	var data [2]unix.CapUserData

	if err := unix.Capget(&hdr, &data[0]); err != nil {
		return fmt.Errorf("capget: %w", err)
	}

	for _, cap := range caps {
		word, bit := cap/32, uint(cap%32)
		data[word].Effective |= 1 << bit
		data[word].Permitted |= 1 << bit
	}

	if err := unix.Capset(&hdr, &data[0]); err != nil {
		return fmt.Errorf("capset: %w", err)
	}
	return nil
}

// RaiseDatapathCapabilities is the convenience entry point for raising
// every capability the relay depends on.
func RaiseDatapathCapabilities() error {
	return RaiseCapabilities(RequiredCapabilities)
}
