// Package bpf loads the embedded XDP classifier object and attaches it to
// an interface, registering an AF_XDP socket's fd into the xsks_map so the
// kernel redirects every frame on that queue into userspace. Grounded on
// the teacher's internal/core/ebpf.InitializeXDP: load collection from an
// embedded object, pull xsks_map/stats_map, attach with driver-mode first
// and a generic-mode fallback.
package bpf

import (
	"bytes"
	_ "embed"
	"fmt"
	"net"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
)

//go:embed obj/xdp_redirect.o
var objBytes []byte

// ProgramName is the SEC("xdp") entry point defined in xdp_redirect.c.
const ProgramName = "xdp_redirect_port"

// Classifier is a loaded, attached XDP program along with the maps
// userspace needs to wire AF_XDP sockets into.
type Classifier struct {
	Collection *ebpf.Collection
	Program    *ebpf.Program
	XsksMap    *ebpf.Map
	StatsMap   *ebpf.Map
	Link       link.Link
	Iface      *net.Interface
}

// Load loads the embedded object onto ifName and attaches it, trying
// driver mode before falling back to generic (SKB) mode the way the
// teacher's InitializeXDP does.
func Load(ifName string) (*Classifier, error) {
	ifi, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("lookup interface %s: %w", ifName, err)
	}

	spec, err := ebpf.LoadCollectionSpecFromReader(bytes.NewReader(objBytes))
	if err != nil {
		return nil, fmt.Errorf("parse embedded xdp object: %w", err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("load xdp collection: %w", err)
	}

	prog := coll.Programs[ProgramName]
	if prog == nil {
		coll.Close()
		return nil, fmt.Errorf("program %q not found in object", ProgramName)
	}
	xsksMap := coll.Maps["xsks_map"]
	if xsksMap == nil {
		coll.Close()
		return nil, fmt.Errorf("map %q not found in object", "xsks_map")
	}
	statsMap := coll.Maps["stats_map"]

	l, err := link.AttachXDP(link.XDPOptions{
		Program:   prog,
		Interface: ifi.Index,
		Flags:     link.XDPDriverMode,
	})
	if err != nil {
		l, err = link.AttachXDP(link.XDPOptions{
			Program:   prog,
			Interface: ifi.Index,
			Flags:     link.XDPGenericMode,
		})
		if err != nil {
			coll.Close()
			return nil, fmt.Errorf("attach xdp program to %s (driver and generic mode both failed): %w", ifName, err)
		}
	}

	return &Classifier{
		Collection: coll,
		Program:    prog,
		XsksMap:    xsksMap,
		StatsMap:   statsMap,
		Link:       l,
		Iface:      ifi,
	}, nil
}

// Close detaches the program and releases the collection.
func (c *Classifier) Close() error {
	linkErr := c.Link.Close()
	c.Collection.Close()
	return linkErr
}

// ReadPacketCount sums the PERCPU_ARRAY counter at stats_map[0] across all
// CPUs, following the teacher's printStats aggregation.
func (c *Classifier) ReadPacketCount() (uint64, error) {
	if c.StatsMap == nil {
		return 0, fmt.Errorf("stats_map not present in collection")
	}
	var perCPU []uint64
	if err := c.StatsMap.Lookup(uint32(0), &perCPU); err != nil {
		return 0, fmt.Errorf("lookup stats_map[0]: %w", err)
	}
	var total uint64
	for _, v := range perCPU {
		total += v
	}
	return total, nil
}
