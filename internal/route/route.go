// Package route resolves the next-hop MAC address for a forwarding
// destination IP, one of the specification's named external collaborators
// ("netlink route lookup for next-hop MAC resolution"). Grounded on
// relay.rs's --dest-mac flag (an operator-supplied override for when
// resolution isn't available or desired) and on the netlink library
// present in the example pack for the active-lookup path.
package route

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// Resolver looks up the next-hop MAC for a destination IP.
type Resolver interface {
	Resolve(dst net.IP) (net.HardwareAddr, error)
}

// Static always returns a fixed MAC, for callers that already know the
// next hop and want no netlink lookup. cmd/relay does not use it: it
// parses --dest-mac itself.
type Static struct {
	MAC net.HardwareAddr
}

func (s Static) Resolve(net.IP) (net.HardwareAddr, error) {
	return s.MAC, nil
}

// Netlink resolves the next hop by querying the kernel's route table for
// dst, then the neighbor (ARP/NDP) table for that next hop's link-layer
// address.
type Netlink struct{}

func (Netlink) Resolve(dst net.IP) (net.HardwareAddr, error) {
	routes, err := netlink.RouteGet(dst)
	if err != nil {
		return nil, fmt.Errorf("route lookup for %s: %w", dst, err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no route to %s", dst)
	}

	nextHop := routes[0].Gw
	if nextHop == nil {
		nextHop = dst
	}

	neighs, err := netlink.NeighList(routes[0].LinkIndex, netlink.FAMILY_ALL)
	if err != nil {
		return nil, fmt.Errorf("neighbor table lookup for link %d: %w", routes[0].LinkIndex, err)
	}
	for _, n := range neighs {
		if n.IP.Equal(nextHop) && n.HardwareAddr != nil {
			return n.HardwareAddr, nil
		}
	}
	return nil, fmt.Errorf("no resolved neighbor entry for next hop %s", nextHop)
}
