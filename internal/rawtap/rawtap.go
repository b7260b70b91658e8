// Package rawtap implements the raw-socket promiscuous-mode tap named by
// the specification as an out-of-scope, alternative ingress ("not used by
// the core"). It exists so the packetpool collaborator has a real caller,
// but the zero-copy datapath in internal/relay never touches it.
package rawtap

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/shredrelay/axdp/internal/packetpool"
)

// Tap reads raw Ethernet frames off an interface in promiscuous mode via
// an AF_PACKET socket, copying each frame into a packetpool slot.
type Tap struct {
	fd    int
	pool  *packetpool.Pool
	ifidx int
}

// Open binds an AF_PACKET socket to ifIndex and puts it into promiscuous
// mode.
func Open(ifIndex int, pool *packetpool.Pool) (*Tap, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("open AF_PACKET socket: %w", err)
	}

	addr := &unix.SockaddrLinklayer{Protocol: htons(unix.ETH_P_ALL), Ifindex: ifIndex}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind AF_PACKET socket to ifindex %d: %w", ifIndex, err)
	}

	mreq := unix.PacketMreq{
		Ifindex: int32(ifIndex),
		Type:    unix.PACKET_MR_PROMISC,
	}
	if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("enable promiscuous mode on ifindex %d: %w", ifIndex, err)
	}

	return &Tap{fd: fd, pool: pool, ifidx: ifIndex}, nil
}

// ReadFrame blocks until one frame is available, copies it into a pool
// slot, and returns the slice plus the slot index the caller must Put back
// once done.
func (t *Tap) ReadFrame() ([]byte, int, error) {
	buf, idx, ok := t.pool.Get()
	if !ok {
		return nil, 0, fmt.Errorf("packet pool exhausted")
	}
	n, _, err := unix.Recvfrom(t.fd, buf, 0)
	if err != nil {
		t.pool.Put(idx)
		return nil, 0, fmt.Errorf("recvfrom: %w", err)
	}
	return buf[:n], idx, nil
}

// Release returns a frame's pool slot.
func (t *Tap) Release(idx int) {
	t.pool.Put(idx)
}

// Close releases the underlying socket.
func (t *Tap) Close() error {
	return unix.Close(t.fd)
}

func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}
