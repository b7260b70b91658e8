// Package relay drives the CPU-pinned AF_XDP receive/forward loop: peek
// the RX ring, classify and optionally rewrite each frame in place, and
// requeue it onto TX or back onto Fill. Grounded on the teacher's
// StartPacketProcessing/processRXQueue/sendPacketTX (ring batching
// discipline) and on relay_loop.rs (the header-rewrite forwarding path and
// short-packet/non-UDP filtering it performs that the teacher's RAT
// datapath never needed).
package relay

import "net"

// PacketDescriptor is the transient, cache-line-sized view into one UMEM
// frame the datapath operates on, matching the specification's §3 type and
// grounded on disruptor_event.rs's PacketEventZeroCopy field set.
type PacketDescriptor struct {
	UMEMOffset    uint64
	PacketLen     int
	PayloadOffset int
	PayloadLen    int
	SrcIP         [4]byte
	DstIP         [4]byte
	SrcPort       uint16
	DstPort       uint16
	RecvTimestamp int64
	ShredType     int // a shred.Type value stored as int; 0 (shred.Unknown) means "unparsed"
}

// ForwardTarget is the resolved destination for zero-copy forwarding.
type ForwardTarget struct {
	IP   net.IP
	Port uint16
	MAC  net.HardwareAddr
}

// Enabled reports whether every field needed to forward is present.
func (f ForwardTarget) Enabled() bool {
	return f.IP != nil && f.Port != 0 && f.MAC != nil
}
