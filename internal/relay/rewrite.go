package relay

import (
	"encoding/binary"
	"net"

	"github.com/shredrelay/axdp/internal/config"
)

// RewriteHeaders mutates an Ethernet+IPv4+UDP frame in place to point at a
// new destination, following relay_loop.rs's write_eth_header /
// write_ip_header / write_udp_header sequence: L2 dest/src, L3 src/dst +
// total length + checksum, L4 src/dst port + length (+ optional checksum).
// frame must already contain ETH+IP+UDP headers followed by payloadLen
// bytes of UDP payload; it is rewritten in place, never resized or
// reallocated.
func RewriteHeaders(frame []byte, srcMAC, dstMAC net.HardwareAddr, srcIP, dstIP net.IP, srcPort, dstPort uint16, payloadLen int) {
	writeEthHeader(frame, srcMAC, dstMAC)
	ipHeader := frame[config.EthHeaderSize:]
	writeIPHeader(ipHeader, srcIP, dstIP, uint16(config.UDPHeaderSize+payloadLen))
	udpHeader := frame[config.EthHeaderSize+config.IPHeaderMinSize:]
	writeUDPHeader(udpHeader, srcPort, dstPort, uint16(config.UDPHeaderSize+payloadLen))
}

func writeEthHeader(frame []byte, srcMAC, dstMAC net.HardwareAddr) {
	copy(frame[0:6], dstMAC)
	copy(frame[6:12], srcMAC)
	frame[12], frame[13] = 0x08, 0x00 // EtherType IPv4
}

func writeIPHeader(h []byte, srcIP, dstIP net.IP, totalPayloadLen uint16) {
	srcIP = srcIP.To4()
	dstIP = dstIP.To4()

	h[0] = 0x45 // version 4, IHL 5 (20-byte header, no options)
	h[1] = 0    // DSCP/ECN

	totalLen := uint16(config.IPHeaderMinSize) + totalPayloadLen
	binary.BigEndian.PutUint16(h[2:4], totalLen)

	binary.BigEndian.PutUint16(h[4:6], 0) // identification
	binary.BigEndian.PutUint16(h[6:8], 0) // flags + fragment offset

	h[8] = 64 // TTL
	h[9] = 17 // IPPROTO_UDP

	h[10], h[11] = 0, 0 // checksum placeholder, filled below
	copy(h[12:16], srcIP)
	copy(h[16:20], dstIP)

	binary.BigEndian.PutUint16(h[10:12], ipv4Checksum(h[:config.IPHeaderMinSize]))
}

func writeUDPHeader(h []byte, srcPort, dstPort uint16, length uint16) {
	binary.BigEndian.PutUint16(h[0:2], srcPort)
	binary.BigEndian.PutUint16(h[2:4], dstPort)
	binary.BigEndian.PutUint16(h[4:6], length)
	// UDP checksum MAY be zero for IPv4 per the specification; the relay
	// leaves it unset to avoid paying for a pseudo-header checksum on the
	// hot path.
	binary.BigEndian.PutUint16(h[6:8], 0)
}

// ipv4Checksum computes the one's-complement checksum over a 20-byte IPv4
// header with its own checksum field zeroed.
func ipv4Checksum(header []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(header); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(header[i : i+2]))
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}
