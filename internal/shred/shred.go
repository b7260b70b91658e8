// Package shred decodes the bit-exact common header shared by all shreds on
// the wire and offers two tiers of access: a cheap prescan (variant class +
// slot only, for the datapath's hot path) and a full Header decode (for the
// reassembler). Offsets are grounded on shred_processor.rs's
// extract_slot_fast/parse_shred_type, generalized from byte literals into
// named constants.
package shred

import "encoding/binary"

// Type classifies a shred by its variant nibble.
type Type int

const (
	Unknown Type = iota
	Data
	Code
)

// Common header byte layout. All offsets are absolute within the shred
// payload.
const (
	SignatureSize   = 64
	VariantOffset   = 64 // 0x40
	SlotOffset      = 65 // 0x41
	IndexOffset     = 73 // 0x49
	VersionOffset   = 77 // 0x4d
	FECSetOffset    = 79 // 0x4f
	CommonHeaderEnd = 83 // 0x53

	// MinSize is the shortest a well-formed shred's common header can be.
	MinSize = CommonHeaderEnd
)

// Header is the fully decoded common header of one shred.
type Header struct {
	Type         Type
	Slot         uint64
	Index        uint32
	Version      uint16
	FECSetIndex  uint32
	DataComplete bool
	LastInSlot   bool
}

// ClassifyVariant maps the variant byte's upper nibble to a Type, per the
// merkle shred encoding: Data ∈ {0x80, 0x90, 0xB0}, Code ∈ {0x40, 0x60,
// 0x70}, anything else (legacy 0x5a/0xa5, or garbage) is Unknown.
func ClassifyVariant(variant byte) Type {
	switch variant & 0xF0 {
	case 0x80, 0x90, 0xB0:
		return Data
	case 0x40, 0x60, 0x70:
		return Code
	default:
		return Unknown
	}
}

// Prescan is the hot-path check run by the datapath before a payload is
// handed to the reassembler: it touches only the variant byte, so it never
// allocates and never validates the rest of the header. Returns Unknown for
// anything shorter than MinSize.
func Prescan(payload []byte) Type {
	if len(payload) < MinSize {
		return Unknown
	}
	return ClassifyVariant(payload[VariantOffset])
}

// ExtractSlot reads just the slot field, for callers that want to filter by
// slot before committing to a full decode. Returns (0, false) if payload is
// too short to contain the slot field.
func ExtractSlot(payload []byte) (uint64, bool) {
	if len(payload) < IndexOffset {
		return 0, false
	}
	return binary.LittleEndian.Uint64(payload[SlotOffset:IndexOffset]), true
}

// Decode fully parses the common header. The two flag bits (data_complete,
// last_in_slot) are not present in the common header on the wire in this
// simplified model; they are derived from the per-shred-type payload
// structure by decodeFlags, kept in its own file so the bit layout can be
// revisited independently of the fixed-offset fields above.
func Decode(payload []byte) (Header, bool) {
	if len(payload) < MinSize {
		return Header{}, false
	}
	typ := ClassifyVariant(payload[VariantOffset])
	if typ == Unknown {
		return Header{}, false
	}
	slot := binary.LittleEndian.Uint64(payload[SlotOffset:IndexOffset])
	index := binary.LittleEndian.Uint32(payload[IndexOffset:VersionOffset])
	version := binary.LittleEndian.Uint16(payload[VersionOffset:FECSetOffset])
	fec := binary.LittleEndian.Uint32(payload[FECSetOffset:CommonHeaderEnd])

	complete, last := decodeFlags(payload, typ)

	return Header{
		Type:         typ,
		Slot:         slot,
		Index:        index,
		Version:      version,
		FECSetIndex:  fec,
		DataComplete: complete,
		LastInSlot:   last,
	}, true
}

// Payload returns the shred's body (everything after the common header),
// the bytes deshredding concatenates in index order.
func Payload(raw []byte) []byte {
	if len(raw) <= CommonHeaderEnd {
		return nil
	}
	return raw[CommonHeaderEnd:]
}
