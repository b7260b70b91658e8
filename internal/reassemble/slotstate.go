// Package reassemble tracks per-slot shred arrival and reconstructs
// contiguous entry-encoded segments once a DATA_COMPLETE/LAST_IN_SLOT
// marker closes them off. Grounded on SlotShrdsCompact/try_deshred_fast
// from the sharded reference implementation: a bitset of received indices,
// a sparse payload table, and an O(1) segment_ends queue instead of the
// unbounded variant's backward scan.
package reassemble

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/shredrelay/axdp/internal/config"
	"github.com/shredrelay/axdp/internal/entry"
	"github.com/shredrelay/axdp/internal/shred"
)

// AddResult reports the outcome of feeding one shred into a SlotState.
type AddResult int

const (
	Duplicate AddResult = iota
	NewlyInserted
)

// SlotState is the per-slot shred table described by the specification:
// a received-mask bitset, a sparse index→payload table, and an
// insertion-ordered segment_ends queue.
type SlotState struct {
	Slot uint64

	receivedMask *bitset.BitSet
	shreds       [][]byte
	codeShreds   map[uint32][]byte

	segmentEnds   []uint32
	lastProcessed uint32
}

// NewSlotState allocates a SlotState sized for config.MaxShredsPerSlot data
// shreds.
func NewSlotState(slot uint64) *SlotState {
	return &SlotState{
		Slot:         slot,
		receivedMask: bitset.New(config.MaxShredsPerSlot),
		shreds:       make([][]byte, config.MaxShredsPerSlot),
		codeShreds:   make(map[uint32][]byte),
	}
}

// AddShred stores a decoded shred's payload. Data shreds are recorded in
// the bitset/shreds table; if the shred is a segment terminator its index
// is appended to segment_ends. Code shreds are appended to a separate,
// deduplicated table for potential FEC recovery. Returns Duplicate without
// mutating state if the index was already recorded.
func (s *SlotState) AddShred(hdr shred.Header, payload []byte) AddResult {
	switch hdr.Type {
	case shred.Code:
		if _, ok := s.codeShreds[hdr.Index]; ok {
			return Duplicate
		}
		buf := make([]byte, len(payload))
		copy(buf, payload)
		s.codeShreds[hdr.Index] = buf
		return NewlyInserted

	case shred.Data:
		idx := hdr.Index
		if int(idx) >= len(s.shreds) {
			return Duplicate
		}
		if s.receivedMask.Test(uint(idx)) {
			return Duplicate
		}
		s.receivedMask.Set(uint(idx))
		buf := make([]byte, len(payload))
		copy(buf, payload)
		s.shreds[idx] = buf

		if hdr.DataComplete || hdr.LastInSlot {
			s.segmentEnds = append(s.segmentEnds, idx)
		}
		return NewlyInserted

	default:
		return Duplicate
	}
}

// TryDeshred attempts to emit the next pending segment: the range
// [last_processed, segment_ends[0]] inclusive. Returns (nil, false) if no
// segment terminator is queued, if a shred within the range is still
// missing after a FEC recovery attempt (the gap case — the caller should
// retry once more shreds arrive), or if the concatenated bytes fail to
// deserialize into an entry sequence — in every such case state is left
// exactly as it was, so a later retry with the same or additional shreds
// is safe. Markers strictly before last_processed are discarded on the
// way in, since a segment covering them was already emitted; an
// out-of-order marker arriving for an already-consumed range never
// reopens it.
func (s *SlotState) TryDeshred() ([]byte, bool) {
	for len(s.segmentEnds) > 0 && s.segmentEnds[0] < s.lastProcessed {
		s.segmentEnds = s.segmentEnds[1:]
	}
	if len(s.segmentEnds) == 0 {
		return nil, false
	}

	end := s.segmentEnds[0]
	start := s.lastProcessed

	if !s.rangeComplete(start, end) {
		s.recoverGap(start, end)
	}
	if !s.rangeComplete(start, end) {
		return nil, false
	}

	payload, err := Deshred(s.shreds[start : end+1])
	if err != nil {
		return nil, false
	}

	if _, err := entry.Decode(payload); err != nil {
		return nil, false
	}

	for idx := start; idx <= end; idx++ {
		s.shreds[idx] = nil
	}
	s.segmentEnds = s.segmentEnds[1:]
	s.lastProcessed = end + 1

	return payload, true
}

// rangeComplete reports whether every index in [start, end] has a
// received shred recorded in the bitset.
func (s *SlotState) rangeComplete(start, end uint32) bool {
	for idx := start; idx <= end; idx++ {
		if !s.receivedMask.Test(uint(idx)) {
			return false
		}
	}
	return true
}

// recoverGap attempts Reed-Solomon reconstruction of the shreds missing
// from [start, end] using the slot's accumulated code shreds, resolving
// the specification's flagged-but-unwired FEC recovery path. Recovery is
// attempted only when the stalled segment's range fits within one
// configured FEC set (config.FECSetDataShreds); this implementation
// treats every code shred retained for the slot as belonging to that one
// FEC set, since the reviewed sources expose no per-FEC-set code index
// space to key recovery more precisely. A failed or skipped attempt
// leaves state unchanged — the caller's subsequent rangeComplete check
// simply reports the gap is still open.
func (s *SlotState) recoverGap(start, end uint32) {
	if len(s.codeShreds) == 0 {
		return
	}
	if int(end)-int(start)+1 > config.FECSetDataShreds {
		return
	}

	dataShards := make(map[uint32][]byte)
	for idx := start; idx <= end; idx++ {
		if s.receivedMask.Test(uint(idx)) {
			dataShards[idx-start] = s.shreds[idx]
		}
	}

	recovered, err := RecoverCode(dataShards, s.codeShreds, config.FECSetDataShreds, config.FECSetCodeShreds)
	if err != nil {
		return
	}
	for relIdx, buf := range recovered {
		idx := start + relIdx
		if idx > end || int(idx) >= len(s.shreds) {
			continue
		}
		s.shreds[idx] = buf
		s.receivedMask.Set(uint(idx))
	}
}

// CodeShreds returns the retained code shreds for this slot, keyed by
// index, for use by FEC recovery.
func (s *SlotState) CodeShreds() map[uint32][]byte {
	return s.codeShreds
}

// Deshred concatenates an ordered slice of shred payload bodies into one
// contiguous buffer. A nil element indicates a missing shred and is
// rejected — callers must only invoke this once every index in range is
// present.
func Deshred(parts [][]byte) ([]byte, error) {
	total := 0
	for i, p := range parts {
		if p == nil {
			return nil, fmt.Errorf("deshred: missing shred at offset %d", i)
		}
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}
