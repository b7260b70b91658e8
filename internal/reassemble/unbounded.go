package reassemble

import "github.com/shredrelay/axdp/internal/shred"

// Unbounded is the reference reassembler: a hash map keyed by slot with no
// implicit eviction, used as the correctness oracle for Local/Sharded and
// for deployments that would rather pay unbounded memory than ever drop
// in-flight reassembly on a collision. Grounded on DeshredManager (the
// HashMap<Slot, SlotShreds> variant), generalized to reuse the same
// SlotState/segment_ends machinery as the windowed front instead of a
// separate backward-scanning segment finder.
type Unbounded struct {
	slots map[uint64]*SlotState
}

// NewUnbounded returns an empty unbounded reassembler.
func NewUnbounded() *Unbounded {
	return &Unbounded{slots: make(map[uint64]*SlotState)}
}

// AddShred stores hdr/payload under its slot, creating the slot's state on
// first arrival, and attempts to emit a completed segment.
func (u *Unbounded) AddShred(hdr shred.Header, payload []byte) (Segment, bool) {
	st, ok := u.slots[hdr.Slot]
	if !ok {
		st = NewSlotState(hdr.Slot)
		u.slots[hdr.Slot] = st
	}

	if st.AddShred(hdr, payload) == Duplicate {
		return Segment{}, false
	}

	body, ok := st.TryDeshred()
	if !ok {
		return Segment{}, false
	}
	return Segment{Slot: hdr.Slot, Payload: body}, true
}

// CleanupOldSlots drops every tracked slot below currentSlot - lookback,
// following DeshredManager.cleanup_old_slots.
func (u *Unbounded) CleanupOldSlots(currentSlot, lookback uint64) {
	var threshold uint64
	if currentSlot > lookback {
		threshold = currentSlot - lookback
	}
	for slot := range u.slots {
		if slot < threshold {
			delete(u.slots, slot)
		}
	}
}

// TrackedSlots reports how many slots are currently held, useful for
// memory-pressure monitoring given this variant never evicts on its own.
func (u *Unbounded) TrackedSlots() int {
	return len(u.slots)
}
