package reassemble

import (
	"github.com/shredrelay/axdp/internal/config"
	"github.com/shredrelay/axdp/internal/shred"
)

// Local is a fixed-size, per-worker slot window indexed by slot mod W.
// Grounded on DeshredManagerLocal: no locking, no allocation beyond slot
// creation, and implicit eviction when a new slot collides with an
// occupied window index.
type Local struct {
	slots     [config.SlotWindowSize]*SlotState
	evictions uint64
}

// NewLocal returns an empty slot window.
func NewLocal() *Local {
	return &Local{}
}

// Segment is one reassembled, concatenated shred payload ready for entry
// decoding.
type Segment struct {
	Slot    uint64
	Payload []byte
}

// AddShred routes a decoded shred into the window slot for its slot
// number, replacing any occupant for a different slot (an eviction), then
// attempts to emit a completed segment. Returns (Segment{}, false) on a
// duplicate shred or when no segment is yet complete.
func (l *Local) AddShred(hdr shred.Header, payload []byte) (Segment, bool) {
	idx := hdr.Slot % config.SlotWindowSize

	st := l.slots[idx]
	if st == nil || st.Slot != hdr.Slot {
		if st != nil {
			l.evictions++
		}
		st = NewSlotState(hdr.Slot)
		l.slots[idx] = st
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

// Evictions returns the running count of slot-window collisions, exposed
// as a metric per the specification's eviction-visibility requirement.
func (l *Local) Evictions() uint64 {
	return l.evictions
}

// CleanupOldSlots drops any tracked slot older than currentSlot -
// SlotWindowSize, following DeshredManagerLocal.cleanup_old_slots. Slots
// are evicted lazily on collision regardless; this is a proactive sweep
// for long idle windows where no colliding slot ever arrives.
func (l *Local) CleanupOldSlots(currentSlot uint64) {
	var threshold uint64
	if currentSlot > config.SlotWindowSize {
		threshold = currentSlot - config.SlotWindowSize
	}
	for i, st := range l.slots {
		if st != nil && st.Slot < threshold {
			l.slots[i] = nil
		}
	}
}
