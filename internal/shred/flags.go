package shred

// Data-shred-specific layout, following immediately after the common
// header. Grounded on the reference decoder's DataFlagsOffset: a 2-byte
// parent offset, then a single flags byte packing block-complete,
// batch-complete and a reference tick count into one byte.
const (
	parentOffsetOffset = CommonHeaderEnd     // 83
	dataFlagsOffset    = CommonHeaderEnd + 2 // 85

	flagLastInSlot   = 0x80
	flagDataComplete = 0x40
)

// decodeFlags extracts data_complete/last_in_slot for Data shreds. Code
// shreds carry no such flags; decodeFlags always returns false, false for
// them since they never terminate a segment on their own.
func decodeFlags(payload []byte, typ Type) (dataComplete, lastInSlot bool) {
	if typ != Data {
		return false, false
	}
	if len(payload) <= dataFlagsOffset {
		return false, false
	}
	flags := payload[dataFlagsOffset]
	return flags&flagDataComplete != 0, flags&flagLastInSlot != 0
}
