package relay

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shredrelay/axdp/internal/reassemble"
	"github.com/shredrelay/axdp/internal/shred"
	"github.com/shredrelay/axdp/internal/stats"
)

type fakeReassembler struct {
	calls []shred.Header
	seg   reassemble.Segment
	ok    bool
}

func (f *fakeReassembler) AddShred(hdr shred.Header, payload []byte) (reassemble.Segment, bool) {
	f.calls = append(f.calls, hdr)
	return f.seg, f.ok
}

func buildShred(variant byte, slot uint64, index uint32) []byte {
	b := make([]byte, shred.CommonHeaderEnd+4)
	b[shred.VariantOffset] = variant
	binary.LittleEndian.PutUint64(b[shred.SlotOffset:], slot)
	binary.LittleEndian.PutUint32(b[shred.IndexOffset:], index)
	return append(b, []byte("body")...)
}

func TestInspectShredRoutesDataShredsToReassembler(t *testing.T) {
	fr := &fakeReassembler{ok: true, seg: reassemble.Segment{Slot: 7, Payload: []byte("xyz")}}
	var gotSeg reassemble.Segment

	d := &Datapath{
		Counters:    stats.New(),
		Reassembler: fr,
		OnSegment:   func(s reassemble.Segment) { gotSeg = s },
	}

	d.inspectShred(buildShred(0x80, 7, 0))

	require.Len(t, fr.calls, 1)
	assert.Equal(t, shred.Data, fr.calls[0].Type)
	assert.EqualValues(t, 7, fr.calls[0].Slot)
	assert.Equal(t, uint64(1), d.Counters.DataShreds.Load())
	assert.Equal(t, reassemble.Segment{Slot: 7, Payload: []byte("xyz")}, gotSeg)
}

func TestInspectShredIgnoresNonShredPayload(t *testing.T) {
	fr := &fakeReassembler{}
	d := &Datapath{Counters: stats.New(), Reassembler: fr}

	d.inspectShred([]byte("not a shred"))

	assert.Empty(t, fr.calls)
	assert.Equal(t, uint64(0), d.Counters.DataShreds.Load())
}
