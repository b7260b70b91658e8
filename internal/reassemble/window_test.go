package reassemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shredrelay/axdp/internal/config"
)

func TestLocalWindowEviction(t *testing.T) {
	stream := buildEntryStream(0, nil) // 12 bytes, a single complete shred

	l := NewLocal()

	_, ok := l.AddShred(dataHdr(5, 0, true), stream)
	require.True(t, ok)
	assert.EqualValues(t, 0, l.Evictions())

	colliding := uint64(5 + config.SlotWindowSize)
	_, ok = l.AddShred(dataHdr(colliding, 0, false), []byte("y"))
	assert.False(t, ok, "no segment yet for the new slot")
	assert.EqualValues(t, 1, l.Evictions())

	idx := colliding % config.SlotWindowSize
	assert.Equal(t, colliding, l.slots[idx].Slot)
}

func TestLocalWindowCompletesSegment(t *testing.T) {
	stream := buildEntryStream(0, nil) // 12 bytes, split into 2 shreds

	l := NewLocal()
	l.AddShred(dataHdr(1, 0, false), stream[0:6])
	seg, ok := l.AddShred(dataHdr(1, 1, true), stream[6:12])
	require.True(t, ok)
	assert.EqualValues(t, 1, seg.Slot)
	assert.Equal(t, stream, seg.Payload)
}

func TestShardedDispatchIsStable(t *testing.T) {
	s := NewSharded(4)
	slot := uint64(42)
	w1 := s.WorkerFor(slot)
	w2 := s.WorkerFor(slot)
	assert.Equal(t, w1, w2)
	assert.Less(t, w1, s.NumWorkers())
}

func TestUnboundedMatchesLocalOnNoEviction(t *testing.T) {
	stream := buildEntryStream(0, nil)

	u := NewUnbounded()
	u.AddShred(dataHdr(1, 0, false), stream[0:6])
	seg, ok := u.AddShred(dataHdr(1, 1, true), stream[6:12])
	require.True(t, ok)
	assert.Equal(t, stream, seg.Payload)

	l := NewLocal()
	l.AddShred(dataHdr(1, 0, false), stream[0:6])
	localSeg, ok := l.AddShred(dataHdr(1, 1, true), stream[6:12])
	require.True(t, ok)
	assert.Equal(t, localSeg, seg)
}
