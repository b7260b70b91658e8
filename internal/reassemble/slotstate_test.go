package reassemble

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/reedsolomon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shredrelay/axdp/internal/config"
	"github.com/shredrelay/axdp/internal/shred"
)

func dataHdr(slot uint64, index uint32, complete bool) shred.Header {
	return shred.Header{Type: shred.Data, Slot: slot, Index: index, DataComplete: complete}
}

// buildEntryStream constructs a byte stream that entry.Decode accepts: one
// record of (num_transactions u64 LE, len u32 LE, data). TryDeshred now
// gates emission on a successful entry.Decode of the concatenated shred
// payloads, so tests that exercise a full segment must feed chunks that
// concatenate into something decodable.
func buildEntryStream(numTx uint64, data []byte) []byte {
	buf := make([]byte, 12+len(data))
	binary.LittleEndian.PutUint64(buf[0:8], numTx)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(data)))
	copy(buf[12:], data)
	return buf
}

func TestSingleSegmentReassemble(t *testing.T) {
	stream := buildEntryStream(0, []byte("WXYZ")) // 16 bytes, split into 4 shreds

	st := NewSlotState(100)
	require.Equal(t, NewlyInserted, st.AddShred(dataHdr(100, 0, false), stream[0:4]))
	require.Equal(t, NewlyInserted, st.AddShred(dataHdr(100, 1, false), stream[4:8]))
	require.Equal(t, NewlyInserted, st.AddShred(dataHdr(100, 2, false), stream[8:12]))

	_, ok := st.TryDeshred()
	assert.False(t, ok, "no terminator seen yet")

	require.Equal(t, NewlyInserted, st.AddShred(dataHdr(100, 3, true), stream[12:16]))

	payload, ok := st.TryDeshred()
	require.True(t, ok)
	assert.Equal(t, stream, payload)

	_, ok = st.TryDeshred()
	assert.False(t, ok, "re-calling yields nothing once consumed")
}

func TestOutOfOrderReassemble(t *testing.T) {
	stream := buildEntryStream(0, []byte("WXYZ"))

	st := NewSlotState(100)
	st.AddShred(dataHdr(100, 2, false), stream[8:12])
	st.AddShred(dataHdr(100, 0, false), stream[0:4])
	st.AddShred(dataHdr(100, 3, true), stream[12:16])
	st.AddShred(dataHdr(100, 1, false), stream[4:8])

	payload, ok := st.TryDeshred()
	require.True(t, ok)
	assert.Equal(t, stream, payload)
}

func TestGapBlocksEmission(t *testing.T) {
	stream := buildEntryStream(0, []byte("WXYZ"))

	st := NewSlotState(100)
	st.AddShred(dataHdr(100, 0, false), stream[0:4])
	st.AddShred(dataHdr(100, 1, false), stream[4:8])
	st.AddShred(dataHdr(100, 3, true), stream[12:16])

	_, ok := st.TryDeshred()
	assert.False(t, ok, "index 2 never arrived")

	st.AddShred(dataHdr(100, 2, false), stream[8:12])
	payload, ok := st.TryDeshred()
	require.True(t, ok)
	assert.Equal(t, stream, payload)
}

func TestDuplicateShredRejected(t *testing.T) {
	st := NewSlotState(100)
	require.Equal(t, NewlyInserted, st.AddShred(dataHdr(100, 0, false), []byte("a")))
	assert.Equal(t, Duplicate, st.AddShred(dataHdr(100, 0, false), []byte("a-again")))
	assert.True(t, st.receivedMask.Test(0))
	assert.Equal(t, []byte("a"), st.shreds[0])
}

func TestDeshredRejectsMissing(t *testing.T) {
	_, err := Deshred([][]byte{[]byte("a"), nil, []byte("c")})
	assert.Error(t, err)
}

// TestDuplicateAfterEmissionIsRejected asserts the §8 idempotence/dedup
// law: once a segment has been emitted, re-feeding any of its shreds must
// still report Duplicate and must not repopulate the (now-cleared)
// payload table. This is the exact case a stray received_mask.Clear on
// emission would silently break.
func TestDuplicateAfterEmissionIsRejected(t *testing.T) {
	stream := buildEntryStream(0, []byte("WXYZ"))

	st := NewSlotState(100)
	st.AddShred(dataHdr(100, 0, false), stream[0:4])
	st.AddShred(dataHdr(100, 1, false), stream[4:8])
	st.AddShred(dataHdr(100, 2, false), stream[8:12])
	st.AddShred(dataHdr(100, 3, true), stream[12:16])

	_, ok := st.TryDeshred()
	require.True(t, ok, "segment should emit once complete")

	result := st.AddShred(dataHdr(100, 0, false), stream[0:4])
	assert.Equal(t, Duplicate, result, "re-feeding an already-emitted shred must be rejected")
	assert.True(t, st.receivedMask.Test(0), "received_mask bit must remain set after emission")
	assert.Nil(t, st.shreds[0], "emitted shred payload must stay cleared, not re-populated")
}

// TestDecodeFailureLeavesStateUnchanged covers spec step 5: a concatenated
// segment that fails to deserialize must not advance last_processed, pop
// segment_ends, or clear the stored shreds, so a later retry (e.g. after
// the caller decides to proceed anyway, or once more data disambiguates
// the stream) still has the raw shreds available.
func TestDecodeFailureLeavesStateUnchanged(t *testing.T) {
	st := NewSlotState(100)
	st.AddShred(dataHdr(100, 0, true), []byte("ab")) // 2 bytes: not a valid entry record header

	_, ok := st.TryDeshred()
	assert.False(t, ok, "undecodable segment must not emit")
	assert.True(t, st.receivedMask.Test(0), "shred must remain recorded for a retry")
	assert.NotNil(t, st.shreds[0], "payload must not be cleared on decode failure")
}

// TestRecoverGapReconstructsMissingDataShred exercises the FEC recovery
// path wired into TryDeshred: a single missing data shred within one FEC
// set is reconstructed from the slot's retained code shreds via
// klauspost/reedsolomon before the gap check runs again.
func TestRecoverGapReconstructsMissingDataShred(t *testing.T) {
	numData := config.FECSetDataShreds
	numCode := config.FECSetCodeShreds
	const shardSize = 8

	stream := buildEntryStream(0, bytes.Repeat([]byte{0xAB}, numData*shardSize-12))
	require.Len(t, stream, numData*shardSize)

	enc, err := reedsolomon.New(numData, numCode)
	require.NoError(t, err)

	shards := make([][]byte, numData+numCode)
	for i := 0; i < numData; i++ {
		shards[i] = stream[i*shardSize : (i+1)*shardSize]
	}
	for i := numData; i < numData+numCode; i++ {
		shards[i] = make([]byte, shardSize)
	}
	require.NoError(t, enc.Encode(shards))

	st := NewSlotState(200)
	const lostIndex = 2
	for i := 0; i < numData; i++ {
		if i == lostIndex {
			continue
		}
		st.AddShred(dataHdr(200, uint32(i), i == numData-1), shards[i])
	}
	for i := 0; i < numCode; i++ {
		st.AddShred(shred.Header{Type: shred.Code, Slot: 200, Index: uint32(i)}, shards[numData+i])
	}

	payload, ok := st.TryDeshred()
	require.True(t, ok, "Reed-Solomon recovery should fill the missing data shred")
	assert.Equal(t, stream, payload)
}
