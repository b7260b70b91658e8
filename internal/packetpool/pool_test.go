package packetpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPutRoundTrip(t *testing.T) {
	p := New()

	buf, idx, ok := p.Get()
	require.True(t, ok)
	assert.Len(t, buf, MaxPacketSize)

	p.Put(idx)

	buf2, idx2, ok := p.Get()
	require.True(t, ok)
	assert.Equal(t, idx, idx2, "freed slot should be reused")
	assert.Len(t, buf2, MaxPacketSize)
}

func TestPoolExhaustion(t *testing.T) {
	p := New()
	taken := make([]int, 0, Size)
	for i := 0; i < Size; i++ {
		_, idx, ok := p.Get()
		require.True(t, ok)
		taken = append(taken, idx)
	}

	_, _, ok := p.Get()
	assert.False(t, ok, "pool should be exhausted")

	p.Put(taken[0])
	_, _, ok = p.Get()
	assert.True(t, ok, "releasing one slot should allow one more Get")
}
