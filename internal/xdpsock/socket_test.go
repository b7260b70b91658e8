package xdpsock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferRoundsUpToPowerOfTwo(t *testing.T) {
	r := NewRingBuffer(5)
	assert.Equal(t, 8, len(r.buf))
}

func TestRingBufferPushPopOrder(t *testing.T) {
	r := NewRingBuffer(4)
	require.True(t, r.Push(Descriptor{FrameAddr: 1}))
	require.True(t, r.Push(Descriptor{FrameAddr: 2}))

	d, ok := r.Pop()
	require.True(t, ok)
	assert.EqualValues(t, 1, d.FrameAddr)

	d, ok = r.Pop()
	require.True(t, ok)
	assert.EqualValues(t, 2, d.FrameAddr)

	_, ok = r.Pop()
	assert.False(t, ok)
}

func TestRingBufferFullRejectsPush(t *testing.T) {
	r := NewRingBuffer(2)
	require.True(t, r.Push(Descriptor{}))
	require.True(t, r.Push(Descriptor{}))
	assert.False(t, r.Push(Descriptor{}), "capacity exhausted")
}

func TestTXRingBufferRoundTrip(t *testing.T) {
	r := NewTXRingBuffer(2)
	require.True(t, r.Push([]byte("a")))
	require.True(t, r.Push([]byte("b")))
	assert.False(t, r.Push([]byte("c")))

	b, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, []byte("a"), b)
}

func TestRingBufferPopEmpty(t *testing.T) {
	r := NewRingBuffer(2)
	_, ok := r.Pop()
	assert.False(t, ok)
}
