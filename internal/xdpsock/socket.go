// Package xdpsock wraps a gvisor AF_XDP control block with the UMEM frame
// lifecycle (alloc/free), ring batching, and push/pop buffering used by the
// relay datapath. The ring wrapper types here are a direct generalization of
// the teacher's RxRingBuffer/TxRingBuffer: same power-of-two mask indexing,
// same Push/Pop semantics, now parameterized on a Descriptor payload instead
// of a fixed packet struct.
package xdpsock

import (
	"fmt"
	"math/bits"
	"net"

	"github.com/cilium/ebpf"
	"golang.org/x/sys/unix"
	"gvisor.dev/gvisor/pkg/xdp"

	"github.com/shredrelay/axdp/internal/config"
)

// Descriptor is one RX frame pulled off the UMEM, paired with the frame
// address so it can be released back to the fill ring once processed.
type Descriptor struct {
	Data      []byte
	FrameAddr uint64
}

// RingBuffer is a fixed-capacity circular buffer of Descriptor, used to
// drain the RX ring fully before releasing the UMEM lock for processing.
type RingBuffer struct {
	buf  []Descriptor
	mask int
	head int
	tail int
	n    int
}

func NewRingBuffer(size int) *RingBuffer {
	size = nextPow2(size)
	return &RingBuffer{buf: make([]Descriptor, size), mask: size - 1}
}

func (r *RingBuffer) Push(d Descriptor) bool {
	if r.n == len(r.buf) {
		return false
	}
	r.buf[r.tail] = d
	r.tail = (r.tail + 1) & r.mask
	r.n++
	return true
}

func (r *RingBuffer) Pop() (Descriptor, bool) {
	if r.n == 0 {
		return Descriptor{}, false
	}
	d := r.buf[r.head]
	r.head = (r.head + 1) & r.mask
	r.n--
	return d, true
}

// TXRingBuffer is the outbound analogue, queuing raw bytes awaiting a free
// TX descriptor and UMEM frame.
type TXRingBuffer struct {
	buf  [][]byte
	mask int
	head int
	tail int
	n    int
}

func NewTXRingBuffer(size int) *TXRingBuffer {
	size = nextPow2(size)
	return &TXRingBuffer{buf: make([][]byte, size), mask: size - 1}
}

func (r *TXRingBuffer) Push(b []byte) bool {
	if r.n == len(r.buf) {
		return false
	}
	r.buf[r.tail] = b
	r.tail = (r.tail + 1) & r.mask
	r.n++
	return true
}

func (r *TXRingBuffer) Pop() ([]byte, bool) {
	if r.n == 0 {
		return nil, false
	}
	b := r.buf[r.head]
	r.head = (r.head + 1) & r.mask
	r.n--
	return b, true
}

func nextPow2(size int) int {
	if size&(size-1) == 0 {
		return size
	}
	return 1 << (32 - bits.LeadingZeros32(uint32(size-1)))
}

// Socket bundles the AF_XDP control block with the interface metadata and
// ring buffers needed to drive one queue's worth of the relay datapath.
type Socket struct {
	CB      *xdp.ControlBlock
	QueueID uint32
	SrcMAC  net.HardwareAddr

	RX *RingBuffer
	TX *TXRingBuffer
}

// Open binds an AF_XDP socket to ifIndex/queueID, mirroring the teacher's
// InitializeXDP frame/descriptor sizing (NFrames=4096, FrameSize from
// config, NDescriptors=2048) and its zero-copy/need_wakeup defaults.
func Open(ifIndex int, queueID uint32, zeroCopy bool) (*Socket, error) {
	opts := xdp.DefaultOpts()
	opts.NFrames = 4096
	opts.FrameSize = config.FrameSize
	opts.NDescriptors = 2048
	opts.Bind = true
	opts.UseNeedWakeup = true
	if zeroCopy {
		opts.ForceZeroCopy = true
	} else {
		opts.ForceCopy = true
	}

	cb, err := xdp.New(uint32(ifIndex), queueID, opts)
	if err != nil {
		return nil, fmt.Errorf("open xdp socket on ifindex %d queue %d: %w", ifIndex, queueID, err)
	}

	return &Socket{
		CB:      cb,
		QueueID: queueID,
		RX:      NewRingBuffer(4096),
		TX:      NewTXRingBuffer(4096),
	}, nil
}

// SockFD exposes the underlying socket fd so the caller can install it into
// an XSKMAP.
func (s *Socket) SockFD() int32 {
	return s.CB.UMEM.SockFD()
}

// Bind inserts the socket's fd into the supplied xsks_map entry for
// QueueID, the step that lets the kernel-side classifier redirect frames
// into this socket.
func (s *Socket) Bind(xsksMap *ebpf.Map) error {
	if err := xsksMap.Update(s.QueueID, s.SockFD(), ebpf.UpdateAny); err != nil {
		return fmt.Errorf("insert socket into xsks_map[%d]: %w", s.QueueID, err)
	}
	return nil
}

// FillAll tops up the fill ring with every currently-free UMEM frame so the
// kernel always has somewhere to land the next RX batch.
func (s *Socket) FillAll() {
	s.CB.UMEM.Lock()
	s.CB.Fill.FillAll(&s.CB.UMEM)
	s.CB.UMEM.Unlock()
}

// XDPDesc is re-exported for callers building TX descriptors without
// importing golang.org/x/sys/unix directly.
type XDPDesc = unix.XDPDesc
