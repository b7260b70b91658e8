package xdpsock

// DrainCompletions releases every UMEM frame the kernel has finished
// transmitting, mirroring the teacher's processCompletionQueue: peek the
// ring, copy the batch out, release the ring slots, then free each frame.
func (s *Socket) DrainCompletions() int {
	s.CB.UMEM.Lock()
	defer s.CB.UMEM.Unlock()

	n, idx := s.CB.Completion.Peek()
	if n == 0 {
		return 0
	}
	for i := uint32(0); i < n; i++ {
		addr := s.CB.Completion.Get(idx + i)
		s.CB.UMEM.FreeFrame(addr)
	}
	s.CB.Completion.Release(n)
	return int(n)
}

// DrainRX moves every pending RX descriptor into the RX ring buffer and
// releases the kernel-side ring slots, following the teacher's
// processRXQueue split: hold the UMEM lock only long enough to copy
// descriptors out, so packet processing itself never blocks fill/TX.
func (s *Socket) DrainRX() int {
	s.CB.UMEM.Lock()
	defer s.CB.UMEM.Unlock()

	n, idx := s.CB.RX.Peek()
	if n == 0 {
		return 0
	}
	for i := uint32(0); i < n; i++ {
		desc := s.CB.RX.Get(idx + i)
		data := s.CB.UMEM.Get(desc)
		s.RX.Push(Descriptor{Data: data, FrameAddr: uint64(desc.Addr)})
	}
	s.CB.RX.Release(n)
	return int(n)
}

// FreeFrame releases a single UMEM frame back to the allocator, used once a
// drained RX descriptor has been fully processed (forwarded or dropped).
func (s *Socket) FreeFrame(addr uint64) {
	s.CB.UMEM.Lock()
	s.CB.UMEM.FreeFrame(addr)
	s.CB.UMEM.Unlock()
}

// ForwardInPlace reuses an already-populated RX frame for zero-copy
// forwarding: reserve one TX descriptor pointing at the same frame
// address/length, with no UMEM allocation or copy. The descriptor is set
// and the TX ring notified inside this call, so the frame is visible to
// the kernel on return: the caller must finish rewriting the frame's
// headers before calling. Returns false if no TX descriptor is currently
// available, in which case the caller must fall back to FreeFrame (or
// return the frame to Fill).
func (s *Socket) ForwardInPlace(addr uint64, length int) ([]byte, bool) {
	s.CB.UMEM.Lock()
	defer s.CB.UMEM.Unlock()

	nReserved, index := s.CB.TX.Reserve(&s.CB.UMEM, 1)
	if nReserved == 0 {
		return nil, false
	}

	desc := XDPDesc{Addr: addr, Len: uint32(length)}
	frame := s.CB.UMEM.Get(desc)
	s.CB.TX.Set(index, desc)
	s.CB.TX.Notify()
	return frame, true
}
