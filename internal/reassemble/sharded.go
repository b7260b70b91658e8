package reassemble

// Sharded fans slots out across N independent Local windows, one per
// worker, so each worker thread reassembles lock-free. Grounded on
// DeshredManagerSharded, which holds one DeshredManagerLocal per CPU core
// with no cross-manager synchronization.
//
// The specification notes that a stable slot→worker dispatcher is not
// present in the reviewed sources ("requires a stable slot → worker hash
// to function correctly"); WorkerFor below is that missing piece, chosen
// as a plain modulo so that every shred for a given slot always lands on
// the same worker regardless of arrival order.
type Sharded struct {
	workers []*Local
}

// NewSharded allocates n independent per-worker windows.
func NewSharded(n int) *Sharded {
	s := &Sharded{workers: make([]*Local, n)}
	for i := range s.workers {
		s.workers[i] = NewLocal()
	}
	return s
}

// WorkerFor returns the stable worker index a given slot is dispatched to.
func (s *Sharded) WorkerFor(slot uint64) int {
	return int(slot % uint64(len(s.workers)))
}

// WorkerAt returns the Local window for a given worker index, for a caller
// that already computed the dispatch (e.g. the datapath pinning one
// goroutine per worker).
func (s *Sharded) WorkerAt(i int) *Local {
	return s.workers[i]
}

// NumWorkers reports the shard count.
func (s *Sharded) NumWorkers() int {
	return len(s.workers)
}
