// Package stats tracks the monotonic counters the specification requires
// (received/decoded/errors/data_shreds/code_shreds/code_drops) and exposes
// them both as raw atomics for the hot path and as Prometheus gauges for
// the metrics server. Grounded on shred_processor.rs's ShredStats
// (AtomicUsize fields, relaxed-ordering semantics). The kernel-side
// PERCPU_ARRAY packet count is read separately by bpf.ReadPacketCount and
// is not part of Counters.
package stats

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters mirrors ShredStats: every field is a plain atomic counter,
// written by worker goroutines and read by an observer with no locking.
type Counters struct {
	Received   atomic.Uint64
	Decoded    atomic.Uint64
	Errors     atomic.Uint64
	DataShreds atomic.Uint64
	CodeShreds atomic.Uint64
	CodeDrops  atomic.Uint64
	Duplicates atomic.Uint64
	Evictions  atomic.Uint64
	Redirected atomic.Uint64
}

// New returns a zeroed Counters block.
func New() *Counters {
	return &Counters{}
}

// Collector adapts Counters into a prometheus.Collector so it can be
// registered once and scraped via promhttp.
type Collector struct {
	c       *Counters
	descs   map[string]*prometheus.Desc
	readers map[string]func() uint64
}

func NewCollector(c *Counters) *Collector {
	mk := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("axdp_"+name, help, nil, nil)
	}
	descs := map[string]*prometheus.Desc{
		"shreds_received_total":   mk("shreds_received_total", "UDP packets that passed the datapath's size and protocol filter."),
		"shreds_decoded_total":    mk("shreds_decoded_total", "Shreds successfully header-decoded."),
		"errors_total":            mk("errors_total", "Malformed or rejected packets."),
		"data_shreds_total":       mk("data_shreds_total", "Data-type shreds received."),
		"code_shreds_total":       mk("code_shreds_total", "Code-type shreds received."),
		"code_drops_total":        mk("code_drops_total", "Code shreds dropped before retention."),
		"duplicate_shreds_total":  mk("duplicate_shreds_total", "Shreds rejected as duplicates."),
		"slot_window_evictions":   mk("slot_window_evictions", "Slot-window collisions that evicted in-flight state."),
		"packets_redirected_total": mk("packets_redirected_total", "Packets forwarded by the datapath to the configured destination."),
	}
	readers := map[string]func() uint64{
		"shreds_received_total":   c.Received.Load,
		"shreds_decoded_total":    c.Decoded.Load,
		"errors_total":            c.Errors.Load,
		"data_shreds_total":       c.DataShreds.Load,
		"code_shreds_total":       c.CodeShreds.Load,
		"code_drops_total":        c.CodeDrops.Load,
		"duplicate_shreds_total":  c.Duplicates.Load,
		"slot_window_evictions":   c.Evictions.Load,
		"packets_redirected_total": c.Redirected.Load,
	}
	return &Collector{c: c, descs: descs, readers: readers}
}

func (col *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range col.descs {
		ch <- d
	}
}

func (col *Collector) Collect(ch chan<- prometheus.Metric) {
	for name, desc := range col.descs {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(col.readers[name]()))
	}
}
