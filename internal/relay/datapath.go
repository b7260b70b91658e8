package relay

import (
	"encoding/binary"
	"net"
	"runtime"
	"time"

	"github.com/shredrelay/axdp/internal/config"
	"github.com/shredrelay/axdp/internal/reassemble"
	"github.com/shredrelay/axdp/internal/shred"
	"github.com/shredrelay/axdp/internal/stats"
	"github.com/shredrelay/axdp/internal/xdpsock"
)

// Reassembler is the subset of reassemble.Local/Unbounded the datapath
// depends on, so datapath tests can supply a stub. reassemble.Sharded does
// not implement it; its per-worker Local windows (WorkerAt) do.
type Reassembler interface {
	AddShred(hdr shred.Header, payload []byte) (reassemble.Segment, bool)
}

// Datapath drives one AF_XDP queue's RX/TX/Fill lifecycle, classifying and
// optionally forwarding every frame, and handing shred payloads to a
// Reassembler. Grounded on the teacher's StartPacketProcessing (adaptive
// backoff, batched ring commits) merged with relay_loop.rs's per-packet
// filter/forward decision tree.
type Datapath struct {
	Sock        *xdpsock.Socket
	SrcMAC      net.HardwareAddr
	SrcIP       net.IP
	Target      ForwardTarget
	Counters    *stats.Counters
	Reassembler Reassembler
	OnSegment   func(reassemble.Segment)
}

const headerSize = config.EthHeaderSize + config.IPHeaderMinSize + config.UDPHeaderSize

// Run executes the main loop until stop is closed. It never returns on its
// own; only a fatal startup error would prevent it from being called at
// all, matching the specification's "the datapath never panics at steady
// state" policy.
func (d *Datapath) Run(stop <-chan struct{}) {
	d.Sock.FillAll()

	sleep := 100 * time.Nanosecond
	const minSleep = 100 * time.Nanosecond
	const maxSleep = 10 * time.Microsecond

	batch := 0
	for {
		select {
		case <-stop:
			return
		default:
		}

		work := false

		if n := d.Sock.DrainCompletions(); n > 0 {
			work = true
		}

		if n := d.Sock.DrainRX(); n > 0 {
			work = true
			for {
				desc, ok := d.Sock.RX.Pop()
				if !ok {
					break
				}
				d.processFrame(desc)
				batch++
				if batch >= config.RXBatchSize {
					d.commitBatch()
					batch = 0
				}
			}
		}

		d.Sock.FillAll()

		if batch > 0 {
			d.commitBatch()
			batch = 0
		}

		if work {
			sleep = minSleep
		} else if sleep < maxSleep {
			sleep *= 2
			if sleep > maxSleep {
				sleep = maxSleep
			}
		}

		if sleep > time.Microsecond {
			time.Sleep(sleep)
		} else {
			runtime.Gosched()
		}
	}
}

// commitBatch is a hook point matching the teacher's "every 32 RX items,
// commit and wake TX" discipline. The RX and Completion drains release
// their ring slots as they go, ForwardInPlace notifies TX per frame, and
// FillAll runs once per loop iteration, so there is nothing left to flush
// here; the batch counter only decides how often this empty hook runs.
func (d *Datapath) commitBatch() {}

func (d *Datapath) processFrame(desc xdpsock.Descriptor) {
	packet := desc.Data
	if len(packet) < headerSize+config.VoteSizeThreshold {
		d.Counters.Errors.Add(1)
		d.Sock.FreeFrame(desc.FrameAddr)
		return
	}

	ipHeader := packet[config.EthHeaderSize:]
	if ipHeader[9] != 17 { // IPPROTO_UDP
		d.Counters.Errors.Add(1)
		d.Sock.FreeFrame(desc.FrameAddr)
		return
	}

	srcIP := [4]byte{ipHeader[12], ipHeader[13], ipHeader[14], ipHeader[15]}
	dstIP := [4]byte{ipHeader[16], ipHeader[17], ipHeader[18], ipHeader[19]}
	udpHeader := packet[config.EthHeaderSize+config.IPHeaderMinSize:]
	srcPort := binary.BigEndian.Uint16(udpHeader[0:2])
	dstPort := binary.BigEndian.Uint16(udpHeader[2:4])
	payload := packet[headerSize:]

	d.Counters.Received.Add(1)
	d.inspectShred(payload)

	if d.Target.Enabled() {
		d.forward(desc, payload, srcIP, dstIP, srcPort, dstPort)
		return
	}
	d.Sock.FreeFrame(desc.FrameAddr)
}

func (d *Datapath) inspectShred(payload []byte) {
	typ := shred.Prescan(payload)
	if typ == shred.Unknown {
		return
	}

	hdr, ok := shred.Decode(payload)
	if !ok {
		d.Counters.Errors.Add(1)
		return
	}
	d.Counters.Decoded.Add(1)

	switch hdr.Type {
	case shred.Data:
		d.Counters.DataShreds.Add(1)
	case shred.Code:
		d.Counters.CodeShreds.Add(1)
	}

	if d.Reassembler == nil {
		return
	}
	body := shred.Payload(payload)
	seg, ok := d.Reassembler.AddShred(hdr, body)
	if ev, hasEvictions := d.Reassembler.(interface{ Evictions() uint64 }); hasEvictions {
		d.Counters.Evictions.Store(ev.Evictions())
	}
	if !ok {
		return
	}
	if d.OnSegment != nil {
		d.OnSegment(seg)
	}
}

func (d *Datapath) forward(desc xdpsock.Descriptor, payload []byte, srcIP, dstIP [4]byte, srcPort, dstPort uint16) {
	_ = srcIP
	_ = dstIP

	// The headers are rewritten before ForwardInPlace, which publishes the
	// frame to the kernel's TX ring.
	RewriteHeaders(desc.Data, d.SrcMAC, d.Target.MAC, d.SrcIP, d.Target.IP, relaySourcePort, d.Target.Port, len(payload))

	if _, ok := d.Sock.ForwardInPlace(desc.FrameAddr, headerSize+len(payload)); !ok {
		d.Sock.FreeFrame(desc.FrameAddr)
		return
	}
	d.Counters.Redirected.Add(1)
}

// relaySourcePort mirrors relay_loop.rs's hardcoded forwarding source
// port: the relay speaks as itself, not as the original sender, since the
// rewritten packet's reply path (if any) terminates at the relay, not the
// original source.
const relaySourcePort = 12345
