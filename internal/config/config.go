// Package config holds the process-wide constants and the runtime
// configuration surface (CLI flags + optional TOML file) for the relay.
package config

import (
	"fmt"
	"net"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Packet processing parameters, fixed for the lifetime of a process.
const (
	EthHeaderSize     = 14   // Ethernet header size
	IPHeaderMinSize   = 20   // Minimum IPv4 header size
	UDPHeaderSize     = 8    // UDP header size
	FrameSize         = 2048 // UMEM frame size (bytes)
	RXBatchSize       = 32   // descriptors drained per RX batch before a commit
	VoteSizeThreshold = 400  // minimum UDP payload size accepted by the relay

	// ShredMinSize is the minimum length (bytes) of a well-formed shred per
	// the common header layout (signature + variant + slot + index +
	// version + fec_set_index).
	ShredMinSize = 83

	// SlotWindowSize is the fixed per-worker slot window (W) used by the
	// sharded, eviction-based reassembler front.
	SlotWindowSize = 128

	// MaxShredsPerSlot bounds the compact, bitset-backed reassembler.
	MaxShredsPerSlot = 512

	// MaxDataShredsPerSlot bounds the unbounded reference reassembler.
	MaxDataShredsPerSlot = 32768

	// FECSetDataShreds and FECSetCodeShreds size the FEC set recovery
	// attempts in internal/reassemble.RecoverCode: recovery is only
	// attempted when a stalled segment's shred range fits within one FEC
	// set of this size. Neither the teacher nor the reviewed sources pin
	// an exact FEC set size, so these are deliberately modest defaults
	// that keep a recovery attempt's erasure-coding cost proportionate to
	// a single shred's worth of loss.
	FECSetDataShreds = 4
	FECSetCodeShreds = 2
)

// CPU affinity assignments, following the teacher's one-core-per-concern
// layout.
const (
	CPURelayDatapath = 0
	CPUMetricsServer = 1
)

// Config is the fully resolved runtime configuration for one relay
// instance, built from CLI flags with an optional TOML file as a base
// layer (CLI values always win).
type Config struct {
	Interface   string `toml:"interface"`
	DestIP      string `toml:"dest_ip"`
	DestPort    uint16 `toml:"dest_port"`
	DestMAC     string `toml:"dest_mac"`
	ZeroCopy    bool   `toml:"zero_copy"`
	Queue       uint32 `toml:"queue"`
	CPU         int    `toml:"cpu"`
	MetricsAddr string `toml:"metrics_addr"`
}

// Default returns the baseline configuration matching the CLI's documented
// defaults.
func Default() Config {
	return Config{
		Interface:   "lo",
		CPU:         CPURelayDatapath,
		MetricsAddr: "127.0.0.1:9477",
	}
}

// LoadFile reads a TOML config file into a Config, layered under
// Default(). A missing path is not an error: the caller falls back to
// flags-only configuration.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ForwardingEnabled reports whether enough of dest-ip/dest-port were
// supplied to turn on zero-copy forwarding.
func (c Config) ForwardingEnabled() bool {
	return c.DestIP != "" && c.DestPort != 0
}

// Validate checks the "both or neither" constraint on dest-ip/dest-port
// from the CLI surface.
func (c Config) Validate() error {
	hasIP := c.DestIP != ""
	hasPort := c.DestPort != 0
	if hasIP != hasPort {
		return fmt.Errorf("--dest-ip and --dest-port must be specified together, or neither")
	}
	if hasIP && net.ParseIP(c.DestIP) == nil {
		return fmt.Errorf("invalid --dest-ip: %q", c.DestIP)
	}
	if c.DestMAC != "" {
		if _, err := net.ParseMAC(c.DestMAC); err != nil {
			return fmt.Errorf("invalid --dest-mac: %w", err)
		}
	}
	return nil
}
