// Command relay runs the AF_XDP shred relay: it binds an AF_XDP socket to
// an interface queue, installs the XDP classifier, feeds shred payloads
// into the shred reassembler and, when a destination is configured, also
// forwards UDP traffic to it, logging progress and serving Prometheus
// metrics.
//
// Flag surface and capability-raise sequencing are grounded on relay.rs's
// clap CLI; process wiring (rlimit removal, signal handling, per-goroutine
// CPU affinity) is grounded on the teacher's main.go.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/cilium/ebpf/rlimit"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shredrelay/axdp/internal/bpf"
	"github.com/shredrelay/axdp/internal/config"
	"github.com/shredrelay/axdp/internal/metrics"
	"github.com/shredrelay/axdp/internal/reassemble"
	"github.com/shredrelay/axdp/internal/relay"
	"github.com/shredrelay/axdp/internal/route"
	"github.com/shredrelay/axdp/internal/stats"
	"github.com/shredrelay/axdp/internal/sysutil"
	"github.com/shredrelay/axdp/internal/xdpsock"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Default()
	var configPath string

	cmd := &cobra.Command{
		Use:     "relay",
		Short:   "AF_XDP shred relay",
		Version: "0.1.0",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				fileCfg, err := config.LoadFile(configPath)
				if err != nil {
					return err
				}
				cfg = mergeConfig(fileCfg, cfg, cmd)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg, log.WithField("component", "relay"))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Interface, "interface", "i", cfg.Interface, "network interface to bind")
	flags.StringVar(&cfg.DestIP, "dest-ip", "", "forwarding destination IPv4 address")
	flags.Uint16Var(&cfg.DestPort, "dest-port", 0, "forwarding destination UDP port")
	flags.StringVar(&cfg.DestMAC, "dest-mac", "", "forwarding destination MAC (aa:bb:cc:dd:ee:ff); resolved via netlink if omitted")
	flags.BoolVarP(&cfg.ZeroCopy, "zero-copy", "z", false, "request zero-copy AF_XDP binding")
	flags.Uint32Var(&cfg.Queue, "queue", 0, "NIC queue to bind")
	flags.IntVar(&cfg.CPU, "cpu", cfg.CPU, "CPU core to pin the datapath goroutine to")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to serve /metrics and /stats on")
	flags.StringVar(&configPath, "config", "", "optional TOML config file (flags override file values)")

	if err := cmd.Execute(); err != nil {
		log.WithError(err).Fatal("relay exited with error")
	}
}

// mergeConfig layers explicitly-set CLI flags over a file-loaded config,
// so "--config foo.toml --cpu 3" lets the flag win without the caller
// having to track which fields were touched by hand.
func mergeConfig(file, flagCfg config.Config, cmd *cobra.Command) config.Config {
	out := file
	f := cmd.Flags()
	if f.Changed("interface") {
		out.Interface = flagCfg.Interface
	}
	if f.Changed("dest-ip") {
		out.DestIP = flagCfg.DestIP
	}
	if f.Changed("dest-port") {
		out.DestPort = flagCfg.DestPort
	}
	if f.Changed("dest-mac") {
		out.DestMAC = flagCfg.DestMAC
	}
	if f.Changed("zero-copy") {
		out.ZeroCopy = flagCfg.ZeroCopy
	}
	if f.Changed("queue") {
		out.Queue = flagCfg.Queue
	}
	if f.Changed("cpu") {
		out.CPU = flagCfg.CPU
	}
	if f.Changed("metrics-addr") {
		out.MetricsAddr = flagCfg.MetricsAddr
	}
	return out
}

func run(cfg config.Config, log *logrus.Entry) error {
	if err := rlimit.RemoveMemlock(); err != nil {
		return fmt.Errorf("remove memlock limit: %w", err)
	}

	topo := sysutil.DetectTopology()
	log.WithField("cpus", topo.NumCPU).Info("detected host topology")

	if err := sysutil.RaiseDatapathCapabilities(); err != nil {
		log.WithError(err).Warn("failed to raise capabilities; continuing with current privilege set")
	}

	classifier, err := bpf.Load(cfg.Interface)
	if err != nil {
		return fmt.Errorf("load xdp classifier: %w", err)
	}
	defer classifier.Close()

	sock, err := xdpsock.Open(classifier.Iface.Index, cfg.Queue, cfg.ZeroCopy)
	if err != nil {
		return fmt.Errorf("open af_xdp socket: %w", err)
	}
	if err := sock.Bind(classifier.XsksMap); err != nil {
		return fmt.Errorf("bind af_xdp socket into xsks_map: %w", err)
	}

	srcMAC := net.HardwareAddr(classifier.Iface.HardwareAddr)
	if len(srcMAC) != 6 {
		srcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	}
	srcIP := firstIPv4(classifier.Iface)

	target, err := resolveTarget(cfg, srcIP)
	if err != nil {
		return fmt.Errorf("resolve forwarding target: %w", err)
	}
	if target.Enabled() {
		log.WithFields(logrus.Fields{"ip": target.IP, "port": target.Port, "mac": target.MAC}).Info("forwarding enabled")
	} else {
		log.Info("no forwarding target configured; shreds feed the reassembler only")
	}

	counters := stats.New()
	reassembler := reassemble.NewLocal()

	dp := &relay.Datapath{
		Sock:        sock,
		SrcMAC:      srcMAC,
		SrcIP:       srcIP,
		Target:      target,
		Counters:    counters,
		Reassembler: reassembler,
		OnSegment: func(seg reassemble.Segment) {
			// seg.Payload has already passed entry.Decode inside TryDeshred
			// by the time it reaches here.
			log.WithFields(logrus.Fields{"slot": seg.Slot, "bytes": len(seg.Payload)}).Debug("segment reassembled")
		},
	}

	metricsSrv := metrics.New(cfg.MetricsAddr, counters, log.WithField("component", "metrics"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	stop := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		if err := sysutil.PinCurrentThread(cfg.CPU); err != nil {
			log.WithError(err).Warn("failed to pin datapath goroutine to requested cpu")
		}
		if err := sysutil.RaiseDatapathPriority(); err != nil {
			log.WithError(err).Warn("failed to raise datapath thread to SCHED_FIFO")
		}
		dp.Run(stop)
	}()

	go func() {
		if topo.Ideal {
			if err := sysutil.PinCurrentThread(config.CPUMetricsServer); err != nil {
				log.WithError(err).Warn("failed to pin metrics goroutine to its dedicated cpu")
			}
		}
		if err := metricsSrv.Serve(ctx); err != nil {
			log.WithError(err).Error("metrics server stopped")
		}
	}()

	log.WithFields(logrus.Fields{
		"interface": cfg.Interface,
		"queue":     cfg.Queue,
		"cpu":       cfg.CPU,
	}).Info("relay running")

	<-sig
	log.Info("shutting down")
	close(stop)
	cancel()
	return nil
}

func firstIPv4(ifi *net.Interface) net.IP {
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}

func resolveTarget(cfg config.Config, srcIP net.IP) (relay.ForwardTarget, error) {
	if !cfg.ForwardingEnabled() {
		return relay.ForwardTarget{}, nil
	}

	ip := net.ParseIP(cfg.DestIP).To4()

	if cfg.DestMAC != "" {
		mac, err := net.ParseMAC(cfg.DestMAC)
		if err != nil {
			return relay.ForwardTarget{}, err
		}
		return relay.ForwardTarget{IP: ip, Port: cfg.DestPort, MAC: mac}, nil
	}

	mac, err := route.Netlink{}.Resolve(ip)
	if err != nil {
		return relay.ForwardTarget{}, fmt.Errorf("resolve next-hop MAC for %s (pass --dest-mac to override): %w", ip, err)
	}
	return relay.ForwardTarget{IP: ip, Port: cfg.DestPort, MAC: mac}, nil
}
