// Command arena-shell is an interactive shell over a simulated GigE
// Vision network.
//
// It enumerates and creates cameras, reads and writes their node maps,
// runs acquisitions and device events, and can publish the simulated
// cameras over mDNS so other shells discover them.
//
// Usage:
//
//	arena-shell [flags]
//
// Flags:
//
//	-config string        System configuration file (YAML)
//	-cameras int          Number of simulated cameras (default 2)
//	-incomplete-every n   Mark every nth simulated frame incomplete
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-stream-log string    Write stream and event logs to this file
//	-metrics-addr string  Serve Prometheus metrics on this address
//	-mdns                 Enable the discover and advertise commands
//	-iface string         Restrict mDNS to one network interface
//	-state-dir string     Save the session and camera settings here on exit
//	-c string             Run ';'-separated commands and exit
//
// Examples:
//
//	# Two cameras, verbose logging
//	arena-shell -log-level debug
//
//	# Grab one frame and save it
//	arena-shell -c "devices; create 0; stream start; grab 1 1000 -o frame.pgm"
//
//	# Record a stream log for arena-log
//	arena-shell -stream-log stream.slog
//
//	# Keep camera settings between runs
//	arena-shell -state-dir ~/.arena-shell
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zacpullen/arena-api/cmd/arena-shell/interactive"
	"github.com/zacpullen/arena-api/pkg/discovery"
	"github.com/zacpullen/arena-api/pkg/metrics"
	"github.com/zacpullen/arena-api/pkg/persistence"
	"github.com/zacpullen/arena-api/pkg/sim"
	"github.com/zacpullen/arena-api/pkg/system"
	"github.com/zacpullen/arena-api/pkg/version"
)

// Config holds the command line settings.
type Config struct {
	ConfigFile      string
	Cameras         int
	IncompleteEvery uint64
	LogLevel        string
	StreamLog       string
	MetricsAddr     string
	MDNS            bool
	Interface       string
	StateDir        string
	Script          string
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "System configuration file (YAML)")
	flag.IntVar(&config.Cameras, "cameras", 2, "Number of simulated cameras")
	flag.Uint64Var(&config.IncompleteEvery, "incomplete-every", 0, "Mark every nth simulated frame incomplete")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.StreamLog, "stream-log", "", "Write stream and event logs to this file")
	flag.StringVar(&config.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	flag.BoolVar(&config.MDNS, "mdns", false, "Enable the discover and advertise commands")
	flag.StringVar(&config.Interface, "iface", "", "Restrict mDNS to one network interface")
	flag.StringVar(&config.StateDir, "state-dir", "", "Save the session and camera settings here on exit")
	flag.StringVar(&config.Script, "c", "", "Run ';'-separated commands and exit")
}

// logOutput lets the log handler follow the readline terminal once it is
// attached.
type logOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *logOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Write(p)
}

func (o *logOutput) Set(w io.Writer) {
	o.mu.Lock()
	o.w = w
	o.mu.Unlock()
}

func main() {
	flag.Parse()

	out := &logOutput{w: os.Stderr}
	logger, err := setupLogging(config.LogLevel, out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(2)
	}

	if err := run(logger, out); err != nil {
		logger.Error("arena-shell failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func run(logger *slog.Logger, out *logOutput) error {
	cfg := system.DefaultConfig()
	if config.ConfigFile != "" {
		var err error
		if cfg, err = system.LoadConfig(config.ConfigFile); err != nil {
			return err
		}
	}
	cfg.Logger = logger
	cfg.Device.Logger = logger
	if config.StreamLog != "" {
		cfg.Device.StreamLog = config.StreamLog
	}

	if config.MetricsAddr != "" {
		collector := metrics.New(prometheus.DefaultRegisterer)
		if err := collector.Register(); err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		cfg.Device.Metrics = collector
		go serveMetrics(logger, config.MetricsAddr)
	}

	cams := make([]system.DeviceInfo, config.Cameras)
	for i := range cams {
		cams[i] = sim.Camera(i + 1)
	}
	network, err := sim.NewNetwork(sim.Options{IncompleteEvery: config.IncompleteEvery, Logger: logger}, cams...)
	if err != nil {
		return err
	}
	sys, err := system.New(network, network, cfg)
	if err != nil {
		return err
	}
	defer sys.Close()
	logger.Info("arena-shell started", "version", version.Library, "cameras", config.Cameras)

	var opts interactive.Options
	if config.MDNS {
		bc := discovery.DefaultBrowserConfig()
		bc.Interface = config.Interface
		bc.Logger = logger
		opts.Browser = discovery.NewEnumerator(bc)
		opts.Advertiser = discovery.NewAdvertiser(discovery.AdvertiserConfig{Interface: config.Interface})
	}
	if config.StateDir != "" {
		opts.Store = persistence.NewStore(config.StateDir)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Script != "" {
		shell := interactive.New(sys, os.Stdout, opts)
		defer shell.Close()
		if err := shell.Restore(); err != nil {
			return err
		}
		for _, line := range strings.Split(config.Script, ";") {
			if shell.Execute(ctx, line) {
				break
			}
		}
		return nil
	}

	shell := interactive.New(sys, nil, opts)
	defer shell.Close()
	if err := shell.Attach(); err != nil {
		return err
	}
	out.Set(shell.Stdout())
	if err := shell.Restore(); err != nil {
		return err
	}
	go shell.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig)
	case <-ctx.Done():
	}
	out.Set(os.Stderr)
	return nil
}

func serveMetrics(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", "error", err)
	}
}
