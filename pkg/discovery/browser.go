package discovery

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/system"
)

// BrowserConfig configures an Enumerator.
type BrowserConfig struct {
	// BrowseTimeout bounds Enumerate when its context has no deadline.
	// Default: BrowseTimeout.
	BrowseTimeout time.Duration

	// Interface restricts browsing to one network interface.
	// Empty string means all interfaces.
	Interface string

	Logger *slog.Logger
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{BrowseTimeout: BrowseTimeout}
}

type browseFunc func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

type interfacesFunc func() ([]net.Interface, error)

// Enumerator discovers cameras by browsing for ServiceType.
type Enumerator struct {
	config BrowserConfig
	logger *slog.Logger

	browse     browseFunc
	interfaces interfacesFunc

	mu     sync.Mutex
	active map[*context.CancelFunc]struct{}
}

// NewEnumerator creates an mDNS enumerator.
func NewEnumerator(config BrowserConfig) *Enumerator {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Enumerator{
		config: config,
		logger: logger,
		browse: func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error {
			return zeroconf.Browse(ctx, service, domain, entries, removed, opts...)
		},
		interfaces: net.Interfaces,
		active:     make(map[*context.CancelFunc]struct{}),
	}
}

// Enumerate browses until ctx expires and returns the cameras that
// answered. Entries with undecodable TXT records are skipped. Cameras
// seen on several interfaces are reported once.
func (e *Enumerator) Enumerate(ctx context.Context) ([]system.DeviceInfo, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.BrowseTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	e.track(&cancel, true)
	defer e.track(&cancel, false)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	browseErr := make(chan error, 1)
	go func() {
		browseErr <- e.browse(ctx, ServiceType, Domain, entries, removed, e.browserOptions()...)
	}()

	found := make(map[string]system.DeviceInfo)
	instances := make(map[string]string)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			info, err := entryToDeviceInfo(entry)
			if err != nil {
				e.logger.Debug("ignoring mDNS entry", "instance", entry.Instance, "error", err)
				continue
			}
			if _, seen := found[info.MACAddress]; !seen {
				found[info.MACAddress] = info
				instances[entry.Instance] = info.MACAddress
			}

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			if mac, ok := instances[entry.Instance]; ok {
				delete(found, mac)
				delete(instances, entry.Instance)
			}

		case err := <-browseErr:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			browseErr = nil

		case <-ctx.Done():
			// The deadline ends a browse; cancellation aborts it.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return sortedInfos(found), nil
			}
			return nil, ctx.Err()
		}
	}
}

func (e *Enumerator) track(cancel *context.CancelFunc, add bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if add {
		e.active[cancel] = struct{}{}
	} else {
		delete(e.active, cancel)
	}
}

// Stop cancels every running Enumerate. Each returns ctx.Err().
func (e *Enumerator) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for cancel := range e.active {
		(*cancel)()
	}
}

// Interfaces lists the host interfaces that are up and carry an IPv4
// address. With BrowserConfig.Interface set only that interface is listed.
func (e *Enumerator) Interfaces(ctx context.Context) ([]system.InterfaceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ifaces, err := e.interfaces()
	if err != nil {
		return nil, err
	}
	var out []system.InterfaceInfo
	for _, iface := range ifaces {
		if e.config.Interface != "" && iface.Name != e.config.Interface {
			continue
		}
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			ip, _ := netip.AddrFromSlice(ipnet.IP.To4())
			mask, _ := netip.AddrFromSlice(net.IP(ipnet.Mask).To4())
			out = append(out, system.InterfaceInfo{
				Name:       iface.Name,
				MACAddress: iface.HardwareAddr.String(),
				IPAddress:  ip,
				SubnetMask: mask,
			})
			break
		}
	}
	if e.config.Interface != "" && len(out) == 0 {
		return nil, errkind.New(errkind.ErrNotFound, "Interfaces", "interface %s is not up or has no IPv4 address", e.config.Interface)
	}
	return out, nil
}

func (e *Enumerator) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if e.config.Interface != "" {
		iface, err := net.InterfaceByName(e.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// entryToDeviceInfo converts a zeroconf entry to a DeviceInfo. The first
// A record stands in for a missing ip TXT record.
func entryToDeviceInfo(entry *zeroconf.ServiceEntry) (system.DeviceInfo, error) {
	info, err := DecodeDeviceTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return info, err
	}
	if !info.IPAddress.IsValid() && len(entry.AddrIPv4) > 0 {
		if ip, ok := netip.AddrFromSlice(entry.AddrIPv4[0].To4()); ok {
			info.IPAddress = ip
		}
	}
	return info, nil
}

func sortedInfos(found map[string]system.DeviceInfo) []system.DeviceInfo {
	out := make([]system.DeviceInfo, 0, len(found))
	for _, info := range found {
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b system.DeviceInfo) int {
		switch {
		case a.MACAddress < b.MACAddress:
			return -1
		case a.MACAddress > b.MACAddress:
			return 1
		}
		return 0
	})
	return out
}

var (
	_ system.Enumerator      = (*Enumerator)(nil)
	_ system.InterfaceLister = (*Enumerator)(nil)
)
