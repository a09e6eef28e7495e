package system

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zacpullen/arena-api/pkg/device"
	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/nodemap"
	"github.com/zacpullen/arena-api/pkg/version"
)

// DefaultDiscoveryTimeout is the time DeviceInfos waits for replies.
const DefaultDiscoveryTimeout = 100 * time.Millisecond

//go:generate go run ../../cmd/arena-nodegen -description tlsystem.yaml -package system -type TLSystemNodes -output tlsystem_nodes_gen.go

//go:embed tlsystem.yaml
var tlSystemDescription []byte

// Enumerator finds devices on the network.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]DeviceInfo, error)
}

// Connector opens the transport to a discovered device.
type Connector interface {
	Connect(ctx context.Context, info DeviceInfo) (device.Backend, error)
}

// IPForcer assigns a temporary IP configuration to a device by MAC
// address. Enumerators or connectors may implement it.
type IPForcer interface {
	ForceIP(ctx context.Context, mac string, ip, subnetMask, gateway netip.Addr) error
}

// InterfaceLister lists the host interfaces devices are found on.
type InterfaceLister interface {
	Interfaces(ctx context.Context) ([]InterfaceInfo, error)
}

// Config configures a System.
type Config struct {
	// DiscoveryTimeout bounds DeviceInfos. It must be finite and at least 1ms.
	DiscoveryTimeout device.Timeout `yaml:"discoveryTimeout"`

	// Device configures every created device.
	Device device.Config `yaml:"device"`

	// Vendor and Model fill the TLSystem information nodes.
	Vendor string `yaml:"vendor,omitempty"`
	Model  string `yaml:"model,omitempty"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the defaults of a new System.
func DefaultConfig() Config {
	return Config{
		DiscoveryTimeout: device.Timeout(DefaultDiscoveryTimeout),
		Device:           device.DefaultConfig(),
		Vendor:           "arena-api",
		Model:            "GigE Vision",
	}
}

// LoadConfig reads a YAML system config over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing system config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config bounds.
func (c *Config) Validate() error {
	if c.DiscoveryTimeout < device.Timeout(time.Millisecond) || c.DiscoveryTimeout == device.Infinite {
		return fmt.Errorf("%w: discoveryTimeout %s must be finite and at least 1ms", errkind.ErrOutOfRange, c.DiscoveryTimeout)
	}
	return c.Device.Validate()
}

// System is the entry point of the library: it discovers devices and
// owns the devices it creates. Several Systems may coexist.
type System struct {
	enum   Enumerator
	conn   Connector
	logger *slog.Logger
	tl     *nodemap.Graph
	nodes  *TLSystemNodes

	mu         sync.Mutex
	cfg        device.Config
	infos      []DeviceInfo
	enumerated bool
	devices    map[string]*device.Device
	closed     bool
}

// New creates a System discovering devices with enum and connecting
// them through conn.
func New(enum Enumerator, conn Connector, cfg Config) (*System, error) {
	if enum == nil || conn == nil {
		return nil, errkind.New(errkind.ErrInvalidArgument, "New", "enumerator and connector are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	desc, err := nodemap.ParseDescription(tlSystemDescription)
	if err != nil {
		return nil, err
	}
	tl, err := nodemap.FromDescription(desc)
	if err != nil {
		return nil, err
	}

	s := &System{
		enum:    enum,
		conn:    conn,
		logger:  cfg.Logger,
		tl:      tl,
		nodes:   NewTLSystemNodes(tl),
		cfg:     cfg.Device,
		devices: make(map[string]*device.Device),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	for name, v := range map[string]any{
		NodeTLVendorName:        cfg.Vendor,
		NodeTLModelName:         cfg.Model,
		NodeTLVersion:           version.Library,
		NodeDeviceUpdateTimeout: cfg.DiscoveryTimeout.Duration().Milliseconds(),
	} {
		if err := tl.Update(name, v); err != nil {
			tl.Close()
			return nil, err
		}
	}
	err = tl.HandleCommand(NodeDeviceUpdateList, func() error {
		_, err := s.DeviceInfos(context.Background())
		return err
	})
	if err != nil {
		tl.Close()
		return nil, err
	}
	return s, nil
}

// TLSystemNodeMap returns the transport layer system node map.
func (s *System) TLSystemNodeMap() *nodemap.Graph { return s.tl }

// TLSystemNodes returns typed accessors over TLSystemNodeMap.
func (s *System) TLSystemNodes() *TLSystemNodes { return s.nodes }

// DiscoveryTimeout returns the current DeviceUpdateTimeout.
func (s *System) DiscoveryTimeout() time.Duration {
	ms, err := s.nodes.DeviceUpdateTimeout()
	if err != nil {
		return DefaultDiscoveryTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

// SetDiscoveryTimeout changes the time DeviceInfos waits for replies.
func (s *System) SetDiscoveryTimeout(d time.Duration) error {
	if d < time.Millisecond {
		return errkind.New(errkind.ErrOutOfRange, "SetDiscoveryTimeout", "timeout %v is shorter than 1ms", d)
	}
	return s.nodes.SetDeviceUpdateTimeout(d.Milliseconds())
}

func (s *System) checkOpen(op string) error {
	if s.closed {
		return errkind.New(errkind.ErrIllegalState, op, "system is closed")
	}
	return nil
}

// DeviceInfos enumerates the devices on the network. Devices answering
// after the discovery timeout are missed.
func (s *System) DeviceInfos(ctx context.Context) ([]DeviceInfo, error) {
	const op = "DeviceInfos"
	s.mu.Lock()
	err := s.checkOpen(op)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.DiscoveryTimeout())
	defer cancel()
	found, err := s.enum.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}

	infos := make([]DeviceInfo, 0, len(found))
	seen := make(map[string]bool, len(found))
	for _, info := range found {
		mac, err := NormalizeMAC(info.MACAddress)
		if err != nil {
			s.logger.Warn("ignoring device with invalid MAC", "info", info.String(), "error", err)
			continue
		}
		if seen[mac] {
			continue
		}
		seen[mac] = true
		info.MACAddress = mac
		infos = append(infos, info)
	}
	slices.SortFunc(infos, func(a, b DeviceInfo) int {
		switch {
		case a.MACAddress < b.MACAddress:
			return -1
		case a.MACAddress > b.MACAddress:
			return 1
		}
		return 0
	})

	s.mu.Lock()
	s.infos = infos
	s.enumerated = true
	s.mu.Unlock()

	if err := s.tl.Update(NodeDeviceCount, int64(len(infos))); err != nil {
		s.logger.Warn("updating DeviceCount failed", "error", err)
	}
	s.logger.Debug("devices enumerated", "count", len(infos))
	return slices.Clone(infos), nil
}

// InterfaceInfos lists the host interfaces when the enumerator or the
// connector can report them.
func (s *System) InterfaceInfos(ctx context.Context) ([]InterfaceInfo, error) {
	var lister InterfaceLister
	if l, ok := s.enum.(InterfaceLister); ok {
		lister = l
	} else if l, ok := s.conn.(InterfaceLister); ok {
		lister = l
	}
	if lister == nil {
		return nil, errkind.New(errkind.ErrNotImplemented, "InterfaceInfos", "transport cannot list interfaces")
	}
	ifaces, err := lister.Interfaces(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.tl.Update(NodeInterfaceCount, int64(len(ifaces))); err != nil {
		s.logger.Warn("updating InterfaceCount failed", "error", err)
	}
	return ifaces, nil
}

// CreateDevice connects the devices described by infos, which must come
// from the last DeviceInfos call. A device that is already created is
// returned again instead of being connected twice.
func (s *System) CreateDevice(ctx context.Context, infos ...DeviceInfo) ([]*device.Device, error) {
	const op = "CreateDevice"
	if len(infos) == 0 {
		return nil, errkind.New(errkind.ErrInvalidArgument, op, "no device infos given")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(op); err != nil {
		return nil, err
	}
	if !s.enumerated {
		return nil, errkind.New(errkind.ErrIllegalState, op, "call DeviceInfos before creating devices")
	}

	known := make([]DeviceInfo, len(infos))
	for i, info := range infos {
		mac, err := NormalizeMAC(info.MACAddress)
		if err != nil {
			return nil, err
		}
		idx := slices.IndexFunc(s.infos, func(d DeviceInfo) bool { return d.MACAddress == mac })
		if idx < 0 {
			return nil, errkind.New(errkind.ErrNotFound, op, "no device with MAC %s was discovered", mac)
		}
		known[i] = s.infos[idx]
	}

	out := make([]*device.Device, 0, len(known))
	var created []*device.Device
	for _, info := range known {
		if d, ok := s.devices[info.MACAddress]; ok && !d.Destroyed() {
			out = append(out, d)
			continue
		}
		d, err := s.connect(ctx, info)
		if err != nil {
			for _, c := range created {
				_ = c.Close()
				delete(s.devices, macOf(s.devices, c))
			}
			return nil, fmt.Errorf("creating device %s: %w", info.MACAddress, err)
		}
		s.devices[info.MACAddress] = d
		created = append(created, d)
		out = append(out, d)
		s.logger.Info("device created", "device", d.String())
	}
	return out, nil
}

func (s *System) connect(ctx context.Context, info DeviceInfo) (*device.Device, error) {
	backend, err := s.conn.Connect(ctx, info)
	if err != nil {
		return nil, err
	}
	d, err := device.New(backend, s.cfg)
	if err != nil {
		return nil, errors.Join(err, backend.Close())
	}
	return d, nil
}

func macOf(devices map[string]*device.Device, d *device.Device) string {
	for mac, dd := range devices {
		if dd == d {
			return mac
		}
	}
	return ""
}

// MACAddress returns the MAC address d was created for. It reports false
// for devices this System does not own.
func (s *System) MACAddress(d *device.Device) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mac := macOf(s.devices, d)
	return mac, mac != ""
}

// Devices returns the devices created and not yet destroyed.
func (s *System) Devices() []*device.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	macs := make([]string, 0, len(s.devices))
	for mac := range s.devices {
		macs = append(macs, mac)
	}
	slices.Sort(macs)
	out := make([]*device.Device, len(macs))
	for i, mac := range macs {
		out[i] = s.devices[mac]
	}
	return out
}

// DestroyDevice stops streaming and events on the given devices and
// closes them. Without arguments every created device is destroyed.
// Devices not created by this System fail with ErrNotFound before any
// device is touched.
func (s *System) DestroyDevice(devs ...*device.Device) error {
	const op = "DestroyDevice"
	s.mu.Lock()
	if len(devs) == 0 {
		for _, d := range s.devices {
			devs = append(devs, d)
		}
	}
	macs := make([]string, len(devs))
	for i, d := range devs {
		if d == nil {
			s.mu.Unlock()
			return errkind.New(errkind.ErrInvalidArgument, op, "device %d is nil", i)
		}
		mac := macOf(s.devices, d)
		if mac == "" {
			s.mu.Unlock()
			return errkind.New(errkind.ErrNotFound, op, "device %s was not created by this system", d)
		}
		macs[i] = mac
	}
	for _, mac := range macs {
		delete(s.devices, mac)
	}
	s.mu.Unlock()

	var errs []error
	for i, d := range devs {
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("destroying device %s: %w", macs[i], err))
			continue
		}
		s.logger.Info("device destroyed", "mac", macs[i])
	}
	return errors.Join(errs...)
}

// ForceIP assigns info's IP address, subnet mask and default gateway to
// the device with info's MAC address. The device must not be created.
func (s *System) ForceIP(ctx context.Context, info DeviceInfo) error {
	const op = "ForceIP"
	var forcer IPForcer
	if f, ok := s.conn.(IPForcer); ok {
		forcer = f
	} else if f, ok := s.enum.(IPForcer); ok {
		forcer = f
	}
	if forcer == nil {
		return errkind.New(errkind.ErrNotImplemented, op, "transport cannot force IP addresses")
	}
	mac, err := NormalizeMAC(info.MACAddress)
	if err != nil {
		return err
	}
	for name, a := range map[string]netip.Addr{"IP address": info.IPAddress, "subnet mask": info.SubnetMask, "default gateway": info.DefaultGateway} {
		if !a.Is4() {
			return errkind.New(errkind.ErrInvalidArgument, op, "%s %v is not an IPv4 address", name, a)
		}
	}

	s.mu.Lock()
	if d, ok := s.devices[mac]; ok && !d.Destroyed() {
		s.mu.Unlock()
		return errkind.New(errkind.ErrIllegalState, op, "device %s is open; destroy it before forcing its IP", mac)
	}
	s.mu.Unlock()

	if err := forcer.ForceIP(ctx, mac, info.IPAddress, info.SubnetMask, info.DefaultGateway); err != nil {
		return fmt.Errorf("forcing IP of %s: %w", mac, err)
	}

	s.mu.Lock()
	for i := range s.infos {
		if s.infos[i].MACAddress == mac {
			s.infos[i].IPAddress = info.IPAddress
			s.infos[i].SubnetMask = info.SubnetMask
			s.infos[i].DefaultGateway = info.DefaultGateway
			s.infos[i].DHCP, s.infos[i].PersistentIP = false, false
		}
	}
	s.mu.Unlock()
	s.logger.Info("IP forced", "mac", mac, "ip", info.IPAddress)
	return nil
}

// Close destroys every device and the TLSystem node map. Calling Close
// again does nothing.
func (s *System) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	err := s.DestroyDevice()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.tl.Close()
	return err
}
