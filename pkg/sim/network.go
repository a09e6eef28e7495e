package sim

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"sync"

	"github.com/zacpullen/arena-api/pkg/device"
	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/system"
)

// DefaultInterface is the host interface of a Network created without
// one.
var DefaultInterface = system.InterfaceInfo{
	Name:       "sim0",
	MACAddress: "02:00:00:00:00:01",
	IPAddress:  netip.MustParseAddr("169.254.0.1"),
	SubnetMask: netip.MustParseAddr("255.255.0.0"),
}

// Camera returns the description of a simulated camera numbered n on the
// link-local subnet of DefaultInterface.
func Camera(n int) system.DeviceInfo {
	return system.DeviceInfo{
		Model:          "TRI050S-M",
		Vendor:         "Lucid Vision Labs",
		SerialNumber:   fmt.Sprintf("2100%05d", n),
		Version:        "1.80.0.0",
		MACAddress:     fmt.Sprintf("1c:0f:af:00:%02x:%02x", (n>>8)&0xff, n&0xff),
		IPAddress:      netip.AddrFrom4([4]byte{169, 254, byte(n >> 8), byte(n)}),
		SubnetMask:     netip.MustParseAddr("255.255.0.0"),
		DefaultGateway: netip.IPv4Unspecified(),
		LLA:            true,
	}
}

type camera struct {
	info    system.DeviceInfo
	backend *Backend
}

// Network is a simulated GigE Vision subnet. It implements
// system.Enumerator, system.Connector, system.IPForcer and
// system.InterfaceLister.
type Network struct {
	iface  system.InterfaceInfo
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	cameras []*camera
}

// NewNetwork creates a network with the given cameras. Options apply to
// every connected camera; a zero Options.Interface means
// DefaultInterface.
func NewNetwork(opts Options, cams ...system.DeviceInfo) (*Network, error) {
	if opts.Interface == (system.InterfaceInfo{}) {
		opts.Interface = DefaultInterface
	}
	n := &Network{iface: opts.Interface, opts: opts, logger: opts.Logger}
	if n.logger == nil {
		n.logger = slog.New(slog.DiscardHandler)
	}
	for _, c := range cams {
		if err := n.Add(c); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Add plugs a camera into the network.
func (n *Network) Add(info system.DeviceInfo) error {
	mac, err := system.NormalizeMAC(info.MACAddress)
	if err != nil {
		return err
	}
	info.MACAddress = mac
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.findLocked(mac) != nil {
		return errkind.New(errkind.ErrAlreadyRegistered, "Add", "camera %s is already on the network", mac)
	}
	n.cameras = append(n.cameras, &camera{info: info})
	return nil
}

// Remove unplugs a camera. A connected camera is disconnected: its frame
// and event sources stop and further starts fail with ErrNotAvailable.
func (n *Network) Remove(mac string) error {
	norm, err := system.NormalizeMAC(mac)
	if err != nil {
		return err
	}
	n.mu.Lock()
	idx := slices.IndexFunc(n.cameras, func(c *camera) bool { return c.info.MACAddress == norm })
	if idx < 0 {
		n.mu.Unlock()
		return errkind.New(errkind.ErrNotFound, "Remove", "no camera %s on the network", norm)
	}
	c := n.cameras[idx]
	n.cameras = slices.Delete(n.cameras, idx, idx+1)
	n.mu.Unlock()

	if c.backend != nil {
		return c.backend.Close()
	}
	return nil
}

func (n *Network) findLocked(mac string) *camera {
	for _, c := range n.cameras {
		if c.info.MACAddress == mac {
			return c
		}
	}
	return nil
}

// Enumerate answers a discovery broadcast. The user defined name of a
// connected camera reflects its DeviceUserID node.
func (n *Network) Enumerate(ctx context.Context) ([]system.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]system.DeviceInfo, 0, len(n.cameras))
	for _, c := range n.cameras {
		info := c.info
		if c.backend != nil && !c.backend.Closed() {
			if id, err := c.backend.maps.Device.StringValue("DeviceUserID"); err == nil {
				info.UserDefinedName = id
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// Connect opens a camera. A camera has one controlling connection at a
// time.
func (n *Network) Connect(ctx context.Context, info system.DeviceInfo) (device.Backend, error) {
	const op = "Connect"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mac, err := system.NormalizeMAC(info.MACAddress)
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	c := n.findLocked(mac)
	if c == nil {
		return nil, errkind.New(errkind.ErrNotFound, op, "no camera %s on the network", mac)
	}
	if c.backend != nil && !c.backend.Closed() {
		return nil, errkind.New(errkind.ErrNotAvailable, op, "camera %s is opened by another connection", mac)
	}
	b, err := NewBackend(c.info, n.opts)
	if err != nil {
		return nil, err
	}
	c.backend = b
	n.logger.Debug("camera connected", "mac", mac)
	return b, nil
}

// ForceIP changes the IP configuration of a camera that is not
// connected. The address is temporary: DHCP and persistent IP are
// reported off until the camera is re-added.
func (n *Network) ForceIP(ctx context.Context, mac string, ip, subnetMask, gateway netip.Addr) error {
	const op = "ForceIP"
	if err := ctx.Err(); err != nil {
		return err
	}
	norm, err := system.NormalizeMAC(mac)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	c := n.findLocked(norm)
	if c == nil {
		return errkind.New(errkind.ErrNotFound, op, "no camera %s on the network", norm)
	}
	if c.backend != nil && !c.backend.Closed() {
		return errkind.New(errkind.ErrIllegalState, op, "camera %s is connected", norm)
	}
	c.info.IPAddress = ip
	c.info.SubnetMask = subnetMask
	c.info.DefaultGateway = gateway
	c.info.DHCP = false
	c.info.PersistentIP = false
	c.info.LLA = false
	return nil
}

// Interfaces returns the single host interface of the network.
func (n *Network) Interfaces(ctx context.Context) ([]system.InterfaceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []system.InterfaceInfo{n.iface}, nil
}

var (
	_ system.Enumerator      = (*Network)(nil)
	_ system.Connector       = (*Network)(nil)
	_ system.IPForcer        = (*Network)(nil)
	_ system.InterfaceLister = (*Network)(nil)
)
