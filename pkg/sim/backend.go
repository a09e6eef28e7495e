package sim

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zacpullen/arena-api/pkg/acquisition"
	"github.com/zacpullen/arena-api/pkg/device"
	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/event"
	"github.com/zacpullen/arena-api/pkg/node"
	"github.com/zacpullen/arena-api/pkg/nodemap"
	"github.com/zacpullen/arena-api/pkg/system"
)

//go:embed descriptions/*.yaml
var descriptions embed.FS

// Options tune a simulated camera.
type Options struct {
	// Interface is the host interface the camera is attached to.
	Interface system.InterfaceInfo

	// IncompleteEvery marks every nth frame as incomplete. Zero never
	// does.
	IncompleteEvery uint64

	Logger *slog.Logger
}

// Backend is one simulated camera. It implements device.Backend.
type Backend struct {
	info   system.DeviceInfo
	opts   Options
	logger *slog.Logger
	maps   device.NodeMaps
	start  time.Time

	frames *frameSource
	events *eventSource

	// Mirrors of selected features, keyed by selector entry.
	chunkEnable       *selection
	eventNotification *selection
	triggerMode       *selection

	// chunkIDs maps chunk selector entries to chunk ids.
	chunkIDs map[string]uint32

	mu     sync.Mutex
	closed bool
}

// NewBackend builds the node maps of a camera described by info.
func NewBackend(info system.DeviceInfo, opts Options) (*Backend, error) {
	mac, err := system.NormalizeMAC(info.MACAddress)
	if err != nil {
		return nil, err
	}
	info.MACAddress = mac
	name := info.SerialNumber
	if name == "" {
		name = mac
	}

	b := &Backend{
		info:     info,
		opts:     opts,
		logger:   opts.Logger,
		start:    time.Now(),
		chunkIDs: make(map[string]uint32),
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	b.frames = &frameSource{b: b}
	b.events = &eventSource{b: b}

	for _, l := range []struct {
		file  string
		scope node.Scope
		dst   **nodemap.Graph
	}{
		{"camera.yaml", node.ScopeDevice, &b.maps.Device},
		{"tldevice.yaml", node.ScopeTLDevice, &b.maps.TLDevice},
		{"tlstream.yaml", node.ScopeTLStream, &b.maps.TLStream},
		{"tlinterface.yaml", node.ScopeTLInterface, &b.maps.TLInterface},
	} {
		g, err := loadGraph(l.file, l.scope, name)
		if err != nil {
			b.closeGraphs()
			return nil, err
		}
		*l.dst = g
	}
	if err := b.wire(); err != nil {
		b.closeGraphs()
		return nil, fmt.Errorf("wiring simulated camera %s: %w", mac, err)
	}
	return b, nil
}

func loadGraph(file string, scope node.Scope, deviceName string) (*nodemap.Graph, error) {
	data, err := descriptions.ReadFile("descriptions/" + file)
	if err != nil {
		return nil, err
	}
	desc, err := nodemap.ParseDescription(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return nodemap.New(scope, deviceName, desc.Nodes)
}

func (b *Backend) closeGraphs() {
	for _, g := range []*nodemap.Graph{b.maps.Device, b.maps.TLDevice, b.maps.TLStream, b.maps.TLInterface} {
		if g != nil {
			g.Close()
		}
	}
}

type nodeValue struct {
	g     *nodemap.Graph
	name  string
	value any
}

// wire fills the identity nodes and attaches the camera behaviour.
func (b *Backend) wire() error {
	mac, err := system.MACToInt(b.info.MACAddress)
	if err != nil {
		return err
	}
	values := []nodeValue{
		{b.maps.Device, "DeviceVendorName", b.info.Vendor},
		{b.maps.Device, "DeviceModelName", b.info.Model},
		{b.maps.Device, "DeviceSerialNumber", b.info.SerialNumber},
		{b.maps.Device, "DeviceFirmwareVersion", b.info.Version},
		{b.maps.Device, "DeviceUserID", b.info.UserDefinedName},
		{b.maps.TLDevice, "DeviceID", b.info.SerialNumber},
		{b.maps.TLDevice, "DeviceVendorName", b.info.Vendor},
		{b.maps.TLDevice, "DeviceModelName", b.info.Model},
		{b.maps.TLDevice, "DeviceVersion", b.info.Version},
		{b.maps.TLDevice, "GevDeviceMACAddress", mac},
		{b.maps.TLDevice, "GevDeviceIPAddress", system.IPToInt(b.info.IPAddress)},
		{b.maps.TLDevice, "GevDeviceSubnetMask", system.IPToInt(b.info.SubnetMask)},
		{b.maps.TLDevice, "GevDeviceDefaultGateway", system.IPToInt(b.info.DefaultGateway)},
		{b.maps.TLDevice, "GevCurrentIPConfigurationDHCP", b.info.DHCP},
		{b.maps.TLDevice, "GevCurrentIPConfigurationPersistentIP", b.info.PersistentIP},
		{b.maps.TLDevice, "GevCurrentIPConfigurationLLA", b.info.LLA},
		{b.maps.TLInterface, "InterfaceID", b.opts.Interface.Name},
		{b.maps.TLInterface, "GevInterfaceSubnetIPAddress", system.IPToInt(b.opts.Interface.IPAddress)},
		{b.maps.TLInterface, "GevInterfaceSubnetMask", system.IPToInt(b.opts.Interface.SubnetMask)},
		{b.maps.TLInterface, "DeviceCount", int64(1)},
	}
	if b.opts.Interface.MACAddress != "" {
		ifmac, err := system.MACToInt(b.opts.Interface.MACAddress)
		if err != nil {
			return err
		}
		values = append(values, nodeValue{b.maps.TLInterface, "GevInterfaceMACAddress", ifmac})
	}
	for _, v := range values {
		if err := v.g.Update(v.name, v.value); err != nil {
			return err
		}
	}

	for _, d := range b.maps.Device.ChunkDefinitions() {
		b.chunkIDs[strings.TrimPrefix(d.Name, "Chunk")] = d.ChunkID
	}

	dev := b.maps.Device
	if b.chunkEnable, err = watchSelected(dev, "ChunkSelector", "ChunkEnable"); err != nil {
		return err
	}
	if b.eventNotification, err = watchSelected(dev, "EventSelector", "EventNotification"); err != nil {
		return err
	}
	if b.triggerMode, err = watchSelected(dev, "TriggerSelector", "TriggerMode"); err != nil {
		return err
	}

	if err := dev.Bind("PayloadSize", func() (any, error) {
		l, err := b.layout()
		if err != nil {
			return nil, err
		}
		return int64(l.payloadSize()), nil
	}); err != nil {
		return err
	}
	if err := dev.Bind("DeviceTemperature", func() (any, error) {
		// Warms up by 8 degrees over the first ten minutes.
		warm := min(time.Since(b.start).Minutes(), 10)
		return 38.0 + 0.8*warm, nil
	}); err != nil {
		return err
	}

	for name, fn := range map[string]node.CommandFunc{
		acquisition.NodeAcquisitionStart: b.frames.acquisitionStart,
		acquisition.NodeAcquisitionStop:  b.frames.acquisitionStop,
		"TriggerSoftware":                b.frames.triggerSoftware,
		"TestEventGenerate":              b.events.testEvent,
		"TimestampLatch": func() error {
			return dev.Update("TimestampLatchValue", int64(b.timestamp()))
		},
	} {
		if err := dev.HandleCommand(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// Info returns the description the camera was built from.
func (b *Backend) Info() system.DeviceInfo { return b.info }

func (b *Backend) NodeMaps() device.NodeMaps       { return b.maps }
func (b *Backend) FrameSource() acquisition.Source { return b.frames }
func (b *Backend) EventSource() event.Source       { return b.events }

// Closed reports whether the camera was disconnected.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close disconnects the camera. The node maps are owned by the device
// and closed there.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	return errors.Join(b.frames.Close(), b.events.Close())
}

// timestamp is the camera clock in nanoseconds since power-up.
func (b *Backend) timestamp() uint64 {
	return uint64(time.Since(b.start).Nanoseconds())
}

func (b *Backend) checkConnected(op string) error {
	if b.Closed() {
		return errkind.New(errkind.ErrNotAvailable, op, "camera %s is disconnected", b.info.MACAddress)
	}
	return nil
}

var _ device.Backend = (*Backend)(nil)
