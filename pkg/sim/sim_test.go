package sim

import (
	"context"
	"encoding/binary"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zacpullen/arena-api/pkg/acquisition"
	"github.com/zacpullen/arena-api/pkg/buffer"
	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/event"
	"github.com/zacpullen/arena-api/pkg/system"
)

func newBackend(t *testing.T, opts Options) *Backend {
	t.Helper()
	b, err := NewBackend(Camera(7), opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Close()
		b.closeGraphs()
	})
	return b
}

func TestBackendIdentity(t *testing.T) {
	b := newBackend(t, Options{Interface: DefaultInterface})
	m := b.NodeMaps()

	assert.Equal(t, "210000007", m.Device.DeviceName())
	model, err := m.Device.StringValue("DeviceModelName")
	require.NoError(t, err)
	assert.Equal(t, "TRI050S-M", model)

	for name, want := range map[string]string{
		"GevDeviceMACAddress":     "1c:0f:af:00:00:07",
		"GevDeviceIPAddress":      "169.254.0.7",
		"GevDeviceSubnetMask":     "255.255.0.0",
		"GevDeviceDefaultGateway": "0.0.0.0",
	} {
		f, err := m.TLDevice.Resolve(name)
		require.NoError(t, err)
		got, err := f.ValueString()
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	lla, err := m.TLDevice.BoolValue("GevCurrentIPConfigurationLLA")
	require.NoError(t, err)
	assert.True(t, lla)

	f, err := m.TLInterface.Resolve("GevInterfaceSubnetIPAddress")
	require.NoError(t, err)
	ip, err := f.ValueString()
	require.NoError(t, err)
	assert.Equal(t, "169.254.0.1", ip)
}

func TestNewBackendRejectsBadMAC(t *testing.T) {
	info := Camera(1)
	info.MACAddress = "not-a-mac"
	_, err := NewBackend(info, Options{})
	assert.ErrorIs(t, err, errkind.ErrInvalidValue)
}

func TestPayloadSizeFollowsLayout(t *testing.T) {
	b := newBackend(t, Options{})
	g := b.NodeMaps().Device

	tests := []struct {
		name   string
		setup  func()
		expect int64
	}{
		{"default", func() {}, 640 * 480},
		{"mono16", func() { require.NoError(t, g.SetEnum("PixelFormat", "Mono16")) }, 640 * 480 * 2},
		{"smaller", func() { require.NoError(t, g.SetInt("Height", 100)) }, 640 * 100 * 2},
		{"chunk mode without chunks", func() { require.NoError(t, g.SetBool("ChunkModeActive", true)) }, 640 * 100 * 2},
		{"crc chunk", func() {
			require.NoError(t, g.SetEnum("ChunkSelector", "CRC"))
			require.NoError(t, g.SetBool("ChunkEnable", true))
		}, 640*100*2 + 8 + 4 + 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			size, err := g.IntValue("PayloadSize")
			require.NoError(t, err)
			assert.Equal(t, tt.expect, size)
		})
	}
}

func TestGradient(t *testing.T) {
	b := newBackend(t, Options{})
	g := b.NodeMaps().Device
	require.NoError(t, g.SetInt("Width", 16))
	require.NoError(t, g.SetInt("Height", 2))
	require.NoError(t, g.SetEnum("PixelFormat", "Mono12"))

	f, err := b.frame(4095)
	require.NoError(t, err)
	require.Len(t, f.Image.Data, 16*2*2)
	// (0 + 0 + 4095) & 0xFFF, then (1 + 4095) wraps to 0.
	assert.Equal(t, uint16(4095), binary.LittleEndian.Uint16(f.Image.Data[0:]))
	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(f.Image.Data[2:]))
	assert.Empty(t, f.Chunks)
}

type nopSink struct{}

func (nopSink) Deliver(*buffer.Frame) {}

func TestIncompleteFrames(t *testing.T) {
	b := newBackend(t, Options{IncompleteEvery: 2})
	m := b.NodeMaps()
	require.NoError(t, m.Device.SetEnum("TriggerMode", "On"))

	e := acquisition.New(m.Device, m.TLStream, b.FrameSource(), acquisition.Config{})
	s, err := e.Start(4)
	require.NoError(t, err)
	defer s.Close()

	for range 4 {
		require.NoError(t, m.Device.Execute("TriggerSoftware"))
	}
	bufs, err := s.GetBuffers(4, time.Second)
	require.NoError(t, err)
	for _, buf := range bufs {
		assert.Equal(t, buf.FrameID()%2 == 0, buf.IsIncomplete(), "frame %d", buf.FrameID())
	}
	incomplete, err := m.TLStream.IntValue("StreamIncompleteFrameCount")
	require.NoError(t, err)
	assert.Equal(t, int64(2), incomplete)
}

func TestTriggerSoftwareRequiresTriggerMode(t *testing.T) {
	b := newBackend(t, Options{})
	g := b.NodeMaps().Device

	err := g.Execute("TriggerSoftware")
	assert.ErrorIs(t, err, errkind.ErrIllegalState)

	require.NoError(t, g.SetEnum("TriggerMode", "On"))
	err = g.Execute("TriggerSoftware")
	assert.ErrorIs(t, err, errkind.ErrIllegalState, "not started")

	// TriggerMode is kept per TriggerSelector entry.
	require.NoError(t, g.SetEnum("TriggerSelector", "AcquisitionStart"))
	mode, err := g.EnumValue("TriggerMode")
	require.NoError(t, err)
	assert.Equal(t, "Off", mode)
	assert.True(t, b.triggerMode.on("FrameStart"))
	assert.False(t, b.triggerMode.on("AcquisitionStart"))
}

func TestSourcesOpenOnce(t *testing.T) {
	b := newBackend(t, Options{})
	require.NoError(t, b.FrameSource().Open(nopSink{}))
	assert.ErrorIs(t, b.FrameSource().Open(nopSink{}), errkind.ErrIllegalState)
	require.NoError(t, b.FrameSource().Close())

	ch := event.New(b.NodeMaps().Device, b.EventSource(), event.Config{})
	require.NoError(t, ch.Initialize())
	assert.ErrorIs(t, b.EventSource().Open(nil), errkind.ErrIllegalState)
	require.NoError(t, ch.Deinitialize())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.FrameSource().Open(nopSink{}), errkind.ErrNotAvailable)
	assert.ErrorIs(t, b.NodeMaps().Device.Execute("TestEventGenerate"), errkind.ErrNotAvailable)
}

func TestTimestampLatch(t *testing.T) {
	b := newBackend(t, Options{})
	g := b.NodeMaps().Device
	require.NoError(t, g.Execute("TimestampLatch"))
	first, err := g.IntValue("TimestampLatchValue")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	require.NoError(t, g.Execute("TimestampLatch"))
	second, err := g.IntValue("TimestampLatchValue")
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestNetwork(t *testing.T) {
	ctx := context.Background()
	n, err := NewNetwork(Options{}, Camera(1), Camera(2))
	require.NoError(t, err)

	assert.ErrorIs(t, n.Add(Camera(1)), errkind.ErrAlreadyRegistered)

	infos, err := n.Enumerate(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	be, err := n.Connect(ctx, infos[0])
	require.NoError(t, err)
	_, err = n.Connect(ctx, infos[0])
	assert.ErrorIs(t, err, errkind.ErrNotAvailable)

	// The user defined name of a connected camera is live.
	require.NoError(t, be.NodeMaps().Device.SetString("DeviceUserID", "left"))
	infos, err = n.Enumerate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "left", infos[0].UserDefinedName)

	ip := netip.MustParseAddr("192.168.1.20")
	mask := netip.MustParseAddr("255.255.255.0")
	gw := netip.MustParseAddr("192.168.1.1")
	assert.ErrorIs(t, n.ForceIP(ctx, infos[0].MACAddress, ip, mask, gw), errkind.ErrIllegalState)
	require.NoError(t, n.ForceIP(ctx, "1C-0F-AF-00-00-02", ip, mask, gw))
	infos, err = n.Enumerate(ctx)
	require.NoError(t, err)
	assert.Equal(t, ip, infos[1].IPAddress)
	assert.False(t, infos[1].LLA)

	_, err = n.Connect(ctx, Camera(9))
	assert.ErrorIs(t, err, errkind.ErrNotFound)

	require.NoError(t, n.Remove(infos[0].MACAddress))
	assert.True(t, be.(*Backend).Closed())
	assert.ErrorIs(t, n.Remove(infos[0].MACAddress), errkind.ErrNotFound)

	ifaces, err := n.Interfaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []system.InterfaceInfo{DefaultInterface}, ifaces)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = n.Enumerate(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
