package device

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zacpullen/arena-api/pkg/acquisition"
	"github.com/zacpullen/arena-api/pkg/buffer"
	"github.com/zacpullen/arena-api/pkg/callback"
	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/event"
	"github.com/zacpullen/arena-api/pkg/log"
	"github.com/zacpullen/arena-api/pkg/nodemap"
)

// NodeMaps are the node maps of one device.
type NodeMaps struct {
	// Device is the main node map with the camera features.
	Device *nodemap.Graph

	// Transport layer node maps.
	TLDevice    *nodemap.Graph
	TLStream    *nodemap.Graph
	TLInterface *nodemap.Graph
}

// Backend is the transport a device runs on.
type Backend interface {
	NodeMaps() NodeMaps
	FrameSource() acquisition.Source
	EventSource() event.Source
	Close() error
}

// Device composes the node maps, the acquisition engine, the event
// channel and the callback registry of one camera.
type Device struct {
	backend   Backend
	maps      NodeMaps
	engine    *acquisition.Engine
	events    *event.Channel
	callbacks *callback.Registry
	logger    *slog.Logger
	fileLog   *log.FileLogger

	mu        sync.Mutex
	cfg       Config
	listeners map[uint64]func(*buffer.Buffer)
	nextID    uint64
	stream    *acquisition.Stream
	destroyed bool
}

// New creates a device on backend. The backend must provide all four
// node maps.
func New(backend Backend, cfg Config) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	maps := backend.NodeMaps()
	if maps.Device == nil || maps.TLDevice == nil || maps.TLStream == nil || maps.TLInterface == nil {
		return nil, errkind.New(errkind.ErrInvalidArgument, "New", "backend is missing a node map")
	}

	d := &Device{
		backend:   backend,
		maps:      maps,
		callbacks: callback.NewRegistry(),
		logger:    cfg.Logger,
		cfg:       cfg,
		listeners: make(map[uint64]func(*buffer.Buffer)),
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}

	var loggers []log.Logger
	if cfg.StreamLog != "" {
		fl, err := log.NewFileLogger(cfg.StreamLog)
		if err != nil {
			return nil, err
		}
		d.fileLog = fl
		loggers = append(loggers, fl)
	}
	if cfg.Logger != nil {
		loggers = append(loggers, log.NewSlogAdapter(cfg.Logger))
	}
	loggers = append(loggers, cfg.StreamLogger)
	capture := log.NewMultiLogger(loggers...)

	name := maps.Device.DeviceName()
	d.engine = acquisition.New(maps.Device, maps.TLStream, backend.FrameSource(), acquisition.Config{
		Logger:   capture,
		Metrics:  cfg.Metrics.Stream(name),
		OnBuffer: d.dispatchBuffer,
	})
	d.events = event.New(maps.Device, backend.EventSource(), event.Config{
		PoolSize: cfg.EventPoolSize,
		Logger:   capture,
		Metrics:  cfg.Metrics.Events(name),
	})
	return d, nil
}

// NodeMap returns the main node map.
func (d *Device) NodeMap() *nodemap.Graph { return d.maps.Device }

func (d *Device) TLDeviceNodeMap() *nodemap.Graph    { return d.maps.TLDevice }
func (d *Device) TLStreamNodeMap() *nodemap.Graph    { return d.maps.TLStream }
func (d *Device) TLInterfaceNodeMap() *nodemap.Graph { return d.maps.TLInterface }

// Config returns a copy of the device configuration.
func (d *Device) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// SetDefaultNumBuffers changes the pool size used by StartStream(0).
func (d *Device) SetDefaultNumBuffers(n int) error {
	if n < 1 {
		return errkind.New(errkind.ErrOutOfRange, "SetDefaultNumBuffers", "buffer count %d must be at least 1", n)
	}
	d.mu.Lock()
	d.cfg.DefaultNumBuffers = n
	d.mu.Unlock()
	return nil
}

// SetGetBufferTimeout changes the timeout of NextBuffer.
func (d *Device) SetGetBufferTimeout(t Timeout) error {
	if err := t.check(); err != nil {
		return err
	}
	d.mu.Lock()
	d.cfg.GetBufferTimeout = t
	d.mu.Unlock()
	return nil
}

// SetWaitOnEventTimeout changes the timeout of NextEvent.
func (d *Device) SetWaitOnEventTimeout(t Timeout) error {
	if err := t.check(); err != nil {
		return err
	}
	d.mu.Lock()
	d.cfg.WaitOnEventTimeout = t
	d.mu.Unlock()
	return nil
}

func (d *Device) checkAlive(op string) error {
	if d.Destroyed() {
		return errkind.New(errkind.ErrIllegalState, op, "device has been destroyed")
	}
	return nil
}

// StartStream starts an acquisition with n buffers, or with the
// configured default when n is 0. Closing the returned Stream stops it.
func (d *Device) StartStream(n int) (*acquisition.Stream, error) {
	const op = "StartStream"
	if err := d.checkAlive(op); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errkind.New(errkind.ErrInvalidArgument, op, "buffer count %d must be positive", n)
	}
	if n == 0 {
		n = d.Config().DefaultNumBuffers
	}
	s, err := d.engine.Start(n)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.stream = s
	d.mu.Unlock()
	d.logger.Debug("stream started", "device", d.maps.Device.DeviceName(), "buffers", n, "session", s.Session())
	return s, nil
}

// StopStream stops the acquisition. Buffers still held by the caller
// become invalid. Stopping a device that is not streaming does nothing.
func (d *Device) StopStream() error {
	d.mu.Lock()
	d.stream = nil
	d.mu.Unlock()
	if err := d.engine.Stop(); err != nil {
		d.logger.Warn("stopping stream failed", "device", d.maps.Device.DeviceName(), "error", err)
		return err
	}
	return nil
}

// Stream returns the guard of the running acquisition, or nil.
func (d *Device) Stream() *acquisition.Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil && !d.stream.Active() {
		d.stream = nil
	}
	return d.stream
}

// Streaming reports whether an acquisition is running.
func (d *Device) Streaming() bool { return d.engine.State() == acquisition.StateStreaming }

// StreamStats returns the acquisition counters.
func (d *Device) StreamStats() acquisition.Stats { return d.engine.Stats() }

func (d *Device) GetBuffer(timeout time.Duration) (*buffer.Buffer, error) {
	return d.engine.GetBuffer(timeout)
}

func (d *Device) GetBuffers(count int, timeout time.Duration) ([]*buffer.Buffer, error) {
	return d.engine.GetBuffers(count, timeout)
}

// NextBuffer waits for one buffer with the configured GetBufferTimeout.
func (d *Device) NextBuffer() (*buffer.Buffer, error) {
	return d.engine.GetBuffer(d.Config().GetBufferTimeout.Duration())
}

// RequeueBuffer returns buffers to the acquisition. Buffer data must not
// be used afterwards.
func (d *Device) RequeueBuffer(bufs ...*buffer.Buffer) error {
	return d.engine.Requeue(bufs...)
}

// InitializeEvents starts receiving device events.
func (d *Device) InitializeEvents() error {
	if err := d.checkAlive("InitializeEvents"); err != nil {
		return err
	}
	return d.events.Initialize()
}

// DeinitializeEvents stops receiving device events.
func (d *Device) DeinitializeEvents() error { return d.events.Deinitialize() }

// WaitOnEvent waits for the next device event and applies it to the node
// map.
func (d *Device) WaitOnEvent(timeout time.Duration) error { return d.events.Wait(timeout) }

// NextEvent waits for an event with the configured WaitOnEventTimeout.
func (d *Device) NextEvent() error {
	return d.events.Wait(d.Config().WaitOnEventTimeout.Duration())
}

// PollNodes advances the polling clocks of the main node map by the
// configured PollTime.
func (d *Device) PollNodes() error {
	return d.maps.Device.Poll(d.Config().PollTime)
}

// RegisterCallback registers a handler on a node of the main node map or
// on the device itself (target d).
func (d *Device) RegisterCallback(target, handler any, args ...any) (callback.Handle, error) {
	if err := d.checkAlive("RegisterCallback"); err != nil {
		return callback.Handle{}, err
	}
	return d.callbacks.Register(target, handler, args...)
}

// DeregisterCallback removes a registration made with RegisterCallback.
func (d *Device) DeregisterCallback(h callback.Handle) error {
	return d.callbacks.Deregister(h)
}

// Callbacks returns the callback registry of the device.
func (d *Device) Callbacks() *callback.Registry { return d.callbacks }

// SubscribeBuffers adds a buffer arrival listener.
func (d *Device) SubscribeBuffers(fn func(*buffer.Buffer)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.listeners[id] = fn
	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

func (d *Device) dispatchBuffer(b *buffer.Buffer) {
	d.mu.Lock()
	fns := make([]func(*buffer.Buffer), 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(b)
	}
}

// Destroyed reports whether Close was called.
func (d *Device) Destroyed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

// Close stops streaming and events, destroys the node maps and closes
// the backend. Callbacks still registered afterwards fail to deregister
// with ErrTargetDestroyed.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return nil
	}
	d.destroyed = true
	d.stream = nil
	d.mu.Unlock()

	var errs []error
	if err := d.engine.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := d.events.Deinitialize(); err != nil {
		errs = append(errs, err)
	}
	if n := d.callbacks.Len(); n > 0 {
		d.logger.Warn("device destroyed with registered callbacks", "device", d.maps.Device.DeviceName(), "count", n)
	}
	for _, g := range []*nodemap.Graph{d.maps.Device, d.maps.TLDevice, d.maps.TLStream, d.maps.TLInterface} {
		g.Close()
	}
	if err := d.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing backend: %w", err))
	}
	if d.fileLog != nil {
		if err := d.fileLog.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// String describes the device by MAC address, model, user defined name
// and IP address.
func (d *Device) String() string {
	if d.Destroyed() {
		return "<destroyed device>"
	}
	parts := []string{
		d.describe(d.maps.TLDevice, "GevDeviceMACAddress"),
		d.describe(d.maps.Device, "DeviceModelName"),
		d.describe(d.maps.Device, "DeviceUserID"),
		d.describe(d.maps.TLDevice, "GevDeviceIPAddress"),
	}
	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}

func (d *Device) describe(g *nodemap.Graph, name string) string {
	f, err := g.Resolve(name)
	if err != nil {
		return "?"
	}
	s, err := f.ValueString()
	if err != nil || s == "" {
		return "-"
	}
	return s
}

var _ callback.Device = (*Device)(nil)
