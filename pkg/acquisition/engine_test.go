package acquisition

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zacpullen/arena-api/pkg/buffer"
	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/log"
	"github.com/zacpullen/arena-api/pkg/metrics"
	"github.com/zacpullen/arena-api/pkg/nodemap"
	"github.com/zacpullen/arena-api/pkg/pixelformat"
)

const deviceDescription = `
device: TestCam
scope: Device
nodes:
  - name: Width
    type: Integer
    feature: true
    min: 1
    max: 64
    value: 4
    lockedWhileStreaming: true
  - name: Height
    type: Integer
    feature: true
    min: 1
    max: 64
    value: 2
    lockedWhileStreaming: true
  - name: PixelFormat
    type: Enumeration
    feature: true
    value: Mono8
    lockedWhileStreaming: true
    entries:
      - {name: Mono8, value: 17301505}
      - {name: Mono16, value: 17825799}
  - name: PayloadSize
    type: Integer
    feature: true
    access: RO
    value: 64
  - name: AcquisitionStart
    type: Command
    feature: true
    access: WO
  - name: AcquisitionStop
    type: Command
    feature: true
    access: WO
`

const streamDescription = `
device: TestCam
scope: TLStream
nodes:
  - name: StreamBufferHandlingMode
    type: Enumeration
    feature: true
    value: OldestFirst
    entries:
      - {name: OldestFirst, value: 1}
      - {name: OldestFirstOverwrite, value: 2}
      - {name: NewestOnly, value: 3}
  - name: StreamLostFrameCount
    type: Integer
    feature: true
    access: RO
  - name: StreamDeliveredFrameCount
    type: Integer
    feature: true
    access: RO
  - name: StreamIncompleteFrameCount
    type: Integer
    feature: true
    access: RO
  - name: StreamIsGrabbing
    type: Boolean
    feature: true
    access: RO
`

func graph(t *testing.T, description string) *nodemap.Graph {
	t.Helper()
	d, err := nodemap.ParseDescription([]byte(description))
	require.NoError(t, err)
	g, err := nodemap.FromDescription(d)
	require.NoError(t, err)
	return g
}

// fakeSource delivers frames synchronously from the calling goroutine.
type fakeSource struct {
	mu      sync.Mutex
	sink    Sink
	next    uint64
	opened  int
	closed  int
	openErr error
}

func (s *fakeSource) Open(sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.sink = sink
	s.opened++
	return nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = nil
	s.closed++
	return nil
}

func (s *fakeSource) emit(n int) {
	for range n {
		s.emitFrame(false)
	}
}

func (s *fakeSource) emitFrame(incomplete bool) {
	s.mu.Lock()
	sink := s.sink
	s.next++
	id := s.next
	s.mu.Unlock()
	if sink == nil {
		return
	}
	sink.Deliver(&buffer.Frame{
		FrameID:     id,
		TimestampNs: id * 1000,
		Image: buffer.Image{
			Width:       4,
			Height:      2,
			PixelFormat: pixelformat.Mono8,
			Data:        []byte{1, 2, 3, 4, 5, 6, 7, byte(id)},
		},
		Incomplete: incomplete,
	})
}

type fixture struct {
	device *nodemap.Graph
	stream *nodemap.Graph
	src    *fakeSource
	engine *Engine
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		device: graph(t, deviceDescription),
		stream: graph(t, streamDescription),
		src:    &fakeSource{},
	}
	f.engine = New(f.device, f.stream, f.src, cfg)
	t.Cleanup(func() { _ = f.engine.Stop() })
	return f
}

func frameIDs(bufs []*buffer.Buffer) []uint64 {
	ids := make([]uint64, len(bufs))
	for i, b := range bufs {
		ids[i] = b.FrameID()
	}
	return ids
}

func TestScenarioStartGetRequeueStop(t *testing.T) {
	f := newFixture(t, Config{})

	s, err := f.engine.Start(3)
	require.NoError(t, err)
	assert.Equal(t, 3, s.BufferCount())

	f.src.emit(3)
	bufs, err := f.engine.GetBuffers(3, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, frameIDs(bufs))
	for _, b := range bufs {
		assert.Equal(t, s.Session(), b.Session())
		assert.Equal(t, 64, b.BufferSize())
	}

	require.NoError(t, f.engine.Requeue(bufs...))
	assert.Equal(t, 0, f.engine.Stats().Held)

	require.NoError(t, f.engine.Stop())
	assert.Equal(t, StateIdle, f.engine.State())
	assert.Equal(t, 1, f.src.closed)
}

func TestStartValidation(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.engine.Start(0)
	assert.ErrorIs(t, err, errkind.ErrInvalidArgument)

	_, err = f.engine.Start(2)
	require.NoError(t, err)
	_, err = f.engine.Start(2)
	assert.ErrorIs(t, err, errkind.ErrIllegalState)
}

func TestGetBufferValidation(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.engine.GetBuffer(0)
	assert.ErrorIs(t, err, errkind.ErrIllegalState, "before start")

	_, err = f.engine.Start(3)
	require.NoError(t, err)

	_, err = f.engine.GetBuffers(4, 0)
	require.ErrorIs(t, err, errkind.ErrOutOfRange)
	assert.Contains(t, err.Error(), "requested 4")
	assert.Contains(t, err.Error(), "started with 3")

	_, err = f.engine.GetBuffers(0, 0)
	assert.ErrorIs(t, err, errkind.ErrOutOfRange)

	_, err = f.engine.GetBuffer(-time.Millisecond)
	assert.ErrorIs(t, err, errkind.ErrInvalidArgument)
}

func TestGetAllThenTimeout(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.engine.Start(3)
	require.NoError(t, err)

	f.src.emit(3)
	_, err = f.engine.GetBuffers(3, 0)
	require.NoError(t, err)

	_, err = f.engine.GetBuffer(0)
	assert.ErrorIs(t, err, errkind.ErrTimeout)
}

func TestSingleBufferRequeueRoundTrip(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.engine.Start(1)
	require.NoError(t, err)

	f.src.emit(1)
	first, err := f.engine.GetBuffer(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.FrameID())

	// The pool is exhausted while the caller holds the only buffer.
	f.src.emit(1)
	assert.Equal(t, int64(1), f.engine.Stats().Lost)

	require.NoError(t, f.engine.Requeue(first))
	f.src.emit(1)
	second, err := f.engine.GetBuffer(0)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, uint64(3), second.FrameID())
}

func TestRequeueValidation(t *testing.T) {
	f := newFixture(t, Config{})

	assert.ErrorIs(t, f.engine.Requeue(), errkind.ErrInvalidArgument)

	_, err := f.engine.Start(2)
	require.NoError(t, err)
	f.src.emit(1)
	b, err := f.engine.GetBuffer(0)
	require.NoError(t, err)

	t.Run("nil", func(t *testing.T) {
		assert.ErrorIs(t, f.engine.Requeue(nil), errkind.ErrInvalidArgument)
	})

	t.Run("factory buffer", func(t *testing.T) {
		fb, err := buffer.NewFactory().Create(buffer.Image{
			Width: 2, Height: 1, PixelFormat: pixelformat.Mono8, Data: []byte{1, 2},
		})
		require.NoError(t, err)
		assert.ErrorIs(t, f.engine.Requeue(fb), errkind.ErrTypeMismatch)
	})

	t.Run("duplicate", func(t *testing.T) {
		assert.ErrorIs(t, f.engine.Requeue(b, b), errkind.ErrInvalidArgument)
		assert.Equal(t, 1, f.engine.Stats().Held, "nothing requeued")
	})

	t.Run("twice", func(t *testing.T) {
		require.NoError(t, f.engine.Requeue(b))
		assert.ErrorIs(t, f.engine.Requeue(b), errkind.ErrIllegalState)
	})

	t.Run("previous session", func(t *testing.T) {
		require.NoError(t, f.engine.Stop())
		assert.ErrorIs(t, f.engine.Requeue(b), errkind.ErrIllegalState)

		_, err := f.engine.Start(2)
		require.NoError(t, err)
		assert.ErrorIs(t, f.engine.Requeue(b), errkind.ErrTypeMismatch)
	})
}

func TestBufferHandlingPolicies(t *testing.T) {
	tests := []struct {
		policy     string
		wantFrames []uint64
		wantLost   int64
	}{
		{"OldestFirst", []uint64{1, 2}, 2},
		{"OldestFirstOverwrite", []uint64{3, 4}, 0},
		{"NewestOnly", []uint64{4}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			f := newFixture(t, Config{})
			require.NoError(t, f.stream.SetEnum(NodeBufferHandlingMode, tt.policy))

			_, err := f.engine.Start(2)
			require.NoError(t, err)
			assert.Equal(t, tt.policy, f.engine.Stats().Policy.String())

			f.src.emit(4)
			stats := f.engine.Stats()
			require.Equal(t, len(tt.wantFrames), stats.Output)
			assert.Equal(t, tt.wantLost, stats.Lost)

			lost, err := f.stream.IntValue(NodeLostFrameCount)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLost, lost)

			bufs, err := f.engine.GetBuffers(stats.Output, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrames, frameIDs(bufs))
		})
	}
}

func TestPolicyFromUnknownEntry(t *testing.T) {
	_, err := ParsePolicy("NewestFirst")
	assert.ErrorIs(t, err, errkind.ErrInvalidValue)

	p, err := ParsePolicy("NewestOnly")
	require.NoError(t, err)
	assert.Equal(t, NewestOnly, p)
}

func TestPartialTimeoutKeepsBuffers(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.engine.Start(3)
	require.NoError(t, err)

	f.src.emit(1)
	_, err = f.engine.GetBuffers(2, 10*time.Millisecond)
	require.ErrorIs(t, err, errkind.ErrTimeout)
	assert.Equal(t, 0, f.engine.Stats().Held)

	b, err := f.engine.GetBuffer(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b.FrameID())
}

func TestGetBufferWaitsForDelivery(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.engine.Start(1)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		f.src.emit(1)
	}()
	b, err := f.engine.GetBuffer(time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b.FrameID())
}

func TestStopAbortsWaiter(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.engine.Start(2)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := f.engine.GetBuffer(Infinite)
		errCh <- err
	}()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, f.engine.Stop())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, errkind.ErrAborted)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by Stop")
	}
}

func TestStopIdleIsNoop(t *testing.T) {
	f := newFixture(t, Config{})
	assert.NoError(t, f.engine.Stop())
	assert.NoError(t, f.engine.Stop())
	assert.Equal(t, 0, f.src.closed)
}

func TestStreamClose(t *testing.T) {
	f := newFixture(t, Config{})

	s, err := f.engine.Start(2)
	require.NoError(t, err)
	assert.True(t, s.Active())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.Active())
	assert.Equal(t, StateIdle, f.engine.State())

	s2, err := f.engine.Start(2)
	require.NoError(t, err)
	stale := &Stream{e: f.engine, session: s.Session()}
	require.NoError(t, stale.Close())
	assert.True(t, s2.Active(), "closing an old stream keeps the new one")

	f.src.emit(1)
	b, err := s2.GetBuffer(0)
	require.NoError(t, err)
	require.NoError(t, s2.Requeue(b))
}

func TestPayloadLayoutLockedWhileStreaming(t *testing.T) {
	f := newFixture(t, Config{})
	var starts, stops int
	require.NoError(t, f.device.HandleCommand(NodeAcquisitionStart, func() error { starts++; return nil }))
	require.NoError(t, f.device.HandleCommand(NodeAcquisitionStop, func() error { stops++; return nil }))

	require.NoError(t, f.device.SetInt("Width", 8))

	_, err := f.engine.Start(2)
	require.NoError(t, err)
	assert.Equal(t, 1, starts)
	assert.ErrorIs(t, f.device.SetInt("Width", 16), errkind.ErrNotAvailable)
	grabbing, err := f.stream.BoolValue(NodeIsGrabbing)
	require.NoError(t, err)
	assert.True(t, grabbing)

	require.NoError(t, f.engine.Stop())
	assert.Equal(t, 1, stops)
	assert.NoError(t, f.device.SetInt("Width", 16))
}

func TestStartRollsBackOnSourceError(t *testing.T) {
	f := newFixture(t, Config{})
	f.src.openErr = errors.New("link down")

	_, err := f.engine.Start(2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link down")
	assert.Equal(t, StateIdle, f.engine.State())
	assert.False(t, f.device.Arena().ParamsLocked())
}

func TestStartRollsBackOnCommandError(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.device.HandleCommand(NodeAcquisitionStart, func() error {
		return errors.New("sensor busy")
	}))

	_, err := f.engine.Start(2)
	require.Error(t, err)
	assert.Equal(t, StateIdle, f.engine.State())
	assert.Equal(t, 1, f.src.closed)
}

func TestPayloadSizeFromImageFormat(t *testing.T) {
	device := graph(t, `
device: NoPayload
scope: Device
nodes:
  - name: Width
    type: Integer
    value: 4
  - name: Height
    type: Integer
    value: 2
  - name: PixelFormat
    type: Enumeration
    value: Mono16
    entries:
      - {name: Mono8, value: 17301505}
      - {name: Mono16, value: 17825799}
`)
	e := New(device, graph(t, streamDescription), &fakeSource{}, Config{})
	s, err := e.Start(1)
	require.NoError(t, err)
	defer s.Close()

	src := e.src.(*fakeSource)
	src.emit(1)
	b, err := e.GetBuffer(0)
	require.NoError(t, err)
	assert.Equal(t, 16, b.BufferSize())
}

func TestIncompleteFramesCounted(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.engine.Start(2)
	require.NoError(t, err)

	f.src.emitFrame(true)
	f.src.emitFrame(false)

	n, err := f.stream.IntValue(NodeIncompleteFrameCount)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = f.stream.IntValue(NodeDeliveredFrameCount)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	b, err := f.engine.GetBuffer(0)
	require.NoError(t, err)
	assert.True(t, b.IsIncomplete())
}

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingLogger) count(action log.BufferAction) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Buffer != nil && e.Buffer.Action == action {
			n++
		}
	}
	return n
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestObservers(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	require.NoError(t, collector.Register())
	logger := &recordingLogger{}

	var mu sync.Mutex
	var seen []uint64
	f := newFixture(t, Config{
		Logger:  logger,
		Metrics: collector.Stream("TestCam"),
		OnBuffer: func(b *buffer.Buffer) {
			mu.Lock()
			seen = append(seen, b.FrameID())
			mu.Unlock()
		},
	})
	_, err := f.engine.Start(1)
	require.NoError(t, err)

	f.src.emit(2)
	b, err := f.engine.GetBuffer(0)
	require.NoError(t, err)
	require.NoError(t, f.engine.Requeue(b))
	require.NoError(t, f.engine.Stop())

	mu.Lock()
	assert.Equal(t, []uint64{1}, seen)
	mu.Unlock()

	assert.Equal(t, 1, logger.count(log.BufferDelivered))
	assert.Equal(t, 1, logger.count(log.BufferDropped))
	assert.Equal(t, 1, logger.count(log.BufferRetrieved))
	assert.Equal(t, 1, logger.count(log.BufferRequeued))

	assert.Equal(t, 1.0, counterValue(t, reg, "arena_stream_frames_delivered_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "arena_stream_frames_lost_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "arena_stream_buffers_requeued_total"))
}
