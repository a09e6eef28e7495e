package acquisition

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zacpullen/arena-api/pkg/buffer"
	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/log"
	"github.com/zacpullen/arena-api/pkg/metrics"
	"github.com/zacpullen/arena-api/pkg/nodemap"
	"github.com/zacpullen/arena-api/pkg/pixelformat"
)

// Node names the engine reads and maintains.
const (
	NodePayloadSize          = "PayloadSize"
	NodeAcquisitionStart     = "AcquisitionStart"
	NodeAcquisitionStop      = "AcquisitionStop"
	NodeBufferHandlingMode   = "StreamBufferHandlingMode"
	NodeLostFrameCount       = "StreamLostFrameCount"
	NodeDeliveredFrameCount  = "StreamDeliveredFrameCount"
	NodeIncompleteFrameCount = "StreamIncompleteFrameCount"
	NodeIsGrabbing           = "StreamIsGrabbing"
)

// Sink receives frames from a Source.
type Sink interface {
	Deliver(f *buffer.Frame)
}

// Source produces frames. Open connects the data channel and hands the
// source the sink of one stream session; frames delivered after Close or
// to the sink of an earlier session are discarded by the engine.
type Source interface {
	Open(sink Sink) error
	Close() error
}

// Config configures an Engine.
type Config struct {
	// Logger captures stream events. Nil disables capture.
	Logger log.Logger

	// Metrics records stream metrics. Nil disables them.
	Metrics *metrics.Stream

	// OnBuffer is called for every filled buffer, outside the engine lock
	// and before the buffer enters the output queue. The buffer must not
	// be used after OnBuffer returns.
	OnBuffer func(b *buffer.Buffer)
}

// Stats is a snapshot of the engine counters and queues.
type Stats struct {
	State      State
	Policy     Policy
	Buffers    int
	Input      int
	Output     int
	Held       int
	Delivered  int64
	Lost       int64
	Incomplete int64
}

// Engine moves buffers between an input and an output queue as frames
// arrive from its Source.
//
// Buffers handed out by GetBuffer belong to the caller until Requeue.
// Reading a buffer after it was requeued, or after the stream stopped,
// observes whatever the engine wrote into it since.
type Engine struct {
	device *nodemap.Graph
	stream *nodemap.Graph
	src    Source

	logger   log.Logger
	metrics  *metrics.Stream
	onBuffer func(*buffer.Buffer)

	mu      sync.Mutex
	cond    *sync.Cond
	state   State
	session uuid.UUID
	epoch   uint64
	policy  Policy
	count   int
	input   []*buffer.Buffer
	output  []*buffer.Buffer
	held    map[*buffer.Buffer]struct{}

	delivered  int64
	lost       int64
	incomplete int64
}

// New creates an idle engine. device is the main node map (payload
// layout and acquisition commands) and stream the transport layer stream
// node map (buffer handling mode and statistics).
func New(device, stream *nodemap.Graph, src Source, cfg Config) *Engine {
	e := &Engine{
		device:   device,
		stream:   stream,
		src:      src,
		logger:   log.OrNoop(cfg.Logger),
		metrics:  cfg.Metrics,
		onBuffer: cfg.OnBuffer,
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// State returns the acquisition state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		State:      e.state,
		Policy:     e.policy,
		Buffers:    e.count,
		Input:      len(e.input),
		Output:     len(e.output),
		Held:       len(e.held),
		Delivered:  e.delivered,
		Lost:       e.lost,
		Incomplete: e.incomplete,
	}
}

// Start allocates n buffers, places them in the input queue, locks the
// payload layout features and starts the source. The returned Stream
// stops the acquisition when closed.
func (e *Engine) Start(n int) (*Stream, error) {
	const op = "Start"
	if n < 1 {
		return nil, errkind.New(errkind.ErrInvalidArgument, op, "buffer count %d must be at least 1", n)
	}

	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return nil, errkind.New(errkind.ErrIllegalState, op, "stream is already %s", e.state)
	}
	policy, err := e.readPolicy()
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	size, err := e.payloadSize()
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("starting stream: %w", err)
	}

	session := uuid.New()
	pool := buffer.Allocate(n, buffer.Layout{
		Session:    session,
		Size:       size,
		DeviceName: e.device.DeviceName(),
		Chunks:     e.device.ChunkDefinitions(),
	})
	e.epoch++
	epoch := e.epoch
	e.state = StateStreaming
	e.session = session
	e.policy = policy
	e.count = n
	e.input = slices.Clone(pool)
	e.output = nil
	e.held = make(map[*buffer.Buffer]struct{}, n)
	e.delivered, e.lost, e.incomplete = 0, 0, 0
	e.mu.Unlock()

	e.resetStatistics()
	e.device.Arena().SetParamsLocked(true)

	if err := e.src.Open(&sessionSink{e: e, epoch: epoch}); err != nil {
		e.rollback(epoch)
		return nil, fmt.Errorf("starting stream: opening source: %w", err)
	}
	if err := e.device.Execute(NodeAcquisitionStart); err != nil && !errors.Is(err, errkind.ErrNotFound) {
		_ = e.src.Close()
		e.rollback(epoch)
		return nil, fmt.Errorf("starting stream: %w", err)
	}

	e.updateStream(NodeIsGrabbing, true)
	e.metrics.Streaming(true)
	e.metrics.Queues(n, 0)
	e.logState(session, StateIdle, StateStreaming, "", n)
	return &Stream{e: e, session: session, count: n}, nil
}

// rollback returns a half-started session to idle.
func (e *Engine) rollback(epoch uint64) {
	e.mu.Lock()
	if e.epoch == epoch {
		e.resetLocked()
	}
	e.mu.Unlock()
	e.device.Arena().SetParamsLocked(false)
}

func (e *Engine) resetLocked() {
	e.state = StateIdle
	e.epoch++
	e.count = 0
	e.input = nil
	e.output = nil
	e.held = nil
	e.cond.Broadcast()
}

func (e *Engine) readPolicy() (Policy, error) {
	mode, err := e.stream.EnumValue(NodeBufferHandlingMode)
	if errors.Is(err, errkind.ErrNotFound) {
		return OldestFirst, nil
	}
	if err != nil {
		return 0, err
	}
	return ParsePolicy(mode)
}

// payloadSize reads PayloadSize, or derives it from the image format when
// the device has no such node.
func (e *Engine) payloadSize() (int, error) {
	size, err := e.device.IntValue(NodePayloadSize)
	if errors.Is(err, errkind.ErrNotFound) {
		size, err = e.imageSize()
	}
	if err != nil {
		return 0, err
	}
	if size <= 0 {
		return 0, fmt.Errorf("%w: payload size %d", errkind.ErrIllegalState, size)
	}
	return int(size), nil
}

func (e *Engine) imageSize() (int64, error) {
	w, err := e.device.IntValue("Width")
	if err != nil {
		return 0, err
	}
	h, err := e.device.IntValue("Height")
	if err != nil {
		return 0, err
	}
	name, err := e.device.EnumValue("PixelFormat")
	if err != nil {
		return 0, err
	}
	pf, err := pixelformat.Parse(name)
	if err != nil {
		return 0, err
	}
	return (w*h*int64(pf.BitsPerPixel()) + 7) / 8, nil
}

type sessionSink struct {
	e     *Engine
	epoch uint64
}

func (s *sessionSink) Deliver(f *buffer.Frame) { s.e.deliver(s.epoch, f) }

// deliver applies the buffer handling policy to one arriving frame.
func (e *Engine) deliver(epoch uint64, f *buffer.Frame) {
	e.mu.Lock()
	if e.epoch != epoch || e.state != StateStreaming {
		e.mu.Unlock()
		return
	}

	var recycled []*buffer.Buffer
	switch e.policy {
	case NewestOnly:
		recycled = e.output
		e.output = nil
	case OldestFirstOverwrite:
		if len(e.input) == 0 && len(e.output) > 0 {
			recycled = e.output[:1]
			e.output = e.output[1:]
		}
	}
	e.input = append(e.input, recycled...)

	var filled *buffer.Buffer
	if len(e.input) == 0 {
		e.lost++
	} else {
		filled = e.input[0]
		e.input = e.input[1:]
		filled.Fill(f)
		e.delivered++
		if filled.IsIncomplete() {
			e.incomplete++
		}
	}

	session, policy := e.session, e.policy
	delivered, lost, incomplete := e.delivered, e.lost, e.incomplete
	in, out := len(e.input), len(e.output)
	e.mu.Unlock()

	for _, b := range recycled {
		e.metrics.BufferRecycled()
		e.logBuffer(session, log.BufferRecycled, b, policy)
	}
	e.metrics.Queues(in, out)

	if filled == nil {
		e.updateStream(NodeLostFrameCount, lost)
		e.metrics.FrameLost(policy.String())
		e.logger.Log(log.Event{
			Timestamp:  time.Now(),
			SessionID:  session.String(),
			DeviceName: e.device.DeviceName(),
			Source:     log.SourceStream,
			Category:   log.CategoryBuffer,
			Buffer:     &log.BufferEvent{Action: log.BufferDropped, FrameID: f.FrameID, Slot: -1, Policy: policy.String()},
		})
		return
	}

	e.updateStream(NodeDeliveredFrameCount, delivered)
	if filled.IsIncomplete() {
		e.updateStream(NodeIncompleteFrameCount, incomplete)
	}
	e.metrics.FrameDelivered(filled.IsIncomplete())
	e.logBuffer(session, log.BufferDelivered, filled, policy)

	// The filled buffer sits in neither queue until the arrival handlers
	// return, so GetBuffer cannot hand it out while they read it.
	if e.onBuffer != nil {
		e.onBuffer(filled)
	}

	e.mu.Lock()
	if e.epoch != epoch || e.state != StateStreaming {
		e.mu.Unlock()
		return
	}
	e.output = append(e.output, filled)
	in, out = len(e.input), len(e.output)
	e.cond.Broadcast()
	e.mu.Unlock()
	e.metrics.Queues(in, out)
}

// GetBuffer waits up to timeout for the oldest buffer of the output queue.
func (e *Engine) GetBuffer(timeout time.Duration) (*buffer.Buffer, error) {
	bufs, err := e.getBuffers("GetBuffer", 1, timeout)
	if err != nil {
		return nil, err
	}
	return bufs[0], nil
}

// GetBuffers waits up to timeout for count buffers, returned oldest
// first. The timeout covers the whole call. When it elapses before count
// buffers arrived, the buffers gathered so far go back to the head of the
// output queue and the call fails with ErrTimeout.
//
// Stopping the stream while a caller waits makes the call fail with
// ErrAborted.
func (e *Engine) GetBuffers(count int, timeout time.Duration) ([]*buffer.Buffer, error) {
	return e.getBuffers("GetBuffers", count, timeout)
}

func (e *Engine) getBuffers(op string, count int, timeout time.Duration) ([]*buffer.Buffer, error) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateStreaming {
		return nil, errkind.New(errkind.ErrIllegalState, op, "stream is %s; start the stream first", e.state)
	}
	if count < 1 || count > e.count {
		return nil, errkind.New(errkind.ErrOutOfRange, op, "requested %d buffers, stream started with %d", count, e.count)
	}
	if err := checkTimeout(op, timeout); err != nil {
		return nil, err
	}

	var deadline time.Time
	if timeout != Infinite {
		deadline = start.Add(timeout)
		timer := time.AfterFunc(timeout, func() {
			e.mu.Lock()
			e.cond.Broadcast()
			e.mu.Unlock()
		})
		defer timer.Stop()
	}

	epoch := e.epoch
	got := make([]*buffer.Buffer, 0, count)
	for len(got) < count {
		if e.epoch != epoch {
			return nil, errkind.New(errkind.ErrAborted, op, "stream stopped while waiting for buffers")
		}
		if len(e.output) > 0 {
			b := e.output[0]
			e.output = e.output[1:]
			e.held[b] = struct{}{}
			got = append(got, b)
			continue
		}
		if timeout != Infinite && !time.Now().Before(deadline) {
			for _, b := range got {
				delete(e.held, b)
			}
			e.output = append(got, e.output...)
			e.metrics.Timeout()
			return nil, errkind.New(errkind.ErrTimeout, op, "%d of %d buffers arrived within %v", len(got), count, timeout)
		}
		e.cond.Wait()
	}

	e.metrics.BuffersRetrieved(len(got), time.Since(start))
	e.metrics.Queues(len(e.input), len(e.output))
	for _, b := range got {
		e.logBuffer(e.session, log.BufferRetrieved, b, e.policy)
	}
	return got, nil
}

// Requeue returns retrieved buffers to the input queue. All buffers are
// checked before any is requeued.
func (e *Engine) Requeue(bufs ...*buffer.Buffer) error {
	const op = "Requeue"
	if len(bufs) == 0 {
		return errkind.New(errkind.ErrInvalidArgument, op, "no buffers given")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateStreaming {
		return errkind.New(errkind.ErrIllegalState, op, "stream is %s; buffers of a stopped stream are released", e.state)
	}
	seen := make(map[*buffer.Buffer]struct{}, len(bufs))
	for i, b := range bufs {
		switch {
		case b == nil:
			return errkind.New(errkind.ErrInvalidArgument, op, "buffer %d is nil", i)
		case b.Origin() != buffer.OriginEngine:
			return errkind.New(errkind.ErrTypeMismatch, op, "buffer %d was created by a factory, not by this stream", i)
		case b.Session() != e.session:
			return errkind.New(errkind.ErrTypeMismatch, op, "buffer %d belongs to another stream", i)
		}
		if _, ok := e.held[b]; !ok {
			return errkind.New(errkind.ErrIllegalState, op, "buffer %d (slot %d) is not held by the caller", i, b.Slot())
		}
		if _, dup := seen[b]; dup {
			return errkind.New(errkind.ErrInvalidArgument, op, "buffer %d (slot %d) given twice", i, b.Slot())
		}
		seen[b] = struct{}{}
	}

	for _, b := range bufs {
		delete(e.held, b)
		e.input = append(e.input, b)
		e.logBuffer(e.session, log.BufferRequeued, b, e.policy)
	}
	e.metrics.BuffersRequeued(len(bufs))
	e.metrics.Queues(len(e.input), len(e.output))
	return nil
}

// Stop stops the source, releases the buffer pool and unlocks the payload
// layout features. Stopping an idle engine does nothing.
func (e *Engine) Stop() error {
	return e.stop(func(uuid.UUID) bool { return true }, "stopped")
}

func (e *Engine) stop(match func(uuid.UUID) bool, reason string) error {
	e.mu.Lock()
	if e.state == StateIdle || !match(e.session) {
		e.mu.Unlock()
		return nil
	}
	session, count := e.session, e.count
	e.resetLocked()
	e.mu.Unlock()

	var errs []error
	if err := e.device.Execute(NodeAcquisitionStop); err != nil && !errors.Is(err, errkind.ErrNotFound) {
		errs = append(errs, err)
	}
	if err := e.src.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing source: %w", err))
	}
	e.device.Arena().SetParamsLocked(false)
	e.updateStream(NodeIsGrabbing, false)

	e.metrics.Streaming(false)
	e.metrics.Queues(0, 0)
	e.logState(session, StateStreaming, StateIdle, reason, count)
	if err := errors.Join(errs...); err != nil {
		e.logger.Log(log.Event{
			Timestamp:  time.Now(),
			SessionID:  session.String(),
			DeviceName: e.device.DeviceName(),
			Source:     log.SourceStream,
			Category:   log.CategoryError,
			Error:      &log.ErrorEventData{Message: err.Error(), Context: "stop"},
		})
		return fmt.Errorf("stopping stream: %w", err)
	}
	return nil
}

func (e *Engine) resetStatistics() {
	for _, name := range []string{NodeDeliveredFrameCount, NodeLostFrameCount, NodeIncompleteFrameCount} {
		e.updateStream(name, int64(0))
	}
}

// updateStream writes a transport layer statistic. Stream node maps
// without the node are fine.
func (e *Engine) updateStream(name string, v any) {
	n, ok := e.stream.Arena().Lookup(name)
	if !ok {
		return
	}
	if err := e.stream.Arena().Update(n.ID(), v); err != nil {
		e.logger.Log(log.Event{
			Timestamp:  time.Now(),
			DeviceName: e.device.DeviceName(),
			Source:     log.SourceStream,
			Category:   log.CategoryError,
			Error:      &log.ErrorEventData{Message: err.Error(), Context: name},
		})
	}
}

func (e *Engine) logState(session uuid.UUID, from, to State, reason string, count int) {
	e.logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  session.String(),
		DeviceName: e.device.DeviceName(),
		Source:     log.SourceStream,
		Category:   log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState:    from.String(),
			NewState:    to.String(),
			Reason:      reason,
			BufferCount: count,
		},
	})
}

func (e *Engine) logBuffer(session uuid.UUID, action log.BufferAction, b *buffer.Buffer, policy Policy) {
	e.logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  session.String(),
		DeviceName: e.device.DeviceName(),
		Source:     log.SourceStream,
		Category:   log.CategoryBuffer,
		Buffer: &log.BufferEvent{
			Action:     action,
			FrameID:    b.FrameID(),
			Slot:       b.Slot(),
			Size:       b.SizeFilled(),
			Incomplete: b.IsIncomplete(),
			Policy:     policy.String(),
		},
	})
}
