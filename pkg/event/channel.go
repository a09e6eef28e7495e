package event

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/log"
	"github.com/zacpullen/arena-api/pkg/metrics"
	"github.com/zacpullen/arena-api/pkg/nodemap"
)

// DefaultPoolSize is the number of event buffers of a channel.
const DefaultPoolSize = 100

// Infinite makes Wait block without a deadline.
const Infinite time.Duration = math.MaxInt64

// Sink receives encoded event payloads from a Source.
type Sink interface {
	Deliver(data []byte)
}

// Source produces encoded event payloads (see Encode).
type Source interface {
	Open(sink Sink) error
	Close() error
}

// Config configures a Channel.
type Config struct {
	// PoolSize defaults to DefaultPoolSize.
	PoolSize int
	Logger   log.Logger
	Metrics  *metrics.Events
}

// slot is one event buffer.
type slot struct {
	data []byte
}

// Channel receives device events and applies them to a node map. Callers
// never see the payloads; after Wait returns, the nodes an event reported
// read back the event's values.
type Channel struct {
	graph    *nodemap.Graph
	src      Source
	poolSize int
	logger   log.Logger
	metrics  *metrics.Events

	mu          sync.Mutex
	cond        *sync.Cond
	initialized bool
	session     uuid.UUID
	epoch       uint64
	input       []*slot
	output      []*slot
	lost        int64
}

// New creates a channel that applies events to graph.
func New(graph *nodemap.Graph, src Source, cfg Config) *Channel {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	c := &Channel{
		graph:    graph,
		src:      src,
		poolSize: cfg.PoolSize,
		logger:   log.OrNoop(cfg.Logger),
		metrics:  cfg.Metrics,
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Initialized reports whether the channel is receiving events.
func (c *Channel) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Pending returns the number of received events not yet applied.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.output)
}

// Lost returns the number of events dropped since Initialize because all
// event buffers were full.
func (c *Channel) Lost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost
}

// Initialize allocates the event buffers and opens the source.
func (c *Channel) Initialize() error {
	const op = "Initialize"
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return errkind.New(errkind.ErrIllegalState, op, "events already initialized")
	}
	pool := make([]*slot, c.poolSize)
	for i := range pool {
		pool[i] = &slot{}
	}
	c.epoch++
	epoch := c.epoch
	c.initialized = true
	c.session = uuid.New()
	c.input = pool
	c.output = nil
	c.lost = 0
	session := c.session
	c.mu.Unlock()

	if err := c.src.Open(&channelSink{c: c, epoch: epoch}); err != nil {
		c.mu.Lock()
		if c.epoch == epoch {
			c.resetLocked()
		}
		c.mu.Unlock()
		return fmt.Errorf("initializing events: %w", err)
	}
	c.logState(session, "deinitialized", "initialized", "")
	return nil
}

// Deinitialize closes the source and releases the event buffers.
// Unapplied events are discarded. Deinitializing an uninitialized channel
// does nothing.
func (c *Channel) Deinitialize() error {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return nil
	}
	session := c.session
	c.resetLocked()
	c.mu.Unlock()

	err := c.src.Close()
	c.logState(session, "initialized", "deinitialized", "")
	if err != nil {
		return fmt.Errorf("deinitializing events: %w", err)
	}
	return nil
}

func (c *Channel) resetLocked() {
	c.initialized = false
	c.epoch++
	c.input = nil
	c.output = nil
	c.cond.Broadcast()
}

type channelSink struct {
	c     *Channel
	epoch uint64
}

func (s *channelSink) Deliver(data []byte) { s.c.deliver(s.epoch, data) }

func (c *Channel) deliver(epoch uint64, data []byte) {
	c.mu.Lock()
	if c.epoch != epoch || !c.initialized {
		c.mu.Unlock()
		return
	}
	if len(c.input) == 0 {
		c.lost++
		c.mu.Unlock()
		c.metrics.Lost()
		return
	}
	s := c.input[0]
	c.input = c.input[1:]
	s.data = append(s.data[:0], data...)
	c.output = append(c.output, s)
	c.cond.Broadcast()
	c.mu.Unlock()
}

// Wait blocks up to timeout for the next event and applies it to the node
// map. It fails with ErrTimeout when no event arrived in time and with
// ErrAborted when the channel is deinitialized while waiting.
func (c *Channel) Wait(timeout time.Duration) error {
	const op = "Wait"
	start := time.Now()

	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return errkind.New(errkind.ErrIllegalState, op, "events are not initialized")
	}
	if timeout < 0 {
		c.mu.Unlock()
		return errkind.New(errkind.ErrInvalidArgument, op, "timeout %v is negative; use a non-negative duration or Infinite", timeout)
	}
	var timer *time.Timer
	if timeout != Infinite {
		timer = time.AfterFunc(timeout, func() {
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		})
	}
	epoch := c.epoch
	var s *slot
	for {
		if c.epoch != epoch {
			c.mu.Unlock()
			stopTimer(timer)
			return errkind.New(errkind.ErrAborted, op, "events deinitialized while waiting")
		}
		if len(c.output) > 0 {
			s = c.output[0]
			c.output = c.output[1:]
			break
		}
		if timeout != Infinite && time.Since(start) >= timeout {
			c.mu.Unlock()
			stopTimer(timer)
			return errkind.New(errkind.ErrTimeout, op, "no event within %v", timeout)
		}
		c.cond.Wait()
	}
	session := c.session
	c.mu.Unlock()
	stopTimer(timer)

	p, err := Decode(s.data)
	c.release(epoch, s)
	if err != nil {
		c.logError(session, err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.apply(session, p)
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// release returns an event buffer to the input queue of the session it
// came from.
func (c *Channel) release(epoch uint64, s *slot) {
	c.mu.Lock()
	if c.epoch == epoch {
		c.input = append(c.input, s)
	}
	c.mu.Unlock()
}

// apply writes the event values into the node map in name order. All
// values are attempted; failures are joined.
func (c *Channel) apply(session uuid.UUID, p Payload) error {
	names := make([]string, 0, len(p.Values))
	for name := range p.Values {
		names = append(names, name)
	}
	slices.Sort(names)

	var errs []error
	applied := names[:0:0]
	for _, name := range names {
		if err := c.graph.Update(name, p.Values[name]); err != nil {
			errs = append(errs, fmt.Errorf("event %s: node %s: %w", p.EventID, name, err))
			continue
		}
		applied = append(applied, name)
	}

	c.metrics.Applied(p.EventID)
	c.logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  session.String(),
		DeviceName: c.graph.DeviceName(),
		Source:     log.SourceEvents,
		Category:   log.CategoryDevice,
		DeviceEvent: &log.DeviceEventData{
			EventID:         p.EventID,
			Nodes:           applied,
			DeviceTimestamp: p.Timestamp,
		},
	})
	if err := errors.Join(errs...); err != nil {
		c.logError(session, err)
		return err
	}
	return nil
}

func (c *Channel) logState(session uuid.UUID, from, to, reason string) {
	c.logger.Log(log.Event{
		Timestamp:   time.Now(),
		SessionID:   session.String(),
		DeviceName:  c.graph.DeviceName(),
		Source:      log.SourceEvents,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{OldState: from, NewState: to, Reason: reason, BufferCount: c.poolSize},
	})
}

func (c *Channel) logError(session uuid.UUID, err error) {
	c.logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  session.String(),
		DeviceName: c.graph.DeviceName(),
		Source:     log.SourceEvents,
		Category:   log.CategoryError,
		Error:      &log.ErrorEventData{Message: err.Error(), Context: "apply"},
	})
}
