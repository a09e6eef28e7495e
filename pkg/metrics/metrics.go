// Package metrics exposes Prometheus collectors for acquisition streams
// and device event channels.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arena"

// Collector holds the stream and event channel metrics of all devices,
// labelled by device name.
type Collector struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	framesDelivered  *prometheus.CounterVec
	framesLost       *prometheus.CounterVec
	framesIncomplete *prometheus.CounterVec
	buffersRecycled  *prometheus.CounterVec
	buffersRetrieved *prometheus.CounterVec
	buffersRequeued  *prometheus.CounterVec
	getTimeouts      *prometheus.CounterVec
	queueDepth       *prometheus.GaugeVec
	streaming        *prometheus.GaugeVec
	waitSeconds      *prometheus.HistogramVec

	eventsApplied *prometheus.CounterVec
	eventsLost    *prometheus.CounterVec
}

func newCounterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func newGaugeVec(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// New creates a collector. A nil registerer means
// prometheus.DefaultRegisterer.
func New(registerer prometheus.Registerer) *Collector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Collector{
		registerer:       registerer,
		framesDelivered:  newCounterVec("stream", "frames_delivered_total", "Frames placed in the output queue", "device"),
		framesLost:       newCounterVec("stream", "frames_lost_total", "Frames dropped or overwritten by the buffer handling policy", "device", "policy"),
		framesIncomplete: newCounterVec("stream", "frames_incomplete_total", "Frames delivered with missing or truncated data", "device"),
		buffersRecycled:  newCounterVec("stream", "buffers_recycled_total", "Unread output buffers moved back to the input queue", "device"),
		buffersRetrieved: newCounterVec("stream", "buffers_retrieved_total", "Buffers handed to the caller", "device"),
		buffersRequeued:  newCounterVec("stream", "buffers_requeued_total", "Buffers returned by the caller", "device"),
		getTimeouts:      newCounterVec("stream", "get_buffer_timeouts_total", "Buffer requests that timed out", "device"),
		queueDepth:       newGaugeVec("stream", "queue_depth", "Buffers per queue", "device", "queue"),
		streaming:        newGaugeVec("stream", "streaming", "1 while the device is streaming", "device"),
		waitSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "get_buffer_wait_seconds",
			Help:      "Time callers spent waiting for buffers",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"device"}),
		eventsApplied: newCounterVec("events", "applied_total", "Device events applied to the node map", "device", "event_id"),
		eventsLost:    newCounterVec("events", "lost_total", "Device events dropped for lack of a free event buffer", "device"),
	}
}

// Register registers the collectors. It may be called more than once and
// tolerates collectors registered by another Collector.
func (c *Collector) Register() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registered {
		return nil
	}
	collectors := []prometheus.Collector{
		c.framesDelivered, c.framesLost, c.framesIncomplete,
		c.buffersRecycled, c.buffersRetrieved, c.buffersRequeued,
		c.getTimeouts, c.queueDepth, c.streaming, c.waitSeconds,
		c.eventsApplied, c.eventsLost,
	}
	for _, col := range collectors {
		if err := c.registerer.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	c.registered = true
	return nil
}

// Stream returns the recorder for one device's stream. A nil collector
// returns a recorder that discards everything.
func (c *Collector) Stream(device string) *Stream {
	return &Stream{c: c, device: device}
}

// Events returns the recorder for one device's event channel.
func (c *Collector) Events(device string) *Events {
	return &Events{c: c, device: device}
}

// Stream records acquisition metrics for one device.
type Stream struct {
	c      *Collector
	device string
}

func (s *Stream) FrameDelivered(incomplete bool) {
	if s == nil || s.c == nil {
		return
	}
	s.c.framesDelivered.WithLabelValues(s.device).Inc()
	if incomplete {
		s.c.framesIncomplete.WithLabelValues(s.device).Inc()
	}
}

func (s *Stream) FrameLost(policy string) {
	if s == nil || s.c == nil {
		return
	}
	s.c.framesLost.WithLabelValues(s.device, policy).Inc()
}

func (s *Stream) BufferRecycled() {
	if s == nil || s.c == nil {
		return
	}
	s.c.buffersRecycled.WithLabelValues(s.device).Inc()
}

func (s *Stream) BuffersRetrieved(n int, waited time.Duration) {
	if s == nil || s.c == nil {
		return
	}
	s.c.buffersRetrieved.WithLabelValues(s.device).Add(float64(n))
	s.c.waitSeconds.WithLabelValues(s.device).Observe(waited.Seconds())
}

func (s *Stream) BuffersRequeued(n int) {
	if s == nil || s.c == nil {
		return
	}
	s.c.buffersRequeued.WithLabelValues(s.device).Add(float64(n))
}

func (s *Stream) Timeout() {
	if s == nil || s.c == nil {
		return
	}
	s.c.getTimeouts.WithLabelValues(s.device).Inc()
}

// Queues sets the input and output queue depth gauges.
func (s *Stream) Queues(input, output int) {
	if s == nil || s.c == nil {
		return
	}
	s.c.queueDepth.WithLabelValues(s.device, "input").Set(float64(input))
	s.c.queueDepth.WithLabelValues(s.device, "output").Set(float64(output))
}

func (s *Stream) Streaming(on bool) {
	if s == nil || s.c == nil {
		return
	}
	v := 0.0
	if on {
		v = 1
	}
	s.c.streaming.WithLabelValues(s.device).Set(v)
}

// Events records event channel metrics for one device.
type Events struct {
	c      *Collector
	device string
}

func (e *Events) Applied(eventID string) {
	if e == nil || e.c == nil {
		return
	}
	e.c.eventsApplied.WithLabelValues(e.device, eventID).Inc()
}

func (e *Events) Lost() {
	if e == nil || e.c == nil {
		return
	}
	e.c.eventsLost.WithLabelValues(e.device).Inc()
}
