package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	require.NoError(t, c.Register())
	require.NoError(t, c.Register())

	// A second collector on the same registry reuses the registration.
	require.NoError(t, New(reg).Register())
}

func TestStreamRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	require.NoError(t, c.Register())

	s := c.Stream("cam-1")
	s.FrameDelivered(false)
	s.FrameDelivered(true)
	s.FrameLost("OldestFirst")
	s.BufferRecycled()
	s.BuffersRetrieved(2, 5*time.Millisecond)
	s.BuffersRequeued(2)
	s.Timeout()
	s.Queues(3, 1)
	s.Streaming(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.framesDelivered.WithLabelValues("cam-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.framesIncomplete.WithLabelValues("cam-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.framesLost.WithLabelValues("cam-1", "OldestFirst")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.buffersRetrieved.WithLabelValues("cam-1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.queueDepth.WithLabelValues("cam-1", "input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.streaming.WithLabelValues("cam-1")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.waitSeconds))

	s.Streaming(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.streaming.WithLabelValues("cam-1")))
}

func TestEventsRecorder(t *testing.T) {
	c := New(prometheus.NewRegistry())
	e := c.Events("cam-2")
	e.Applied("ExposureEnd")
	e.Applied("ExposureEnd")
	e.Lost()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.eventsApplied.WithLabelValues("cam-2", "ExposureEnd")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsLost.WithLabelValues("cam-2")))
}

func TestNilRecorders(t *testing.T) {
	var c *Collector
	s := c.Stream("x")
	s.FrameDelivered(true)
	s.Queues(1, 1)
	var e *Events
	e.Applied("x")
}
