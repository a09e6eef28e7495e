package sim

import (
	"sync"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/event"
)

// GigE Vision event ids of the simulated events.
const (
	EventIDExposureEnd = 0x9001
	EventIDTest        = 0x9002
)

// eventSource sends the events whose EventNotification is On.
type eventSource struct {
	b *Backend

	mu   sync.Mutex
	sink event.Sink
}

func (s *eventSource) Open(sink event.Sink) error {
	if err := s.b.checkConnected("Open"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink != nil {
		return errkind.New(errkind.ErrIllegalState, "Open", "event source is already open")
	}
	s.sink = sink
	return nil
}

func (s *eventSource) Close() error {
	s.mu.Lock()
	s.sink = nil
	s.mu.Unlock()
	return nil
}

// send delivers p when the selector entry's notification is on.
func (s *eventSource) send(selector string, p event.Payload) {
	if !s.b.eventNotification.on(selector) {
		return
	}
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink == nil {
		return
	}
	data, err := event.Encode(p)
	if err != nil {
		s.b.logger.Warn("encoding event failed", "camera", s.b.info.MACAddress, "event", p.EventID, "error", err)
		return
	}
	sink.Deliver(data)
}

func (s *eventSource) exposureEnd(frameID, ts uint64) {
	s.send("ExposureEnd", event.Payload{
		EventID:   "0x9001",
		Timestamp: ts,
		Values: map[string]any{
			"EventExposureEnd":          int64(EventIDExposureEnd),
			"EventExposureEndFrameID":   int64(frameID),
			"EventExposureEndTimestamp": int64(ts),
		},
	})
}

// testEvent handles TestEventGenerate.
func (s *eventSource) testEvent() error {
	if err := s.b.checkConnected("TestEventGenerate"); err != nil {
		return err
	}
	ts := s.b.timestamp()
	s.send("Test", event.Payload{
		EventID:   "0x9002",
		Timestamp: ts,
		Values: map[string]any{
			"EventTest":          int64(EventIDTest),
			"EventTestTimestamp": int64(ts),
		},
	})
	return nil
}
