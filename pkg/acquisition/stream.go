package acquisition

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zacpullen/arena-api/pkg/buffer"
)

// Stream is the handle of one started acquisition. Close stops it; a
// deferred Close releases the stream on every return path:
//
//	s, err := engine.Start(10)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
// Closing a Stream after its engine was stopped and started again leaves
// the newer acquisition running.
type Stream struct {
	e       *Engine
	session uuid.UUID
	count   int

	once sync.Once
	err  error
}

// Session identifies the acquisition. Buffers of this stream report the
// same session.
func (s *Stream) Session() uuid.UUID { return s.session }

// BufferCount is the number of buffers the stream was started with.
func (s *Stream) BufferCount() int { return s.count }

// Active reports whether the acquisition is still running.
func (s *Stream) Active() bool {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	return s.e.state == StateStreaming && s.e.session == s.session
}

// GetBuffer waits up to timeout for the oldest filled buffer.
func (s *Stream) GetBuffer(timeout time.Duration) (*buffer.Buffer, error) {
	return s.e.GetBuffer(timeout)
}

// GetBuffers waits up to timeout for count buffers, oldest first.
func (s *Stream) GetBuffers(count int, timeout time.Duration) ([]*buffer.Buffer, error) {
	return s.e.GetBuffers(count, timeout)
}

// Requeue hands retrieved buffers back to the input queue.
func (s *Stream) Requeue(bufs ...*buffer.Buffer) error {
	return s.e.Requeue(bufs...)
}

// Close stops the acquisition. Only the first call has an effect.
func (s *Stream) Close() error {
	s.once.Do(func() {
		s.err = s.e.stop(func(id uuid.UUID) bool { return id == s.session }, "stream closed")
	})
	return s.err
}
