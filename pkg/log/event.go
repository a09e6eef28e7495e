package log

import (
	"time"
)

// Event is one captured stream event. CBOR encoding uses integer keys.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the stream run (one Start/Stop cycle) or event
	// channel run the event belongs to.
	SessionID string `cbor:"2,keyasint"`

	DeviceName string   `cbor:"3,keyasint,omitempty"`
	Source     Source   `cbor:"4,keyasint"`
	Category   Category `cbor:"5,keyasint"`

	// One of these is set.
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"`
	Buffer      *BufferEvent      `cbor:"11,keyasint,omitempty"`
	DeviceEvent *DeviceEventData  `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Source is the component that emitted the event.
type Source uint8

const (
	SourceStream Source = 0
	SourceEvents Source = 1
)

func (s Source) String() string {
	switch s {
	case SourceStream:
		return "STREAM"
	case SourceEvents:
		return "EVENTS"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event.
type Category uint8

const (
	CategoryState  Category = 0
	CategoryBuffer Category = 1
	CategoryDevice Category = 2
	CategoryError  Category = 3
)

func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryBuffer:
		return "BUFFER"
	case CategoryDevice:
		return "DEVICE_EVENT"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent records a stream or event channel transition.
type StateChangeEvent struct {
	OldState string `cbor:"1,keyasint,omitempty"`
	NewState string `cbor:"2,keyasint"`
	Reason   string `cbor:"3,keyasint,omitempty"`

	// BufferCount is the pool size of a stream start.
	BufferCount int `cbor:"4,keyasint,omitempty"`
}

// BufferEvent records what happened to one buffer.
type BufferEvent struct {
	Action  BufferAction `cbor:"1,keyasint"`
	FrameID uint64       `cbor:"2,keyasint"`
	Slot    int          `cbor:"3,keyasint"`
	Size    int          `cbor:"4,keyasint,omitempty"`

	Incomplete bool `cbor:"5,keyasint,omitempty"`

	// Policy is the buffer handling mode in effect.
	Policy string `cbor:"6,keyasint,omitempty"`
}

// BufferAction says what happened to a buffer.
type BufferAction uint8

const (
	// BufferDelivered: a filled buffer entered the output queue.
	BufferDelivered BufferAction = 0
	// BufferDropped: a frame was lost for lack of a free buffer.
	BufferDropped BufferAction = 1
	// BufferRecycled: the policy moved an unread buffer back to input.
	BufferRecycled BufferAction = 2
	// BufferRetrieved: the caller took the buffer.
	BufferRetrieved BufferAction = 3
	// BufferRequeued: the caller gave the buffer back.
	BufferRequeued BufferAction = 4
)

func (a BufferAction) String() string {
	switch a {
	case BufferDelivered:
		return "DELIVERED"
	case BufferDropped:
		return "DROPPED"
	case BufferRecycled:
		return "RECYCLED"
	case BufferRetrieved:
		return "RETRIEVED"
	case BufferRequeued:
		return "REQUEUED"
	default:
		return "UNKNOWN"
	}
}

// DeviceEventData records a device event applied to the node map.
type DeviceEventData struct {
	EventID string   `cbor:"1,keyasint"`
	Nodes   []string `cbor:"2,keyasint,omitempty"`

	// DeviceTimestamp is the event timestamp reported by the device.
	DeviceTimestamp uint64 `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData records a failure inside a worker.
type ErrorEventData struct {
	Message string `cbor:"1,keyasint"`
	Context string `cbor:"2,keyasint,omitempty"`
}
