package acquisition

import (
	"fmt"
	"math"
	"time"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

// Infinite makes GetBuffer and GetBuffers wait without a deadline.
const Infinite time.Duration = math.MaxInt64

// Policy is the buffer handling mode of a stream. It is read from the
// StreamBufferHandlingMode node of the transport layer stream node map
// when the stream starts.
type Policy uint8

const (
	// OldestFirst drops the newest frame when no input buffer is free.
	OldestFirst Policy = iota
	// OldestFirstOverwrite recycles the oldest unread output buffer so
	// the newest frame can be captured.
	OldestFirstOverwrite
	// NewestOnly keeps at most one buffer in the output queue.
	NewestOnly
)

var policyNames = map[Policy]string{
	OldestFirst:          "OldestFirst",
	OldestFirstOverwrite: "OldestFirstOverwrite",
	NewestOnly:           "NewestOnly",
}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Policy(%d)", uint8(p))
}

// ParsePolicy returns the policy with the given node entry name.
func ParsePolicy(s string) (Policy, error) {
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown buffer handling mode %q", errkind.ErrInvalidValue, s)
}

// State is the acquisition state of an engine.
type State uint8

const (
	StateIdle State = iota
	StateStreaming
)

func (s State) String() string {
	if s == StateStreaming {
		return "streaming"
	}
	return "idle"
}

func checkTimeout(op string, timeout time.Duration) error {
	if timeout < 0 {
		return errkind.New(errkind.ErrInvalidArgument, op, "timeout %v is negative; use a non-negative duration or Infinite", timeout)
	}
	return nil
}
