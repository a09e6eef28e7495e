// Package commands implements the arena-log CLI commands.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/zacpullen/arena-api/pkg/log"
)

// FilterOptions are the command-line filter flags shared by view, export
// and filter.
type FilterOptions struct {
	SessionID string
	Device    string
	Source    string
	Category  string
	TimeStart string
	TimeEnd   string
}

// Filter converts the flags to a log.Filter.
func (o FilterOptions) Filter() (log.Filter, error) {
	f := log.Filter{SessionID: o.SessionID, DeviceName: o.Device}
	if o.Source != "" {
		s, err := parseSource(o.Source)
		if err != nil {
			return f, err
		}
		f.Source = &s
	}
	if o.Category != "" {
		c, err := parseCategory(o.Category)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return f, fmt.Errorf("invalid time-start format: %w", err)
		}
		f.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return f, fmt.Errorf("invalid time-end format: %w", err)
		}
		f.TimeEnd = &t
	}
	return f, nil
}

// parseSource parses a source name (case-insensitive).
func parseSource(s string) (log.Source, error) {
	switch strings.ToLower(s) {
	case "stream":
		return log.SourceStream, nil
	case "events":
		return log.SourceEvents, nil
	default:
		return 0, fmt.Errorf("invalid source: %s (must be stream or events)", s)
	}
}

// parseCategory parses a category name (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "state":
		return log.CategoryState, nil
	case "buffer":
		return log.CategoryBuffer, nil
	case "device", "device_event":
		return log.CategoryDevice, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be state, buffer, device or error)", s)
	}
}

// eventType labels the payload of an event.
func eventType(e log.Event) string {
	switch {
	case e.StateChange != nil:
		return "state"
	case e.Buffer != nil:
		return strings.ToLower(e.Buffer.Action.String())
	case e.DeviceEvent != nil:
		return "device_event"
	case e.Error != nil:
		return "error"
	}
	return "unknown"
}

const timestampLayout = "2006-01-02T15:04:05.000000Z"
