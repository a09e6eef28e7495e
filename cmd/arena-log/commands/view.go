package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/zacpullen/arena-api/pkg/log"
)

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format(timestampLayout)
	fmt.Fprintf(w, "%s [%s] %-6s %s", ts, shortenSessionID(event.SessionID), event.Source, event.Category)
	if event.DeviceName != "" {
		fmt.Fprintf(w, " %s", event.DeviceName)
	}
	fmt.Fprintln(w)

	switch {
	case event.StateChange != nil:
		sc := event.StateChange
		if sc.OldState != "" {
			fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
		} else {
			fmt.Fprintf(w, "  -> %s\n", sc.NewState)
		}
		if sc.BufferCount > 0 {
			fmt.Fprintf(w, "  Buffers: %d\n", sc.BufferCount)
		}
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}
	case event.Buffer != nil:
		b := event.Buffer
		fmt.Fprintf(w, "  %s frame %d slot %d", b.Action, b.FrameID, b.Slot)
		if b.Size > 0 {
			fmt.Fprintf(w, " (%d bytes)", b.Size)
		}
		if b.Incomplete {
			fmt.Fprint(w, " incomplete")
		}
		fmt.Fprintln(w)
		if b.Policy != "" {
			fmt.Fprintf(w, "  Policy: %s\n", b.Policy)
		}
	case event.DeviceEvent != nil:
		d := event.DeviceEvent
		fmt.Fprintf(w, "  EventID: %s\n", d.EventID)
		if d.DeviceTimestamp != 0 {
			fmt.Fprintf(w, "  Device time: %d\n", d.DeviceTimestamp)
		}
		if len(d.Nodes) > 0 {
			fmt.Fprintf(w, "  Nodes: %s\n", strings.Join(d.Nodes, ", "))
		}
	case event.Error != nil:
		fmt.Fprintf(w, "  Message: %s\n", event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", event.Error.Context)
		}
	}
	fmt.Fprintln(w)
}

// shortenSessionID returns the first 8 characters of a session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// RunView prints the matching events of a log file.
func RunView(path string, opts FilterOptions, output io.Writer) error {
	filter, err := opts.Filter()
	if err != nil {
		return err
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}
