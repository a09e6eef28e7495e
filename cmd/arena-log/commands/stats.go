package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/zacpullen/arena-api/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	Buffers          map[log.BufferAction]int
	Incomplete       int
	DeviceEvents     map[string]int
	Sessions         map[string]*SessionStats
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for one stream or event channel run.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Device    string
	Delivered int
	Dropped   int
}

// FrameRate returns the delivered frames per second over the session.
func (s *SessionStats) FrameRate() float64 {
	d := s.LastSeen.Sub(s.FirstSeen).Seconds()
	if d <= 0 || s.Delivered < 2 {
		return 0
	}
	return float64(s.Delivered-1) / d
}

// CollectStats reads every event of a log file.
func CollectStats(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory: make(map[log.Category]int),
		Buffers:          make(map[log.BufferAction]int),
		DeviceEvents:     make(map[string]int),
		Sessions:         make(map[string]*SessionStats),
	}
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByCategory[event.Category]++
		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		sess, ok := stats.Sessions[event.SessionID]
		if !ok {
			sess = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
			stats.Sessions[event.SessionID] = sess
		}
		sess.Events++
		if event.Timestamp.After(sess.LastSeen) {
			sess.LastSeen = event.Timestamp
		}
		if event.DeviceName != "" && sess.Device == "" {
			sess.Device = event.DeviceName
		}

		switch {
		case event.Buffer != nil:
			stats.Buffers[event.Buffer.Action]++
			switch event.Buffer.Action {
			case log.BufferDelivered:
				sess.Delivered++
				if event.Buffer.Incomplete {
					stats.Incomplete++
				}
			case log.BufferDropped:
				sess.Dropped++
			}
		case event.DeviceEvent != nil:
			stats.DeviceEvents[event.DeviceEvent.EventID]++
		case event.Error != nil:
			stats.Errors++
		}
	}
	return stats, nil
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Stream Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryState, log.CategoryBuffer, log.CategoryDevice, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Buffers) > 0 {
		fmt.Fprintln(w, "Buffers:")
		for _, a := range []log.BufferAction{log.BufferDelivered, log.BufferDropped, log.BufferRecycled, log.BufferRetrieved, log.BufferRequeued} {
			if count := stats.Buffers[a]; count > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", a.String()+":", count)
			}
		}
		if stats.Incomplete > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", "INCOMPLETE:", stats.Incomplete)
		}
		fmt.Fprintln(w)
	}

	if len(stats.DeviceEvents) > 0 {
		fmt.Fprintln(w, "Device Events:")
		ids := make([]string, 0, len(stats.DeviceEvents))
		for id := range stats.DeviceEvents {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "  %-14s %d\n", id+":", stats.DeviceEvents[id])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	type sessionInfo struct {
		id    string
		stats *SessionStats
	}
	sessions := make([]sessionInfo, 0, len(stats.Sessions))
	for id, s := range stats.Sessions {
		sessions = append(sessions, sessionInfo{id, s})
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
	})
	for _, s := range sessions {
		duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
		fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenSessionID(s.id), s.stats.Events, duration)
		if s.stats.Device != "" {
			fmt.Fprintf(w, "           Device: %s\n", s.stats.Device)
		}
		if s.stats.Delivered > 0 || s.stats.Dropped > 0 {
			fmt.Fprintf(w, "           Frames: %d delivered, %d dropped, %.1f fps\n",
				s.stats.Delivered, s.stats.Dropped, s.stats.FrameRate())
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
