package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes stream events to an slog.Logger. Errors are logged
// at Warn, everything else at Debug.
type SlogAdapter struct {
	logger *slog.Logger
}

func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", event.SessionID),
		slog.String("source", event.Source.String()),
		slog.String("category", event.Category.String()),
	}
	if event.DeviceName != "" {
		attrs = append(attrs, slog.String("device", event.DeviceName))
	}

	level := slog.LevelDebug
	switch {
	case event.StateChange != nil:
		sc := event.StateChange
		attrs = append(attrs,
			slog.String("old_state", sc.OldState),
			slog.String("new_state", sc.NewState),
		)
		if sc.Reason != "" {
			attrs = append(attrs, slog.String("reason", sc.Reason))
		}
		if sc.BufferCount > 0 {
			attrs = append(attrs, slog.Int("buffers", sc.BufferCount))
		}
	case event.Buffer != nil:
		b := event.Buffer
		attrs = append(attrs,
			slog.String("action", b.Action.String()),
			slog.Uint64("frame_id", b.FrameID),
			slog.Int("slot", b.Slot),
		)
		if b.Size > 0 {
			attrs = append(attrs, slog.Int("size", b.Size))
		}
		if b.Incomplete {
			attrs = append(attrs, slog.Bool("incomplete", true))
		}
		if b.Policy != "" {
			attrs = append(attrs, slog.String("policy", b.Policy))
		}
	case event.DeviceEvent != nil:
		attrs = append(attrs,
			slog.String("event_id", event.DeviceEvent.EventID),
			slog.Any("nodes", event.DeviceEvent.Nodes),
		)
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), level, "stream", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
