package interactive

import (
	"fmt"
	"time"

	"github.com/zacpullen/arena-api/pkg/device"
	"github.com/zacpullen/arena-api/pkg/persistence"
	"github.com/zacpullen/arena-api/pkg/system"
)

// Restore loads the saved session, if any, and applies its discovery
// timeout. Without a store it does nothing.
func (s *Shell) Restore() error {
	store := s.opts.Store
	if store == nil {
		return nil
	}
	state, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	if state == nil {
		state = &persistence.SessionState{}
	} else {
		fmt.Fprintf(s.out, "Restored session from %s (%d known camera(s))\n",
			state.SavedAt.Format(time.DateTime), len(state.Cameras))
	}
	if state.DiscoveryTimeout > 0 {
		if err := s.sys.SetDiscoveryTimeout(state.DiscoveryTimeout); err != nil {
			return fmt.Errorf("restoring discovery timeout: %w", err)
		}
	}

	s.mu.Lock()
	s.session = state
	s.mu.Unlock()
	return nil
}

// remember records a created camera and applies its saved features.
func (s *Shell) remember(info system.DeviceInfo, d *device.Device) {
	store := s.opts.Store
	if store == nil {
		return
	}
	s.mu.Lock()
	if s.session == nil {
		s.session = &persistence.SessionState{}
	}
	s.session.Remember(persistence.CameraRecord{
		MACAddress: info.MACAddress,
		Model:      info.Model,
		Serial:     info.SerialNumber,
		IPAddress:  info.IPAddress.String(),
		LastSeenAt: time.Now(),
	})
	s.mu.Unlock()

	ok, err := store.LoadFeatures(d.NodeMap(), info.MACAddress)
	if err != nil {
		s.printErr("Restoring settings of "+info.MACAddress+" failed", err)
		return
	}
	if ok {
		fmt.Fprintf(s.out, "Restored settings of %s\n", info.MACAddress)
	}
}

// saveSession writes the session file and a feature snapshot of every
// created device.
func (s *Shell) saveSession() error {
	store := s.opts.Store
	s.mu.Lock()
	state := s.session
	cur := s.current
	s.mu.Unlock()
	if state == nil {
		state = &persistence.SessionState{}
	}

	for _, d := range s.sys.Devices() {
		mac, ok := s.sys.MACAddress(d)
		if !ok {
			continue
		}
		if err := store.SaveFeatures(d.NodeMap(), mac); err != nil {
			return fmt.Errorf("saving features of %s: %w", mac, err)
		}
	}

	state.DiscoveryTimeout = s.sys.DiscoveryTimeout()
	state.Current = ""
	if cur != nil && !cur.Destroyed() {
		state.Current, _ = s.sys.MACAddress(cur)
	}
	return store.Save(state)
}

func (s *Shell) cmdSession(args []string) {
	store := s.opts.Store
	if store == nil {
		fmt.Fprintln(s.out, "Session persistence is disabled (start with -state-dir)")
		return
	}

	switch {
	case len(args) == 0:
		s.printSession(store)
	case args[0] == "save":
		if err := s.saveSession(); err != nil {
			s.printErr("Save failed", err)
			return
		}
		fmt.Fprintf(s.out, "Saved session to %s\n", store.Dir())
	case args[0] == "clear":
		if err := store.Clear(); err != nil {
			s.printErr("Clear failed", err)
			return
		}
		s.mu.Lock()
		s.session = &persistence.SessionState{}
		s.mu.Unlock()
		fmt.Fprintln(s.out, "Session cleared")
	default:
		fmt.Fprintln(s.out, "Usage: session [save|clear]")
	}
}

func (s *Shell) printSession(store *persistence.Store) {
	s.mu.Lock()
	state := s.session
	s.mu.Unlock()

	fmt.Fprintf(s.out, "Session directory: %s\n", store.Dir())
	if state == nil || state.SavedAt.IsZero() {
		fmt.Fprintln(s.out, "  Not saved yet")
	} else {
		fmt.Fprintf(s.out, "  Saved:   %s\n", state.SavedAt.Format(time.DateTime))
		fmt.Fprintf(s.out, "  Timeout: %s\n", state.DiscoveryTimeout)
		if state.Current != "" {
			fmt.Fprintf(s.out, "  Current: %s\n", state.Current)
		}
	}
	if state == nil {
		return
	}
	for _, c := range state.Cameras {
		snap := ""
		if store.HasFeatures(c.MACAddress) {
			snap = "  [features]"
		}
		fmt.Fprintf(s.out, "  %s  %s %s  %s%s\n", c.MACAddress, c.Model, c.Serial, c.IPAddress, snap)
	}
}
