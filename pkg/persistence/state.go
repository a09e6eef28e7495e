package persistence

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/zacpullen/arena-api/pkg/nodemap"
)

// StateVersion is the current version of the session file format.
const StateVersion = 1

const (
	sessionFile = "session.json"
	featureDir  = "features"
)

// SessionState is what a shell remembers between runs.
type SessionState struct {
	// Version is the session file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// DiscoveryTimeout is the TLSystem discovery timeout. Zero keeps the
	// configured default.
	DiscoveryTimeout time.Duration `json:"discovery_timeout,omitempty"`

	// Current is the MAC address of the camera that was current at exit.
	Current string `json:"current,omitempty"`

	// Cameras are the cameras created in earlier sessions, by MAC address.
	Cameras []CameraRecord `json:"cameras,omitempty"`
}

// CameraRecord describes a camera the shell has created.
type CameraRecord struct {
	MACAddress string    `json:"mac"`
	Model      string    `json:"model,omitempty"`
	Serial     string    `json:"serial,omitempty"`
	IPAddress  string    `json:"ip,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Camera returns the record for mac.
func (s *SessionState) Camera(mac string) (CameraRecord, bool) {
	i := slices.IndexFunc(s.Cameras, func(c CameraRecord) bool { return c.MACAddress == mac })
	if i < 0 {
		return CameraRecord{}, false
	}
	return s.Cameras[i], true
}

// Remember adds rec or replaces the record with the same MAC address.
func (s *SessionState) Remember(rec CameraRecord) {
	i := slices.IndexFunc(s.Cameras, func(c CameraRecord) bool { return c.MACAddress == rec.MACAddress })
	if i < 0 {
		s.Cameras = append(s.Cameras, rec)
		return
	}
	s.Cameras[i] = rec
}

// Store manages a session directory.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates a store rooted at dir. Nothing is written until Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the session directory.
func (s *Store) Dir() string { return s.dir }

// Save persists the session state to disk.
func (s *Store) Save(state *SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(s.dir, sessionFile), data, 0644)
}

// Load reads the session state from disk.
// Returns nil, nil if no session was saved yet.
func (s *Store) Load() (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, sessionFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &SessionState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}

	return state, nil
}

// Clear removes the session file and all feature snapshots.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.dir, sessionFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.RemoveAll(filepath.Join(s.dir, featureDir))
}

// FeaturePath returns the snapshot file of the camera with the given MAC
// address.
func (s *Store) FeaturePath(mac string) string {
	return filepath.Join(s.dir, featureDir, strings.ReplaceAll(mac, ":", "-")+".yaml")
}

// HasFeatures reports whether a snapshot exists for mac.
func (s *Store) HasFeatures(mac string) bool {
	_, err := os.Stat(s.FeaturePath(mac))
	return err == nil
}

// SaveFeatures writes the streamable features of g as the snapshot for
// mac.
func (s *Store) SaveFeatures(g *nodemap.Graph, mac string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.FeaturePath(mac)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return g.SaveFeatureFile(path)
}

// LoadFeatures applies the snapshot for mac to g. It reports false when
// there is no snapshot.
func (s *Store) LoadFeatures(g *nodemap.Graph, mac string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := g.LoadFeatureFile(s.FeaturePath(mac))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
