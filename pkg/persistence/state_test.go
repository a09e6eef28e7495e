package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zacpullen/arena-api/pkg/nodemap"
	"github.com/zacpullen/arena-api/pkg/sim"
)

func cameraGraph(t *testing.T, n int) *nodemap.Graph {
	t.Helper()
	b, err := sim.NewBackend(sim.Camera(n), sim.Options{})
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b.NodeMaps().Device
}

func TestStoreSession(t *testing.T) {
	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "session"))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil before the first Save", got)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "session")
		store := NewStore(dir)

		seen := time.Now().Add(-time.Hour).Truncate(time.Second)
		state := &SessionState{
			DiscoveryTimeout: 250 * time.Millisecond,
			Current:          "1c:0f:af:00:00:02",
			Cameras: []CameraRecord{
				{MACAddress: "1c:0f:af:00:00:01", Model: "TRI050S-M", Serial: "000000001", LastSeenAt: seen},
				{MACAddress: "1c:0f:af:00:00:02", Model: "TRI050S-M", IPAddress: "169.254.0.2", LastSeenAt: seen},
			},
		}
		if err := store.Save(state); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if state.Version != StateVersion || state.SavedAt.IsZero() {
			t.Errorf("Save() left Version=%d SavedAt=%v", state.Version, state.SavedAt)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.DiscoveryTimeout != 250*time.Millisecond {
			t.Errorf("DiscoveryTimeout = %v, want 250ms", got.DiscoveryTimeout)
		}
		if got.Current != "1c:0f:af:00:00:02" {
			t.Errorf("Current = %q", got.Current)
		}
		if len(got.Cameras) != 2 {
			t.Fatalf("len(Cameras) = %d, want 2", len(got.Cameras))
		}
		if !got.Cameras[0].LastSeenAt.Equal(seen) {
			t.Errorf("LastSeenAt = %v, want %v", got.Cameras[0].LastSeenAt, seen)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewStore(t.TempDir())
		if err := store.Save(&SessionState{Current: "1c:0f:af:00:00:01"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := store.SaveFeatures(cameraGraph(t, 1), "1c:0f:af:00:00:01"); err != nil {
			t.Fatalf("SaveFeatures() error = %v", err)
		}

		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if got, _ := store.Load(); got != nil {
			t.Errorf("Load() after Clear() = %v, want nil", got)
		}
		if store.HasFeatures("1c:0f:af:00:00:01") {
			t.Error("feature snapshot survived Clear()")
		}

		// Clearing an empty store is fine.
		if err := store.Clear(); err != nil {
			t.Errorf("second Clear() error = %v", err)
		}
	})

	t.Run("CorruptFile", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "session.json"), []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewStore(dir).Load(); err == nil {
			t.Error("Load() accepted a corrupt session file")
		}
	})
}

func TestSessionStateRemember(t *testing.T) {
	var state SessionState
	state.Remember(CameraRecord{MACAddress: "1c:0f:af:00:00:01", IPAddress: "169.254.0.1"})
	state.Remember(CameraRecord{MACAddress: "1c:0f:af:00:00:02"})
	state.Remember(CameraRecord{MACAddress: "1c:0f:af:00:00:01", IPAddress: "192.168.1.10"})

	if len(state.Cameras) != 2 {
		t.Fatalf("len(Cameras) = %d, want 2", len(state.Cameras))
	}
	rec, ok := state.Camera("1c:0f:af:00:00:01")
	if !ok || rec.IPAddress != "192.168.1.10" {
		t.Errorf("Camera() = %+v, %v", rec, ok)
	}
	if _, ok := state.Camera("1c:0f:af:00:00:03"); ok {
		t.Error("Camera() found an unknown MAC")
	}
}

func TestStoreFeatures(t *testing.T) {
	store := NewStore(t.TempDir())
	const mac = "1c:0f:af:00:00:01"

	if got := filepath.Base(store.FeaturePath(mac)); got != "1c-0f-af-00-00-01.yaml" {
		t.Errorf("FeaturePath() base = %q", got)
	}

	src := cameraGraph(t, 1)
	if err := src.SetInt("Width", 1024); err != nil {
		t.Fatalf("SetInt() error = %v", err)
	}
	if err := src.SetEnum("PixelFormat", "Mono16"); err != nil {
		t.Fatalf("SetEnum() error = %v", err)
	}

	dst := cameraGraph(t, 2)
	ok, err := store.LoadFeatures(dst, mac)
	if err != nil || ok {
		t.Fatalf("LoadFeatures() before save = %v, %v", ok, err)
	}

	if err := store.SaveFeatures(src, mac); err != nil {
		t.Fatalf("SaveFeatures() error = %v", err)
	}
	if !store.HasFeatures(mac) {
		t.Fatal("HasFeatures() = false after SaveFeatures()")
	}

	ok, err = store.LoadFeatures(dst, mac)
	if err != nil || !ok {
		t.Fatalf("LoadFeatures() = %v, %v", ok, err)
	}
	if w, _ := dst.IntValue("Width"); w != 1024 {
		t.Errorf("Width = %d, want 1024", w)
	}
	if pf, _ := dst.EnumValue("PixelFormat"); pf != "Mono16" {
		t.Errorf("PixelFormat = %q, want Mono16", pf)
	}
}
