package node

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

func testDefinitions() []Definition {
	return []Definition{
		{Name: "Root", Type: "Category", Children: []string{"ImageFormatControl", "AcquisitionControl"}},
		{Name: "ImageFormatControl", Type: "Category", Feature: true,
			Children: []string{"Width", "Height", "PixelFormat", "Gain", "DeviceUserID"}},
		{Name: "AcquisitionControl", Type: "Category", Feature: true,
			Children: []string{"TriggerSelector", "TriggerMode", "AcquisitionStart", "Width"}},
		{Name: "Width", Type: "IInteger", Feature: true, Min: 16, Max: 2448, Inc: 8, Value: 2448,
			LockedWhileStreaming: true, Unit: "px", Invalidates: []string{"PayloadSize"}},
		{Name: "Height", Type: "Integer", Feature: true, Min: 2, Max: 2048, Value: 2048},
		{Name: "PayloadSize", Type: "Integer", Access: "RO", Value: 0},
		{Name: "Gain", Type: "Float", Feature: true, Min: 0.0, Max: 48.0, Value: 0.0, Unit: "dB",
			DisplayNotation: "Fixed", DisplayPrecision: 2},
		{Name: "ExposureTime", Type: "Float", Feature: true, Min: 10.0, Max: 1e6, Inc: 0.5, Value: 1000.0},
		{Name: "PixelFormat", Type: "Enumeration", Feature: true, Value: "Mono8", Entries: []EntryDefinition{
			{Name: "Mono8", Value: 0x01080001},
			{Name: "Mono16", Value: 0x01100007},
			{Name: "BayerRG8", Value: 0x01080009, Access: "NA"},
		}},
		{Name: "TriggerSelector", Type: "Enumeration", Feature: true, Selected: []string{"TriggerMode"},
			Entries: []EntryDefinition{{Name: "FrameStart", Value: 0}, {Name: "AcquisitionStart", Value: 1}}},
		{Name: "TriggerMode", Type: "Enumeration", Feature: true,
			Entries: []EntryDefinition{{Name: "Off", Value: 0}, {Name: "On", Value: 1}}},
		{Name: "DeviceUserID", Type: "String", Feature: true, MaxLength: 8},
		{Name: "AcquisitionStart", Type: "Command", Feature: true, Access: "WO"},
		{Name: "DeviceTemperature", Type: "Float", Access: "RO", Caching: "NoCache", PollingTime: 100},
		{Name: "LUTValueAll", Type: "Register", Length: 4, Value: "0x01020304"},
		{Name: "Port", Type: "IPort"},
		{Name: "GainAlias", Type: "Float", Alias: "Gain", Min: 0.0, Max: 48.0},
		{Name: "Hidden", Type: "Integer", Feature: true, Access: "NI"},
	}
}

func newTestArena(t *testing.T) *Arena {
	t.Helper()
	a, err := NewArena(ScopeDevice, "TestCam", testDefinitions())
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	return a
}

func mustLookup[T Feature](t *testing.T, a *Arena, name string) T {
	t.Helper()
	n, ok := a.Lookup(name)
	if !ok {
		t.Fatalf("node %s not found", name)
	}
	f, err := As[T](n)
	if err != nil {
		t.Fatalf("As(%s): %v", name, err)
	}
	return f
}

func TestCastMatchesInterfaceType(t *testing.T) {
	a := newTestArena(t)

	for _, n := range a.Nodes() {
		f, err := Cast(n)
		if n.InterfaceType() == InterfacePort {
			if !errors.Is(err, errkind.ErrTypeMismatch) {
				t.Errorf("Cast(%s) error = %v, want ErrTypeMismatch", n.Name(), err)
			}
			if f != nil {
				t.Errorf("Cast(%s) returned a variant for an unsupported type", n.Name())
			}
			continue
		}
		if err != nil {
			t.Fatalf("Cast(%s): %v", n.Name(), err)
		}
		if f.InterfaceType() != n.InterfaceType() {
			t.Errorf("Cast(%s) type = %s, want %s", n.Name(), f.InterfaceType(), n.InterfaceType())
		}
	}
}

func TestCastZeroNode(t *testing.T) {
	if _, err := Cast(Node{}); !errors.Is(err, errkind.ErrInvalidArgument) {
		t.Errorf("Cast(zero) error = %v", err)
	}
}

func TestAsWrongVariant(t *testing.T) {
	a := newTestArena(t)
	n, _ := a.Lookup("Width")
	if _, err := As[*Float](n); !errors.Is(err, errkind.ErrTypeMismatch) {
		t.Errorf("As[*Float](Width) error = %v, want ErrTypeMismatch", err)
	}
}

func TestIntegerRange(t *testing.T) {
	a := newTestArena(t)
	w := mustLookup[*Integer](t, a, "Width")

	max, err := w.Max()
	if err != nil {
		t.Fatalf("Max: %v", err)
	}

	tests := []struct {
		name    string
		value   int64
		wantErr error
	}{
		{"min", 16, nil},
		{"max", max, nil},
		{"below min", 8, errkind.ErrOutOfRange},
		{"above max", max + 8, errkind.ErrOutOfRange},
		{"off increment", 17, errkind.ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := w.Value()
			err := w.SetValue(tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetValue(%d) error = %v, want %v", tt.value, err, tt.wantErr)
			}
			got, _ := w.Value()
			if tt.wantErr != nil && got != before {
				t.Errorf("value changed on failure: %d -> %d", before, got)
			}
			if tt.wantErr == nil && got != tt.value {
				t.Errorf("Value() = %d, want %d", got, tt.value)
			}
		})
	}
}

func TestIntegerIncrementWithoutMin(t *testing.T) {
	a, err := NewArena(ScopeDevice, "TestCam", []Definition{
		{Name: "Offset", Type: "Integer", Feature: true, Inc: 3},
	})
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	o := mustLookup[*Integer](t, a, "Offset")

	for _, v := range []int64{9, -6, 0} {
		if err := o.SetValue(v); err != nil {
			t.Errorf("SetValue(%d): %v", v, err)
		}
	}
	for _, v := range []int64{10, -4} {
		if err := o.SetValue(v); !errors.Is(err, errkind.ErrOutOfRange) {
			t.Errorf("SetValue(%d) error = %v, want ErrOutOfRange", v, err)
		}
	}
}

func TestIntegerOutOfRangeMessage(t *testing.T) {
	a := newTestArena(t)
	h := mustLookup[*Integer](t, a, "Height")

	err := h.SetValue(4096)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "[2, 2048]") {
		t.Errorf("error %q does not name the violated bounds", err)
	}
}

func TestImposeMinMax(t *testing.T) {
	a := newTestArena(t)
	h := mustLookup[*Integer](t, a, "Height")

	if err := h.ImposeMax(1024); err != nil {
		t.Fatalf("ImposeMax: %v", err)
	}
	if max, _ := h.Max(); max != 1024 {
		t.Errorf("Max() = %d, want 1024", max)
	}
	if err := h.SetValue(1500); !errors.Is(err, errkind.ErrOutOfRange) {
		t.Errorf("SetValue above imposed max error = %v", err)
	}
	// Imposing cannot widen the device range.
	if err := h.ImposeMin(0); err != nil {
		t.Fatalf("ImposeMin: %v", err)
	}
	if min, _ := h.Min(); min != 2 {
		t.Errorf("Min() = %d, want 2", min)
	}

	g := mustLookup[*Float](t, a, "Gain")
	_ = g.ImposeMin(6)
	if err := g.SetValue(3); !errors.Is(err, errkind.ErrOutOfRange) {
		t.Errorf("Float SetValue below imposed min error = %v", err)
	}
}

func TestFloat(t *testing.T) {
	a := newTestArena(t)

	g := mustLookup[*Float](t, a, "Gain")
	if g.HasInc() {
		t.Error("Gain should have no increment")
	}
	if _, err := g.Inc(); !errors.Is(err, errkind.ErrNotAvailable) {
		t.Errorf("Inc() error = %v, want ErrNotAvailable", err)
	}
	if err := g.SetValue(12.5); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if s, _ := g.ValueString(); s != "12.50" {
		t.Errorf("ValueString() = %q, want 12.50", s)
	}
	if err := g.SetValue(48.5); !errors.Is(err, errkind.ErrOutOfRange) {
		t.Errorf("SetValue(48.5) error = %v", err)
	}

	e := mustLookup[*Float](t, a, "ExposureTime")
	if err := e.SetValue(1000.5); err != nil {
		t.Errorf("SetValue on increment: %v", err)
	}
	if err := e.SetValue(1000.25); !errors.Is(err, errkind.ErrOutOfRange) {
		t.Errorf("SetValue off increment error = %v", err)
	}
}

func TestSetValueTypeMismatch(t *testing.T) {
	a := newTestArena(t)
	g := mustLookup[*Float](t, a, "Gain")
	w := mustLookup[*Integer](t, a, "Width")

	if err := SetValue(g, 3); !errors.Is(err, errkind.ErrTypeMismatch) {
		t.Errorf("SetValue(Float, int) error = %v, want ErrTypeMismatch", err)
	}
	if err := SetValue(w, 3.0); !errors.Is(err, errkind.ErrTypeMismatch) {
		t.Errorf("SetValue(Integer, float64) error = %v, want ErrTypeMismatch", err)
	}
	if err := SetValue(w, 64); err != nil {
		t.Errorf("SetValue(Integer, int): %v", err)
	}
	v, err := Value(w)
	if err != nil || v != int64(64) {
		t.Errorf("Value(Width) = %v, %v", v, err)
	}
}

type pixelFormat string

func (p pixelFormat) String() string { return string(p) }

func TestEnumerationSetValue(t *testing.T) {
	a := newTestArena(t)
	pf := mustLookup[*Enumeration](t, a, "PixelFormat")

	names, err := pf.EntryNames()
	if err != nil {
		t.Fatalf("EntryNames: %v", err)
	}
	if want := []string{"Mono8", "Mono16"}; !slices.Equal(names, want) {
		t.Errorf("EntryNames() = %v, want %v", names, want)
	}

	t.Run("symbolic", func(t *testing.T) {
		if err := pf.SetValue("Mono16"); err != nil {
			t.Fatalf("SetValue: %v", err)
		}
		if v, _ := pf.Value(); v != "Mono16" {
			t.Errorf("Value() = %q", v)
		}
		if iv, _ := pf.IntValue(); iv != 0x01100007 {
			t.Errorf("IntValue() = %#x", iv)
		}
	})

	t.Run("entry node", func(t *testing.T) {
		entry, err := pf.EntryByName("Mono8")
		if err != nil {
			t.Fatalf("EntryByName: %v", err)
		}
		if err := pf.SetValue(entry); err != nil {
			t.Fatalf("SetValue(entry): %v", err)
		}
		if v, _ := pf.Value(); v != "Mono8" {
			t.Errorf("Value() = %q", v)
		}
	})

	t.Run("enum constant", func(t *testing.T) {
		if err := pf.SetValue(pixelFormat("Mono16")); err != nil {
			t.Fatalf("SetValue(constant): %v", err)
		}
	})

	for _, bad := range []string{"Mono12", "BayerRG8", ""} {
		t.Run("invalid "+bad, func(t *testing.T) {
			err := pf.SetValue(bad)
			if !errors.Is(err, errkind.ErrInvalidValue) {
				t.Fatalf("SetValue(%q) error = %v, want ErrInvalidValue", bad, err)
			}
			if got := errkind.Suggestions(err); !slices.Equal(got, names) {
				t.Errorf("suggestions = %v, want %v", got, names)
			}
		})
	}

	t.Run("wrong type", func(t *testing.T) {
		if err := pf.SetValue(42); !errors.Is(err, errkind.ErrTypeMismatch) {
			t.Errorf("SetValue(42) error = %v", err)
		}
	})
}

func TestEnumEntry(t *testing.T) {
	a := newTestArena(t)
	pf := mustLookup[*Enumeration](t, a, "PixelFormat")

	entries := pf.Entries()
	if len(entries) != 3 {
		t.Fatalf("len(Entries()) = %d", len(entries))
	}
	e := entries[1]
	if e.Name() != "Mono16" {
		t.Errorf("Name() = %q, want symbolic name", e.Name())
	}
	if e.Base().Name() != "EnumEntry_PixelFormat_Mono16" {
		t.Errorf("node name = %q", e.Base().Name())
	}
	if e.Enumeration() == nil || !e.Enumeration().Base().Equal(pf.Base()) {
		t.Error("entry parent is not PixelFormat")
	}
	if e.NumericValue() != float64(0x01100007) {
		t.Errorf("NumericValue() = %g", e.NumericValue())
	}
}

func TestSelector(t *testing.T) {
	a := newTestArena(t)
	sel := mustLookup[*Enumeration](t, a, "TriggerSelector")
	mode := mustLookup[*Enumeration](t, a, "TriggerMode")

	if !sel.IsSelector() {
		t.Fatal("TriggerSelector is not a selector")
	}
	selected, err := sel.SelectedFeatures()
	if err != nil || len(selected) != 1 || selected[0].Name() != "TriggerMode" {
		t.Fatalf("SelectedFeatures() = %v, %v", selected, err)
	}
	selecting, err := mode.SelectingFeatures()
	if err != nil || len(selecting) != 1 || selecting[0].Name() != "TriggerSelector" {
		t.Fatalf("SelectingFeatures() = %v, %v", selecting, err)
	}

	// TriggerMode holds one value per selector entry.
	if err := mode.SetValue("On"); err != nil {
		t.Fatal(err)
	}
	if err := sel.SetValue("AcquisitionStart"); err != nil {
		t.Fatal(err)
	}
	if v, _ := mode.Value(); v != "Off" {
		t.Errorf("TriggerMode[AcquisitionStart] = %q, want Off", v)
	}
	if err := sel.SetValue("FrameStart"); err != nil {
		t.Fatal(err)
	}
	if v, _ := mode.Value(); v != "On" {
		t.Errorf("TriggerMode[FrameStart] = %q, want On", v)
	}
}

func TestRelationships(t *testing.T) {
	a := newTestArena(t)
	w, _ := a.Lookup("Width")

	parents, err := w.Parents()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, p := range parents {
		names = append(names, p.Name())
	}
	if want := []string{"ImageFormatControl", "AcquisitionControl"}; !slices.Equal(names, want) {
		t.Errorf("Parents() = %v, want %v", names, want)
	}

	alias, _ := a.Lookup("GainAlias")
	f, err := alias.Alias()
	if err != nil || f == nil || f.Name() != "Gain" {
		t.Errorf("Alias() = %v, %v", f, err)
	}
	if f, _ := w.Alias(); f != nil {
		t.Errorf("Width has alias %v", f)
	}

	cat := mustLookup[*Category](t, a, "ImageFormatControl")
	features, err := cat.Features()
	if err != nil {
		t.Fatal(err)
	}
	if len(features) != 5 || features[0].Name() != "Width" || features[4].Name() != "DeviceUserID" {
		t.Errorf("Features() out of declaration order: %v", features)
	}
	m, _ := cat.FeatureMap()
	if _, ok := m["PixelFormat"].(*Enumeration); !ok {
		t.Errorf("FeatureMap()[PixelFormat] = %T", m["PixelFormat"])
	}
}

func TestAccessMode(t *testing.T) {
	a := newTestArena(t)

	ps := mustLookup[*Integer](t, a, "PayloadSize")
	if err := ps.SetValue(1); !errors.Is(err, errkind.ErrNotAvailable) {
		t.Errorf("write to RO error = %v", err)
	}

	hidden := mustLookup[*Integer](t, a, "Hidden")
	if _, err := hidden.Value(); !errors.Is(err, errkind.ErrNotImplemented) {
		t.Errorf("read of NI error = %v", err)
	}
	if hidden.IsFeature() {
		t.Error("NI node reported as feature")
	}

	cmd := mustLookup[*Command](t, a, "AcquisitionStart")
	if _, err := a.read("test", cmd.ID()); !errors.Is(err, errkind.ErrNotAvailable) {
		t.Errorf("read of WO error = %v", err)
	}

	h := mustLookup[*Integer](t, a, "Height")
	if err := h.ImposeAccessMode(AccessRO); err != nil {
		t.Fatal(err)
	}
	if h.AccessMode() != AccessRO {
		t.Errorf("AccessMode() = %s, want RO", h.AccessMode())
	}
	if err := h.SetValue(100); !errors.Is(err, errkind.ErrNotAvailable) {
		t.Errorf("write after impose RO error = %v", err)
	}
	// Imposing cannot grant write access.
	_ = ps.ImposeAccessMode(AccessRW)
	if ps.AccessMode() != AccessRO {
		t.Errorf("imposed RW on RO node gave %s", ps.AccessMode())
	}
	_ = h.ImposeAccessMode(AccessUndefined)
	if h.AccessMode() != AccessRW {
		t.Errorf("AccessMode() after clearing = %s", h.AccessMode())
	}
}

func TestParamsLocked(t *testing.T) {
	a := newTestArena(t)
	w := mustLookup[*Integer](t, a, "Width")

	a.SetParamsLocked(true)
	if w.AccessMode() != AccessRO {
		t.Errorf("locked Width access = %s", w.AccessMode())
	}
	if err := w.SetValue(64); !errors.Is(err, errkind.ErrNotAvailable) {
		t.Errorf("SetValue while locked error = %v", err)
	}
	a.SetParamsLocked(false)
	if err := w.SetValue(64); err != nil {
		t.Errorf("SetValue after unlock: %v", err)
	}
}

func TestVisibility(t *testing.T) {
	a := newTestArena(t)
	n, _ := a.Lookup("Width")

	_ = n.ImposeVisibility(VisibilityGuru)
	if n.Visibility() != VisibilityGuru {
		t.Errorf("Visibility() = %s", n.Visibility())
	}
	_ = n.ImposeVisibility(VisibilityUndefined)
	if n.Visibility() != VisibilityBeginner {
		t.Errorf("Visibility() after clearing = %s", n.Visibility())
	}
}

func TestStringMaxLength(t *testing.T) {
	a := newTestArena(t)
	s := mustLookup[*String](t, a, "DeviceUserID")

	if err := s.SetValue("cam-01"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetValue("camera-0001"); !errors.Is(err, errkind.ErrOutOfRange) {
		t.Errorf("SetValue past max length error = %v", err)
	}
	if v, _ := s.Value(); v != "cam-01" {
		t.Errorf("Value() = %q", v)
	}
}

func TestRegister(t *testing.T) {
	a := newTestArena(t)
	r := mustLookup[*Register](t, a, "LUTValueAll")

	got, err := r.Get(4)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("Get(4) = %v", got)
	}
	if err := r.Set([]byte{9, 9}, 2); err != nil {
		t.Fatal(err)
	}
	got, _ = r.Get(4)
	if !slices.Equal(got, []byte{9, 9, 0, 0}) {
		t.Errorf("Get(4) after Set = %v", got)
	}
	if _, err := r.Get(-1); !errors.Is(err, errkind.ErrInvalidArgument) {
		t.Errorf("Get(-1) error = %v", err)
	}
	if err := r.Set(nil, -1); !errors.Is(err, errkind.ErrInvalidArgument) {
		t.Errorf("Set(nil, -1) error = %v", err)
	}
}

func TestCommand(t *testing.T) {
	a := newTestArena(t)
	cmd := mustLookup[*Command](t, a, "AcquisitionStart")

	var ran int
	a.HandleCommand(cmd.ID(), func() error {
		ran++
		return nil
	})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	done, err := cmd.IsDone()
	if err != nil || !done {
		t.Errorf("IsDone() = %v, %v", done, err)
	}
	if ran != 1 {
		t.Errorf("handler ran %d times", ran)
	}

	a.HandleCommand(cmd.ID(), func() error { return errors.New("sensor busy") })
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "sensor busy") {
		t.Errorf("Execute error = %v", err)
	}
}

func TestWatchAndInvalidate(t *testing.T) {
	a := newTestArena(t)
	w, _ := a.Lookup("Width")
	ps, _ := a.Lookup("PayloadSize")

	var fired []string
	tok, err := w.Watch(func(n Node) { fired = append(fired, n.Name()) })
	if err != nil {
		t.Fatal(err)
	}
	_, _ = ps.Watch(func(n Node) { fired = append(fired, n.Name()) })

	width, _ := As[*Integer](w)
	_ = width.SetValue(64)
	if want := []string{"Width", "PayloadSize"}; !slices.Equal(fired, want) {
		t.Errorf("callbacks = %v, want %v", fired, want)
	}

	fired = nil
	gen := a.Generation()
	a.InvalidateAll()
	if a.Generation() != gen+1 {
		t.Errorf("generation not incremented")
	}
	if len(fired) != 2 {
		t.Errorf("InvalidateAll fired %v", fired)
	}

	if !a.Unwatch(tok) {
		t.Error("Unwatch returned false")
	}
	if a.Unwatch(tok) {
		t.Error("second Unwatch returned true")
	}
}

func TestBindCachingAndPoll(t *testing.T) {
	a := newTestArena(t)
	temp := mustLookup[*Float](t, a, "DeviceTemperature")
	h := mustLookup[*Integer](t, a, "Height")

	reads := 0
	a.Bind(temp.ID(), func() (any, error) {
		reads++
		return 40 + float64(reads), nil
	})
	heightReads := 0
	a.Bind(h.ID(), func() (any, error) {
		heightReads++
		return 480, nil
	})

	// NoCache node reads through every time.
	_, _ = temp.Value()
	v, _ := temp.Value()
	if reads != 2 || v != 42 {
		t.Errorf("reads = %d, value = %g", reads, v)
	}

	// Cached node reads once until invalidated.
	_, _ = h.Value()
	_, _ = h.Value()
	if heightReads != 1 {
		t.Errorf("cached node read %d times", heightReads)
	}
	a.InvalidateAll()
	_, _ = h.Value()
	if heightReads != 2 {
		t.Errorf("read after invalidate count = %d", heightReads)
	}

	var polled []string
	_, _ = temp.Watch(func(n Node) { polled = append(polled, n.Name()) })
	if due := a.Poll(50 * time.Millisecond); len(due) != 0 {
		t.Errorf("Poll(50ms) due = %v", due)
	}
	if due := a.Poll(60 * time.Millisecond); len(due) != 1 {
		t.Errorf("Poll(60ms) due = %v", due)
	}
	if len(polled) != 1 {
		t.Errorf("poll callbacks = %v", polled)
	}
}

func TestUpdateBypassesAccess(t *testing.T) {
	a := newTestArena(t)
	ps := mustLookup[*Integer](t, a, "PayloadSize")

	if err := a.Update(ps.ID(), 4096); err != nil {
		t.Fatal(err)
	}
	if v, _ := ps.Value(); v != 4096 {
		t.Errorf("Value() = %d", v)
	}

	pf, _ := a.Lookup("PixelFormat")
	if err := a.Update(pf.ID(), "Mono16"); err != nil {
		t.Fatal(err)
	}
	if err := a.Update(pf.ID(), "Nope"); !errors.Is(err, errkind.ErrInvalidValue) {
		t.Errorf("Update with unknown entry error = %v", err)
	}
}

func TestClosedArena(t *testing.T) {
	a := newTestArena(t)
	w := mustLookup[*Integer](t, a, "Width")

	a.Close()
	if _, err := w.Value(); !errors.Is(err, errkind.ErrIllegalState) {
		t.Errorf("Value() after Close error = %v", err)
	}
	if !a.Closed() {
		t.Error("Closed() = false")
	}
}

func TestProperty(t *testing.T) {
	defs := []Definition{
		{Name: "Short", Type: "Integer", Description: "short", Value: 7},
		{Name: "Medium", Type: "Integer", Description: strings.Repeat("m", 500)},
		{Name: "Long", Type: "Integer", Description: strings.Repeat("l", 1000)},
	}
	a, err := NewArena(ScopeDevice, "TestCam", defs)
	if err != nil {
		t.Fatal(err)
	}

	short, _ := a.Lookup("Short")
	if v, err := short.Property("Value"); err != nil || v != "7" {
		t.Errorf("Property(Value) = %q, %v", v, err)
	}

	medium, _ := a.Lookup("Medium")
	if v, err := medium.Property("Description"); err != nil || len(v) != 500 {
		t.Errorf("Property(Description) after retry = %d bytes, %v", len(v), err)
	}

	long, _ := a.Lookup("Long")
	if _, err := long.Property("Description"); !errors.Is(err, errkind.ErrBufferTooSmall) {
		t.Errorf("Property(Description) error = %v, want ErrBufferTooSmall", err)
	}

	if _, err := short.Property("Bogus"); !errors.Is(err, errkind.ErrNotFound) {
		t.Errorf("Property(Bogus) error = %v", err)
	}

	props := short.Properties()
	if props["AccessMode"] != "RW" || props["InterfaceType"] != "Integer" {
		t.Errorf("Properties() = %v", props)
	}
}

func TestNewArenaErrors(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
		want error
	}{
		{"dangling child", []Definition{{Name: "Root", Type: "Category", Children: []string{"Nope"}}}, errkind.ErrNotFound},
		{"duplicate", []Definition{{Name: "A", Type: "Integer"}, {Name: "A", Type: "Integer"}}, errkind.ErrInvalidArgument},
		{"unknown type", []Definition{{Name: "A", Type: "Quaternion"}}, errkind.ErrInvalidValue},
		{"empty enum", []Definition{{Name: "E", Type: "Enumeration"}}, errkind.ErrInvalidArgument},
		{"min above max", []Definition{{Name: "A", Type: "Integer", Min: 5, Max: 1}}, errkind.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewArena(ScopeDevice, "x", tt.defs)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewArena error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValueStringRepresentations(t *testing.T) {
	defs := []Definition{
		{Name: "Ip", Type: "Integer", Representation: "IPV4Address", Value: 0xC0A80001},
		{Name: "Mac", Type: "Integer", Representation: "MACAddress", Value: 0x1C0FAF010203},
		{Name: "Hex", Type: "Integer", Representation: "HexNumber", Value: 255},
	}
	a, err := NewArena(ScopeTLDevice, "TestCam", defs)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name, want, set string
	}{
		{"Ip", "192.168.0.1", "10.0.0.2"},
		{"Mac", "1c:0f:af:01:02:03", "1c:0f:af:0a:0b:0c"},
		{"Hex", "0xFF", "0x10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustLookup[*Integer](t, a, tt.name)
			if got, _ := f.ValueString(); got != tt.want {
				t.Errorf("ValueString() = %q, want %q", got, tt.want)
			}
			if err := f.SetValueString(tt.set); err != nil {
				t.Fatalf("SetValueString(%q): %v", tt.set, err)
			}
			got, _ := f.ValueString()
			if !strings.EqualFold(got, tt.set) {
				t.Errorf("round trip = %q, want %q", got, tt.set)
			}
		})
	}
}
