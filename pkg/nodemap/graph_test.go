package nodemap

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/node"
)

const testDescription = `
device: TestCam
scope: Device
nodes:
  - name: Root
    type: Category
    children: [ImageFormatControl, AcquisitionControl]
  - name: ImageFormatControl
    type: Category
    feature: true
    children: [Width, Height, PixelFormat, Gain]
  - name: AcquisitionControl
    type: Category
    feature: true
    children: [TriggerSelector, TriggerMode, AcquisitionStart, ExposureTime]
  - name: Width
    type: Integer
    feature: true
    min: 16
    max: 2448
    inc: 8
    value: 1024
  - name: Height
    type: Integer
    feature: true
    min: 2
    max: 2048
    value: 1024
  - name: Gain
    type: Float
    feature: true
    min: 0.0
    max: 48.0
    value: 0.0
  - name: ExposureTime
    type: Float
    feature: true
    min: 10.0
    max: 1000000.0
    value: 1000.0
  - name: ExposureAuto
    type: Enumeration
    feature: true
    entries:
      - {name: "Off", value: 0}
      - {name: Continuous, value: 2}
  - name: PixelFormat
    type: Enumeration
    feature: true
    value: Mono8
    entries:
      - {name: Mono8, value: 17301505}
      - {name: Mono16, value: 17825799}
  - name: TriggerSelector
    type: Enumeration
    feature: true
    selected: [TriggerMode]
    entries:
      - {name: FrameStart, value: 0}
      - {name: AcquisitionStart, value: 1}
  - name: TriggerMode
    type: Enumeration
    feature: true
    entries:
      - {name: "Off", value: 0}
      - {name: "On", value: 1}
  - name: AcquisitionStart
    type: Command
    feature: true
    access: WO
  - name: DeviceTemperature
    type: Float
    access: RO
    pollingTime: 100
  - name: Unimplemented
    type: Integer
    feature: true
    access: NI
  - name: ChunkWidth
    type: Integer
    access: RO
    chunkID: 2
`

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	d, err := ParseDescription([]byte(testDescription))
	require.NoError(t, err)
	g, err := FromDescription(d)
	require.NoError(t, err)
	return g
}

func TestParseDescription(t *testing.T) {
	d, err := ParseDescription([]byte(testDescription))
	require.NoError(t, err)
	assert.Equal(t, "TestCam", d.Device)
	scope, err := d.ScopeValue()
	require.NoError(t, err)
	assert.Equal(t, node.ScopeDevice, scope)

	t.Run("no nodes", func(t *testing.T) {
		_, err := ParseDescription([]byte("device: Empty\n"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := ParseDescription([]byte("nodes: [\n"))
		assert.Error(t, err)
	})

	t.Run("bad scope", func(t *testing.T) {
		d := &Description{Scope: "Nowhere", Nodes: []node.Definition{{Name: "A", Type: "Integer"}}}
		_, err := FromDescription(d)
		assert.ErrorIs(t, err, errkind.ErrInvalidValue)
	})
}

func TestLoadDescriptionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDescription), 0o600))

	d, err := LoadDescription(path)
	require.NoError(t, err)
	assert.Len(t, d.Nodes, 15)

	_, err = LoadDescription(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// Setting Width to its reported maximum is observed by a fresh resolve.
func TestResolveSetWidthToMax(t *testing.T) {
	g := newTestGraph(t)

	w, err := g.Integer("Width")
	require.NoError(t, err)
	hi, err := w.Max()
	require.NoError(t, err)
	require.NoError(t, w.SetValue(hi))

	again, err := g.Integer("Width")
	require.NoError(t, err)
	v, err := again.Value()
	require.NoError(t, err)
	assert.Equal(t, hi, v)
}

func TestResolveTypoSuggestsFeature(t *testing.T) {
	g := newTestGraph(t)

	_, err := g.Resolve("Widht")
	require.ErrorIs(t, err, errkind.ErrNotFound)
	assert.Contains(t, errkind.Suggestions(err), "Width")
	assert.Contains(t, err.Error(), "Widht")
}

func TestResolveIsIdempotent(t *testing.T) {
	g := newTestGraph(t)

	a, err := g.Resolve("Gain")
	require.NoError(t, err)
	b, err := g.Resolve("Gain")
	require.NoError(t, err)
	assert.True(t, a.Base().Equal(b.Base()))
	assert.Equal(t, node.InterfaceFloat, a.InterfaceType())
}

func TestResolveEmptyName(t *testing.T) {
	g := newTestGraph(t)
	_, err := g.Resolve("")
	assert.ErrorIs(t, err, errkind.ErrInvalidArgument)
}

func TestResolveMany(t *testing.T) {
	g := newTestGraph(t)

	got, err := g.ResolveMany("Width", "Height", "PixelFormat")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, node.InterfaceEnumeration, got["PixelFormat"].InterfaceType())

	_, err = g.ResolveMany("Width", "Heigth", "")
	require.ErrorIs(t, err, errkind.ErrNotFound)
	assert.Contains(t, errkind.Suggestions(err), "Height")
}

func TestFeatureNames(t *testing.T) {
	g := newTestGraph(t)

	names := g.FeatureNames()
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "Width")
	assert.NotContains(t, names, "Unimplemented")
	assert.NotContains(t, names, "DeviceTemperature")
	assert.NotContains(t, names, "Root")

	// Feature status is recomputed on every call.
	gain, ok := g.Arena().Lookup("Gain")
	require.True(t, ok)
	require.NoError(t, gain.ImposeAccessMode(node.AccessNI))
	assert.NotContains(t, g.FeatureNames(), "Gain")
}

func TestPoll(t *testing.T) {
	g := newTestGraph(t)

	for _, d := range []time.Duration{0, -5 * time.Millisecond, time.Microsecond, 999 * time.Microsecond} {
		err := g.Poll(d)
		assert.ErrorIs(t, err, errkind.ErrInvalidArgument, "elapsed %s", d)
	}

	gen := g.Generation()
	require.NoError(t, g.PollDefault())
	assert.Greater(t, g.Generation(), gen)
}

func TestInvalidateNodes(t *testing.T) {
	g := newTestGraph(t)

	reads := 0
	require.NoError(t, g.Bind("DeviceTemperature", func() (any, error) {
		reads++
		return 40.5, nil
	}))

	v, err := g.FloatValue("DeviceTemperature")
	require.NoError(t, err)
	assert.Equal(t, 40.5, v)
	_, _ = g.FloatValue("DeviceTemperature")
	assert.Equal(t, 1, reads)

	gen := g.Generation()
	g.InvalidateNodes()
	assert.Equal(t, gen+1, g.Generation())
	_, _ = g.FloatValue("DeviceTemperature")
	assert.Equal(t, 2, reads)
}

func TestLock(t *testing.T) {
	g := newTestGraph(t)

	g.Lock()
	assert.False(t, g.TryLock())
	g.Unlock()
	assert.True(t, g.TryLock())
	g.Unlock()
}

func TestConvenienceAccessors(t *testing.T) {
	g := newTestGraph(t)

	require.NoError(t, g.SetInt("Height", 480))
	h, err := g.IntValue("Height")
	require.NoError(t, err)
	assert.Equal(t, int64(480), h)

	require.NoError(t, g.SetFloat("Gain", 12.5))
	gain, err := g.Value("Gain")
	require.NoError(t, err)
	assert.Equal(t, 12.5, gain)

	require.NoError(t, g.SetEnum("PixelFormat", "Mono16"))
	pf, err := g.EnumValue("PixelFormat")
	require.NoError(t, err)
	assert.Equal(t, "Mono16", pf)

	err = g.SetValue("Gain", 3)
	assert.ErrorIs(t, err, errkind.ErrTypeMismatch)

	_, err = g.Integer("Gain")
	assert.ErrorIs(t, err, errkind.ErrTypeMismatch)
}

func TestExecuteAndHandleCommand(t *testing.T) {
	g := newTestGraph(t)

	started := 0
	require.NoError(t, g.HandleCommand("AcquisitionStart", func() error {
		started++
		return nil
	}))
	require.NoError(t, g.Execute("AcquisitionStart"))
	assert.Equal(t, 1, started)

	err := g.HandleCommand("Width", func() error { return nil })
	assert.ErrorIs(t, err, errkind.ErrTypeMismatch)

	boom := errors.New("boom")
	require.NoError(t, g.HandleCommand("AcquisitionStart", func() error { return boom }))
	assert.ErrorIs(t, g.Execute("AcquisitionStart"), boom)
}

func TestUpdateBypassesAccess(t *testing.T) {
	g := newTestGraph(t)

	require.NoError(t, g.Update("DeviceTemperature", 51.0))
	v, err := g.FloatValue("DeviceTemperature")
	require.NoError(t, err)
	assert.Equal(t, 51.0, v)

	assert.ErrorIs(t, g.SetFloat("DeviceTemperature", 10), errkind.ErrNotAvailable)
}

func TestChunkDefinitions(t *testing.T) {
	g := newTestGraph(t)

	defs := g.ChunkDefinitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "ChunkWidth", defs[0].Name)
	assert.Equal(t, uint32(2), defs[0].ChunkID)
}

func TestClose(t *testing.T) {
	g := newTestGraph(t)
	w, err := g.Integer("Width")
	require.NoError(t, err)

	g.Close()
	assert.True(t, g.Closed())
	_, err = w.Value()
	assert.ErrorIs(t, err, errkind.ErrIllegalState)
}

func TestFeatureStreamRoundTrip(t *testing.T) {
	src := newTestGraph(t)
	require.NoError(t, src.SetInt("Width", 640))
	require.NoError(t, src.SetEnum("PixelFormat", "Mono16"))
	require.NoError(t, src.SetEnum("TriggerSelector", "AcquisitionStart"))
	require.NoError(t, src.SetEnum("TriggerMode", "On"))
	require.NoError(t, src.SetEnum("TriggerSelector", "FrameStart"))

	var buf bytes.Buffer
	require.NoError(t, src.WriteFeatureStream(&buf))
	assert.Contains(t, buf.String(), "selector: TriggerSelector")

	// Selector walk restores the selector.
	sel, err := src.EnumValue("TriggerSelector")
	require.NoError(t, err)
	assert.Equal(t, "FrameStart", sel)

	dst := newTestGraph(t)
	require.NoError(t, dst.ReadFeatureStream(&buf))

	w, err := dst.IntValue("Width")
	require.NoError(t, err)
	assert.Equal(t, int64(640), w)
	pf, err := dst.EnumValue("PixelFormat")
	require.NoError(t, err)
	assert.Equal(t, "Mono16", pf)

	for sel, want := range map[string]string{"FrameStart": "Off", "AcquisitionStart": "On"} {
		require.NoError(t, dst.SetEnum("TriggerSelector", sel))
		mode, err := dst.EnumValue("TriggerMode")
		require.NoError(t, err)
		assert.Equal(t, want, mode, fmt.Sprintf("TriggerMode[%s]", sel))
	}
}

func TestFeatureStreamNamedAndFile(t *testing.T) {
	g := newTestGraph(t)
	require.NoError(t, g.SetInt("Height", 100))

	fs, err := g.SaveFeatures("Height")
	require.NoError(t, err)
	require.Len(t, fs.Features, 1)
	assert.Equal(t, StreamEntry{Name: "Height", Value: "100"}, fs.Features[0])

	_, err = g.SaveFeatures("Nope")
	assert.ErrorIs(t, err, errkind.ErrNotFound)

	path := filepath.Join(t.TempDir(), "features.yaml")
	require.NoError(t, g.SaveFeatureFile(path, "Height"))
	other := newTestGraph(t)
	require.NoError(t, other.LoadFeatureFile(path))
	h, err := other.IntValue("Height")
	require.NoError(t, err)
	assert.Equal(t, int64(100), h)

	err = other.LoadFeatures(&FeatureStream{Features: []StreamEntry{{Name: "Height", Value: "99999"}}})
	assert.ErrorIs(t, err, errkind.ErrOutOfRange)
}

func TestFeatureStreamVersion(t *testing.T) {
	g := newTestGraph(t)
	fs, err := g.SaveFeatures("Width")
	require.NoError(t, err)
	assert.Equal(t, "1.0", fs.Version)

	fs.Version = "2.0"
	fs.Features[0].Value = "32"
	err = g.LoadFeatures(fs)
	assert.ErrorIs(t, err, errkind.ErrInvalidValue)
	w, err := g.IntValue("Width")
	require.NoError(t, err)
	assert.NotEqual(t, int64(32), w, "incompatible stream must not be applied")
}
