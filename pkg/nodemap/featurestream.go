package nodemap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/node"
	"github.com/zacpullen/arena-api/pkg/version"
)

// FeatureStream is a saved set of feature values.
type FeatureStream struct {
	Version  string        `yaml:"version,omitempty"`
	Device   string        `yaml:"device,omitempty"`
	Features []StreamEntry `yaml:"features"`
}

// StreamEntry holds one saved feature. Selected features carry one value
// per selector entry in Values instead of Value.
type StreamEntry struct {
	Name     string            `yaml:"name"`
	Value    string            `yaml:"value,omitempty"`
	Selector string            `yaml:"selector,omitempty"`
	Values   map[string]string `yaml:"values,omitempty"`
}

// maxSelectorValues caps the walk over integer selectors.
const maxSelectorValues = 64

// SaveFeatures captures the named features, or every readable and writable
// value feature when names is empty.
func (g *Graph) SaveFeatures(names ...string) (*FeatureStream, error) {
	if len(names) == 0 {
		names = g.streamableNames()
	}
	fs := &FeatureStream{Version: version.FeatureStream, Device: g.DeviceName()}
	for _, name := range names {
		f, err := g.Resolve(name)
		if err != nil {
			return nil, err
		}
		e, err := g.saveEntry(f)
		if err != nil {
			return nil, fmt.Errorf("saving %s: %w", name, err)
		}
		fs.Features = append(fs.Features, e)
	}
	return fs, nil
}

// LoadFeatures writes every feature of fs into the graph in order and
// stops at the first failure. Streams of an incompatible format version
// are rejected before anything is written.
func (g *Graph) LoadFeatures(fs *FeatureStream) error {
	if err := version.CheckFeatureStream(fs.Version); err != nil {
		return err
	}
	for _, e := range fs.Features {
		if err := g.loadEntry(e); err != nil {
			return fmt.Errorf("loading %s: %w", e.Name, err)
		}
	}
	return nil
}

// WriteFeatureStream saves features and encodes them as YAML to w.
func (g *Graph) WriteFeatureStream(w io.Writer, names ...string) error {
	fs, err := g.SaveFeatures(names...)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(fs); err != nil {
		return fmt.Errorf("encoding feature stream: %w", err)
	}
	return enc.Close()
}

// ReadFeatureStream decodes a YAML feature stream from r and loads it.
func (g *Graph) ReadFeatureStream(r io.Reader) error {
	var fs FeatureStream
	if err := yaml.NewDecoder(r).Decode(&fs); err != nil {
		return fmt.Errorf("parsing feature stream: %w", err)
	}
	return g.LoadFeatures(&fs)
}

// SaveFeatureFile writes a feature stream to path.
func (g *Graph) SaveFeatureFile(path string, names ...string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := g.WriteFeatureStream(f, names...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFeatureFile loads a feature stream from path.
func (g *Graph) LoadFeatureFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()
	return g.ReadFeatureStream(f)
}

func (g *Graph) streamableNames() []string {
	var names []string
	for _, name := range g.FeatureNames() {
		n, _ := g.arena.Lookup(name)
		switch n.InterfaceType() {
		case node.InterfaceInteger, node.InterfaceFloat, node.InterfaceBoolean,
			node.InterfaceString, node.InterfaceEnumeration:
		default:
			continue
		}
		if n.AccessMode() == node.AccessRW {
			names = append(names, name)
		}
	}
	return names
}

func (g *Graph) saveEntry(f node.Feature) (StreamEntry, error) {
	e := StreamEntry{Name: f.Name()}
	sel, ok, err := firstSelector(f)
	if err != nil {
		return e, err
	}
	if !ok {
		e.Value, err = f.ValueString()
		return e, err
	}
	e.Selector = sel.Name()
	e.Values = make(map[string]string)
	err = eachSelectorValue(sel, func(key string) error {
		v, err := f.ValueString()
		if err != nil {
			// Entries where the selected feature is unavailable are skipped.
			if errors.Is(err, errkind.ErrNotAvailable) || errors.Is(err, errkind.ErrNotImplemented) {
				return nil
			}
			return err
		}
		e.Values[key] = v
		return nil
	})
	return e, err
}

func (g *Graph) loadEntry(e StreamEntry) error {
	f, err := g.Resolve(e.Name)
	if err != nil {
		return err
	}
	if e.Selector == "" {
		return f.SetValueString(e.Value)
	}
	sel, err := g.Resolve(e.Selector)
	if err != nil {
		return err
	}
	return eachSelectorValue(sel, func(key string) error {
		v, ok := e.Values[key]
		if !ok {
			return nil
		}
		return f.SetValueString(v)
	})
}

func firstSelector(f node.Feature) (node.Feature, bool, error) {
	sels, err := f.Base().SelectingFeatures()
	if err != nil || len(sels) == 0 {
		return nil, false, err
	}
	return sels[0], true, nil
}

// eachSelectorValue sets sel to each of its values in turn, calls fn with
// the value's string form and restores the original selector value.
func eachSelectorValue(sel node.Feature, fn func(key string) error) (err error) {
	orig, err := sel.ValueString()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := sel.SetValueString(orig); err == nil {
			err = rerr
		}
	}()

	var keys []string
	switch s := sel.(type) {
	case *node.Enumeration:
		keys, err = s.EntryNames()
		if err != nil {
			return err
		}
	case *node.Integer:
		lo, err := s.Min()
		if err != nil {
			return err
		}
		hi, err := s.Max()
		if err != nil {
			return err
		}
		inc, err := s.Inc()
		if err != nil || inc < 1 {
			inc = 1
		}
		for v := lo; v <= hi && len(keys) < maxSelectorValues; v += inc {
			keys = append(keys, strconv.FormatInt(v, 10))
		}
	default:
		return errkind.New(errkind.ErrTypeMismatch, "FeatureStream", "selector %s is %s", sel.Name(), sel.InterfaceType())
	}

	for _, k := range keys {
		if err := sel.SetValueString(k); err != nil {
			return err
		}
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}
