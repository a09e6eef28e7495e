package inspect

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/zacpullen/arena-api/pkg/device"
	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/node"
	"github.com/zacpullen/arena-api/pkg/nodemap"
)

// rootCategory is the category node trees start from.
const rootCategory = "Root"

// Inspector reads, writes and describes nodes of a set of node maps.
type Inspector struct {
	maps map[node.Scope]*nodemap.Graph
	def  node.Scope
}

// NewInspector creates an inspector over maps. The first map is the
// default for paths without a map name. Nil maps are skipped.
func NewInspector(maps ...*nodemap.Graph) *Inspector {
	i := &Inspector{maps: make(map[node.Scope]*nodemap.Graph)}
	for _, g := range maps {
		if g == nil {
			continue
		}
		if len(i.maps) == 0 {
			i.def = g.Scope()
		}
		i.maps[g.Scope()] = g
	}
	return i
}

// ForDevice creates an inspector over a device's four node maps, with the
// Device map as default.
func ForDevice(d *device.Device, extra ...*nodemap.Graph) *Inspector {
	maps := append([]*nodemap.Graph{d.NodeMap(), d.TLDeviceNodeMap(), d.TLStreamNodeMap(), d.TLInterfaceNodeMap()}, extra...)
	return NewInspector(maps...)
}

// Graph returns the node map a path refers to.
func (i *Inspector) Graph(p *Path) (*nodemap.Graph, error) {
	scope := i.def
	if p.HasMap {
		scope = p.Map
	}
	g, ok := i.maps[scope]
	if !ok {
		return nil, errkind.New(errkind.ErrNotFound, "Graph", "no %s node map", scope)
	}
	return g, nil
}

// NodeInfo describes a node for display.
type NodeInfo struct {
	Name        string
	DisplayName string
	Description string
	Type        node.InterfaceType
	Access      node.AccessMode
	Visibility  node.Visibility

	// Value is the formatted value. ValueErr is set instead when the value
	// cannot be read.
	Value    string
	ValueErr error

	Unit          string
	Min, Max, Inc string
	Entries       []string

	// Selector is the selector applied while reading Value.
	Selector  string
	Selecting []string
	Selected  []string
	Children  []string
}

// InspectNode describes the node a path names.
func (i *Inspector) InspectNode(p *Path) (*NodeInfo, error) {
	g, f, err := i.resolve(p)
	if err != nil {
		return nil, err
	}
	var info *NodeInfo
	err = i.withSelector(g, f, p.Selector, func() error {
		info = describe(f)
		info.Selector = p.Selector
		return nil
	})
	return info, err
}

// Read returns the formatted value of the node a path names.
func (i *Inspector) Read(p *Path) (string, error) {
	g, f, err := i.resolve(p)
	if err != nil {
		return "", err
	}
	var s string
	err = i.withSelector(g, f, p.Selector, func() error {
		var err error
		s, err = f.ValueString()
		return err
	})
	return s, err
}

// Write parses value for the node a path names and writes it.
func (i *Inspector) Write(p *Path, value string) error {
	g, f, err := i.resolve(p)
	if err != nil {
		return err
	}
	return i.withSelector(g, f, p.Selector, func() error {
		return f.SetValueString(value)
	})
}

// Execute runs the command node a path names.
func (i *Inspector) Execute(p *Path) error {
	g, f, err := i.resolve(p)
	if err != nil {
		return err
	}
	cmd, ok := f.(*node.Command)
	if !ok {
		return errkind.New(errkind.ErrTypeMismatch, "Execute", "%s is %s, not a command", f.Name(), f.InterfaceType())
	}
	return i.withSelector(g, f, p.Selector, cmd.Execute)
}

// TreeNode is one node of a category tree.
type TreeNode struct {
	Info     *NodeInfo
	Children []*TreeNode
}

// Tree walks the categories of a map from Root. Maps without a Root
// category return a flat tree of their features.
func (i *Inspector) Tree(p *Path) (*TreeNode, error) {
	g, err := i.Graph(p)
	if err != nil {
		return nil, err
	}
	root, err := g.Resolve(rootCategory)
	if err != nil {
		if !errors.Is(err, errkind.ErrNotFound) {
			return nil, err
		}
		t := &TreeNode{Info: &NodeInfo{Name: g.Scope().String(), Type: node.InterfaceCategory}}
		for _, name := range g.FeatureNames() {
			f, err := g.Resolve(name)
			if err != nil {
				continue
			}
			t.Children = append(t.Children, &TreeNode{Info: describe(f)})
		}
		return t, nil
	}
	return walk(root, make(map[string]bool)), nil
}

func walk(f node.Feature, seen map[string]bool) *TreeNode {
	t := &TreeNode{Info: describe(f)}
	cat, ok := f.(*node.Category)
	if !ok || seen[f.Name()] {
		return t
	}
	seen[f.Name()] = true
	children, err := cat.Features()
	if err != nil {
		return t
	}
	for _, c := range children {
		if !c.Base().IsFeature() {
			continue
		}
		t.Children = append(t.Children, walk(c, seen))
	}
	return t
}

func (i *Inspector) resolve(p *Path) (*nodemap.Graph, node.Feature, error) {
	if p == nil {
		return nil, nil, errkind.New(errkind.ErrInvalidArgument, "resolve", "path is nil")
	}
	if p.IsPartial {
		return nil, nil, errkind.New(errkind.ErrInvalidArgument, "resolve", "path %q names no node", p.Raw)
	}
	g, err := i.Graph(p)
	if err != nil {
		return nil, nil, err
	}
	name, err := ResolveNodeName(g, p.Node)
	if err != nil {
		return nil, nil, err
	}
	f, err := g.Resolve(name)
	if err != nil {
		return nil, nil, err
	}
	return g, f, nil
}

// withSelector runs fn with the first selector of f set to key and puts
// the selector back afterwards. The node map's advisory lock is held
// throughout so concurrent inspectors do not interleave selector writes.
func (i *Inspector) withSelector(g *nodemap.Graph, f node.Feature, key string, fn func() error) error {
	if key == "" {
		return fn()
	}
	selecting, err := f.Base().SelectingFeatures()
	if err != nil {
		return err
	}
	if len(selecting) == 0 {
		return errkind.New(errkind.ErrInvalidArgument, "withSelector", "%s is not selected by any node", f.Name())
	}
	sel := selecting[0]

	g.Lock()
	defer g.Unlock()
	prev, err := sel.ValueString()
	if err != nil {
		return err
	}
	if err := sel.SetValueString(key); err != nil {
		return fmt.Errorf("selecting %s=%s: %w", sel.Name(), key, err)
	}
	err = fn()
	if prev != key {
		if rerr := sel.SetValueString(prev); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restoring %s=%s: %w", sel.Name(), prev, rerr))
		}
	}
	return err
}

func describe(f node.Feature) *NodeInfo {
	n := f.Base()
	info := &NodeInfo{
		Name:        f.Name(),
		DisplayName: n.DisplayName(),
		Description: n.Description(),
		Type:        f.InterfaceType(),
		Access:      f.AccessMode(),
		Visibility:  n.Visibility(),
	}
	switch f.(type) {
	case *node.Category, *node.Command:
	default:
		if n.IsReadable() {
			info.Value, info.ValueErr = f.ValueString()
		}
	}

	switch v := f.(type) {
	case *node.Integer:
		info.Unit = v.Unit()
		info.Min = intString(v.Min())
		info.Max = intString(v.Max())
		info.Inc = intString(v.Inc())
	case *node.Float:
		info.Unit = v.Unit()
		info.Min = floatString(v.Min())
		info.Max = floatString(v.Max())
		if v.HasInc() {
			info.Inc = floatString(v.Inc())
		}
	case *node.Enumeration:
		info.Entries, _ = v.EntryNames()
	case *node.Category:
		children, _ := v.Features()
		for _, c := range children {
			info.Children = append(info.Children, c.Name())
		}
	}

	info.Selecting = names(n.SelectingFeatures())
	info.Selected = names(n.SelectedFeatures())
	return info
}

func names(fs []node.Feature, err error) []string {
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Name())
	}
	return out
}

func intString(v int64, err error) string {
	if err != nil {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func floatString(v float64, err error) string {
	if err != nil {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
