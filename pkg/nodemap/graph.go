package nodemap

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/zacpullen/arena-api/pkg/errkind"
	"github.com/zacpullen/arena-api/pkg/node"
)

// DefaultPollTime is the elapsed time used by PollDefault.
const DefaultPollTime = time.Second

// Graph is the node map of one scope: the remote device, or one of the
// transport layer modules (system, interface, device, stream).
type Graph struct {
	arena *node.Arena
	defs  []node.Definition

	// mu is the advisory lock handed out by Lock/Unlock/TryLock. Graph
	// methods never take it themselves.
	mu sync.Mutex
}

// New builds a graph for scope from node definitions.
func New(scope node.Scope, deviceName string, defs []node.Definition) (*Graph, error) {
	a, err := node.NewArena(scope, deviceName, defs)
	if err != nil {
		return nil, fmt.Errorf("building %s node map: %w", scope, err)
	}
	return &Graph{arena: a, defs: slices.Clone(defs)}, nil
}

// Scope returns the graph scope.
func (g *Graph) Scope() node.Scope { return g.arena.Scope() }

// DeviceName returns the name of the owning device.
func (g *Graph) DeviceName() string { return g.arena.DeviceName() }

// Arena exposes the underlying arena for callback registration and
// device-side updates.
func (g *Graph) Arena() *node.Arena { return g.arena }

// Definitions returns a copy of the definitions the graph was built from.
func (g *Graph) Definitions() []node.Definition { return slices.Clone(g.defs) }

// ChunkDefinitions returns the definitions of chunk data nodes.
func (g *Graph) ChunkDefinitions() []node.Definition {
	var out []node.Definition
	for _, d := range g.defs {
		if d.ChunkID != 0 {
			out = append(out, d)
		}
	}
	return out
}

// Node looks up an untyped node by exact name. A miss fails with
// ErrNotFound carrying close feature names as suggestions.
func (g *Graph) Node(name string) (node.Node, error) {
	if name == "" {
		return node.Node{}, errkind.New(errkind.ErrInvalidArgument, "Resolve", "empty node name")
	}
	n, ok := g.arena.Lookup(name)
	if !ok {
		return node.Node{}, &errkind.Error{
			Kind:        errkind.ErrNotFound,
			Op:          "Resolve",
			Reason:      fmt.Sprintf("no node %q in %s node map", name, g.Scope()),
			Suggestions: Suggest(name, g.FeatureNames()),
		}
	}
	return n, nil
}

// Resolve looks up a node by exact name and casts it to its variant.
func (g *Graph) Resolve(name string) (node.Feature, error) {
	n, err := g.Node(name)
	if err != nil {
		return nil, err
	}
	return node.Cast(n)
}

// ResolveMany resolves every name and fails on the first error.
func (g *Graph) ResolveMany(names ...string) (map[string]node.Feature, error) {
	out := make(map[string]node.Feature, len(names))
	for _, name := range names {
		f, err := g.Resolve(name)
		if err != nil {
			return nil, err
		}
		out[name] = f
	}
	return out, nil
}

// FeatureNames returns the names of all nodes that currently count as
// features, sorted. The result is computed on every call since features
// can disappear while the device runs.
func (g *Graph) FeatureNames() []string {
	var names []string
	for _, n := range g.arena.Nodes() {
		if n.IsFeature() {
			names = append(names, n.Name())
		}
	}
	slices.Sort(names)
	return names
}

// InvalidateNodes drops all cached node state and fires node callbacks.
func (g *Graph) InvalidateNodes() { g.arena.InvalidateAll() }

// Poll advances the polling clocks by elapsed, invalidating the nodes
// whose polling time passed. Polling clocks count whole milliseconds, so
// elapsed must be at least one.
func (g *Graph) Poll(elapsed time.Duration) error {
	if elapsed < time.Millisecond {
		return errkind.New(errkind.ErrInvalidArgument, "Poll", "elapsed time %s is below 1ms", elapsed)
	}
	g.arena.Poll(elapsed)
	return nil
}

// PollDefault polls with DefaultPollTime.
func (g *Graph) PollDefault() error { return g.Poll(DefaultPollTime) }

// Generation returns the invalidation generation.
func (g *Graph) Generation() uint64 { return g.arena.Generation() }

// Lock acquires the advisory node map lock.
func (g *Graph) Lock() { g.mu.Lock() }

// Unlock releases the advisory node map lock.
func (g *Graph) Unlock() { g.mu.Unlock() }

// TryLock acquires the advisory lock if it is free.
func (g *Graph) TryLock() bool { return g.mu.TryLock() }

// Update writes a device-side value, bypassing access checks.
func (g *Graph) Update(name string, v any) error {
	n, err := g.Node(name)
	if err != nil {
		return err
	}
	return g.arena.Update(n.ID(), v)
}

// Bind attaches a live value source to a node.
func (g *Graph) Bind(name string, fn node.ValueFunc) error {
	n, err := g.Node(name)
	if err != nil {
		return err
	}
	g.arena.Bind(n.ID(), fn)
	return nil
}

// HandleCommand attaches the handler run when a command node executes.
func (g *Graph) HandleCommand(name string, fn node.CommandFunc) error {
	n, err := g.Node(name)
	if err != nil {
		return err
	}
	if n.InterfaceType() != node.InterfaceCommand {
		return errkind.New(errkind.ErrTypeMismatch, "HandleCommand", "node %s is %s, not Command", name, n.InterfaceType())
	}
	g.arena.HandleCommand(n.ID(), fn)
	return nil
}

// Close destroys the node map. Node accessors fail afterwards.
func (g *Graph) Close() { g.arena.Close() }

// Closed reports whether the node map has been destroyed.
func (g *Graph) Closed() bool { return g.arena.Closed() }

func resolveAs[T node.Feature](g *Graph, name string) (T, error) {
	var zero T
	n, err := g.Node(name)
	if err != nil {
		return zero, err
	}
	return node.As[T](n)
}

// Integer resolves an Integer node.
func (g *Graph) Integer(name string) (*node.Integer, error) { return resolveAs[*node.Integer](g, name) }

// Float resolves a Float node.
func (g *Graph) Float(name string) (*node.Float, error) { return resolveAs[*node.Float](g, name) }

// Boolean resolves a Boolean node.
func (g *Graph) Boolean(name string) (*node.Boolean, error) { return resolveAs[*node.Boolean](g, name) }

// String resolves a String node.
func (g *Graph) String(name string) (*node.String, error) { return resolveAs[*node.String](g, name) }

// Enumeration resolves an Enumeration node.
func (g *Graph) Enumeration(name string) (*node.Enumeration, error) {
	return resolveAs[*node.Enumeration](g, name)
}

// Command resolves a Command node.
func (g *Graph) Command(name string) (*node.Command, error) { return resolveAs[*node.Command](g, name) }

// Category resolves a Category node.
func (g *Graph) Category(name string) (*node.Category, error) {
	return resolveAs[*node.Category](g, name)
}

// Register resolves a Register node.
func (g *Graph) Register(name string) (*node.Register, error) {
	return resolveAs[*node.Register](g, name)
}

// Value reads the value of a valued node by name.
func (g *Graph) Value(name string) (any, error) {
	f, err := g.Resolve(name)
	if err != nil {
		return nil, err
	}
	return node.Value(f)
}

// SetValue writes a value by name. The Go type of v must match the node
// variant; see node.SetValue.
func (g *Graph) SetValue(name string, v any) error {
	f, err := g.Resolve(name)
	if err != nil {
		return err
	}
	return node.SetValue(f, v)
}

// IntValue reads an Integer node by name.
func (g *Graph) IntValue(name string) (int64, error) {
	n, err := g.Integer(name)
	if err != nil {
		return 0, err
	}
	return n.Value()
}

// EnumValue reads the symbolic value of an Enumeration node by name.
func (g *Graph) EnumValue(name string) (string, error) {
	n, err := g.Enumeration(name)
	if err != nil {
		return "", err
	}
	return n.Value()
}

// Execute runs a command node by name.
func (g *Graph) Execute(name string) error {
	c, err := g.Command(name)
	if err != nil {
		return err
	}
	return c.Execute()
}

// FloatValue reads a Float node by name.
func (g *Graph) FloatValue(name string) (float64, error) {
	n, err := g.Float(name)
	if err != nil {
		return 0, err
	}
	return n.Value()
}

// BoolValue reads a Boolean node by name.
func (g *Graph) BoolValue(name string) (bool, error) {
	n, err := g.Boolean(name)
	if err != nil {
		return false, err
	}
	return n.Value()
}

// StringValue reads a String node by name.
func (g *Graph) StringValue(name string) (string, error) {
	n, err := g.String(name)
	if err != nil {
		return "", err
	}
	return n.Value()
}

// SetInt writes an Integer node by name.
func (g *Graph) SetInt(name string, v int64) error {
	n, err := g.Integer(name)
	if err != nil {
		return err
	}
	return n.SetValue(v)
}

// SetFloat writes a Float node by name.
func (g *Graph) SetFloat(name string, v float64) error {
	n, err := g.Float(name)
	if err != nil {
		return err
	}
	return n.SetValue(v)
}

// SetBool writes a Boolean node by name.
func (g *Graph) SetBool(name string, v bool) error {
	n, err := g.Boolean(name)
	if err != nil {
		return err
	}
	return n.SetValue(v)
}

// SetString writes a String node by name.
func (g *Graph) SetString(name string, v string) error {
	n, err := g.String(name)
	if err != nil {
		return err
	}
	return n.SetValue(v)
}

// SetEnum writes an Enumeration node by name. v is a symbolic name, an
// entry, or a fmt.Stringer.
func (g *Graph) SetEnum(name string, v any) error {
	n, err := g.Enumeration(name)
	if err != nil {
		return err
	}
	return n.SetValue(v)
}
