package node

import (
	"fmt"
	"strconv"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

// Enumeration is a node whose value is one of a fixed list of entries.
type Enumeration struct{ Node }

func (e *Enumeration) Base() Node { return e.Node }
func (*Enumeration) feature()     {}

// Value returns the symbolic name of the current entry.
func (e *Enumeration) Value() (string, error) {
	v, err := e.arena.read("Enumeration.Value", e.id)
	if err != nil {
		return "", err
	}
	return e.arena.records[v.(ID)].symbolic, nil
}

// IntValue returns the integer value of the current entry.
func (e *Enumeration) IntValue() (int64, error) {
	v, err := e.arena.read("Enumeration.IntValue", e.id)
	if err != nil {
		return 0, err
	}
	return e.arena.records[v.(ID)].entryValue, nil
}

// CurrentEntry returns the current entry node.
func (e *Enumeration) CurrentEntry() (*EnumEntry, error) {
	v, err := e.arena.read("Enumeration.CurrentEntry", e.id)
	if err != nil {
		return nil, err
	}
	return &EnumEntry{Node{arena: e.arena, id: v.(ID)}}, nil
}

// SetValue selects an entry. v may be the symbolic name, an *EnumEntry, or
// any fmt.Stringer whose String is the symbolic name (enum constants). A
// name that is not an available entry fails with ErrInvalidValue and the
// error's suggestions list every available entry.
func (e *Enumeration) SetValue(v any) error {
	const op = "Enumeration.SetValue"
	var symbolic string
	switch x := v.(type) {
	case string:
		symbolic = x
	case *EnumEntry:
		symbolic = x.Symbolic()
	case EnumEntry:
		symbolic = x.Symbolic()
	case fmt.Stringer:
		symbolic = x.String()
	default:
		names, _ := e.EntryNames()
		return &errkind.Error{
			Kind:        errkind.ErrTypeMismatch,
			Op:          op,
			Reason:      fmt.Sprintf("%T is not a symbolic name or entry of %s", v, e.Name()),
			Suggestions: names,
		}
	}
	return e.arena.write(op, e.id, func(r *record) (any, error) {
		for _, id := range r.entries {
			entry := e.arena.records[id]
			if entry.symbolic == symbolic && e.arena.entryAvailableLocked(entry) {
				return id, nil
			}
		}
		return nil, &errkind.Error{
			Kind:        errkind.ErrInvalidValue,
			Op:          op,
			Reason:      fmt.Sprintf("%q is not a valid entry of %s", symbolic, r.name),
			Suggestions: e.arena.entryNamesLocked(r),
		}
	})
}

// SetIntValue selects the entry with integer value v.
func (e *Enumeration) SetIntValue(v int64) error {
	const op = "Enumeration.SetIntValue"
	return e.arena.write(op, e.id, func(r *record) (any, error) {
		for _, id := range r.entries {
			entry := e.arena.records[id]
			if entry.entryValue == v && e.arena.entryAvailableLocked(entry) {
				return id, nil
			}
		}
		return nil, errkind.New(errkind.ErrInvalidValue, op, "%d is not the value of an available entry of %s", v, r.name)
	})
}

// EntryNames returns the symbolic names of the currently available
// entries in declaration order.
func (e *Enumeration) EntryNames() ([]string, error) {
	e.arena.mu.RLock()
	defer e.arena.mu.RUnlock()
	r, err := e.arena.recordLocked(e.id)
	if err != nil {
		return nil, err
	}
	return e.arena.entryNamesLocked(r), nil
}

// Entries returns every entry node, available or not, in declaration order.
func (e *Enumeration) Entries() []*EnumEntry {
	ids := e.rec().entries
	out := make([]*EnumEntry, len(ids))
	for i, id := range ids {
		out[i] = &EnumEntry{Node{arena: e.arena, id: id}}
	}
	return out
}

// EntryByName returns the entry with the given symbolic name.
func (e *Enumeration) EntryByName(symbolic string) (*EnumEntry, error) {
	for _, entry := range e.Entries() {
		if entry.Symbolic() == symbolic {
			return entry, nil
		}
	}
	names, _ := e.EntryNames()
	return nil, &errkind.Error{
		Kind:        errkind.ErrNotFound,
		Op:          "Enumeration.EntryByName",
		Reason:      fmt.Sprintf("%s has no entry %q", e.Name(), symbolic),
		Suggestions: names,
	}
}

func (e *Enumeration) ValueString() (string, error)  { return e.Value() }
func (e *Enumeration) SetValueString(s string) error { return e.SetValue(s) }

func (a *Arena) entryAvailableLocked(entry *record) bool {
	m := a.accessLocked(entry)
	return m != AccessNI && m != AccessNA
}

func (a *Arena) entryNamesLocked(r *record) []string {
	names := make([]string, 0, len(r.entries))
	for _, id := range r.entries {
		if entry := a.records[id]; a.entryAvailableLocked(entry) {
			names = append(names, entry.symbolic)
		}
	}
	return names
}

// EnumEntry is one entry of an Enumeration.
type EnumEntry struct{ Node }

func (e *EnumEntry) Base() Node { return e.Node }
func (*EnumEntry) feature()     {}

// Name returns the symbolic name rather than the node name.
func (e *EnumEntry) Name() string { return e.rec().symbolic }

func (e *EnumEntry) Symbolic() string      { return e.rec().symbolic }
func (e *EnumEntry) IntValue() int64       { return e.rec().entryValue }
func (e *EnumEntry) NumericValue() float64 { return e.rec().numericValue }
func (e *EnumEntry) IsSelfClearing() bool  { return e.rec().selfClearing }

// Enumeration returns the enumeration the entry belongs to.
func (e *EnumEntry) Enumeration() *Enumeration {
	if p := e.rec().parents; len(p) > 0 {
		return &Enumeration{Node{arena: e.arena, id: p[0]}}
	}
	return nil
}

func (e *EnumEntry) ValueString() (string, error) { return e.Symbolic(), nil }

func (e *EnumEntry) SetValueString(string) error {
	return errkind.New(errkind.ErrNotAvailable, "EnumEntry.SetValueString", "entry %s is read-only", e.Symbolic())
}

// Register is a node exposing a raw byte block.
type Register struct{ Node }

func (g *Register) Base() Node { return g.Node }
func (*Register) feature()     {}

func (g *Register) Address() int64 { return g.rec().address }

// Length returns the register size in bytes.
func (g *Register) Length() (int64, error) {
	var n int64
	err := g.arena.inspect("Register.Length", g.id, func(r *record) { n = r.length })
	return n, err
}

// Get returns length bytes of the register. length must match the
// register size; a shorter length truncates and a longer one zero-pads.
func (g *Register) Get(length int64) ([]byte, error) {
	const op = "Register.Get"
	if length < 0 {
		return nil, errkind.New(errkind.ErrInvalidArgument, op, "negative length %d", length)
	}
	v, err := g.arena.read(op, g.id)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, v.([]byte))
	return out, nil
}

// Set writes the first length bytes of src.
func (g *Register) Set(src []byte, length int64) error {
	const op = "Register.Set"
	if length < 0 {
		return errkind.New(errkind.ErrInvalidArgument, op, "negative length %d", length)
	}
	n := min(length, int64(len(src)))
	return g.arena.write(op, g.id, func(r *record) (any, error) {
		buf := make([]byte, r.length)
		copy(buf, src[:n])
		return buf, nil
	})
}

func (g *Register) ValueString() (string, error) {
	n, err := g.Length()
	if err != nil {
		return "", err
	}
	b, err := g.Get(n)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("0x%X", b), nil
}

func (g *Register) SetValueString(s string) error {
	b, err := toBytes(s)
	if err != nil {
		return err
	}
	return g.Set(b, int64(len(b)))
}

// Command is an executable node.
type Command struct{ Node }

func (c *Command) Base() Node { return c.Node }
func (*Command) feature()     {}

// Execute fires the command.
func (c *Command) Execute() error { return c.arena.execute("Command.Execute", c.id) }

// IsDone reports whether the last execution completed.
func (c *Command) IsDone() (bool, error) {
	var done bool
	err := c.arena.inspect("Command.IsDone", c.id, func(r *record) { done = r.done })
	return done, err
}

func (c *Command) ValueString() (string, error) {
	done, err := c.IsDone()
	if err != nil {
		return "", err
	}
	return strconv.FormatBool(done), nil
}

// SetValueString executes the command for any true value.
func (c *Command) SetValueString(s string) error {
	b, err := toBool(s)
	if err != nil {
		return err
	}
	if !b {
		return nil
	}
	return c.Execute()
}

// Category groups features.
type Category struct{ Node }

func (c *Category) Base() Node { return c.Node }
func (*Category) feature()     {}

// Features returns the declared children in declaration order.
func (c *Category) Features() ([]Feature, error) { return c.Children() }

// FeatureMap returns the declared children keyed by name.
func (c *Category) FeatureMap() (map[string]Feature, error) {
	fs, err := c.Features()
	if err != nil {
		return nil, err
	}
	m := make(map[string]Feature, len(fs))
	for _, f := range fs {
		m[f.Name()] = f
	}
	return m, nil
}

func (c *Category) ValueString() (string, error) {
	return "", errkind.New(errkind.ErrNotImplemented, "Category.ValueString", "category %s has no value", c.Name())
}

func (c *Category) SetValueString(string) error {
	return errkind.New(errkind.ErrNotImplemented, "Category.SetValueString", "category %s has no value", c.Name())
}
