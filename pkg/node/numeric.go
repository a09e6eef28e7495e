package node

import (
	"fmt"
	"math"
	"net"
	"slices"
	"strconv"
	"strings"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

// Integer is a node holding a 64-bit integer.
type Integer struct{ Node }

func (i *Integer) Base() Node { return i.Node }
func (*Integer) feature()     {}

// Value returns the current value.
func (i *Integer) Value() (int64, error) {
	v, err := i.arena.read("Integer.Value", i.id)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// SetValue writes v. It fails with ErrOutOfRange when v lies outside
// [Min, Max] or does not respect the increment; the stored value is left
// unchanged on failure.
func (i *Integer) SetValue(v int64) error {
	const op = "Integer.SetValue"
	return i.arena.write(op, i.id, func(r *record) (any, error) {
		lo, hi := i.arena.intBoundsLocked(r)
		if v < lo || v > hi {
			return nil, errkind.New(errkind.ErrOutOfRange, op,
				"%d is outside [%d, %d] of %s", v, lo, hi, r.name)
		}
		switch r.incMode {
		case IncModeFixed:
			// Without a declared minimum the grid runs through 0.
			base := r.imin
			if base == math.MinInt64 {
				base = 0
			}
			if r.iinc > 1 && (v%r.iinc-base%r.iinc)%r.iinc != 0 {
				return nil, errkind.New(errkind.ErrOutOfRange, op,
					"%d does not match increment %d from %d of %s", v, r.iinc, base, r.name)
			}
		case IncModeList:
			if !slices.Contains(r.validValues, v) {
				return nil, errkind.New(errkind.ErrOutOfRange, op,
					"%d is not one of the valid values %v of %s", v, r.validValues, r.name)
			}
		}
		return v, nil
	})
}

// Min returns the effective minimum, including any imposed bound.
func (i *Integer) Min() (int64, error) {
	var lo int64
	err := i.arena.inspect("Integer.Min", i.id, func(r *record) { lo, _ = i.arena.intBoundsLocked(r) })
	return lo, err
}

// Max returns the effective maximum, including any imposed bound.
func (i *Integer) Max() (int64, error) {
	var hi int64
	err := i.arena.inspect("Integer.Max", i.id, func(r *record) { _, hi = i.arena.intBoundsLocked(r) })
	return hi, err
}

// Inc returns the increment. It is 1 unless the node declares one.
func (i *Integer) Inc() (int64, error) {
	var inc int64
	err := i.arena.inspect("Integer.Inc", i.id, func(r *record) { inc = r.iinc })
	return inc, err
}

// IncMode reports how valid values are constrained.
func (i *Integer) IncMode() IncMode { return i.rec().incMode }

// Representation is the display hint of the node.
func (i *Integer) Representation() Representation { return i.rec().representation }

// Unit is the physical unit of the value, or empty.
func (i *Integer) Unit() string { return i.rec().unit }

// ValidValues returns the value list of a node in IncModeList.
func (i *Integer) ValidValues() []int64 { return slices.Clone(i.rec().validValues) }

// ImposeMin narrows the minimum seen through this node map.
func (i *Integer) ImposeMin(v int64) error {
	return i.arena.mutate(i.id, func(r *record) { r.imposedIMin = &v })
}

// ImposeMax narrows the maximum seen through this node map.
func (i *Integer) ImposeMax(v int64) error {
	return i.arena.mutate(i.id, func(r *record) { r.imposedIMax = &v })
}

func (i *Integer) ValueString() (string, error) {
	v, err := i.Value()
	if err != nil {
		return "", err
	}
	return formatInt(v, i.Representation()), nil
}

func (i *Integer) SetValueString(s string) error {
	v, err := parseInt(s, i.Representation())
	if err != nil {
		return err
	}
	return i.SetValue(v)
}

func formatInt(v int64, rep Representation) string {
	switch rep {
	case RepresentationHexNumber:
		return fmt.Sprintf("0x%X", v)
	case RepresentationIPv4Address:
		u := uint32(v)
		return net.IPv4(byte(u>>24), byte(u>>16), byte(u>>8), byte(u)).String()
	case RepresentationMACAddress:
		u := uint64(v)
		mac := net.HardwareAddr{byte(u >> 40), byte(u >> 32), byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
		return mac.String()
	case RepresentationBoolean:
		return strconv.FormatBool(v != 0)
	}
	return strconv.FormatInt(v, 10)
}

func parseInt(s string, rep Representation) (int64, error) {
	s = strings.TrimSpace(s)
	switch rep {
	case RepresentationIPv4Address:
		if ip := net.ParseIP(s).To4(); ip != nil {
			return int64(uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])), nil
		}
	case RepresentationMACAddress:
		if mac, err := net.ParseMAC(s); err == nil && len(mac) == 6 {
			var u int64
			for _, b := range mac {
				u = u<<8 | int64(b)
			}
			return u, nil
		}
	case RepresentationBoolean:
		if b, err := strconv.ParseBool(s); err == nil {
			if b {
				return 1, nil
			}
			return 0, nil
		}
	}
	return toInt64(s)
}

// Float is a node holding a float64.
type Float struct{ Node }

func (f *Float) Base() Node { return f.Node }
func (*Float) feature()     {}

// Value returns the current value.
func (f *Float) Value() (float64, error) {
	v, err := f.arena.read("Float.Value", f.id)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// SetValue writes v. It fails with ErrOutOfRange when v lies outside
// [Min, Max] or off the increment grid of a node with a fixed increment.
func (f *Float) SetValue(v float64) error {
	const op = "Float.SetValue"
	if math.IsNaN(v) {
		return errkind.New(errkind.ErrInvalidArgument, op, "NaN is not a valid value")
	}
	return f.arena.write(op, f.id, func(r *record) (any, error) {
		lo, hi := f.arena.floatBoundsLocked(r)
		if v < lo || v > hi {
			return nil, errkind.New(errkind.ErrOutOfRange, op,
				"%g is outside [%g, %g] of %s", v, lo, hi, r.name)
		}
		if r.hasInc && r.incMode == IncModeFixed {
			steps := (v - r.fmin) / r.finc
			if math.Abs(steps-math.Round(steps)) > 1e-9*math.Max(1, math.Abs(steps)) {
				return nil, errkind.New(errkind.ErrOutOfRange, op,
					"%g does not match increment %g from %g of %s", v, r.finc, r.fmin, r.name)
			}
		}
		return v, nil
	})
}

// Min returns the effective minimum, including any imposed bound.
func (f *Float) Min() (float64, error) {
	var lo float64
	err := f.arena.inspect("Float.Min", f.id, func(r *record) { lo, _ = f.arena.floatBoundsLocked(r) })
	return lo, err
}

// Max returns the effective maximum, including any imposed bound.
func (f *Float) Max() (float64, error) {
	var hi float64
	err := f.arena.inspect("Float.Max", f.id, func(r *record) { _, hi = f.arena.floatBoundsLocked(r) })
	return hi, err
}

// HasInc reports whether the node declares an increment.
func (f *Float) HasInc() bool { return f.rec().hasInc }

// Inc returns the increment, or ErrNotAvailable when the node has none.
func (f *Float) Inc() (float64, error) {
	if !f.HasInc() {
		return 0, errkind.New(errkind.ErrNotAvailable, "Float.Inc", "node %s has no increment", f.Name())
	}
	var inc float64
	err := f.arena.inspect("Float.Inc", f.id, func(r *record) { inc = r.finc })
	return inc, err
}

func (f *Float) IncMode() IncMode                 { return f.rec().incMode }
func (f *Float) Representation() Representation   { return f.rec().representation }
func (f *Float) DisplayNotation() DisplayNotation { return f.rec().notation }
func (f *Float) DisplayPrecision() int64          { return f.rec().precision }
func (f *Float) Unit() string                     { return f.rec().unit }

// ImposeMin narrows the minimum seen through this node map.
func (f *Float) ImposeMin(v float64) error {
	return f.arena.mutate(f.id, func(r *record) { r.imposedFMin = &v })
}

// ImposeMax narrows the maximum seen through this node map.
func (f *Float) ImposeMax(v float64) error {
	return f.arena.mutate(f.id, func(r *record) { r.imposedFMax = &v })
}

func (f *Float) ValueString() (string, error) {
	v, err := f.Value()
	if err != nil {
		return "", err
	}
	prec := int(f.DisplayPrecision())
	switch f.DisplayNotation() {
	case NotationFixed:
		return strconv.FormatFloat(v, 'f', prec, 64), nil
	case NotationScientific:
		return strconv.FormatFloat(v, 'e', prec, 64), nil
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

func (f *Float) SetValueString(s string) error {
	v, err := toFloat64(s)
	if err != nil {
		return err
	}
	return f.SetValue(v)
}

// Boolean is a node holding a bool.
type Boolean struct{ Node }

func (b *Boolean) Base() Node { return b.Node }
func (*Boolean) feature()     {}

func (b *Boolean) Value() (bool, error) {
	v, err := b.arena.read("Boolean.Value", b.id)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (b *Boolean) SetValue(v bool) error {
	return b.arena.write("Boolean.SetValue", b.id, func(*record) (any, error) { return v, nil })
}

func (b *Boolean) ValueString() (string, error) {
	v, err := b.Value()
	if err != nil {
		return "", err
	}
	return strconv.FormatBool(v), nil
}

func (b *Boolean) SetValueString(s string) error {
	v, err := toBool(s)
	if err != nil {
		return err
	}
	return b.SetValue(v)
}

// String is a node holding text up to a maximum length.
type String struct{ Node }

func (s *String) Base() Node { return s.Node }
func (*String) feature()     {}

func (s *String) Value() (string, error) {
	v, err := s.arena.read("String.Value", s.id)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SetValue writes v. Values longer than MaxLength fail with ErrOutOfRange.
func (s *String) SetValue(v string) error {
	const op = "String.SetValue"
	return s.arena.write(op, s.id, func(r *record) (any, error) {
		if int64(len(v)) > r.maxLength {
			return nil, errkind.New(errkind.ErrOutOfRange, op,
				"length %d exceeds max length %d of %s", len(v), r.maxLength, r.name)
		}
		return v, nil
	})
}

// MaxLength returns the maximum value length in bytes.
func (s *String) MaxLength() (int64, error) {
	var n int64
	err := s.arena.inspect("String.MaxLength", s.id, func(r *record) { n = r.maxLength })
	return n, err
}

func (s *String) ValueString() (string, error)  { return s.Value() }
func (s *String) SetValueString(v string) error { return s.SetValue(v) }
