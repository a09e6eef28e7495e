package node

import (
	"github.com/zacpullen/arena-api/pkg/errkind"
)

// Value reads the current value of any valued variant as a Go value:
// int64, float64, bool, string (also for enumerations) or []byte.
func Value(f Feature) (any, error) {
	switch v := f.(type) {
	case *Integer:
		return v.Value()
	case *Float:
		return v.Value()
	case *Boolean:
		return v.Value()
	case *String:
		return v.Value()
	case *Enumeration:
		return v.Value()
	case *Register:
		n, err := v.Length()
		if err != nil {
			return nil, err
		}
		return v.Get(n)
	case *EnumEntry:
		return v.Symbolic(), nil
	}
	return nil, errkind.New(errkind.ErrTypeMismatch, "Value", "%s node %s has no value", f.InterfaceType(), f.Name())
}

// SetValue writes v to a valued variant. The Go type of v must match the
// variant: integer kinds for Integer, float kinds for Float, bool for
// Boolean, string for String. A mismatch fails with ErrTypeMismatch; there
// is no implicit coercion.
func SetValue(f Feature, v any) error {
	const op = "SetValue"
	mismatch := func() error {
		return errkind.New(errkind.ErrTypeMismatch, op, "%T cannot be written to %s node %s", v, f.InterfaceType(), f.Name())
	}
	switch n := f.(type) {
	case *Integer:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			i, err := toInt64(v)
			if err != nil {
				return err
			}
			return n.SetValue(i)
		}
		return mismatch()
	case *Float:
		switch x := v.(type) {
		case float64:
			return n.SetValue(x)
		case float32:
			return n.SetValue(float64(x))
		}
		return mismatch()
	case *Boolean:
		if b, ok := v.(bool); ok {
			return n.SetValue(b)
		}
		return mismatch()
	case *String:
		if s, ok := v.(string); ok {
			return n.SetValue(s)
		}
		return mismatch()
	case *Enumeration:
		return n.SetValue(v)
	case *Register:
		if b, ok := v.([]byte); ok {
			return n.Set(b, int64(len(b)))
		}
		return mismatch()
	case *Command:
		if b, ok := v.(bool); ok && b {
			return n.Execute()
		}
		return mismatch()
	}
	return mismatch()
}
