package node

import (
	"github.com/zacpullen/arena-api/pkg/errkind"
)

// Feature is the closed set of typed node variants. Only this package can
// implement it; Cast is the single way to obtain one from a Node.
type Feature interface {
	Base() Node
	Name() string
	InterfaceType() InterfaceType
	AccessMode() AccessMode

	// ValueString formats the current value the way tooling displays it.
	ValueString() (string, error)
	// SetValueString parses s according to the variant and writes it.
	SetValueString(s string) error

	feature()
}

var (
	_ Feature = (*Integer)(nil)
	_ Feature = (*Float)(nil)
	_ Feature = (*Boolean)(nil)
	_ Feature = (*String)(nil)
	_ Feature = (*Enumeration)(nil)
	_ Feature = (*EnumEntry)(nil)
	_ Feature = (*Register)(nil)
	_ Feature = (*Command)(nil)
	_ Feature = (*Category)(nil)
)

// Cast returns the variant matching the node's declared interface type.
// Interface types without a variant fail with ErrTypeMismatch.
func Cast(n Node) (Feature, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	switch t := n.InterfaceType(); t {
	case InterfaceInteger:
		return &Integer{n}, nil
	case InterfaceFloat:
		return &Float{n}, nil
	case InterfaceBoolean:
		return &Boolean{n}, nil
	case InterfaceString:
		return &String{n}, nil
	case InterfaceEnumeration:
		return &Enumeration{n}, nil
	case InterfaceEnumEntry:
		return &EnumEntry{n}, nil
	case InterfaceRegister:
		return &Register{n}, nil
	case InterfaceCommand:
		return &Command{n}, nil
	case InterfaceCategory:
		return &Category{n}, nil
	default:
		return nil, errkind.New(errkind.ErrTypeMismatch, "Cast",
			"node %s has unsupported interface type %s", n.Name(), t)
	}
}

// As casts n and asserts the variant type T.
func As[T Feature](n Node) (T, error) {
	var zero T
	f, err := Cast(n)
	if err != nil {
		return zero, err
	}
	t, ok := f.(T)
	if !ok {
		return zero, errkind.New(errkind.ErrTypeMismatch, "As",
			"node %s is %s, not %T", n.Name(), n.InterfaceType(), zero)
	}
	return t, nil
}
