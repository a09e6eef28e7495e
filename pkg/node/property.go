package node

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

// propertyBufferSize is the first buffer size tried by Property. A second
// attempt uses three times as much.
const propertyBufferSize = 256

// PropertyNames lists the properties Property understands.
var PropertyNames = []string{
	"Name", "DisplayName", "InterfaceType", "Description", "ToolTip", "DocuURL",
	"Unit", "Visibility", "AccessMode", "Namespace", "CachingMode",
	"PollingTime", "EventID", "Value", "Min", "Max", "Inc",
}

// Property returns one property as text. Values that do not fit the
// internal buffer are retried once with a larger buffer before failing
// with ErrBufferTooSmall.
func (n Node) Property(name string) (string, error) {
	size := propertyBufferSize
	for range 2 {
		buf := make([]byte, size)
		k, err := n.copyProperty(name, buf)
		if err == nil {
			return string(buf[:k]), nil
		}
		if !errors.Is(err, errkind.ErrBufferTooSmall) {
			return "", err
		}
		size *= 3
	}
	return "", errkind.New(errkind.ErrBufferTooSmall, "Node.Property",
		"property %s of %s does not fit in %d bytes", name, n.Name(), size/3)
}

// Properties returns every property that can currently be read.
func (n Node) Properties() map[string]string {
	out := make(map[string]string, len(PropertyNames))
	for _, p := range PropertyNames {
		if v, err := n.Property(p); err == nil {
			out[p] = v
		}
	}
	return out
}

// copyProperty fills buf and returns the number of bytes written. It fails
// with ErrBufferTooSmall when buf is too short, like a C string accessor.
func (n Node) copyProperty(name string, buf []byte) (int, error) {
	s, err := n.property(name)
	if err != nil {
		return 0, err
	}
	if len(s) > len(buf) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", errkind.ErrBufferTooSmall, len(s), len(buf))
	}
	return copy(buf, s), nil
}

func (n Node) property(name string) (string, error) {
	if err := n.check(); err != nil {
		return "", err
	}
	r := n.rec()
	switch name {
	case "Name":
		return r.name, nil
	case "DisplayName":
		return r.displayName, nil
	case "InterfaceType":
		return r.typ.String(), nil
	case "Description":
		return r.description, nil
	case "ToolTip":
		return r.toolTip, nil
	case "DocuURL":
		return r.docuURL, nil
	case "Unit":
		return r.unit, nil
	case "Visibility":
		return n.Visibility().String(), nil
	case "AccessMode":
		return n.AccessMode().String(), nil
	case "Namespace":
		return r.namespace.String(), nil
	case "CachingMode":
		return r.caching.String(), nil
	case "PollingTime":
		return strconv.FormatInt(r.pollingTime.Milliseconds(), 10), nil
	case "EventID":
		return r.eventID, nil
	case "Value":
		f, err := Cast(n)
		if err != nil {
			return "", err
		}
		return f.ValueString()
	case "Min", "Max", "Inc":
		return n.rangeProperty(name)
	}
	return "", errkind.New(errkind.ErrNotFound, "Node.Property", "node %s has no property %q", r.name, name)
}

func (n Node) rangeProperty(name string) (string, error) {
	f, err := Cast(n)
	if err != nil {
		return "", err
	}
	switch v := f.(type) {
	case *Integer:
		var x int64
		switch name {
		case "Min":
			x, err = v.Min()
		case "Max":
			x, err = v.Max()
		default:
			x, err = v.Inc()
		}
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(x, 10), nil
	case *Float:
		var x float64
		switch name {
		case "Min":
			x, err = v.Min()
		case "Max":
			x, err = v.Max()
		default:
			x, err = v.Inc()
		}
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	}
	return "", errkind.New(errkind.ErrNotFound, "Node.Property",
		"%s node %s has no property %q", n.InterfaceType(), n.Name(), name)
}
