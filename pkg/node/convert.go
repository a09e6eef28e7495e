package node

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt64(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt64(n)
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %g is not an integer", errkind.ErrTypeMismatch, n)
		}
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", errkind.ErrInvalidValue, n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: %T is not an integer", errkind.ErrTypeMismatch, v)
}

func uintToInt64(u uint64) (int64, error) {
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d overflows int64", errkind.ErrOutOfRange, u)
	}
	return int64(u), nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", errkind.ErrInvalidValue, n)
		}
		return f, nil
	case bool:
		return 0, fmt.Errorf("%w: bool is not a number", errkind.ErrTypeMismatch)
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	return float64(i), nil
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		p, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", errkind.ErrInvalidValue, b)
		}
		return p, nil
	}
	return false, fmt.Errorf("%w: %T is not a boolean", errkind.ErrTypeMismatch, v)
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return "", fmt.Errorf("%w: %T is not a string", errkind.ErrTypeMismatch, v)
}

// toBytes accepts raw bytes or a hex string, with or without a 0x prefix.
func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return append([]byte(nil), b...), nil
	case string:
		s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(b), "0x"), "0X")
		out, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not hex data", errkind.ErrInvalidValue, b)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T is not register data", errkind.ErrTypeMismatch, v)
}
