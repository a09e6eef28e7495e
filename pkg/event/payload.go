package event

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Payload is one device event as it travels over the event channel.
// Values maps node names to the values the event reports for them.
type Payload struct {
	EventID   string         `cbor:"1,keyasint"`
	Timestamp uint64         `cbor:"2,keyasint,omitempty"`
	Values    map[string]any `cbor:"3,keyasint,omitempty"`
}

var (
	encMode = must(cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
	}.EncMode())

	// Unsigned integers decode as int64 so they apply to Integer nodes
	// without conversion.
	decMode = must(cbor.DecOptions{
		IntDec:      cbor.IntDecConvertSigned,
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode())
)

func must[M any](m M, err error) M {
	if err != nil {
		panic(fmt.Sprintf("event: cbor mode: %v", err))
	}
	return m
}

// Encode encodes a payload for delivery over an event channel.
func Encode(p Payload) ([]byte, error) {
	data, err := encMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding event %s: %w", p.EventID, err)
	}
	return data, nil
}

// Decode decodes one event payload.
func Decode(data []byte) (Payload, error) {
	var p Payload
	if err := decMode.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("decoding event payload: %w", err)
	}
	if p.EventID == "" {
		return Payload{}, fmt.Errorf("decoding event payload: missing event id")
	}
	return p, nil
}
