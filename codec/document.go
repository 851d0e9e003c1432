package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Formats accepted by Document.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
	FormatCBOR    = "cbor"
)

// Document returns a codec that decodes a payload written in format by any
// typed codec into generic values (maps with string keys, slices, scalars)
// that encoding/json can print. It is meant for inspecting stored entries.
func Document(format string) (Codec[any], error) {
	switch format {
	case FormatJSON:
		return JSON[any]{}, nil
	case FormatMsgpack:
		return Msgpack[any]{}, nil
	case FormatCBOR:
		c, err := NewCBOR[any](false)
		if err != nil {
			return nil, err
		}
		dm, err := (cbor.DecOptions{
			DupMapKey:      cbor.DupMapKeyEnforcedAPF,
			DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		}).DecMode()
		if err != nil {
			return nil, err
		}
		c.dec = dm
		return c, nil
	default:
		return nil, fmt.Errorf("codec: unknown document format %q", format)
	}
}
