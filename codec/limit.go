package codec

import (
	"errors"
	"fmt"
)

// ErrTooLarge is returned when a payload exceeds a Limit.
var ErrTooLarge = errors.New("codec: payload too large")

// Limit wraps another codec and rejects payloads larger than Max bytes in
// both directions: oversized values are never written, and oversized
// values found in a shared backend are never handed to Inner.
// Max <= 0 disables the check.
type Limit[V any] struct {
	Inner Codec[V]
	Max   int
}

func (c Limit[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.Max > 0 && len(b) > c.Max {
		return nil, fmt.Errorf("%w: encoded %d > %d", ErrTooLarge, len(b), c.Max)
	}
	return b, nil
}

func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.Max > 0 && len(b) > c.Max {
		var zero V
		return zero, fmt.Errorf("%w: stored %d > %d", ErrTooLarge, len(b), c.Max)
	}
	return c.Inner.Decode(b)
}
