// Package codec converts typed values to the opaque byte values a
// stratcache strategy stores.
//
// The strategies never look inside a value, so any codec works with any
// backend. Pick one per Object and keep it: entries written with one codec
// are not readable with another.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
