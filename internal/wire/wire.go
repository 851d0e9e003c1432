// Package wire frames cache values for backends that have no per-entry
// expiry of their own (the in-memory store and Redis hash fields).
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

const (
	version   byte = 1
	kindEntry byte = 1

	// magic(4) | ver(1) | kind(1) | expireAt(i64 be, unix nanos, 0 = never) | vlen(u32 be)
	headerLen = 4 + 1 + 1 + 8 + 4
)

// MaxDeadline is the latest expiry a frame can carry (2262-04-11 UTC,
// the int64 unix-nanosecond limit). Later deadlines are clamped to it.
var MaxDeadline = time.Unix(0, math.MaxInt64)

var (
	ErrCorrupt = errors.New("stratcache: corrupt entry")
	magic4     = [...]byte{'S', 'T', 'R', 'C'}
)

// Entry is a decoded frame. Payload aliases the input buffer.
type Entry struct {
	ExpireAt time.Time // zero => never expires
	Payload  []byte
}

// Expired reports whether the entry is past its deadline at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpireAt.IsZero() && !now.Before(e.ExpireAt)
}

// Deadline converts a relative ttl into an absolute expiry.
// ttl <= 0 means the entry never expires; deadlines past MaxDeadline are
// clamped to it.
func Deadline(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return clamp(now.Add(ttl))
}

func clamp(t time.Time) time.Time {
	if t.After(MaxDeadline) {
		return MaxDeadline
	}
	return t
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames payload with an absolute expiry.
func Encode(expireAt time.Time, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte

	var exp int64
	if !expireAt.IsZero() {
		exp = clamp(expireAt).UnixNano()
	}
	binary.BigEndian.PutUint64(u8[:], uint64(exp))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode parses a frame produced by Encode. The payload is a sub-slice
// of b (no copy). Trailing bytes are treated as corruption.
func Decode(b []byte) (Entry, error) {
	if len(b) < headerLen || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, ErrCorrupt
	}
	off := 6

	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}

	e := Entry{Payload: b[off : off+vlen]}
	if exp != 0 {
		e.ExpireAt = time.Unix(0, exp)
	}
	return e, nil
}

// Reframe returns a copy of the frame in b with a new expiry.
func Reframe(b []byte, expireAt time.Time) ([]byte, error) {
	e, err := Decode(b)
	if err != nil {
		return nil, err
	}
	return Encode(expireAt, e.Payload), nil
}
