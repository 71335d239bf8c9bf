package keys

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"lsmbatch/pkg/types"
)

const (
	trailerSize = 8
	expirySize  = 8
)

var ErrMalformedKey = errors.New("malformed internal key")

// Internal keys are laid out as
//
//	+-------------+----------------------------+-------------+
//	| UserKey (N) | Expiry (8, expiry kinds)   | Trailer (8) |
//	+-------------+----------------------------+-------------+
//
// Trailer is seq<<8 | kind, little endian. Expiry is little endian.

// ParsedKey is the decoded form of an internal key.
type ParsedKey struct {
	UserKey  types.Key
	Sequence types.SeqN
	Kind     Kind
	Expiry   types.Expiry
}

func packTrailer(seq types.SeqN, kind Kind) uint64 {
	return seq<<8 | uint64(kind)
}

// Make encodes an internal key. Expiry is ignored for kinds that carry none.
func Make(userKey types.Key, seq types.SeqN, kind Kind, expiry types.Expiry) []byte {
	size := len(userKey) + trailerSize
	if kind.HasExpiry() {
		size += expirySize
	}

	buf := make([]byte, 0, size)
	buf = append(buf, userKey...)
	if kind.HasExpiry() {
		buf = binary.LittleEndian.AppendUint64(buf, expiry)
	}
	return binary.LittleEndian.AppendUint64(buf, packTrailer(seq, kind))
}

// LookupKey builds a key that sorts before every version of userKey with a
// sequence number <= seq.
func LookupKey(userKey types.Key, seq types.SeqN) []byte {
	buf := make([]byte, 0, len(userKey)+trailerSize)
	buf = append(buf, userKey...)
	return binary.LittleEndian.AppendUint64(buf, packTrailer(seq, kindSeek))
}

// Parse decodes an internal key produced by Make.
func Parse(ikey []byte) (ParsedKey, error) {
	if len(ikey) < trailerSize {
		return ParsedKey{}, fmt.Errorf("%w: %d bytes", ErrMalformedKey, len(ikey))
	}

	n := len(ikey) - trailerSize
	trailer := binary.LittleEndian.Uint64(ikey[n:])
	pk := ParsedKey{
		Sequence: trailer >> 8,
		Kind:     Kind(trailer & 0xff),
	}
	if !pk.Kind.Valid() {
		return ParsedKey{}, fmt.Errorf("%w: kind %d", ErrMalformedKey, trailer&0xff)
	}

	if pk.Kind.HasExpiry() {
		if n < expirySize {
			return ParsedKey{}, fmt.Errorf("%w: missing expiry", ErrMalformedKey)
		}
		n -= expirySize
		pk.Expiry = binary.LittleEndian.Uint64(ikey[n:])
	}
	pk.UserKey = ikey[:n]

	return pk, nil
}

// UserKey strips the expiry and trailer. It assumes a well formed key.
func UserKey(ikey []byte) types.Key {
	n := len(ikey) - trailerSize
	if Kind(ikey[n]).HasExpiry() {
		n -= expirySize
	}
	return ikey[:n]
}

func trailer(ikey []byte) uint64 {
	return binary.LittleEndian.Uint64(ikey[len(ikey)-trailerSize:])
}

// Comparer orders user keys.
type Comparer func(a, b []byte) int

// Bytewise is the default user key order.
var Bytewise Comparer = bytes.Compare

// Compare orders internal keys by ascending user key and then by descending
// trailer, so the newest version of a key is seen first.
func Compare(cmp Comparer) func(a, b []byte) int {
	if cmp == nil {
		cmp = Bytewise
	}
	return func(a, b []byte) int {
		if c := cmp(UserKey(a), UserKey(b)); c != 0 {
			return c
		}
		ta, tb := trailer(a), trailer(b)
		switch {
		case ta > tb:
			return -1
		case ta < tb:
			return 1
		default:
			return 0
		}
	}
}

// Less adapts Compare to the ordering callback used by ordered maps.
func Less(cmp Comparer) func(a, b []byte) bool {
	c := Compare(cmp)
	return func(a, b []byte) bool {
		return c(a, b) < 0
	}
}

// Format renders an entry the way dumps and tests display it, e.g.
// "Put(foo, bar)@100", "PutEE(Adam, 2347, Ant)@201" or "Delete(box)@101".
func (pk ParsedKey) Format(value types.Value) string {
	var b bytes.Buffer
	b.WriteString(pk.Kind.String())
	b.WriteByte('(')
	b.Write(pk.UserKey)
	if pk.Kind.HasExpiry() {
		b.WriteString(", ")
		b.WriteString(strconv.FormatUint(pk.Expiry, 10))
	}
	if pk.Kind.IsValue() {
		b.WriteString(", ")
		b.Write(value)
	}
	b.WriteString(")@")
	b.WriteString(strconv.FormatUint(pk.Sequence, 10))
	return b.String()
}

func (pk ParsedKey) String() string {
	return pk.Format(nil)
}
