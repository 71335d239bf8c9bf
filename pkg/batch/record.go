package batch

import (
	"encoding/binary"
	"errors"
	"fmt"

	"lsmbatch/pkg/keys"
	"lsmbatch/pkg/types"
)

var ErrCorruption = errors.New("lsmdb: corruption")

// DecodeError reports a malformed record. Offset is relative to the start of
// the batch contents, header included.
type DecodeError struct {
	Offset  int
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s at offset %d", ErrCorruption, e.Message, e.Offset)
}

func (e *DecodeError) Unwrap() error {
	return ErrCorruption
}

// Record is one decoded mutation. Expiry is only meaningful for kinds that
// carry one, Value is nil for deletions.
type Record struct {
	Kind   keys.Kind
	Key    types.Key
	Expiry types.Expiry
	Value  types.Value
}

func appendLengthPrefixed(dst, b []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

func appendRecord(dst []byte, rec Record) []byte {
	dst = append(dst, byte(rec.Kind))
	dst = appendLengthPrefixed(dst, rec.Key)
	if rec.Kind.HasExpiry() {
		dst = binary.LittleEndian.AppendUint64(dst, rec.Expiry)
	}
	if rec.Kind.IsValue() {
		dst = appendLengthPrefixed(dst, rec.Value)
	}
	return dst
}

// reader is a bounds checked cursor over the record stream.
type reader struct {
	buf []byte
	off int
}

func (r *reader) done() bool {
	return r.off >= len(r.buf)
}

func (r *reader) readByte() (byte, bool) {
	if r.done() {
		return 0, false
	}
	b := r.buf[r.off]
	r.off++
	return b, true
}

func (r *reader) readFixed64() (uint64, bool) {
	if len(r.buf)-r.off < 8 {
		return 0, false
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, true
}

func (r *reader) readLengthPrefixed() ([]byte, bool) {
	n, sz := binary.Uvarint(r.buf[r.off:])
	if sz <= 0 {
		return nil, false
	}
	rest := uint64(len(r.buf) - r.off - sz)
	if n > rest {
		return nil, false
	}
	start := r.off + sz
	r.off = start + int(n)
	return r.buf[start:r.off:r.off], true
}

// next decodes the record at the cursor. On failure the cursor is left where
// the bad record started.
func (r *reader) next() (Record, error) {
	start := r.off
	fail := func(msg string) (Record, error) {
		r.off = start
		return Record{}, &DecodeError{Offset: start, Message: msg}
	}

	tag, _ := r.readByte()
	rec := Record{Kind: keys.Kind(tag)}
	if !rec.Kind.Valid() {
		return fail(fmt.Sprintf("unknown WriteBatch tag %d", tag))
	}

	var ok bool
	if rec.Key, ok = r.readLengthPrefixed(); !ok {
		return fail("bad WriteBatch " + rec.Kind.String())
	}
	if rec.Kind.HasExpiry() {
		if rec.Expiry, ok = r.readFixed64(); !ok {
			return fail("bad WriteBatch " + rec.Kind.String() + " expiry")
		}
	}
	if rec.Kind.IsValue() {
		if rec.Value, ok = r.readLengthPrefixed(); !ok {
			return fail("bad WriteBatch " + rec.Kind.String())
		}
	}

	return rec, nil
}
