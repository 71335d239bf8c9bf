package batch

import (
	"encoding/binary"

	"lsmbatch/pkg/keys"
	"lsmbatch/pkg/types"
)

// The batch contents are
//
//	sequence: fixed64 little endian
//	count:    fixed32 little endian
//	records:  count times
//	  kind:   1 byte
//	  key:    uvarint length + bytes
//	  expiry: fixed64 little endian, PutWT and PutEE only
//	  value:  uvarint length + bytes, all kinds except Delete
const (
	headerSize = 12
	countOff   = 8
)

// KeyMetaData selects how Put encodes a record. The zero value is a plain Put.
type KeyMetaData struct {
	Kind   keys.Kind
	Expiry types.Expiry
}

// Handler receives records in the order they were added.
type Handler interface {
	Put(rec Record) error
	Delete(key types.Key) error
}

// WriteBatch groups multiple mutations that are applied atomically.
// The zero value is an empty batch ready to use.
type WriteBatch struct {
	rep []byte
}

func New() *WriteBatch {
	return &WriteBatch{rep: make([]byte, headerSize)}
}

func (b *WriteBatch) init() {
	if len(b.rep) < headerSize {
		b.rep = make([]byte, headerSize)
	}
}

// Put stores key -> value. A nil meta, or one naming a kind without expiry,
// produces a plain Put.
func (b *WriteBatch) Put(key types.Key, value types.Value, meta *KeyMetaData) {
	rec := Record{Kind: keys.KindPut, Key: key, Value: value}
	if meta != nil && meta.Kind.HasExpiry() {
		rec.Kind = meta.Kind
		rec.Expiry = meta.Expiry
	}
	b.add(rec)
}

func (b *WriteBatch) Delete(key types.Key) {
	b.add(Record{Kind: keys.KindDelete, Key: key})
}

func (b *WriteBatch) add(rec Record) {
	b.init()
	b.setCount(b.Count() + 1)
	b.rep = appendRecord(b.rep, rec)
}

// Clear drops every record. The sequence number is kept.
func (b *WriteBatch) Clear() {
	b.init()
	b.rep = b.rep[:headerSize]
	b.setCount(0)
}

// Count returns the declared number of records.
func (b *WriteBatch) Count() int {
	if len(b.rep) < headerSize {
		return 0
	}
	return int(binary.LittleEndian.Uint32(b.rep[countOff:]))
}

func (b *WriteBatch) setCount(n int) {
	binary.LittleEndian.PutUint32(b.rep[countOff:], uint32(n))
}

// ByteSize is the size of the encoded batch, header included.
func (b *WriteBatch) ByteSize() int {
	if len(b.rep) < headerSize {
		return headerSize
	}
	return len(b.rep)
}

// Iterate replays the records into h. It stops at the first malformed record
// or handler error. The declared count is not checked here.
func (b *WriteBatch) Iterate(h Handler) error {
	if len(b.rep) < headerSize {
		return nil
	}
	return iterate(b.rep, h)
}

func iterate(rep []byte, h Handler) error {
	r := reader{buf: rep, off: headerSize}
	for !r.done() {
		rec, err := r.next()
		if err != nil {
			return err
		}

		if rec.Kind == keys.KindDelete {
			err = h.Delete(rec.Key)
		} else {
			err = h.Put(rec)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
