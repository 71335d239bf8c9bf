package batch

import (
	"encoding/binary"
	"fmt"

	"lsmbatch/pkg/types"
)

// Internal is the view of a batch used by the write path. It exposes the
// header and the raw contents, which the public WriteBatch API hides.
type Internal interface {
	Count() int
	SetCount(n int)
	Sequence() types.SeqN
	SetSequence(seq types.SeqN)
	Contents() []byte
	SetContents(contents []byte) error
	// appendRecords appends the encoded records, header excluded.
	appendRecords(records []byte)
	records() []byte
}

// Internals returns the write path view of b.
func Internals(b *WriteBatch) Internal {
	b.init()
	return internalView{b}
}

type internalView struct {
	b *WriteBatch
}

func (v internalView) Count() int {
	return v.b.Count()
}

func (v internalView) SetCount(n int) {
	v.b.setCount(n)
}

func (v internalView) Sequence() types.SeqN {
	return binary.LittleEndian.Uint64(v.b.rep)
}

func (v internalView) SetSequence(seq types.SeqN) {
	binary.LittleEndian.PutUint64(v.b.rep, seq)
}

func (v internalView) Contents() []byte {
	return v.b.rep
}

// SetContents replaces the batch representation with a copy of contents.
func (v internalView) SetContents(contents []byte) error {
	if len(contents) < headerSize {
		return fmt.Errorf("%w: batch contents shorter than header (%d bytes)", ErrCorruption, len(contents))
	}
	v.b.rep = append(v.b.rep[:0], contents...)
	return nil
}

func (v internalView) appendRecords(records []byte) {
	v.b.rep = append(v.b.rep, records...)
}

func (v internalView) records() []byte {
	return v.b.rep[headerSize:]
}

// Append adds the records of src after those of dst. Records carry no
// sequence numbers, so nothing inside src is rewritten: sequences follow from
// the position in dst once it is inserted.
func Append(dst, src Internal) {
	dst.SetCount(dst.Count() + src.Count())
	dst.appendRecords(src.records())
}
