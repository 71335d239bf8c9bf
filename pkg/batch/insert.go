package batch

import (
	"errors"
	"fmt"

	"lsmbatch/pkg/keys"
	"lsmbatch/pkg/types"
)

// Writer is the versioned store a batch is inserted into.
type Writer interface {
	Put(ikey []byte, value types.Value) error
	Delete(ikey []byte) error
}

// ErrSequenceOverflow is returned when a record would need a sequence number
// above types.MaxSeqN.
var ErrSequenceOverflow = errors.New("lsmdb: sequence number overflow")

type InsertOption func(*inserter)

// WithWriteTime stamps PutWT records that carry a zero expiry with the
// value returned by now.
func WithWriteTime(now func() types.Expiry) InsertOption {
	return func(ins *inserter) {
		ins.now = now
	}
}

// InsertInto decodes b and applies the i-th record to w with sequence
// Sequence()+i. Decoding stops at the first malformed record; records applied
// before it stay applied. A successful return does not imply the declared
// count matched, callers that care compare it themselves.
func InsertInto(b Internal, w Writer, opts ...InsertOption) error {
	ins := &inserter{seq: b.Sequence(), w: w}
	for _, opt := range opts {
		opt(ins)
	}
	return iterate(b.Contents(), ins)
}

type inserter struct {
	seq types.SeqN
	w   Writer
	now func() types.Expiry
}

func (ins *inserter) Put(rec Record) error {
	expiry := rec.Expiry
	if rec.Kind == keys.KindPutWriteTime && expiry == 0 && ins.now != nil {
		expiry = ins.now()
	}

	seq, err := ins.nextSeq()
	if err != nil {
		return err
	}
	return ins.w.Put(keys.Make(rec.Key, seq, rec.Kind, expiry), rec.Value)
}

func (ins *inserter) Delete(key types.Key) error {
	seq, err := ins.nextSeq()
	if err != nil {
		return err
	}
	return ins.w.Delete(keys.Make(key, seq, keys.KindDelete, 0))
}

// nextSeq hands out the sequence of the current record. The trailer keeps
// 56 bits of it, so anything larger is refused instead of wrapped.
func (ins *inserter) nextSeq() (types.SeqN, error) {
	if ins.seq > types.MaxSeqN {
		return 0, fmt.Errorf("%w: %d", ErrSequenceOverflow, ins.seq)
	}
	seq := ins.seq
	ins.seq++
	return seq, nil
}
