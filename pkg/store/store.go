package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lsmbatch/pkg/batch"
	"lsmbatch/pkg/clock"
	"lsmbatch/pkg/config"
	"lsmbatch/pkg/dberrors"
	"lsmbatch/pkg/iterator"
	"lsmbatch/pkg/keys"
	"lsmbatch/pkg/memtable"
	"lsmbatch/pkg/types"
)

var (
	ErrMemtableFull      = errors.New("lsmdb: memtable full")
	ErrSequenceExhausted = errors.New("lsmdb: sequence numbers exhausted")
)

type iTimeProvider interface {
	Now() time.Time
}

type iClock interface {
	Val() types.SeqN
	Advance(n uint64) types.SeqN
	Set(t types.SeqN)
}

type systemTime struct{}

func (systemTime) Now() time.Time {
	return time.Now()
}

// ReadOptions define per-read behavior.
type ReadOptions struct {
	// Snapshot reads the state as of this sequence number. Zero means latest.
	Snapshot types.SeqN
}

type Store struct {
	cfg  *config.Config
	tp   iTimeProvider
	seqN iClock
	log  *slog.Logger

	// one batch is inserted at a time
	mu     sync.Mutex
	mt     *memtable.Memtable
	closed atomic.Bool
}

// New opens an empty in-memory store. A nil tp uses the wall clock.
func New(cfg *config.Config, tp iTimeProvider) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", dberrors.ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", dberrors.ErrInvalidArgument, err)
	}
	if tp == nil {
		tp = systemTime{}
	}

	return &Store{
		cfg:  cfg,
		tp:   tp,
		seqN: clock.NewAtomic(0),
		log:  slog.Default().With("component", "store"),
		mt:   memtable.New(cfg.Memtable, keys.Bytewise),
	}, nil
}

// Write applies wb atomically with respect to other writers. The batch is
// stamped with the next free sequence number.
func (s *Store) Write(ctx context.Context, wb *batch.WriteBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return dberrors.ErrClosed
	}

	rep := batch.Internals(wb)

	s.mu.Lock()
	defer s.mu.Unlock()

	if limit := s.mt.Limit(); limit > 0 && s.mt.ApproximateSize()+uint64(wb.ByteSize()) > limit {
		return ErrMemtableFull
	}

	base := s.seqN.Val() + 1
	if base > types.MaxSeqN || uint64(rep.Count()) > types.MaxSeqN-base+1 {
		return ErrSequenceExhausted
	}
	rep.SetSequence(base)

	cw := &countingWriter{w: s.mt}
	err := batch.InsertInto(rep, cw, batch.WithWriteTime(s.now))

	// applied records are visible, their sequence numbers are spent
	s.seqN.Advance(uint64(cw.n))

	if err != nil {
		s.log.Warn("batch partially applied", "seq", base, "applied", cw.n, "declared", rep.Count(), "error", err)
		return fmt.Errorf("failed to apply batch at seq %d: %w", base, err)
	}
	if cw.n != rep.Count() {
		s.log.Warn("batch count mismatch", "seq", base, "applied", cw.n, "declared", rep.Count())
		return fmt.Errorf("%w: declared %d, decoded %d", dberrors.ErrCountMismatch, rep.Count(), cw.n)
	}

	s.log.Debug("batch applied", "seq", base, "count", cw.n, "bytes", wb.ByteSize())
	return nil
}

func (s *Store) Put(ctx context.Context, key types.Key, value types.Value) error {
	return s.PutWithMeta(ctx, key, value, nil)
}

// PutWithMeta writes a single record, optionally carrying an expiry.
func (s *Store) PutWithMeta(ctx context.Context, key types.Key, value types.Value, meta *batch.KeyMetaData) error {
	var wb batch.WriteBatch
	wb.Put(key, value, meta)
	return s.Write(ctx, &wb)
}

func (s *Store) Delete(ctx context.Context, key types.Key) error {
	var wb batch.WriteBatch
	wb.Delete(key)
	return s.Write(ctx, &wb)
}

// Get returns the newest live value of key. Deleted and expired keys are
// reported as dberrors.ErrNotFound.
func (s *Store) Get(ctx context.Context, key types.Key, opts ReadOptions) (types.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, dberrors.ErrClosed
	}

	seq := opts.Snapshot
	if seq == 0 {
		seq = s.seqN.Val()
	}

	e, ok := s.mt.Get(key, seq)
	if !ok {
		return nil, dberrors.ErrNotFound
	}

	pk, err := e.Parsed()
	if err != nil {
		return nil, fmt.Errorf("failed to parse internal key: %w", err)
	}
	if pk.Kind == keys.KindDelete || s.expired(pk) {
		return nil, dberrors.ErrNotFound
	}

	return append(types.Value(nil), e.Value...), nil
}

// LastSequence is the sequence number of the newest applied record. It can
// be used as ReadOptions.Snapshot.
func (s *Store) LastSequence() types.SeqN {
	return s.seqN.Val()
}

// NewIterator walks every stored version in internal key order.
func (s *Store) NewIterator(ctx context.Context) (iterator.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, dberrors.ErrClosed
	}
	return s.mt.NewIterator(), nil
}

// Dump renders every stored version, e.g. "Put(baz, boo)@102Delete(box)@101".
func (s *Store) Dump(ctx context.Context) (string, error) {
	iter, err := s.NewIterator(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := iter.Close(); cerr != nil {
			s.log.Warn("failed to close iterator", "error", cerr)
		}
	}()

	var sb strings.Builder
	for iter.First(); iter.Valid(); iter.Next() {
		pk, err := keys.Parse(iter.Key())
		if err != nil {
			return "", fmt.Errorf("failed to parse internal key: %w", err)
		}
		sb.WriteString(pk.Format(iter.Value()))
	}
	return sb.String(), nil
}

func (s *Store) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.log.Info("store closed", "last_seq", s.seqN.Val(), "entries", s.mt.Len())
	}
}

// now is the write time used for PutWT records, in Unix microseconds.
func (s *Store) now() types.Expiry {
	return uint64(s.tp.Now().UnixMicro())
}

func (s *Store) expired(pk keys.ParsedKey) bool {
	now := s.now()
	switch pk.Kind {
	case keys.KindPutExplicitExpiry:
		return pk.Expiry != 0 && pk.Expiry <= now
	case keys.KindPutWriteTime:
		ttl := s.cfg.Expiry.WriteTimeTTL
		return ttl > 0 && pk.Expiry+uint64(ttl.Microseconds()) <= now
	default:
		return false
	}
}

type countingWriter struct {
	w batch.Writer
	n int
}

func (cw *countingWriter) Put(ikey []byte, value types.Value) error {
	if err := cw.w.Put(ikey, value); err != nil {
		return err
	}
	cw.n++
	return nil
}

func (cw *countingWriter) Delete(ikey []byte) error {
	if err := cw.w.Delete(ikey); err != nil {
		return err
	}
	cw.n++
	return nil
}
