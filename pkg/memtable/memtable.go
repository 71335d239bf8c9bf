package memtable

import (
	"errors"
	"fmt"
	"sync/atomic"

	"lsmbatch/pkg/config"
	"lsmbatch/pkg/keys"
	"lsmbatch/pkg/types"

	"github.com/zhangyunhao116/skipmap"
)

var (
	ErrTooLargeEntry = errors.New("entry is too large")
)

type concurrentSet = skipmap.FuncMap[[]byte, []byte]

// Memtable keeps every version of every key ordered by internal key:
// ascending user key, then newest sequence first.
type Memtable struct {
	cfg  *config.MemtableConfig
	ucmp keys.Comparer
	cmp  func(a, b []byte) int
	size atomic.Uint64

	underlying *concurrentSet
}

func New(cfg config.MemtableConfig, ucmp keys.Comparer) *Memtable {
	if ucmp == nil {
		ucmp = keys.Bytewise
	}
	cmp := keys.Compare(ucmp)
	return &Memtable{
		cfg:  &cfg,
		ucmp: ucmp,
		cmp:  cmp,
		underlying: skipmap.NewFunc[[]byte, []byte](func(a, b []byte) bool {
			return cmp(a, b) < 0
		}),
	}
}

// Put inserts a value version. Putting an internal key that is already
// present replaces its value.
func (mt *Memtable) Put(ikey []byte, value types.Value) error {
	return mt.add(Entry{Key: ikey, Value: value})
}

// Delete inserts a tombstone version.
func (mt *Memtable) Delete(ikey []byte) error {
	return mt.add(Entry{Key: ikey})
}

func (mt *Memtable) add(e Entry) error {
	if _, err := keys.Parse(e.Key); err != nil {
		return fmt.Errorf("memtable: %w", err)
	}

	entSize := e.size()
	if threshold := uint64(mt.cfg.MaxBytes); threshold > 0 && entSize > threshold {
		return ErrTooLargeEntry
	}

	// the caller's buffers may be reused once the write returns
	key := append([]byte(nil), e.Key...)
	value := append(types.Value(nil), e.Value...)

	if old, loaded := mt.underlying.LoadOrStore(key, value); loaded {
		// same internal key replayed: replace the value, the key is already counted
		mt.underlying.Store(key, value)
		mt.size.Add(uint64(len(value)) - uint64(len(old)))
		return nil
	}
	mt.size.Add(entSize)

	return nil
}

// Get returns the newest version of userKey with a sequence <= seq. The
// returned entry may be a tombstone.
func (mt *Memtable) Get(userKey types.Key, seq types.SeqN) (Entry, bool) {
	lookup := keys.LookupKey(userKey, seq)

	var (
		found Entry
		ok    bool
	)
	// skipmap has no seek, walk from the front until the lookup key is reached
	mt.underlying.Range(func(ikey []byte, value []byte) bool {
		if mt.cmp(ikey, lookup) < 0 {
			return true
		}
		if mt.ucmp(keys.UserKey(ikey), userKey) == 0 {
			found, ok = Entry{Key: ikey, Value: value}, true
		}
		return false
	})

	return found, ok
}

// NewIterator returns an iterator over a point in time copy of the table.
func (mt *Memtable) NewIterator() *Iterator {
	return newIterator(&sortedSet{mt.underlying}, mt.cmp)
}

func (mt *Memtable) Len() int {
	return mt.underlying.Len()
}

// ApproximateSize is the number of key and value bytes stored.
func (mt *Memtable) ApproximateSize() uint64 {
	return mt.size.Load()
}

func (mt *Memtable) Limit() uint64 {
	return uint64(mt.cfg.MaxBytes)
}
