package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"lsmbatch/pkg/batch"
	"lsmbatch/pkg/config"
	"lsmbatch/pkg/dberrors"
	"lsmbatch/pkg/keys"
	"lsmbatch/pkg/types"

	"github.com/stretchr/testify/require"
)

// mockTimeProvider implements iTimeProvider for testing
type mockTimeProvider struct {
	mu  sync.Mutex
	now time.Time
}

func (m *mockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockTimeProvider) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func newTestStore(t *testing.T, mutate ...func(*config.Config)) (*Store, *mockTimeProvider) {
	t.Helper()

	cfg := config.Default()
	for _, m := range mutate {
		m(&cfg)
	}

	tp := &mockTimeProvider{now: time.UnixMicro(1_000_000)}
	st, err := New(&cfg, tp)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return st, tp
}

func getString(t *testing.T, st *Store, key string, opts ReadOptions) (string, bool) {
	t.Helper()
	value, err := st.Get(context.Background(), []byte(key), opts)
	if errors.Is(err, dberrors.ErrNotFound) {
		return "", false
	}
	require.NoError(t, err)
	return string(value), true
}

func dump(t *testing.T, st *Store) string {
	t.Helper()
	out, err := st.Dump(context.Background())
	require.NoError(t, err)
	return out
}

func TestStore_WriteBatch(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	wb := batch.New()
	wb.Put([]byte("foo"), []byte("bar"), nil)
	wb.Delete([]byte("box"))
	wb.Put([]byte("baz"), []byte("boo"), nil)

	require.NoError(t, st.Write(ctx, wb))

	require.EqualValues(t, 1, batch.Internals(wb).Sequence(), "batch is stamped with the first sequence")
	require.EqualValues(t, 3, st.LastSequence())
	require.Equal(t, "Put(baz, boo)@3Delete(box)@2Put(foo, bar)@1", dump(t, st))

	value, found := getString(t, st, "foo", ReadOptions{})
	require.True(t, found)
	require.Equal(t, "bar", value)

	_, found = getString(t, st, "box", ReadOptions{})
	require.False(t, found, "deleted key should not be found")
}

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	t.Run("Put", func(t *testing.T) {
		require.NoError(t, st.Put(ctx, []byte("key1"), []byte("value1")))
		value, found := getString(t, st, "key1", ReadOptions{})
		require.True(t, found)
		require.Equal(t, "value1", value)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, st.Put(ctx, []byte("key1"), []byte("value2")))
		value, found := getString(t, st, "key1", ReadOptions{})
		require.True(t, found)
		require.Equal(t, "value2", value)
	})

	t.Run("Snapshot", func(t *testing.T) {
		value, found := getString(t, st, "key1", ReadOptions{Snapshot: 1})
		require.True(t, found)
		require.Equal(t, "value1", value)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, st.Delete(ctx, []byte("key1")))

		_, found := getString(t, st, "key1", ReadOptions{})
		require.False(t, found, "deleted key should not be found")

		value, found := getString(t, st, "key1", ReadOptions{Snapshot: 2})
		require.True(t, found)
		require.Equal(t, "value2", value)
	})

	t.Run("NonExistentKey", func(t *testing.T) {
		_, found := getString(t, st, "nonexistent", ReadOptions{})
		require.False(t, found)
	})
}

func TestStore_BatchReuseAfterWrite(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	wb := batch.New()
	wb.Put([]byte("foo"), []byte("bar"), nil)
	require.NoError(t, st.Write(ctx, wb))

	// Clear keeps the buffer, the next record is encoded over the old one
	wb.Clear()
	wb.Put([]byte("foo"), []byte("XXX"), nil)

	value, found := getString(t, st, "foo", ReadOptions{})
	require.True(t, found)
	require.Equal(t, "bar", value)

	require.NoError(t, st.Write(ctx, wb))
	require.Equal(t, "Put(foo, XXX)@2Put(foo, bar)@1", dump(t, st))
}

func TestStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	require.NoError(t, st.Put(ctx, []byte("k"), []byte("value")))

	value, err := st.Get(ctx, []byte("k"), ReadOptions{})
	require.NoError(t, err)
	copy(value, "XXXXX")

	got, found := getString(t, st, "k", ReadOptions{})
	require.True(t, found)
	require.Equal(t, "value", got)
}

func TestStore_ExplicitExpiry(t *testing.T) {
	ctx := context.Background()
	st, tp := newTestStore(t)

	deadline := uint64(tp.Now().Add(time.Minute).UnixMicro())
	meta := &batch.KeyMetaData{Kind: keys.KindPutExplicitExpiry, Expiry: deadline}
	require.NoError(t, st.PutWithMeta(ctx, []byte("lease"), []byte("held"), meta))

	value, found := getString(t, st, "lease", ReadOptions{})
	require.True(t, found)
	require.Equal(t, "held", value)

	tp.Advance(time.Minute)
	_, found = getString(t, st, "lease", ReadOptions{})
	require.False(t, found, "lease should expire at its deadline")

	// expired entries stay visible to dumps
	require.Equal(t, fmt.Sprintf("PutEE(lease, %d, held)@1", deadline), dump(t, st))
}

func TestStore_WriteTimeExpiry(t *testing.T) {
	ctx := context.Background()
	st, tp := newTestStore(t, func(cfg *config.Config) {
		cfg.Expiry.WriteTimeTTL = 10 * time.Second
	})

	writtenAt := uint64(tp.Now().UnixMicro())
	meta := &batch.KeyMetaData{Kind: keys.KindPutWriteTime}
	require.NoError(t, st.PutWithMeta(ctx, []byte("session"), []byte("open"), meta))

	require.Equal(t, fmt.Sprintf("PutWT(session, %d, open)@1", writtenAt), dump(t, st))

	tp.Advance(9 * time.Second)
	_, found := getString(t, st, "session", ReadOptions{})
	require.True(t, found, "session should be alive before the ttl")

	tp.Advance(time.Second)
	_, found = getString(t, st, "session", ReadOptions{})
	require.False(t, found, "session should expire after the ttl")
}

func TestStore_CorruptBatch(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	wb := batch.New()
	wb.Put([]byte("foo"), []byte("bar"), nil)
	wb.Delete([]byte("box"))

	rep := batch.Internals(wb)
	contents := rep.Contents()
	require.NoError(t, rep.SetContents(contents[:len(contents)-1]))

	require.ErrorIs(t, st.Write(ctx, wb), batch.ErrCorruption)

	value, found := getString(t, st, "foo", ReadOptions{})
	require.True(t, found, "records before the corruption stay applied")
	require.Equal(t, "bar", value)
	require.EqualValues(t, 1, st.LastSequence())

	require.NoError(t, st.Put(ctx, []byte("next"), []byte("v")))
	require.Equal(t, "Put(foo, bar)@1Put(next, v)@2", dump(t, st))
}

func TestStore_CountMismatch(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	wb := batch.New()
	wb.Put([]byte("foo"), []byte("bar"), nil)
	batch.Internals(wb).SetCount(3)

	err := st.Write(ctx, wb)
	require.ErrorIs(t, err, dberrors.ErrCountMismatch)
	require.NotErrorIs(t, err, batch.ErrCorruption)
	require.EqualValues(t, 1, st.LastSequence())
}

func TestStore_SequenceLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("LastUsableSequence", func(t *testing.T) {
		st, _ := newTestStore(t)
		st.seqN.Set(types.MaxSeqN - 1)

		require.NoError(t, st.Put(ctx, []byte("k"), []byte("v")))
		require.EqualValues(t, types.MaxSeqN, st.LastSequence())

		require.ErrorIs(t, st.Put(ctx, []byte("k"), []byte("v2")), ErrSequenceExhausted)
		require.EqualValues(t, types.MaxSeqN, st.LastSequence())
	})

	t.Run("UnderDeclaredCount", func(t *testing.T) {
		st, _ := newTestStore(t)
		st.seqN.Set(types.MaxSeqN - 1)

		// one record declared, two encoded
		wb := batch.New()
		wb.Put([]byte("a"), []byte("1"), nil)
		wb.Put([]byte("b"), []byte("2"), nil)
		batch.Internals(wb).SetCount(1)

		err := st.Write(ctx, wb)
		require.ErrorIs(t, err, batch.ErrSequenceOverflow)
		require.EqualValues(t, types.MaxSeqN, st.LastSequence())
		require.Equal(t, fmt.Sprintf("Put(a, 1)@%d", types.MaxSeqN), dump(t, st))
	})
}

func TestStore_MemtableFull(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, func(cfg *config.Config) {
		cfg.Memtable.MaxBytes = 64
	})

	require.NoError(t, st.Put(ctx, []byte("k"), []byte("v")))

	require.ErrorIs(t, st.Put(ctx, []byte("big"), make([]byte, 100)), ErrMemtableFull)
	require.EqualValues(t, 1, st.LastSequence(), "a rejected batch must not consume sequence numbers")
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)
	st.Close()

	require.ErrorIs(t, st.Put(ctx, []byte("k"), []byte("v")), dberrors.ErrClosed)

	_, err := st.Get(ctx, []byte("k"), ReadOptions{})
	require.ErrorIs(t, err, dberrors.ErrClosed)
}

func TestStore_CanceledContext(t *testing.T) {
	st, _ := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, st.Put(ctx, []byte("k"), []byte("v")), context.Canceled)
	require.Zero(t, st.LastSequence())
}

func TestStore_NewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Logger.Level = "LOUD"

	_, err := New(&cfg, nil)
	require.ErrorIs(t, err, dberrors.ErrInvalidArgument)

	_, err = New(nil, nil)
	require.ErrorIs(t, err, dberrors.ErrInvalidArgument)
}

// TestConcurrentConsistency checks that concurrent batches get disjoint,
// contiguous sequence ranges.
func TestConcurrentConsistency(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	const (
		writers   = 10
		perWriter = 5
	)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			wb := batch.New()
			for j := 0; j < perWriter; j++ {
				wb.Put([]byte(fmt.Sprintf("w%d-k%d", id, j)), []byte(fmt.Sprintf("v%d", j)), nil)
			}
			if err := st.Write(ctx, wb); err != nil {
				t.Errorf("Write failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, writers*perWriter, st.LastSequence())

	iter, err := st.NewIterator(ctx)
	require.NoError(t, err)
	defer iter.Close()

	// keys of one writer were inserted as one batch, so their sequences
	// are consecutive
	first := map[int]uint64{}
	for iter.First(); iter.Valid(); iter.Next() {
		pk, err := keys.Parse(iter.Key())
		require.NoError(t, err)

		var id, j int
		_, err = fmt.Sscanf(string(pk.UserKey), "w%d-k%d", &id, &j)
		require.NoError(t, err, "unexpected key %q", pk.UserKey)

		if j == 0 {
			first[id] = pk.Sequence
			continue
		}
		require.Equal(t, first[id]+uint64(j), pk.Sequence, "writer %d key %d", id, j)
	}
	require.Len(t, first, writers)
}
