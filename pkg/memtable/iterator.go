package memtable

import (
	"sort"

	"lsmbatch/pkg/iterator"
	"lsmbatch/pkg/types"
)

var _ iterator.Iterator = (*Iterator)(nil)

// Iterator walks a snapshot of the memtable in internal key order.
type Iterator struct {
	entries []Entry
	cmp     func(a, b []byte) int
	pos     int
}

func newIterator(ss SortedSet, cmp func(a, b []byte) int) *Iterator {
	entries := ss.Sorted()
	return &Iterator{
		entries: entries,
		cmp:     cmp,
		pos:     len(entries),
	}
}

func (it *Iterator) Seek(target []byte) {
	it.pos = sort.Search(len(it.entries), func(i int) bool {
		return it.cmp(it.entries[i].Key, target) >= 0
	})
}

func (it *Iterator) First() {
	it.pos = 0
}

func (it *Iterator) Last() {
	it.pos = len(it.entries) - 1
}

func (it *Iterator) Next() {
	if it.Valid() {
		it.pos++
	}
}

func (it *Iterator) Prev() {
	if it.Valid() {
		it.pos--
	}
}

func (it *Iterator) Valid() bool {
	return it.pos >= 0 && it.pos < len(it.entries)
}

func (it *Iterator) Key() []byte {
	return it.entries[it.pos].Key
}

func (it *Iterator) Value() types.Value {
	return it.entries[it.pos].Value
}

// Entry returns the current entry.
func (it *Iterator) Entry() Entry {
	return it.entries[it.pos]
}

func (it *Iterator) Close() error {
	it.entries = nil
	it.pos = 0
	return nil
}
