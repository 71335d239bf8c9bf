package memtable

type sortedSet struct {
	*concurrentSet
}

type SortedSet interface {
	Sorted() []Entry
}

func (s *sortedSet) Sorted() []Entry {
	result := make([]Entry, 0, s.Len())
	s.Range(func(key []byte, value []byte) bool {
		result = append(result, Entry{Key: key, Value: value})
		return true
	})

	return result
}
