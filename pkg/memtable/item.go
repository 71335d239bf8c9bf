package memtable

import (
	"lsmbatch/pkg/keys"
	"lsmbatch/pkg/types"
)

// Entry is one version of a user key.
type Entry struct {
	Key   []byte // internal key
	Value types.Value
}

// Parsed decodes the internal key of the entry.
func (e Entry) Parsed() (keys.ParsedKey, error) {
	return keys.Parse(e.Key)
}

func (e Entry) size() uint64 {
	return uint64(len(e.Key) + len(e.Value))
}
