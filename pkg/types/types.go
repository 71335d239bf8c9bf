package types

// Key is an immutable byte slice type alias used for clarity.
type Key = []byte

// Value is an immutable byte slice type alias used for clarity.
type Value = []byte

// SeqN represents a monotonically increasing sequence used for MVCC ordering.
type SeqN = uint64

// Expiry is a point in time in Unix microseconds carried by expiring records.
type Expiry = uint64

// MaxSeqN is the largest sequence number that fits into an internal key trailer.
const MaxSeqN SeqN = 1<<56 - 1
