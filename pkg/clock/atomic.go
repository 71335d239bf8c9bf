package clock

import "sync/atomic"

// AtomicClock holds the last sequence number handed out by the store.
type AtomicClock struct {
	atomic.Uint64
}

func NewAtomic(init uint64) *AtomicClock {
	var ac AtomicClock
	ac.Set(init)
	return &ac
}

func (ac *AtomicClock) Val() uint64 {
	return ac.Load()
}

// Advance moves the clock forward by n and returns the new value.
func (ac *AtomicClock) Advance(n uint64) uint64 {
	return ac.Add(n)
}

func (ac *AtomicClock) Set(t uint64) {
	ac.Store(t)
}
