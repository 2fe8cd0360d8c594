// Package exit provides the single process-wide shutdown signal every
// pipeline task selects on alongside its inbound queue (spec §5).
package exit

import "sync"

// Signal is a broadcast, idempotent shutdown signal. Its zero value is
// not usable; construct one with New.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// New returns a Signal in the not-yet-fired state.
func New() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Fire closes the underlying channel, waking every goroutine selecting on
// Done. Safe to call more than once or concurrently; only the first call
// has an effect.
func (s *Signal) Fire() {
	s.once.Do(func() { close(s.ch) })
}

// Done returns the channel every task selects on. It is closed exactly
// once, by Fire, and never sent to.
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Fired reports whether Fire has been called.
func (s *Signal) Fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}
