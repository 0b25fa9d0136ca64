// Package clock abstracts the engine's time source. Every delay and
// expiry precondition reads through a Clock, so scenario tests can jump
// time forward the way a chain's timestamp would.
package clock

import (
	"sync"
	"time"
)

// Clock yields the current Unix timestamp in seconds.
type Clock interface {
	Now() int64
}

// System reads the wall clock.
type System struct{}

func (System) Now() int64 { return time.Now().Unix() }

// Manual is a hand-advanced clock for tests.
type Manual struct {
	mu  sync.Mutex
	now int64
}

// NewManual starts a manual clock at the given timestamp.
func NewManual(start int64) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by the given number of seconds.
func (m *Manual) Advance(seconds int64) {
	m.mu.Lock()
	m.now += seconds
	m.mu.Unlock()
}

// Set jumps the clock to an absolute timestamp.
func (m *Manual) Set(ts int64) {
	m.mu.Lock()
	m.now = ts
	m.mu.Unlock()
}
