package clock

import (
	"sync"
	"time"
)

// Clock is the injectable time source for the session engine. Everything
// that counts seconds goes through it so tests can drive time manually.
type Clock interface {
	Now() time.Time

	// Schedule invokes fn once per interval until the returned stop
	// function is called. Stop is idempotent.
	Schedule(interval time.Duration, fn func()) (stop func())
}

// WallClock is the production clock backed by time.Ticker.
type WallClock struct{}

func NewWallClock() *WallClock {
	return &WallClock{}
}

func (WallClock) Now() time.Time {
	return time.Now()
}

func (WallClock) Schedule(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// ManualClock is a deterministic clock for tests. Advance fires every
// scheduled callback once per simulated second, synchronously.
type ManualClock struct {
	mu        sync.Mutex
	now       time.Time
	callbacks map[int]func()
	nextID    int
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{
		now:       start,
		callbacks: make(map[int]func()),
	}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Schedule(interval time.Duration, fn func()) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.callbacks[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.callbacks, id)
		c.mu.Unlock()
	}
}

// Advance moves the clock forward by the given number of seconds, firing
// active callbacks once per second. Callbacks run outside the lock so a
// callback may itself schedule or stop.
func (c *ManualClock) Advance(seconds int) {
	for i := 0; i < seconds; i++ {
		c.mu.Lock()
		c.now = c.now.Add(time.Second)
		fns := make([]func(), 0, len(c.callbacks))
		for _, fn := range c.callbacks {
			fns = append(fns, fn)
		}
		c.mu.Unlock()

		for _, fn := range fns {
			fn()
		}
	}
}

// SetNow jumps the clock without firing callbacks. Used by staleness tests.
func (c *ManualClock) SetNow(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
