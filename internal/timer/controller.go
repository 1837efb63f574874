package timer

import (
	"sync"
	"time"

	"github.com/ensayo-paes/practice-service/internal/clock"
)

// State of a phase countdown.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateExpired  State = "expired" // terminal for this controller instance
	StateDisabled State = "disabled"
	StateStopped  State = "stopped"
)

// Controller is a per-phase countdown. It owns one number — seconds
// remaining — and two callbacks. A controller is single-use: once expired
// or stopped it is discarded and a fresh one started for the next phase.
//
// Ticks arrive from the clock's goroutine, so all state is guarded by a
// mutex. A tick already in flight when Pause or Stop is called becomes a
// no-op; last-tick-wins is acceptable at one-second resolution.
type Controller struct {
	mu sync.Mutex

	clk      clock.Clock
	onTick   func(secondsRemaining int)
	onExpire func()

	state        State
	remaining    int
	expireFired  bool
	stopSchedule func()
}

func New(clk clock.Clock, onTick func(int), onExpire func()) *Controller {
	return &Controller{
		clk:      clk,
		onTick:   onTick,
		onExpire: onExpire,
		state:    StateIdle,
	}
}

// Start begins a countdown of durationSeconds. A duration of 0 means
// untimed: the controller goes straight to StateDisabled and never ticks
// or expires.
func (c *Controller) Start(durationSeconds int) {
	c.StartWithRemaining(durationSeconds)
}

// StartWithRemaining begins counting from an arbitrary remaining value.
// Used when restoring a snapshot, so a resumed phase continues from where
// it left off instead of resetting to the full duration.
func (c *Controller) StartWithRemaining(remainingSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return
	}

	if remainingSeconds <= 0 {
		c.state = StateDisabled
		c.remaining = 0
		return
	}

	c.remaining = remainingSeconds
	c.state = StateRunning
	c.stopSchedule = c.clk.Schedule(time.Second, c.tick)
}

// Pause stops scheduling further ticks without altering the remaining
// seconds. No-op unless running.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return
	}

	c.cancelScheduleLocked()
	c.state = StatePaused
}

// Resume continues the countdown from exactly the paused value.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused {
		return
	}

	c.state = StateRunning
	c.stopSchedule = c.clk.Schedule(time.Second, c.tick)
}

// Stop invalidates the controller. Idempotent; must be called before a
// controller is discarded or replaced so an orphaned tick cannot mutate a
// session that has already moved on.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped {
		return
	}

	c.cancelScheduleLocked()
	c.state = StateStopped
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Controller) tick() {
	c.mu.Lock()

	// Stale tick after Pause/Stop/expiry: drop it.
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}

	c.remaining--
	remaining := c.remaining

	if remaining > 0 {
		onTick := c.onTick
		c.mu.Unlock()
		if onTick != nil {
			onTick(remaining)
		}
		return
	}

	c.remaining = 0
	c.cancelScheduleLocked()
	c.state = StateExpired

	var fire bool
	if !c.expireFired {
		c.expireFired = true
		fire = true
	}
	onTick, onExpire := c.onTick, c.onExpire
	c.mu.Unlock()

	// Callbacks run outside the lock: the expiry handler typically tears
	// this controller down and starts the next one.
	if onTick != nil {
		onTick(0)
	}
	if fire && onExpire != nil {
		onExpire()
	}
}

func (c *Controller) cancelScheduleLocked() {
	if c.stopSchedule != nil {
		c.stopSchedule()
		c.stopSchedule = nil
	}
}
