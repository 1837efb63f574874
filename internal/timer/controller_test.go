package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/ensayo-paes/practice-service/internal/clock"
)

type recorder struct {
	mu      sync.Mutex
	ticks   []int
	expires int
}

func (r *recorder) onTick(remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, remaining)
}

func (r *recorder) onExpire() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expires++
}

func (r *recorder) expireCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expires
}

func (r *recorder) tickCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

func newTestController(t *testing.T) (*clock.ManualClock, *recorder, *Controller) {
	t.Helper()
	clk := clock.NewManualClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	rec := &recorder{}
	return clk, rec, New(clk, rec.onTick, rec.onExpire)
}

func TestControllerCountdown(t *testing.T) {
	clk, rec, c := newTestController(t)

	c.Start(3)
	if got := c.State(); got != StateRunning {
		t.Fatalf("expected running state, got %s", got)
	}

	clk.Advance(2)
	if got := c.Remaining(); got != 1 {
		t.Errorf("expected 1 second remaining, got %d", got)
	}

	clk.Advance(1)
	if got := c.State(); got != StateExpired {
		t.Errorf("expected expired state, got %s", got)
	}
	if got := rec.expireCount(); got != 1 {
		t.Errorf("expected exactly one expiry, got %d", got)
	}

	rec.mu.Lock()
	wantTicks := []int{2, 1, 0}
	if len(rec.ticks) != len(wantTicks) {
		t.Fatalf("expected ticks %v, got %v", wantTicks, rec.ticks)
	}
	for i, want := range wantTicks {
		if rec.ticks[i] != want {
			t.Errorf("tick %d: expected %d, got %d", i, want, rec.ticks[i])
		}
	}
	rec.mu.Unlock()
}

func TestControllerExpireFiresExactlyOnce(t *testing.T) {
	clk, rec, c := newTestController(t)

	c.Start(2)
	// Advance well past zero: the schedule is cancelled at expiry, and the
	// expireFired latch guards against any straggler.
	clk.Advance(10)

	if got := rec.expireCount(); got != 1 {
		t.Errorf("expected exactly one expiry, got %d", got)
	}
}

func TestControllerUntimed(t *testing.T) {
	clk, rec, c := newTestController(t)

	c.Start(0)
	if got := c.State(); got != StateDisabled {
		t.Fatalf("expected disabled state, got %s", got)
	}

	clk.Advance(100)
	if got := rec.tickCount(); got != 0 {
		t.Errorf("disabled controller ticked %d times", got)
	}
	if got := rec.expireCount(); got != 0 {
		t.Errorf("disabled controller expired %d times", got)
	}
}

func TestControllerPauseResume(t *testing.T) {
	clk, rec, c := newTestController(t)

	c.Start(10)
	clk.Advance(4)
	if got := c.Remaining(); got != 6 {
		t.Fatalf("expected 6 remaining before pause, got %d", got)
	}

	c.Pause()
	if got := c.State(); got != StatePaused {
		t.Fatalf("expected paused state, got %s", got)
	}

	// Time passing while paused must not touch the countdown.
	clk.Advance(30)
	if got := c.Remaining(); got != 6 {
		t.Errorf("paused countdown moved to %d", got)
	}

	c.Resume()
	clk.Advance(6)
	if got := c.State(); got != StateExpired {
		t.Errorf("expected expired after resume, got %s", got)
	}
	if got := rec.expireCount(); got != 1 {
		t.Errorf("expected exactly one expiry, got %d", got)
	}
}

func TestControllerStop(t *testing.T) {
	clk, rec, c := newTestController(t)

	c.Start(5)
	clk.Advance(2)
	c.Stop()
	c.Stop() // idempotent

	clk.Advance(10)
	if got := rec.expireCount(); got != 0 {
		t.Errorf("stopped controller expired %d times", got)
	}
	if got := c.State(); got != StateStopped {
		t.Errorf("expected stopped state, got %s", got)
	}
}

func TestControllerStartWithRemaining(t *testing.T) {
	clk, rec, c := newTestController(t)

	c.StartWithRemaining(4)
	clk.Advance(4)

	if got := rec.expireCount(); got != 1 {
		t.Errorf("expected one expiry after restored countdown, got %d", got)
	}
}

func TestControllerStartTwiceIgnored(t *testing.T) {
	clk, _, c := newTestController(t)

	c.Start(5)
	clk.Advance(2)
	c.Start(100) // second start must not reset the countdown

	if got := c.Remaining(); got != 3 {
		t.Errorf("expected 3 remaining, got %d", got)
	}
}
