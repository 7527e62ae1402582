package circuitbreaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock lets tests move past the cool-down without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New("graph", threshold, cooldown)
	b.now = clock.Now
	return b, clock
}

func TestBreaker_AllowWhenClosed(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second)
	if !b.Allow() {
		t.Fatal("expected closed circuit to allow")
	}
	if b.Name() != "graph" {
		t.Errorf("expected name graph, got %q", b.Name())
	}
}

func TestBreaker_Defaults(t *testing.T) {
	b := New("kafka", 0, 0)
	if b.threshold != DefaultThreshold || b.cooldown != DefaultCooldown {
		t.Errorf("expected defaults, got threshold=%d cooldown=%v", b.threshold, b.cooldown)
	}
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Second)

	b.RecordFailure()
	b.RecordFailure()
	if !b.Allow() {
		t.Fatal("should still allow before threshold")
	}

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("should be open after 3 failures")
	}
	if b.State() != StateOpen {
		t.Fatalf("expected StateOpen, got %v", b.State())
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(2, time.Second)

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Fatalf("non-consecutive failures should not trip, got %v", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second)
	b.RecordFailure()

	clock.Advance(999 * time.Millisecond)
	if b.Allow() {
		t.Fatal("should stay open during cool-down")
	}

	clock.Advance(time.Millisecond)
	if !b.Allow() {
		t.Fatal("should admit a probe after cool-down")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected StateHalfOpen, got %v", b.State())
	}
	if b.Allow() {
		t.Fatal("only one probe may be in flight")
	}

	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("successful probe should close, got %v", b.State())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second)
	b.RecordFailure()
	clock.Advance(time.Second)

	if !b.Allow() {
		t.Fatal("expected probe")
	}
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("failed probe should reopen, got %v", b.State())
	}
	if b.Allow() {
		t.Fatal("cool-down restarts after a failed probe")
	}
}

func TestBreaker_Execute(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	boom := errors.New("neo4j unavailable")

	var calls atomic.Int32
	fail := func() error { calls.Add(1); return boom }

	if err := b.Execute(fail); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := b.Execute(fail); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := b.Execute(fail); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("open circuit must not call fn, got %d calls", calls.Load())
	}
}

func TestBreaker_ConcurrentAccess(t *testing.T) {
	b, _ := newTestBreaker(1000, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if (i+j)%2 == 0 {
					b.RecordFailure()
				} else {
					b.RecordSuccess()
				}
				_ = b.Allow()
			}
		}(i)
	}
	wg.Wait()
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half_open",
		State(9):      "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}
