package maintenance

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/bloomgo"
)

// fakeClock is a time source the tests advance by hand. It is atomic so
// the background sweep loop can read it while a test advances it.
type fakeClock struct {
	unix atomic.Int64
}

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.unix.Store(1_700_000_000)
	return c
}

func (c *fakeClock) Now() time.Time     { return time.Unix(c.unix.Load(), 0) }
func (c *fakeClock) Advance(secs int64) { c.unix.Add(secs) }

func newExpiredDecayingFilter(t *testing.T, clock *fakeClock, elements ...string) *bloomgo.DecayingFilter {
	t.Helper()

	f, err := bloomgo.NewDecayingFilter(100, 0.01, 60, bloomgo.WithTimeSource(clock.Now))
	if err != nil {
		t.Fatalf("NewDecayingFilter: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	for _, e := range elements {
		f.AddString(e)
	}
	clock.Advance(61)

	return f
}

func TestSweeperReapsExpired(t *testing.T) {
	clock := newFakeClock()
	f := newExpiredDecayingFilter(t, clock, "alpha", "beta")

	s := NewSweeper()
	defer s.Close()

	if err := s.Register(Target{Name: "sessions", Filter: f}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := s.SweepNow(context.Background())
	if err != nil {
		t.Fatalf("SweepNow: %v", err)
	}
	if res.Targets != 1 {
		t.Errorf("targets swept = %d, want 1", res.Targets)
	}
	if res.Reaped == 0 {
		t.Error("reaped = 0, want > 0")
	}
	if f.SaturationCount() != 0 {
		t.Errorf("occupied slots after sweep = %d, want 0", f.SaturationCount())
	}

	// A second pass finds nothing left to reap.
	res, err = s.SweepNow(context.Background())
	if err != nil {
		t.Fatalf("SweepNow: %v", err)
	}
	if res.Reaped != 0 {
		t.Errorf("second pass reaped = %d, want 0", res.Reaped)
	}

	stats := s.Stats()
	if stats.Sweeps != 2 {
		t.Errorf("stats sweeps = %d, want 2", stats.Sweeps)
	}
}

func TestSweeperThresholdClear(t *testing.T) {
	f, err := bloomgo.NewBloomFilter(10, 0.01)
	if err != nil {
		t.Fatalf("NewBloomFilter: %v", err)
	}
	defer f.Close()

	for _, e := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		f.AddString(e)
	}
	if f.Saturation() <= 5 {
		t.Fatalf("saturation = %v, too low to exercise the threshold", f.Saturation())
	}

	s := NewSweeper()
	defer s.Close()

	if err := s.Register(Target{Name: "hot", Filter: f, SaturationThreshold: 5}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := s.SweepNow(context.Background())
	if err != nil {
		t.Fatalf("SweepNow: %v", err)
	}
	if res.Clears != 1 {
		t.Errorf("clears = %d, want 1", res.Clears)
	}
	if f.SaturationCount() != 0 {
		t.Errorf("occupied slots after clear = %d, want 0", f.SaturationCount())
	}
}

func TestSweeperRunsBodyUnderLock(t *testing.T) {
	clock := newFakeClock()
	f := newExpiredDecayingFilter(t, clock, "alpha")

	var mu sync.Mutex
	var lockCalls atomic.Int32

	s := NewSweeper()
	defer s.Close()

	err := s.Register(Target{
		Name:   "locked",
		Filter: f,
		Lock: func(fn func()) {
			lockCalls.Add(1)
			mu.Lock()
			defer mu.Unlock()
			fn()
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := s.SweepNow(context.Background())
	if err != nil {
		t.Fatalf("SweepNow: %v", err)
	}
	if res.Reaped == 0 {
		t.Error("reaped = 0, want > 0")
	}
	if got := lockCalls.Load(); got != 1 {
		t.Errorf("lock hook calls = %d, want 1", got)
	}
}

func TestSweeperBackgroundLoop(t *testing.T) {
	clock := newFakeClock()
	f := newExpiredDecayingFilter(t, clock, "alpha", "beta", "gamma")

	var mu sync.Mutex

	s := NewSweeper(func(o *SweeperOptions) {
		o.Interval = 5 * time.Millisecond
	})

	err := s.Register(Target{
		Name:   "sessions",
		Filter: f,
		Lock: func(fn func()) {
			mu.Lock()
			defer mu.Unlock()
			fn()
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start: expected error")
	}

	deadline := time.After(2 * time.Second)
	for s.Stats().Reaped == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for background sweep")
		case <-time.After(time.Millisecond):
		}
	}

	s.Close()
	s.Close() // idempotent

	mu.Lock()
	occupied := f.SaturationCount()
	mu.Unlock()
	if occupied != 0 {
		t.Errorf("occupied slots after background sweep = %d, want 0", occupied)
	}
}

func TestSweeperContextCancelled(t *testing.T) {
	clock := newFakeClock()
	f := newExpiredDecayingFilter(t, clock, "alpha")

	s := NewSweeper()
	defer s.Close()

	if err := s.Register(Target{Name: "sessions", Filter: f}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.SweepNow(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("SweepNow error = %v, want %v", err, context.Canceled)
	}
}

func TestSweeperRegisterValidation(t *testing.T) {
	clock := newFakeClock()
	f := newExpiredDecayingFilter(t, clock)

	s := NewSweeper()
	defer s.Close()

	if err := s.Register(Target{Name: "", Filter: f}); err == nil {
		t.Error("empty name: expected error")
	}
	if err := s.Register(Target{Name: "x", Filter: nil}); err == nil {
		t.Error("nil filter: expected error")
	}
	if err := s.Register(Target{Name: "x", Filter: f, SaturationThreshold: 101}); err == nil {
		t.Error("threshold out of range: expected error")
	}

	if err := s.Register(Target{Name: "x", Filter: f}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register(Target{Name: "x", Filter: f}); err == nil {
		t.Error("duplicate name: expected error")
	}
}

func TestSweeperUnregister(t *testing.T) {
	clock := newFakeClock()
	f := newExpiredDecayingFilter(t, clock, "alpha")

	s := NewSweeper()
	defer s.Close()

	if err := s.Register(Target{Name: "gone", Filter: f}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !s.Unregister("gone") {
		t.Error("Unregister = false, want true")
	}
	if s.Unregister("gone") {
		t.Error("second Unregister = true, want false")
	}

	res, err := s.SweepNow(context.Background())
	if err != nil {
		t.Fatalf("SweepNow: %v", err)
	}
	if res.Targets != 0 {
		t.Errorf("targets swept = %d, want 0", res.Targets)
	}
}

func TestSweeperClosed(t *testing.T) {
	clock := newFakeClock()
	f := newExpiredDecayingFilter(t, clock)

	s := NewSweeper()
	s.Close()

	if err := s.Register(Target{Name: "late", Filter: f}); !errors.Is(err, ErrSweeperClosed) {
		t.Errorf("Register error = %v, want %v", err, ErrSweeperClosed)
	}
	if _, err := s.SweepNow(context.Background()); !errors.Is(err, ErrSweeperClosed) {
		t.Errorf("SweepNow error = %v, want %v", err, ErrSweeperClosed)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrSweeperClosed) {
		t.Errorf("Start error = %v, want %v", err, ErrSweeperClosed)
	}
}

// TestSweeperNoGoroutineLeaks verifies the background loop terminates when
// the sweeper is closed. Close waits for the loop, so any residue here is
// runtime noise; a small allowance absorbs it.
func TestSweeperNoGoroutineLeaks(t *testing.T) {
	const maxLeaks = 2

	runtime.GC()
	time.Sleep(50 * time.Millisecond)

	initial := runtime.NumGoroutine()

	clock := newFakeClock()
	f := newExpiredDecayingFilter(t, clock, "alpha", "beta")

	s := NewSweeper(func(o *SweeperOptions) {
		o.Interval = 5 * time.Millisecond
	})
	if err := s.Register(Target{Name: "sessions", Filter: f}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	s.Close()

	deadline := time.Now().Add(2 * time.Second)
	leaked := 0
	for {
		runtime.GC()
		time.Sleep(50 * time.Millisecond)

		leaked = runtime.NumGoroutine() - initial
		if leaked <= maxLeaks || time.Now().After(deadline) {
			break
		}
	}

	if leaked > maxLeaks {
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		t.Errorf("goroutine leak: started with %d, %d over after close\n%s", initial, leaked, buf[:n])
	}
}
