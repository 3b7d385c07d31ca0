// Package maintenance provides a cooperative background sweeper for
// filters. The core filter types age lazily and never reclaim slots on
// their own; expired entries linger until ClearExpired runs and
// saturated filters stay saturated until someone clears them. A Sweeper
// calls those explicit operations on a schedule so applications do not
// each grow their own upkeep goroutine.
//
// Core filters are not safe for concurrent use. Every target that is
// shared with other goroutines must carry a Lock hook; the sweeper runs
// the sweep body inside it and holds no locks of its own while doing so.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/bloomgo"
	"github.com/hupe1980/bloomgo/resource"
)

// ErrSweeperClosed is returned by sweeper operations after Close.
var ErrSweeperClosed = errors.New("maintenance: sweeper is closed")

// DefaultInterval is the sweep interval used when none is configured.
const DefaultInterval = time.Minute

// Expirer is the reaping surface of the decaying filter variants.
type Expirer interface {
	// ClearExpired resets expired slots to empty and returns how many
	// were reaped.
	ClearExpired() uint64
}

// Target describes one filter under sweeper care.
type Target struct {
	// Name identifies the target in logs and results.
	Name string

	// Filter is the filter to maintain. Expiry reaping runs when the
	// filter implements Expirer; threshold clears run on any variant.
	Filter bloomgo.Filter

	// Lock runs fn while the caller's own filter lock is held. Leave
	// nil only when nothing else touches the filter concurrently.
	Lock func(fn func())

	// SaturationThreshold enables ClearIfSaturationExceeds when
	// positive. It is a percentage of occupied slots in (0, 100].
	SaturationThreshold float64
}

// SweeperOptions configures a Sweeper.
type SweeperOptions struct {
	// Interval between background sweep passes.
	Interval time.Duration

	// Controller gates each target sweep behind a worker slot. A nil
	// controller means unlimited.
	Controller *resource.Controller

	// Logger receives per-target sweep events.
	Logger *bloomgo.Logger

	// Metrics receives a RecordSweep call per pass.
	Metrics bloomgo.MetricsCollector
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	// Targets is the number of targets swept.
	Targets int

	// Reaped is the total number of expired slots cleared.
	Reaped uint64

	// Clears is the number of targets whose saturation threshold
	// triggered a full clear.
	Clears int

	// Duration is the wall time of the pass.
	Duration time.Duration
}

// SweeperStats accumulates totals across all passes.
type SweeperStats struct {
	Sweeps uint64
	Reaped uint64
	Clears uint64
}

// Sweeper periodically reaps expired slots and clears saturated
// filters. It does nothing until Start is called; SweepNow runs a
// single pass synchronously and works without Start.
type Sweeper struct {
	interval time.Duration
	rc       *resource.Controller
	logger   *bloomgo.Logger
	metrics  bloomgo.MetricsCollector

	mu      sync.Mutex
	targets []Target

	started atomic.Bool
	closed  atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	sweeps atomic.Uint64
	reaped atomic.Uint64
	clears atomic.Uint64
}

// NewSweeper creates a sweeper with no targets.
func NewSweeper(optFns ...func(o *SweeperOptions)) *Sweeper {
	opts := SweeperOptions{
		Interval: DefaultInterval,
		Logger:   bloomgo.NoopLogger(),
		Metrics:  bloomgo.NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = bloomgo.NoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = bloomgo.NoopMetricsCollector{}
	}

	return &Sweeper{
		interval: opts.Interval,
		rc:       opts.Controller,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		stopCh:   make(chan struct{}),
	}
}

// Register adds a target. Names must be unique within the sweeper.
func (s *Sweeper) Register(t Target) error {
	if t.Name == "" {
		return fmt.Errorf("maintenance: target name is empty")
	}
	if t.Filter == nil {
		return fmt.Errorf("maintenance: target %q has no filter", t.Name)
	}
	if t.SaturationThreshold < 0 || t.SaturationThreshold > 100 {
		return fmt.Errorf("maintenance: target %q threshold %v out of range", t.Name, t.SaturationThreshold)
	}
	if s.closed.Load() {
		return ErrSweeperClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.targets {
		if existing.Name == t.Name {
			return fmt.Errorf("maintenance: target %q already registered", t.Name)
		}
	}
	s.targets = append(s.targets, t)

	return nil
}

// Unregister removes a target by name and reports whether it existed.
func (s *Sweeper) Unregister(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.targets {
		if t.Name == name {
			s.targets = append(s.targets[:i], s.targets[i+1:]...)
			return true
		}
	}
	return false
}

// Start launches the background sweep loop. The loop stops when ctx is
// cancelled or Close is called. Starting twice is an error.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSweeperClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("maintenance: sweeper already started")
	}

	s.wg.Add(1)
	go s.run(ctx)

	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.ErrorContext(ctx, "sweep pass failed", "error", err)
			}
		}
	}
}

// SweepNow runs one synchronous sweep pass over all targets.
func (s *Sweeper) SweepNow(ctx context.Context) (res SweepResult, err error) {
	if s.closed.Load() {
		return res, ErrSweeperClosed
	}

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		s.metrics.RecordSweep(res.Reaped, res.Duration)
	}()

	// Snapshot the target list so sweeps run without holding s.mu.
	s.mu.Lock()
	targets := append([]Target(nil), s.targets...)
	s.mu.Unlock()

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.rc.AcquireWorker(ctx); err != nil {
			return res, err
		}

		reaped, cleared := sweepTarget(t)
		s.rc.ReleaseWorker()

		res.Targets++
		res.Reaped += reaped
		if cleared {
			res.Clears++
			s.clears.Add(1)
			s.logger.InfoContext(ctx, "saturated filter cleared",
				"name", t.Name,
				"threshold_pct", t.SaturationThreshold,
			)
		}
		if reaped > 0 {
			s.logger.LogSweep(ctx, t.Name, reaped)
		}
	}

	s.sweeps.Add(1)
	s.reaped.Add(res.Reaped)

	return res, nil
}

func sweepTarget(t Target) (reaped uint64, cleared bool) {
	body := func() {
		if e, ok := t.Filter.(Expirer); ok {
			reaped = e.ClearExpired()
		}
		if t.SaturationThreshold > 0 {
			cleared = t.Filter.ClearIfSaturationExceeds(t.SaturationThreshold)
		}
	}

	if t.Lock != nil {
		t.Lock(body)
	} else {
		body()
	}
	return reaped, cleared
}

// Stats returns totals accumulated since the sweeper was created.
func (s *Sweeper) Stats() SweeperStats {
	return SweeperStats{
		Sweeps: s.sweeps.Load(),
		Reaped: s.reaped.Load(),
		Clears: s.clears.Load(),
	}
}

// Close stops the background loop and waits for an in-flight pass to
// finish. It is idempotent. Registered filters are not closed; the
// caller owns them.
func (s *Sweeper) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	close(s.stopCh)
	s.wg.Wait()
}
