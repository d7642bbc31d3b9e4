// Package ticker turns wall-clock time into fixed-size craft work budgets.
package ticker

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// DefaultInterval is the craft tick interval.
const DefaultInterval = time.Second

// DefaultFrameInterval is how often the driver samples the clock.
const DefaultFrameInterval = 100 * time.Millisecond

// Timer accumulates elapsed time and fires once per Interval.
type Timer struct {
	Interval time.Duration
	elapsed  time.Duration
}

// NewTimer creates a Timer; a non-positive interval uses DefaultInterval.
func NewTimer(interval time.Duration) *Timer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Timer{Interval: interval}
}

// Tick adds elapsed and reports whether the timer fired.
// Firing resets the accumulated time to zero; any excess is discarded.
func (t *Timer) Tick(elapsed time.Duration) bool {
	if elapsed > 0 {
		t.elapsed += elapsed
	}
	if t.elapsed >= t.Interval {
		t.elapsed = 0
		return true
	}
	return false
}

// Reset clears the accumulated time.
func (t *Timer) Reset() {
	t.elapsed = 0
}

// Elapsed returns the time accumulated since the last fire.
func (t *Timer) Elapsed() time.Duration {
	return t.elapsed
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

// Now returns the current time using the system clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Advancer is called once per fired tick with the tick number and work budget.
type Advancer interface {
	AdvanceAll(ctx context.Context, tick uint64, budget time.Duration)
}

// Driver feeds clock deltas into a Timer and advances craft queues when it fires.
type Driver struct {
	timer  *Timer
	frame  time.Duration
	clock  Clock
	target Advancer
	logger *slog.Logger

	last time.Time
	tick uint64
}

// Options configure a Driver.
type Options struct {
	Interval      time.Duration
	FrameInterval time.Duration
	Clock         Clock
	Logger        *slog.Logger
}

// NewDriver creates a Driver that advances target.
func NewDriver(target Advancer, opts Options) *Driver {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Driver{
		timer:  NewTimer(opts.Interval),
		frame:  opts.FrameInterval,
		clock:  opts.Clock,
		target: target,
		logger: opts.Logger,
	}
}

// Interval returns the work budget granted per fire.
func (d *Driver) Interval() time.Duration {
	return d.timer.Interval
}

// Ticks returns how many times the driver has fired.
func (d *Driver) Ticks() uint64 {
	return d.tick
}

// Step feeds one frame delta into the timer and advances queues if it fires.
// The budget is always one full interval, independent of delta.
func (d *Driver) Step(ctx context.Context, delta time.Duration) bool {
	if !d.timer.Tick(delta) {
		return false
	}
	d.tick++
	d.target.AdvanceAll(ctx, d.tick, d.timer.Interval)
	return true
}

// Run samples the clock every frame until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.frame)
	defer ticker.Stop()

	d.last = d.clock.Now()
	d.timer.Reset()
	d.logger.Info("tick driver started", "interval", d.timer.Interval, "frame", d.frame)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("tick driver stopped", "ticks", d.tick)
			return ctx.Err()
		case <-ticker.C:
			now := d.clock.Now()
			delta := now.Sub(d.last)
			d.last = now
			d.Step(ctx, delta)
		}
	}
}
