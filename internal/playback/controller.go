// Package playback drives a frame index over a normalized GPS log at an
// adjustable pace.
package playback

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"route-replay/internal/clock"
	"route-replay/internal/track"
)

// BaseInterval is the tick period at a speed multiplier of 1.
const BaseInterval = time.Second

// Controller is a timer-driven state machine over Idle, Playing, Paused and
// Ended. All transitions on an empty or missing log are no-ops.
type Controller struct {
	clock clock.Clock

	// emitMu serializes transitions together with the sink calls they cause,
	// so sinks observe snapshots in commit order.
	emitMu sync.Mutex

	mu     sync.Mutex
	log    track.NormalizedLog
	stops  []track.Stop
	index  int
	state  State
	speed  float64
	timer  clock.Timer
	gen    uint64
	closed bool

	sinks  map[int]Sink
	sinkID int
}

type Option func(*Controller)

// WithClock injects the scheduler used for ticks.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

func NewController(opts ...Option) *Controller {
	c := &Controller{
		clock: clock.RealClock{},
		speed: 1,
		sinks: make(map[int]Sink),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Subscribe registers a sink and returns a function removing it.
func (c *Controller) Subscribe(s Sink) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinkID++
	id := c.sinkID
	c.sinks[id] = s
	return func() {
		c.mu.Lock()
		delete(c.sinks, id)
		c.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Load replaces the log and resets to Idle at index 0 with speed 1, whatever
// the current state. Any pending tick is cancelled.
func (c *Controller) Load(log track.NormalizedLog, stops []track.Stop) {
	_ = c.LoadAt(log, stops, 0)
}

// LoadAt is Load positioned at index start. An out-of-range start is
// rejected and the current log stays loaded.
func (c *Controller) LoadAt(log track.NormalizedLog, stops []track.Stop, start int) error {
	if start < 0 || (start > 0 && start >= len(log)) {
		return fmt.Errorf("start index %d outside log of %d points: %w", start, len(log), ErrInvalidArgument)
	}
	c.transition(func() bool {
		c.cancelLocked()
		c.log = log
		c.stops = stops
		c.index = start
		c.speed = 1
		c.state = Idle
		if start > 0 {
			c.state = Paused
		}
		return true
	})
	return nil
}

// Play starts ticking. It does nothing when already playing, ended, or at
// the last sample.
func (c *Controller) Play() {
	c.transition(func() bool {
		if !c.loadedLocked() || c.state == Playing || c.state == Ended || c.index >= len(c.log)-1 {
			return false
		}
		c.state = Playing
		c.scheduleLocked()
		return true
	})
}

func (c *Controller) Pause() {
	c.transition(func() bool {
		if !c.loadedLocked() || c.state == Paused || c.state == Ended {
			return false
		}
		c.cancelLocked()
		c.state = Paused
		return true
	})
}

// Reset returns to Idle at index 0, keeping the speed multiplier.
func (c *Controller) Reset() {
	c.transition(func() bool {
		if !c.loadedLocked() {
			return false
		}
		c.cancelLocked()
		c.index = 0
		c.state = Idle
		return true
	})
}

func (c *Controller) SkipToStart() {
	c.seek(func() int { return 0 })
}

func (c *Controller) SkipToEnd() {
	c.seek(func() int { return len(c.log) - 1 })
}

// Seek jumps to index i and pauses.
func (c *Controller) Seek(i int) error {
	c.mu.Lock()
	n := len(c.log)
	c.mu.Unlock()
	if n > 0 && (i < 0 || i >= n) {
		return fmt.Errorf("seek index %d outside log of %d points: %w", i, n, ErrInvalidArgument)
	}
	c.seek(func() int {
		if i >= len(c.log) {
			return len(c.log) - 1
		}
		return i
	})
	return nil
}

func (c *Controller) seek(target func() int) {
	c.transition(func() bool {
		if !c.loadedLocked() {
			return false
		}
		c.cancelLocked()
		c.index = target()
		c.state = Paused
		return true
	})
}

// SetSpeedMultiplier changes the tick period to BaseInterval/x. While
// playing, the pending tick is rescheduled at the new period. Multipliers so
// small that the period no longer fits a time.Duration are rejected.
func (c *Controller) SetSpeedMultiplier(x float64) error {
	if !(x > 0) || math.IsInf(x, 0) {
		return fmt.Errorf("speed multiplier %v must be positive: %w", x, ErrInvalidArgument)
	}
	if float64(BaseInterval)/x >= math.MaxInt64 {
		return fmt.Errorf("speed multiplier %v too small: %w", x, ErrInvalidArgument)
	}
	c.transition(func() bool {
		if !c.loadedLocked() || x == c.speed {
			return false
		}
		c.speed = x
		if c.state == Playing {
			c.scheduleLocked()
		}
		return true
	})
	return nil
}

// Close cancels any pending tick and makes every later transition a no-op.
func (c *Controller) Close() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	if c.state == Playing {
		c.state = Paused
	}
	c.closed = true
}

// transition applies fn under the lock and, if it reports a change, emits the
// resulting snapshot to all sinks.
func (c *Controller) transition(fn func() bool) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.closed || !fn() {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	sinks := c.sinksLocked()
	c.mu.Unlock()

	for _, s := range sinks {
		s.Sync(snap)
	}
}

func (c *Controller) tick(gen uint64) {
	c.transition(func() bool {
		if gen != c.gen || c.state != Playing {
			return false
		}
		c.timer = nil
		c.index++
		if c.index >= len(c.log)-1 {
			c.index = len(c.log) - 1
			c.state = Ended
			return true
		}
		c.scheduleLocked()
		return true
	})
}

func (c *Controller) scheduleLocked() {
	c.cancelLocked()
	gen := c.gen
	period := time.Duration(float64(BaseInterval) / c.speed)
	c.timer = c.clock.AfterFunc(period, func() { c.tick(gen) })
}

// cancelLocked stops the pending tick. Bumping gen also invalidates a tick
// whose timer already fired but has not yet taken the lock.
func (c *Controller) cancelLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) loadedLocked() bool { return len(c.log) > 0 }

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Path:            c.log,
		Stops:           c.stops,
		Index:           c.index,
		State:           c.state,
		SpeedMultiplier: c.speed,
	}
}

func (c *Controller) sinksLocked() []Sink {
	ids := make([]int, 0, len(c.sinks))
	for id := range c.sinks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Sink, len(ids))
	for i, id := range ids {
		out[i] = c.sinks[id]
	}
	return out
}
