package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_AfterFunc(t *testing.T) {
	var c RealClock
	done := make(chan struct{})
	c.AfterFunc(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
}

func TestRealClock_Stop(t *testing.T) {
	var c RealClock
	var fired atomic.Bool
	tm := c.AfterFunc(50*time.Millisecond, func() { fired.Store(true) })
	assert.True(t, tm.Stop())
	time.Sleep(80 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestMockClock_Now(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), c.Now())
}

func TestMockClock_FiresInOrder(t *testing.T) {
	c := NewMockClock(time.Time{})
	var order []int
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	c.AfterFunc(time.Second, func() { order = append(order, 1) })
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, []int{1}, order)
	assert.Equal(t, 2, c.Pending())

	c.Advance(2 * time.Second)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, c.Pending())
}

func TestMockClock_ChainedTimers(t *testing.T) {
	c := NewMockClock(time.Time{})
	var fires []time.Time
	var schedule func()
	schedule = func() {
		c.AfterFunc(500*time.Millisecond, func() {
			fires = append(fires, c.Now())
			if len(fires) < 5 {
				schedule()
			}
		})
	}
	schedule()

	c.Advance(10 * time.Second)
	assert.Len(t, fires, 5)
	for i, f := range fires {
		assert.Equal(t, time.Duration(i+1)*500*time.Millisecond, f.Sub(time.Time{}))
	}
}

func TestMockClock_Stop(t *testing.T) {
	c := NewMockClock(time.Time{})
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	c.Advance(2 * time.Second)
	assert.False(t, fired)
}
