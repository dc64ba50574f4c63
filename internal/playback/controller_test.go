package playback

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-replay/internal/clock"
	"route-replay/internal/track"
)

func testLog(n int) track.NormalizedLog {
	log := make(track.NormalizedLog, n)
	for i := range log {
		log[i] = track.GpsPoint{TimestampMs: int64(i) * 1000, Lat: 52 + float64(i)*0.001, Lng: 4, SpeedKmh: 30}
	}
	return log
}

func newTestController(t *testing.T) (*Controller, *clock.MockClock, *[]Snapshot) {
	t.Helper()
	mc := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewController(WithClock(mc))
	var got []Snapshot
	c.Subscribe(SinkFunc(func(s Snapshot) { got = append(got, s) }))
	return c, mc, &got
}

func TestPlayUntilEnded(t *testing.T) {
	c, mc, got := newTestController(t)
	c.Load(testLog(10), nil)
	require.NoError(t, c.SetSpeedMultiplier(2))

	c.Play()
	assert.Equal(t, Playing, c.Snapshot().State)

	mc.Advance(499 * time.Millisecond)
	assert.Equal(t, 0, c.Snapshot().Index)
	mc.Advance(time.Millisecond)
	assert.Equal(t, 1, c.Snapshot().Index)

	mc.Advance(3999 * time.Millisecond)
	assert.Equal(t, 8, c.Snapshot().Index)
	assert.Equal(t, Playing, c.Snapshot().State)

	mc.Advance(time.Millisecond)
	snap := c.Snapshot()
	assert.Equal(t, 9, snap.Index)
	assert.Equal(t, Ended, snap.State)
	assert.Equal(t, 0, mc.Pending(), "no tick scheduled after Ended")

	ticks := 0
	for _, s := range *got {
		if s.State == Playing || s.State == Ended {
			ticks++
		}
	}
	// one Play emission plus nine ticks
	assert.Equal(t, 10, ticks)

	before := len(*got)
	c.Play()
	mc.Advance(10 * time.Second)
	assert.Equal(t, Ended, c.Snapshot().State)
	assert.Len(t, *got, before, "play after Ended is a no-op")
}

func TestIndexCallback(t *testing.T) {
	mc := clock.NewMockClock(time.Time{})
	c := NewController(WithClock(mc))
	var indices []int
	c.Subscribe(IndexFunc(func(i int) { indices = append(indices, i) }))

	c.Load(testLog(4), nil)
	c.Play()
	mc.Advance(5 * time.Second)

	assert.Equal(t, []int{0, 0, 1, 2, 3}, indices)
}

func TestPauseResume(t *testing.T) {
	c, mc, _ := newTestController(t)
	c.Load(testLog(10), nil)
	c.Play()
	mc.Advance(2 * time.Second)
	c.Pause()
	assert.Equal(t, Paused, c.Snapshot().State)
	assert.Equal(t, 0, mc.Pending())

	mc.Advance(5 * time.Second)
	assert.Equal(t, 2, c.Snapshot().Index)

	c.Play()
	mc.Advance(time.Second)
	assert.Equal(t, 3, c.Snapshot().Index)
}

func TestReset(t *testing.T) {
	c, mc, _ := newTestController(t)
	c.Load(testLog(10), nil)
	require.NoError(t, c.SetSpeedMultiplier(4))
	c.Play()
	mc.Advance(time.Second)
	require.Equal(t, 4, c.Snapshot().Index)

	c.Reset()
	snap := c.Snapshot()
	assert.Equal(t, 0, snap.Index)
	assert.False(t, snap.IsPlaying())
	assert.Equal(t, Idle, snap.State)
	assert.Equal(t, 4.0, snap.SpeedMultiplier)
	assert.Equal(t, 0, mc.Pending())
}

func TestLoadResetsState(t *testing.T) {
	c, mc, _ := newTestController(t)
	c.Load(testLog(10), nil)
	require.NoError(t, c.SetSpeedMultiplier(3))
	c.Play()
	mc.Advance(time.Second)

	stops := []track.Stop{{StartIndex: 1, EndIndex: 2}}
	c.Load(testLog(5), stops)
	snap := c.Snapshot()
	assert.Equal(t, Snapshot{Path: testLog(5), Stops: stops, Index: 0, State: Idle, SpeedMultiplier: 1}, snap)
	assert.Equal(t, 0, mc.Pending(), "reload cancels the pending tick")

	mc.Advance(time.Minute)
	assert.Equal(t, 0, c.Snapshot().Index)
}

func TestRapidReloadSingleTickLoop(t *testing.T) {
	c, mc, _ := newTestController(t)
	for i := 0; i < 20; i++ {
		c.Load(testLog(50), nil)
		c.Play()
	}
	assert.Equal(t, 1, mc.Pending())

	mc.Advance(3 * time.Second)
	assert.Equal(t, 3, c.Snapshot().Index)
}

func TestSkips(t *testing.T) {
	c, mc, _ := newTestController(t)
	c.Load(testLog(10), nil)
	c.Play()
	mc.Advance(3 * time.Second)

	c.SkipToEnd()
	snap := c.Snapshot()
	assert.Equal(t, 9, snap.Index)
	assert.Equal(t, Paused, snap.State)
	assert.Equal(t, 0, mc.Pending())

	c.Play()
	assert.Equal(t, Paused, c.Snapshot().State, "nothing left to play")

	c.SkipToStart()
	snap = c.Snapshot()
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, Paused, snap.State)

	c.Play()
	mc.Advance(time.Second)
	assert.Equal(t, 1, c.Snapshot().Index)
}

func TestSeek(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Load(testLog(10), nil)

	require.NoError(t, c.Seek(6))
	assert.Equal(t, 6, c.Snapshot().Index)
	assert.Equal(t, Paused, c.Snapshot().State)

	for _, i := range []int{-1, 10, 100} {
		err := c.Seek(i)
		assert.True(t, errors.Is(err, ErrInvalidArgument), "seek %d", i)
		assert.Equal(t, 6, c.Snapshot().Index)
	}
}

func TestLoadAt(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Load(testLog(3), nil)

	err := c.LoadAt(testLog(10), nil, 10)
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Len(t, c.Snapshot().Path, 3, "rejected load keeps the previous log")

	require.NoError(t, c.LoadAt(testLog(10), nil, 4))
	snap := c.Snapshot()
	assert.Equal(t, 4, snap.Index)
	assert.Equal(t, Paused, snap.State)

	require.Error(t, c.LoadAt(testLog(10), nil, -1))
}

func TestSpeedChangeReschedules(t *testing.T) {
	c, mc, _ := newTestController(t)
	c.Load(testLog(20), nil)
	c.Play()

	mc.Advance(900 * time.Millisecond)
	require.NoError(t, c.SetSpeedMultiplier(10))
	assert.Equal(t, Playing, c.Snapshot().State)
	assert.Equal(t, 1, mc.Pending())

	// the next tick is 100ms after the change, not at the old 1s mark
	mc.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, c.Snapshot().Index)
	mc.Advance(500 * time.Millisecond)
	assert.Equal(t, 6, c.Snapshot().Index)
}

func TestSpeedRejected(t *testing.T) {
	c, _, got := newTestController(t)
	c.Load(testLog(5), nil)
	require.NoError(t, c.SetSpeedMultiplier(2))
	n := len(*got)

	for _, x := range []float64{0, -1, 1e-10, 1e-300} {
		err := c.SetSpeedMultiplier(x)
		assert.ErrorIs(t, err, ErrInvalidArgument, "%v", x)
	}
	assert.Equal(t, 2.0, c.Snapshot().SpeedMultiplier)
	assert.Len(t, *got, n)
}

func TestTinySpeedKeepsPace(t *testing.T) {
	c, mc, _ := newTestController(t)
	c.Load(testLog(10), nil)
	require.Error(t, c.SetSpeedMultiplier(1e-10))
	require.NoError(t, c.SetSpeedMultiplier(0.01))

	c.Play()
	mc.Advance(time.Millisecond)
	snap := c.Snapshot()
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, Playing, snap.State)

	mc.Advance(100 * time.Second)
	assert.Equal(t, 1, c.Snapshot().Index)
}

func TestNoLogIsNoop(t *testing.T) {
	c, mc, got := newTestController(t)

	c.Play()
	c.Pause()
	c.Reset()
	c.SkipToStart()
	c.SkipToEnd()
	assert.NoError(t, c.Seek(3))
	assert.NoError(t, c.SetSpeedMultiplier(2))
	assert.ErrorIs(t, c.SetSpeedMultiplier(0), ErrInvalidArgument)

	assert.Empty(t, *got)
	assert.Equal(t, 0, mc.Pending())
	snap := c.Snapshot()
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, Idle, snap.State)

	c.Load(track.NormalizedLog{}, nil)
	c.Play()
	assert.Equal(t, Idle, c.Snapshot().State)
	assert.Equal(t, 0, mc.Pending())
}

func TestSinglePointLog(t *testing.T) {
	c, mc, _ := newTestController(t)
	c.Load(testLog(1), nil)
	c.Play()
	assert.Equal(t, Idle, c.Snapshot().State)
	assert.Equal(t, 0, mc.Pending())
}

func TestClose(t *testing.T) {
	c, mc, got := newTestController(t)
	c.Load(testLog(10), nil)
	c.Play()
	c.Close()
	assert.Equal(t, 0, mc.Pending())
	n := len(*got)

	c.Play()
	c.Load(testLog(3), nil)
	mc.Advance(time.Minute)
	assert.Len(t, *got, n)
	assert.Equal(t, Paused, c.Snapshot().State)
}

func TestUnsubscribe(t *testing.T) {
	mc := clock.NewMockClock(time.Time{})
	c := NewController(WithClock(mc))
	calls := 0
	unsub := c.Subscribe(SinkFunc(func(Snapshot) { calls++ }))

	c.Load(testLog(3), nil)
	unsub()
	c.Play()
	mc.Advance(5 * time.Second)
	assert.Equal(t, 1, calls)
}

func TestIndexAlwaysInRange(t *testing.T) {
	c, mc, got := newTestController(t)
	c.Load(testLog(7), nil)
	require.NoError(t, c.SetSpeedMultiplier(3))
	c.Play()
	mc.Advance(time.Second)
	c.Pause()
	c.Play()
	mc.Advance(10 * time.Second)
	c.SkipToStart()
	c.Play()
	mc.Advance(700 * time.Millisecond)

	for _, s := range *got {
		assert.GreaterOrEqual(t, s.Index, 0)
		assert.Less(t, s.Index, len(s.Path))
	}
}

func TestSnapshotHelpers(t *testing.T) {
	s := Snapshot{Path: testLog(5), Index: 2}
	p, ok := s.Point()
	require.True(t, ok)
	assert.Equal(t, int64(2000), p.TimestampMs)
	assert.Equal(t, 0.5, s.Progress())

	_, ok = Snapshot{}.Point()
	assert.False(t, ok)
	assert.Equal(t, 0.0, Snapshot{}.Progress())
	assert.Equal(t, "ended", Ended.String())
}

func TestRealClockPlayback(t *testing.T) {
	c := NewController()
	done := make(chan struct{})
	c.Subscribe(SinkFunc(func(s Snapshot) {
		if s.State == Ended {
			close(done)
		}
	}))
	c.Load(testLog(4), nil)
	require.NoError(t, c.SetSpeedMultiplier(100))
	c.Play()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not reach the end")
	}
	c.Close()
}

func TestStateText(t *testing.T) {
	for _, s := range []State{Idle, Playing, Paused, Ended} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var got State
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, s, got)
	}
	var s State
	assert.Error(t, s.UnmarshalText([]byte("rewinding")))
}
