package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineEquatorDegree(t *testing.T) {
	d := HaversineKm(0, 0, 0, 1)
	assert.InDelta(t, 111.19, d, 0.01)
}

func TestComputeStatsEquatorDegree(t *testing.T) {
	log := NormalizedLog{
		{TimestampMs: 0, Lat: 0.0001, Lng: 10, SpeedKmh: 100},
		{TimestampMs: 3_600_000, Lat: 0.0001, Lng: 11, SpeedKmh: 100},
	}

	st := ComputeStats(log, nil)
	require.NotNil(t, st)
	assert.InDelta(t, 111.2, st.TotalDistanceKm, 0.05)
	assert.InDelta(t, 1.0, st.TotalDurationHours, 1e-12)
	assert.InDelta(t, st.TotalDistanceKm, st.AvgSpeedKmh, 1e-9)
	assert.Equal(t, 0, st.StopCount)
	assert.Equal(t, int64(0), st.StartTimeMs)
	assert.Equal(t, int64(3_600_000), st.EndTimeMs)
}

func TestComputeStatsEmpty(t *testing.T) {
	assert.Nil(t, ComputeStats(nil, nil))
	assert.Nil(t, ComputeStats(NormalizedLog{}, []Stop{}))
}

func TestComputeStatsZeroDuration(t *testing.T) {
	log := NormalizedLog{{TimestampMs: 5, Lat: 52, Lng: 4}}

	st := ComputeStats(log, nil)
	require.NotNil(t, st)
	assert.Equal(t, 0.0, st.AvgSpeedKmh)
	assert.Equal(t, 0.0, st.TotalDistanceKm)
}

func TestComputeStatsStopCount(t *testing.T) {
	log := buildLog(4, 0, 0, 0, 0, 0, 0)
	stops := DetectStops(log, DefaultStopOptions())

	st := ComputeStats(log, stops)
	require.NotNil(t, st)
	assert.Equal(t, 1, st.StopCount)
	assert.InDelta(t, 20.0/60.0, st.TotalDurationHours, 1e-12)
}

func sampleRoute() NormalizedLog {
	return NormalizedLog{
		{TimestampMs: 0, Lat: 52.3702, Lng: 4.8952, SpeedKmh: 30},
		{TimestampMs: 60_000, Lat: 52.3731, Lng: 4.8922, SpeedKmh: 32},
		{TimestampMs: 120_000, Lat: 52.3779, Lng: 4.8990, SpeedKmh: 0},
		{TimestampMs: 180_000, Lat: 52.3812, Lng: 4.9041, SpeedKmh: 41},
		{TimestampMs: 240_000, Lat: 52.3860, Lng: 4.9105, SpeedKmh: 38},
	}
}

func TestDistanceAdditiveAndDeterministic(t *testing.T) {
	log := sampleRoute()
	last := len(log) - 1

	total := DistanceKm(log, 0, last)
	assert.Equal(t, total, DistanceKm(log, 0, last))
	assert.GreaterOrEqual(t, total, 0.0)

	for b := 0; b <= last; b++ {
		assert.InDelta(t, total, DistanceKm(log, 0, b)+DistanceKm(log, b, last), 1e-9, "split at %d", b)
	}
}

func TestCumDistancesPrefixSums(t *testing.T) {
	log := sampleRoute()
	cum := CumDistances(log)
	require.Len(t, cum, len(log))
	assert.Equal(t, 0.0, cum[0])
	for i := 1; i < len(cum); i++ {
		assert.GreaterOrEqual(t, cum[i], cum[i-1])
		assert.InDelta(t, DistanceKm(log, 0, i), cum[i], 1e-9)
	}
	assert.Nil(t, CumDistances(nil))
}

func TestHeadingAt(t *testing.T) {
	log := NormalizedLog{
		{TimestampMs: 0, Lat: 1, Lng: 1},
		{TimestampMs: 1, Lat: 2, Lng: 1},
		{TimestampMs: 2, Lat: 2, Lng: 2},
	}
	assert.InDelta(t, 0.0, HeadingAt(log, 0), 1e-6, "due north")
	assert.InDelta(t, 90.0, HeadingAt(log, 1), 0.1, "roughly east")
	assert.InDelta(t, HeadingAt(log, 1), HeadingAt(log, 2), 1e-9, "last index reuses final segment")
	assert.Equal(t, 0.0, HeadingAt(log[:1], 0))
}
