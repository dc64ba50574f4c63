package track

const msPerHour = 3_600_000.0

// ComputeStats returns nil for an empty log.
func ComputeStats(log NormalizedLog, stops []Stop) *RouteStats {
	if len(log) == 0 {
		return nil
	}
	first, last := log[0], log[len(log)-1]
	st := &RouteStats{
		StartTimeMs:        first.TimestampMs,
		EndTimeMs:          last.TimestampMs,
		TotalDurationHours: float64(last.TimestampMs-first.TimestampMs) / msPerHour,
		TotalDistanceKm:    DistanceKm(log, 0, len(log)-1),
		StopCount:          len(stops),
	}
	if st.TotalDurationHours > 0 {
		st.AvgSpeedKmh = st.TotalDistanceKm / st.TotalDurationHours
	}
	return st
}
