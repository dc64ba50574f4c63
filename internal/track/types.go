package track

// RawRecord is a single GPS record as delivered by a log source. Field names
// vary between sources; Normalize understands the common aliases.
type RawRecord map[string]any

// GpsPoint is one validated fix. Values are never mutated after Normalize
// builds them.
type GpsPoint struct {
	TimestampMs int64   `json:"timestampMs"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	SpeedKmh    float64 `json:"speedKmh"`
}

// Position is a bare coordinate pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NormalizedLog is ordered by TimestampMs with no two points sharing a
// timestamp and no invalid coordinates.
type NormalizedLog []GpsPoint

// Stop is a merged dwell period.
type Stop struct {
	StartIndex      int      `json:"startIndex"`
	EndIndex        int      `json:"endIndex"` // last dwelling sample
	StartTimeMs     int64    `json:"startTimeMs"`
	EndTimeMs       int64    `json:"endTimeMs"`
	DurationMinutes float64  `json:"durationMinutes"`
	Position        Position `json:"position"`
	// Ongoing is set when the dwell was still open at the end of the log,
	// i.e. no moving sample closed it.
	Ongoing bool `json:"ongoing"`
}

// RouteStats summarises a whole log.
type RouteStats struct {
	StartTimeMs        int64   `json:"startTimeMs"`
	EndTimeMs          int64   `json:"endTimeMs"`
	TotalDurationHours float64 `json:"totalDurationHours"`
	TotalDistanceKm    float64 `json:"totalDistanceKm"`
	AvgSpeedKmh        float64 `json:"avgSpeedKmh"`
	StopCount          int     `json:"stopCount"`
}
