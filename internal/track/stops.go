package track

const (
	DefaultSpeedThresholdKmh = 2.0
	DefaultMinDwellMinutes   = 5.0
)

// StopOptions tunes DetectStops.
type StopOptions struct {
	SpeedThresholdKmh float64 // samples at or below this speed are dwelling
	MinDwellMinutes   float64 // shorter dwells are discarded as noise
}

// DefaultStopOptions returns the thresholds used for fleet vehicles.
func DefaultStopOptions() StopOptions {
	return StopOptions{
		SpeedThresholdKmh: DefaultSpeedThresholdKmh,
		MinDwellMinutes:   DefaultMinDwellMinutes,
	}
}

type dwell struct {
	startIndex int
	endIndex   int
	startMs    int64
	pos        Position
}

// DetectStops scans the log once and merges dwelling runs into stops.
//
// A dwell opens on the first dwelling sample after a moving one and is closed
// by the next moving sample, whose timestamp is the closing time. A dwell still
// open when the log ends is closed at the last sample's timestamp, but only if
// it holds more than one sample; such stops are marked Ongoing.
func DetectStops(log NormalizedLog, opts StopOptions) []Stop {
	stops := []Stop{}
	if len(log) == 0 {
		return stops
	}

	minMs := opts.MinDwellMinutes * 60_000
	var open *dwell

	emit := func(d *dwell, closeMs int64, ongoing bool) {
		durMs := float64(closeMs - d.startMs)
		if durMs < minMs {
			return
		}
		stops = append(stops, Stop{
			StartIndex:      d.startIndex,
			EndIndex:        d.endIndex,
			StartTimeMs:     d.startMs,
			EndTimeMs:       closeMs,
			DurationMinutes: durMs / 60_000,
			Position:        d.pos,
			Ongoing:         ongoing,
		})
	}

	for i, p := range log {
		moving := p.SpeedKmh > opts.SpeedThresholdKmh
		switch {
		case !moving && open == nil:
			open = &dwell{startIndex: i, endIndex: i, startMs: p.TimestampMs, pos: Position{Lat: p.Lat, Lng: p.Lng}}
		case !moving:
			open.endIndex = i
		case open != nil:
			emit(open, p.TimestampMs, false)
			open = nil
		}
	}

	if open != nil && open.endIndex > open.startIndex {
		emit(open, log[open.endIndex].TimestampMs, true)
	}
	return stops
}
