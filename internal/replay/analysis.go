package replay

import (
	"sync"

	"route-replay/internal/track"
)

// Analysis is everything derived from one raw log.
type Analysis struct {
	Log     track.NormalizedLog
	Dropped int
	Stops   []track.Stop
	Stats   *track.RouteStats // nil for an empty log
}

// Analyze normalizes raw records, then runs stop detection and route
// statistics concurrently over the immutable normalized log.
func Analyze(raw []track.RawRecord, opts track.StopOptions) Analysis {
	norm := track.Normalize(raw)
	a := Analysis{Log: norm.Log, Dropped: norm.Dropped}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.Stops = track.DetectStops(norm.Log, opts)
	}()
	go func() {
		defer wg.Done()
		// Stops are not known yet; StopCount is filled in after both finish.
		a.Stats = track.ComputeStats(norm.Log, nil)
	}()
	wg.Wait()

	if a.Stats != nil {
		a.Stats.StopCount = len(a.Stops)
	}
	return a
}
