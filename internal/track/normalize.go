package track

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	timestampKeys = []string{"recorded_at", "timestamp", "recordedAt", "time"}
	latKeys       = []string{"lat", "latitude"}
	lngKeys       = []string{"lng", "lon", "longitude"}
	speedKeys     = []string{"speed", "speed_kmh", "speedKmh"}
)

// Layouts accepted for string timestamps, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05Z07:00",
}

// NormalizeResult is the output of Normalize.
type NormalizeResult struct {
	Log NormalizedLog
	// Dropped counts input records excluded for invalid coordinates,
	// unparsable timestamps or duplicate timestamps.
	Dropped int
}

// Normalize validates raw records and orders them by time. Bad records are
// skipped and counted, never reported as errors.
func Normalize(raw []RawRecord) NormalizeResult {
	pts := make([]GpsPoint, 0, len(raw))
	for _, r := range raw {
		p, ok := parseRecord(r)
		if !ok {
			continue
		}
		pts = append(pts, p)
	}
	res := NormalizeResult{Log: Dedupe(pts)}
	res.Dropped = len(raw) - len(res.Log)
	return res
}

// Dedupe stably sorts points by timestamp and keeps the first point for each
// timestamp. Applying it to an already normalized log is a no-op.
func Dedupe(pts []GpsPoint) NormalizedLog {
	sorted := make([]GpsPoint, len(pts))
	copy(sorted, pts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TimestampMs < sorted[j].TimestampMs })
	out := make(NormalizedLog, 0, len(sorted))
	for i, p := range sorted {
		if i > 0 && p.TimestampMs == out[len(out)-1].TimestampMs {
			continue
		}
		out = append(out, p)
	}
	return out
}

func parseRecord(r RawRecord) (GpsPoint, bool) {
	lat, ok := lookupFloat(r, latKeys)
	if !ok {
		return GpsPoint{}, false
	}
	lng, ok := lookupFloat(r, lngKeys)
	if !ok {
		return GpsPoint{}, false
	}
	if !ValidCoordinate(lat, lng) {
		return GpsPoint{}, false
	}
	ts, ok := lookupTimestamp(r)
	if !ok {
		return GpsPoint{}, false
	}
	speed, ok := lookupFloat(r, speedKeys)
	if !ok || speed < 0 {
		speed = 0
	}
	return GpsPoint{TimestampMs: ts, Lat: lat, Lng: lng, SpeedKmh: speed}, true
}

// ValidCoordinate rejects out-of-range values and the (0,0) sentinel that
// trackers emit before their first fix.
func ValidCoordinate(lat, lng float64) bool {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return false
	}
	return lat != 0 || lng != 0
}

func lookup(r RawRecord, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupFloat(r RawRecord, keys []string) (float64, bool) {
	v, ok := lookup(r, keys)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func lookupTimestamp(r RawRecord) (int64, bool) {
	v, ok := lookup(r, timestampKeys)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return 0, false
		}
		return x.UnixMilli(), true
	case string:
		return ParseTimestamp(x)
	default:
		f, ok := toFloat(v)
		if !ok {
			return 0, false
		}
		return int64(f), true
	}
}

// ParseTimestamp parses an ISO-8601 style string or a Unix epoch in
// milliseconds and returns epoch milliseconds.
func ParseTimestamp(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, true
	}
	return 0, false
}
