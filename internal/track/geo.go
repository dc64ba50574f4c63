package track

import "math"

const earthRadiusKm = 6371.0

func toRad(d float64) float64 { return d * math.Pi / 180 }

// HaversineKm returns the great-circle distance between two coordinates in km.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// CumDistances returns the running distance in km at every index of the log.
// cum[0] is always 0 and cum[len-1] is the total.
func CumDistances(log NormalizedLog) []float64 {
	n := len(log)
	if n == 0 {
		return nil
	}
	cum := make([]float64, n)
	sum := 0.0
	for i := 1; i < n; i++ {
		sum += HaversineKm(log[i-1].Lat, log[i-1].Lng, log[i].Lat, log[i].Lng)
		cum[i] = sum
	}
	return cum
}

// DistanceKm sums the hop distances between indices from and to (inclusive).
// Indices are clamped to the log; from > to yields 0.
func DistanceKm(log NormalizedLog, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > len(log)-1 {
		to = len(log) - 1
	}
	total := 0.0
	for i := from + 1; i <= to; i++ {
		total += HaversineKm(log[i-1].Lat, log[i-1].Lng, log[i].Lat, log[i].Lng)
	}
	return total
}

// BearingDeg is the initial bearing from a to b in degrees [0,360).
func BearingDeg(a, b GpsPoint) float64 {
	y := math.Sin(toRad(b.Lng-a.Lng)) * math.Cos(toRad(b.Lat))
	x := math.Cos(toRad(a.Lat))*math.Sin(toRad(b.Lat)) - math.Sin(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Cos(toRad(b.Lng-a.Lng))
	brng := math.Atan2(y, x) * 180.0 / math.Pi
	if brng < 0 {
		brng += 360
	}
	return brng
}

// HeadingAt returns the heading of the vehicle at index i: towards the next
// sample, or along the last segment at the end of the log.
func HeadingAt(log NormalizedLog, i int) float64 {
	n := len(log)
	if n < 2 || i < 0 || i >= n {
		return 0
	}
	if i == n-1 {
		return BearingDeg(log[n-2], log[n-1])
	}
	return BearingDeg(log[i], log[i+1])
}
