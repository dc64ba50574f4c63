package publisher

import (
	"strings"

	"route-replay/internal/playback"
	"route-replay/internal/track"
)

// FrameMessage is the per-frame payload sent to renderers. It carries the
// current sample only; renderers fetch the path and stops once per session.
type FrameMessage struct {
	SessionID       string         `json:"sessionId"`
	VehicleID       string         `json:"vehicleId"`
	Index           int            `json:"index"`
	Total           int            `json:"total"`
	State           playback.State `json:"state"`
	SpeedMultiplier float64        `json:"speedMultiplier"`
	TimestampMs     int64          `json:"timestampMs"`
	Lat             float64        `json:"lat"`
	Lng             float64        `json:"lng"`
	SpeedKmh        float64        `json:"speedKmh"`
	BearingDeg      float64        `json:"bearing"`
	DistanceKm      float64        `json:"distanceKm"`
	Progress        float64        `json:"progress"`
	AtStop          bool           `json:"atStop"`
}

// NewFrameMessage builds the payload for a snapshot. cum holds the running
// distance per index as returned by track.CumDistances.
func NewFrameMessage(sessionID, vehicleID string, snap playback.Snapshot, cum []float64) FrameMessage {
	msg := FrameMessage{
		SessionID:       sessionID,
		VehicleID:       vehicleID,
		Index:           snap.Index,
		Total:           len(snap.Path),
		State:           snap.State,
		SpeedMultiplier: snap.SpeedMultiplier,
		Progress:        snap.Progress(),
	}
	p, ok := snap.Point()
	if !ok {
		return msg
	}
	msg.TimestampMs = p.TimestampMs
	msg.Lat = p.Lat
	msg.Lng = p.Lng
	msg.SpeedKmh = p.SpeedKmh
	msg.BearingDeg = track.HeadingAt(snap.Path, snap.Index)
	if snap.Index < len(cum) {
		msg.DistanceKm = cum[snap.Index]
	}
	msg.AtStop = stopAt(snap.Stops, snap.Index)
	return msg
}

func stopAt(stops []track.Stop, i int) bool {
	for _, s := range stops {
		if i >= s.StartIndex && i <= s.EndIndex {
			return true
		}
	}
	return false
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_", "+", "_", "#", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
