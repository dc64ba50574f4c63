package replay

import (
	"time"

	"route-replay/internal/playback"
	"route-replay/internal/publisher"
	"route-replay/internal/track"
)

// Session is one loaded (vehicle, day) log with its analysis and the
// controller replaying it.
type Session struct {
	ID        string
	VehicleID string
	Day       time.Time
	CreatedAt time.Time
	Analysis

	cum    []float64
	ctl    *playback.Controller
	unsubs []func()
}

// Summary is the JSON view of a session.
type Summary struct {
	ID              string            `json:"id"`
	VehicleID       string            `json:"vehicle_id"`
	Date            string            `json:"date"`
	CreatedAt       time.Time         `json:"created_at"`
	Points          int               `json:"points"`
	Dropped         int               `json:"dropped"`
	Stats           *track.RouteStats `json:"stats"`
	StopCount       int               `json:"stop_count"`
	Index           int               `json:"index"`
	State           playback.State    `json:"state"`
	SpeedMultiplier float64           `json:"speed_multiplier"`
}

func (s *Session) Controller() *playback.Controller { return s.ctl }

func (s *Session) Summary() Summary {
	snap := s.ctl.Snapshot()
	return Summary{
		ID:              s.ID,
		VehicleID:       s.VehicleID,
		Date:            s.Day.Format(dateLayout),
		CreatedAt:       s.CreatedAt,
		Points:          len(s.Log),
		Dropped:         s.Dropped,
		Stats:           s.Stats,
		StopCount:       len(s.Stops),
		Index:           snap.Index,
		State:           snap.State,
		SpeedMultiplier: snap.SpeedMultiplier,
	}
}

// Frame returns the frame message for the current position.
func (s *Session) Frame() publisher.FrameMessage {
	return s.frame(s.ctl.Snapshot())
}

func (s *Session) frame(snap playback.Snapshot) publisher.FrameMessage {
	return publisher.NewFrameMessage(s.ID, s.VehicleID, snap, s.cum)
}

func (s *Session) close() {
	for _, u := range s.unsubs {
		u()
	}
	s.ctl.Close()
}
