package playback

import (
	"errors"
	"fmt"

	"route-replay/internal/track"
)

// ErrInvalidArgument is returned for rejected transition arguments. The
// controller state is left untouched when it is returned.
var ErrInvalidArgument = errors.New("invalid argument")

type State int

const (
	Idle State = iota
	Playing
	Paused
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// MarshalText lets State encode as its name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for _, v := range []State{Idle, Playing, Paused, Ended} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown playback state %q", b)
}

// Snapshot is what the controller exposes to renderers on every committed
// tick or state change. Path and Stops are shared and must not be modified.
type Snapshot struct {
	Path            track.NormalizedLog
	Stops           []track.Stop
	Index           int
	State           State
	SpeedMultiplier float64
}

// IsPlaying reports whether ticks are scheduled.
func (s Snapshot) IsPlaying() bool { return s.State == Playing }

// Point returns the sample at the current index.
func (s Snapshot) Point() (track.GpsPoint, bool) {
	if s.Index < 0 || s.Index >= len(s.Path) {
		return track.GpsPoint{}, false
	}
	return s.Path[s.Index], true
}

// Progress is the fraction of the log played, in [0,1].
func (s Snapshot) Progress() float64 {
	if len(s.Path) < 2 {
		return 0
	}
	return float64(s.Index) / float64(len(s.Path)-1)
}

// Sink receives snapshots. It is the boundary to whatever renders the route
// (map polyline, markers, a message bus). Sync is called sequentially and
// must not call state-changing Controller methods; read-only accessors are
// fine.
type Sink interface {
	Sync(Snapshot)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Snapshot)

func (f SinkFunc) Sync(s Snapshot) { f(s) }

// IndexFunc adapts a frame-index callback to a Sink.
func IndexFunc(f func(index int)) Sink {
	return SinkFunc(func(s Snapshot) { f(s.Index) })
}
