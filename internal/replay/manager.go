package replay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"route-replay/internal/clock"
	mmetrics "route-replay/internal/metrics"
	"route-replay/internal/playback"
	"route-replay/internal/publisher"
	"route-replay/internal/track"
)

const dateLayout = "2006-01-02"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRequest  = errors.New("invalid request")
)

// LogSource returns the raw GPS records of one vehicle for the calendar day
// starting at day.
type LogSource interface {
	FetchRawLog(ctx context.Context, vehicleID string, day time.Time) ([]track.RawRecord, error)
}

// FramePublisher forwards frames to external renderers.
type FramePublisher interface {
	PublishFrame(msg publisher.FrameMessage) error
}

type Options struct {
	StopOptions     track.StopOptions
	SpeedMultiplier float64
	Location        *time.Location
	Clock           clock.Clock
	LogFrames       bool
}

type Manager struct {
	source  LogSource
	pub     FramePublisher
	opts    Options
	metrics *mmetrics.Collector

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(source LogSource, pub FramePublisher, opts Options, metrics *mmetrics.Collector) *Manager {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.SpeedMultiplier <= 0 {
		opts.SpeedMultiplier = 1
	}
	return &Manager{
		source:   source,
		pub:      pub,
		opts:     opts,
		metrics:  metrics,
		sessions: make(map[string]*Session),
	}
}

// Open fetches and analyzes the log of vehicleID for date (YYYY-MM-DD) and
// registers a new session loaded at index 0.
func (m *Manager) Open(ctx context.Context, vehicleID, date string) (*Session, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return nil, fmt.Errorf("vehicle id is required: %w", ErrInvalidRequest)
	}
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), m.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, ErrInvalidRequest)
	}

	raw, err := m.source.FetchRawLog(ctx, vehicleID, day)
	if err != nil {
		return nil, fmt.Errorf("fetch log for %s on %s: %w", vehicleID, date, err)
	}
	return m.OpenRecords(vehicleID, day, raw), nil
}

// OpenRecords registers a session over already retrieved raw records.
func (m *Manager) OpenRecords(vehicleID string, day time.Time, raw []track.RawRecord) *Session {
	start := time.Now()
	a := Analyze(raw, m.opts.StopOptions)

	s := &Session{
		ID:        uuid.NewString(),
		VehicleID: vehicleID,
		Day:       day,
		CreatedAt: time.Now(),
		Analysis:  a,
		cum:       track.CumDistances(a.Log),
		ctl:       playback.NewController(playback.WithClock(m.opts.Clock)),
	}
	s.unsubs = append(s.unsubs, s.ctl.Subscribe(m.observer(s)))
	if m.pub != nil {
		s.unsubs = append(s.unsubs, s.ctl.Subscribe(m.publishSink(s)))
	}
	s.ctl.Load(a.Log, a.Stops)
	if err := s.ctl.SetSpeedMultiplier(m.opts.SpeedMultiplier); err != nil {
		log.Printf("[replay] session %s: %v", s.ID, err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
		m.metrics.SessionsCreated.Inc()
		m.metrics.ActiveSessions.Set(float64(n))
		m.metrics.RecordsDropped.Add(float64(a.Dropped))
		m.metrics.StopsDetected.Add(float64(len(a.Stops)))
	}

	log.Printf("[replay] opened session %s for %s on %s: %d points (%d dropped), %d stops",
		s.ID, vehicleID, day.Format(dateLayout), len(a.Log), a.Dropped, len(a.Stops))
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

// List returns sessions ordered by creation time.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CloseSession cancels the session's pending tick and forgets it.
func (m *Manager) CloseSession(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}

	s.close()
	if m.metrics != nil {
		m.metrics.SessionsClosed.Inc()
		m.metrics.ActiveSessions.Set(float64(n))
	}
	log.Printf("[replay] closed session %s", id)
	return nil
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	if m.metrics != nil {
		m.metrics.SessionsClosed.Add(float64(len(sessions)))
		m.metrics.ActiveSessions.Set(0)
	}
}

// observer records metrics for committed ticks and completions.
func (m *Manager) observer(s *Session) playback.Sink {
	last := playback.Snapshot{}
	return playback.SinkFunc(func(snap playback.Snapshot) {
		advanced := snap.Index != last.Index && (snap.State == playback.Playing || snap.State == playback.Ended) && last.State == playback.Playing
		if m.metrics != nil {
			if advanced {
				m.metrics.Ticks.Inc()
			}
			if snap.State == playback.Ended && last.State != playback.Ended {
				m.metrics.PlaybacksCompleted.Inc()
			}
		}
		if snap.State == playback.Ended && last.State != playback.Ended {
			log.Printf("[replay] session %s reached the end of %d points", s.ID, len(snap.Path))
		}
		last = snap
	})
}

func (m *Manager) publishSink(s *Session) playback.Sink {
	return playback.SinkFunc(func(snap playback.Snapshot) {
		msg := s.frame(snap)
		if m.opts.LogFrames {
			log.Printf("[replay] session %s frame %d/%d state=%s", s.ID, msg.Index, msg.Total, msg.State)
		}
		if err := m.pub.PublishFrame(msg); err != nil {
			log.Printf("[replay] publish error for %s: %v", s.ID, err)
		}
	})
}
