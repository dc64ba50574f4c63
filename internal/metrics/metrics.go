package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveSessions prometheus.Gauge

	SessionsCreated    prometheus.Counter
	SessionsClosed     prometheus.Counter
	PlaybacksCompleted prometheus.Counter
	Ticks              prometheus.Counter
	RecordsDropped     prometheus.Counter
	StopsDetected      prometheus.Counter

	Published     *prometheus.CounterVec // sink label: nats|mqtt
	PublishErrs   *prometheus.CounterVec
	SinkConnected *prometheus.GaugeVec

	AnalysisDuration prometheus.Histogram
	PublishDuration  prometheus.Histogram

	SpeedMultiplier prometheus.Gauge
}

func NewCollector(speedMultiplier float64) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "replay_active_sessions",
			Help: "Number of loaded playback sessions.",
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_sessions_created_total",
			Help: "Total sessions created.",
		}),
		SessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_sessions_closed_total",
			Help: "Total sessions closed.",
		}),
		PlaybacksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_playbacks_completed_total",
			Help: "Total playbacks that reached the last sample.",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_ticks_total",
			Help: "Total committed playback ticks.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_records_dropped_total",
			Help: "Raw GPS records dropped during normalization.",
		}),
		StopsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "replay_stops_detected_total",
			Help: "Total stops detected across sessions.",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_frames_published_total",
			Help: "Total frames published.",
		}, []string{"sink"}),
		PublishErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "replay_frame_publish_errors_total",
			Help: "Total frame publish errors.",
		}, []string{"sink"}),
		SinkConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "replay_sink_connected",
			Help: "1 if the sink connection is established, 0 otherwise.",
		}, []string{"sink"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "replay_analysis_duration_seconds",
			Help:    "Duration of normalization, stop detection and stats for a log.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "replay_publish_duration_seconds",
			Help:    "Duration to marshal and publish a frame.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		SpeedMultiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "replay_default_speed_multiplier",
			Help: "Speed multiplier applied to new sessions.",
		}),
	}

	reg.MustRegister(
		c.ActiveSessions,
		c.SessionsCreated, c.SessionsClosed, c.PlaybacksCompleted,
		c.Ticks, c.RecordsDropped, c.StopsDetected,
		c.Published, c.PublishErrs, c.SinkConnected,
		c.AnalysisDuration, c.PublishDuration,
		c.SpeedMultiplier,
	)

	c.SpeedMultiplier.Set(speedMultiplier)

	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}

// PublisherMetrics adapts the collector to publisher.PublisherMetrics.
func (c *Collector) PublisherMetrics() *PublisherAdapter {
	if c == nil {
		return nil
	}
	return &PublisherAdapter{c: c}
}

type PublisherAdapter struct{ c *Collector }

func (p *PublisherAdapter) PublishedInc(sink string)       { p.c.Published.WithLabelValues(sink).Inc() }
func (p *PublisherAdapter) PublishErrInc(sink string)      { p.c.PublishErrs.WithLabelValues(sink).Inc() }
func (p *PublisherAdapter) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *PublisherAdapter) SetConnected(sink string, b bool) {
	if b {
		p.c.SinkConnected.WithLabelValues(sink).Set(1)
	} else {
		p.c.SinkConnected.WithLabelValues(sink).Set(0)
	}
}
