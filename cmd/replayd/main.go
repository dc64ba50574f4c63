package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"route-replay/internal/api"
	"route-replay/internal/config"
	"route-replay/internal/db"
	"route-replay/internal/metrics"
	"route-replay/internal/nmealog"
	"route-replay/internal/publisher"
	"route-replay/internal/replay"
	"route-replay/internal/track"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.SpeedMultiplier)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var source replay.LogSource
	switch cfg.LogSource {
	case config.SourceNMEA:
		source = nmealog.Dir{Root: cfg.NMEADir}
		log.Printf("Reading NMEA logs from %s", cfg.NMEADir)
	default:
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		defer pool.Close()
		if err := db.Ping(ctx, pool); err != nil {
			log.Fatalf("db ping error: %v", err)
		}
		source = db.NewStore(pool, cfg.GPSLogTable)
	}

	var pub replay.FramePublisher
	switch cfg.Sink {
	case config.SinkNATS:
		p, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogFrames, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer p.Close()
		pub = p
	case config.SinkMQTT:
		p, err := publisher.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix, cfg.LogFrames, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("mqtt error: %v", err)
		}
		defer p.Close()
		pub = p
	default:
		log.Printf("Frame publishing disabled")
	}

	mgr := replay.NewManager(source, pub, replay.Options{
		StopOptions: track.StopOptions{
			SpeedThresholdKmh: cfg.StopSpeedKmh,
			MinDwellMinutes:   cfg.StopMinDwellMins,
		},
		SpeedMultiplier: cfg.SpeedMultiplier,
		Location:        cfg.Location,
		LogFrames:       cfg.LogFrames,
	}, mcol)
	defer mgr.Close()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	api.RegisterRoutes(app.Group("/sessions"), mgr)

	go func() {
		log.Printf("Listening on %s", cfg.HTTPAddr)
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Printf("http server error: %v", err)
			cancel()
		}
	}()

	// Block until context cancelled
	<-ctx.Done()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	log.Println("shutdown complete")
}

// wrapPublisherMetrics keeps a nil collector from becoming a non-nil
// interface value.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return c.PublisherMetrics()
}
