package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SourcePostgres = "postgres"
	SourceNMEA     = "nmea"

	SinkNATS = "nats"
	SinkMQTT = "mqtt"
	SinkNone = "none"
)

type Config struct {
	LogSource   string
	DatabaseURL string
	GPSLogTable string
	NMEADir     string

	Sink              string
	NATSURL           string
	NATSSubjectPrefix string
	MQTTBroker        string
	MQTTClientID      string
	MQTTTopicPrefix   string

	SpeedMultiplier  float64
	StopSpeedKmh     float64
	StopMinDwellMins float64
	Location         *time.Location
	HTTPAddr         string
	MetricsAddr      string
	LogFrames        bool
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.LogSource = strings.ToLower(getenvDefault("LOG_SOURCE", SourcePostgres))
	switch cfg.LogSource {
	case SourcePostgres:
		dsn, err := databaseURL()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
		cfg.GPSLogTable = getenvDefault("GPS_LOG_TABLE", "gps_logs")
	case SourceNMEA:
		cfg.NMEADir = getenvDefault("NMEA_DIR", "./logs")
	default:
		return nil, fmt.Errorf("invalid LOG_SOURCE: %q", cfg.LogSource)
	}

	cfg.Sink = strings.ToLower(getenvDefault("SINK", SinkNATS))
	switch cfg.Sink {
	case SinkNATS, SinkMQTT, SinkNone:
	default:
		return nil, fmt.Errorf("invalid SINK: %q", cfg.Sink)
	}
	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "replay")
	cfg.MQTTBroker = getenvDefault("MQTT_BROKER", "tcp://127.0.0.1:1883")
	cfg.MQTTClientID = getenvDefault("MQTT_CLIENT_ID", "route-replay")
	cfg.MQTTTopicPrefix = getenvDefault("MQTT_TOPIC_PREFIX", "replay")

	var err error
	if cfg.SpeedMultiplier, err = floatEnv("SPEED_MULTIPLIER", 1.0, false); err != nil {
		return nil, err
	}
	if cfg.StopSpeedKmh, err = floatEnv("STOP_SPEED_THRESHOLD_KMH", 2.0, true); err != nil {
		return nil, err
	}
	if cfg.StopMinDwellMins, err = floatEnv("STOP_MIN_DWELL_MINUTES", 5.0, false); err != nil {
		return nil, err
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")
	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.LogFrames = parseBool(os.Getenv("LOG_FRAMES"))

	// Time zone used for day boundaries
	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// databaseURL prefers DATABASE_URL / PG_DSN, else builds a DSN from PG* vars.
func databaseURL() (string, error) {
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		return dsn, nil
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	db := os.Getenv("PGDATABASE")
	if db == "" {
		return "", errors.New("PGDATABASE or DATABASE_URL must be set (or LOG_SOURCE=nmea)")
	}
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode), nil
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode), nil
}

// floatEnv parses a positive float (or non-negative when allowZero).
func floatEnv(key string, def float64, allowZero bool) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 || (f == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
