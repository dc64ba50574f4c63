package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"route-replay/internal/track"
)

// Querier is the subset of *pgxpool.Pool used by Store.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 20
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return pool.Ping(ctx)
}

const DefaultTable = "gps_logs"

// Store reads vehicle GPS logs from one table in the public schema.
type Store struct {
	q     Querier
	table string
}

// NewStore reads from table, or DefaultTable when table is empty.
func NewStore(q Querier, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{q: q, table: table}
}

// FetchRawLog returns every record of vehicleID recorded within the 24 hours
// starting at day. Rows are returned as delivered; validation is left to the
// normalizer, so NULL coordinates or timestamps come back as missing fields.
func (s *Store) FetchRawLog(ctx context.Context, vehicleID string, day time.Time) ([]track.RawRecord, error) {
	// Detect column layout: either lat/lng exist, or use PostGIS location geography
	cols, err := hasColumns(ctx, s.q, "public", s.table, "lat", "lng", "location")
	if err != nil {
		return nil, fmt.Errorf("introspect %s columns: %w", s.table, err)
	}
	table := pgx.Identifier{"public", s.table}.Sanitize()
	var q string
	switch {
	case cols["lat"] && cols["lng"]:
		q = `SELECT recorded_at, lat, lng, speed
             FROM ` + table + `
             WHERE vehicle_id = $1 AND recorded_at >= $2 AND recorded_at < $3
             ORDER BY recorded_at`
	case cols["location"]:
		q = `SELECT recorded_at,
                    ST_Y(location::geometry) AS lat,
                    ST_X(location::geometry) AS lng,
                    speed
             FROM ` + table + `
             WHERE vehicle_id = $1 AND recorded_at >= $2 AND recorded_at < $3
             ORDER BY recorded_at`
	default:
		return nil, fmt.Errorf("%s table missing expected columns (lat/lng or location)", s.table)
	}

	end := day.AddDate(0, 0, 1)
	rows, err := s.q.Query(ctx, q, vehicleID, day, end)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []track.RawRecord
	for rows.Next() {
		var (
			recordedAt *time.Time
			lat, lng   *float64
			speed      *float64
		)
		if err := rows.Scan(&recordedAt, &lat, &lng, &speed); err != nil {
			return nil, err
		}
		out = append(out, rawRecord(recordedAt, lat, lng, speed))
	}
	return out, rows.Err()
}

func rawRecord(recordedAt *time.Time, lat, lng, speed *float64) track.RawRecord {
	r := track.RawRecord{}
	if recordedAt != nil {
		r["recorded_at"] = *recordedAt
	}
	if lat != nil {
		r["lat"] = *lat
	}
	if lng != nil {
		r["lng"] = *lng
	}
	if speed != nil {
		r["speed"] = *speed
	}
	return r
}

// hasColumns returns a map of requested column names to existence for the given table.
func hasColumns(ctx context.Context, q Querier, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	if len(cols) == 0 {
		return res, nil
	}
	for _, c := range cols {
		res[c] = false
	}
	rows, err := q.Query(ctx, `SELECT column_name FROM information_schema.columns
          WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`, schema, table, cols)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res[name] = true
	}
	return res, rows.Err()
}
