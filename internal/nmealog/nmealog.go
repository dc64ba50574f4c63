// Package nmealog reads raw GPS logs recorded as NMEA 0183 text.
package nmealog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"route-replay/internal/track"
)

const knotsToKmh = 1.852

// Dir serves logs stored as <root>/<vehicle>_<YYYY-MM-DD>.nmea.
type Dir struct {
	Root string
}

func (d Dir) Path(vehicleID string, day time.Time) (string, error) {
	if vehicleID == "" || vehicleID != filepath.Base(vehicleID) || strings.HasPrefix(vehicleID, ".") {
		return "", fmt.Errorf("invalid vehicle id %q", vehicleID)
	}
	return filepath.Join(d.Root, fmt.Sprintf("%s_%s.nmea", vehicleID, day.Format("2006-01-02"))), nil
}

func (d Dir) FetchRawLog(ctx context.Context, vehicleID string, day time.Time) ([]track.RawRecord, error) {
	path, err := d.Path(vehicleID, day)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRecords(ctx, f)
}

// ReadRecords converts every valid RMC sentence into a raw record. Other
// sentence types, void fixes and lines that fail to parse are skipped.
func ReadRecords(ctx context.Context, r io.Reader) ([]track.RawRecord, error) {
	var out []track.RawRecord
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(sc.Text())
		// NMEA sentences usually start with '$'
		if !strings.HasPrefix(line, "$") {
			continue
		}
		sentence, err := nmea.Parse(line)
		if err != nil {
			continue
		}
		if sentence.DataType() != nmea.TypeRMC {
			continue
		}
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC || !m.Date.Valid || !m.Time.Valid {
			continue
		}
		out = append(out, track.RawRecord{
			"time":  fixTime(m.Date, m.Time),
			"lat":   m.Latitude,
			"lng":   m.Longitude,
			"speed": m.Speed * knotsToKmh,
		})
	}
	return out, sc.Err()
}

// fixTime combines the RMC date and time fields; RMC years are two digits
// and always refer to 2000 or later here.
func fixTime(d nmea.Date, t nmea.Time) time.Time {
	return time.Date(2000+d.YY, time.Month(d.MM), d.DD, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
