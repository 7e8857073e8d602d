package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Season is the meteorological season of an observation.
type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
)

// SeasonOf maps a month onto its northern-hemisphere meteorological season.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}

const (
	// LocalTimestampLayout is the layout of the timestamp_local column.
	LocalTimestampLayout = "2006-01-02 15:04:05"
	// DateLayout is the layout of the date column.
	DateLayout = "2006-01-02"
)

// DelayRecordColumns is the persisted column order of the delay dataset.
var DelayRecordColumns = []string{
	"timestamp_local",
	"date",
	"hour",
	"dow",
	"is_weekend",
	"season",
	"line_number",
	"route_id",
	"trip_id",
	"vehicle_id",
	"nearest_stop",
	"latitude",
	"longitude",
	"delay_seconds",
	"delay_minutes",
}

// MatchedDelayRecord is one accepted delay estimate. ScheduledAt is kept for
// diagnostics and is not part of the persisted row.
type MatchedDelayRecord struct {
	ObservedAt  time.Time
	ScheduledAt time.Time

	Date      string
	Hour      int
	DayOfWeek int // Monday=0 ... Sunday=6
	IsWeekend bool
	Season    Season

	LineNumber string
	RouteID    string
	TripID     string
	VehicleID  string
	StopID     string

	Latitude  float64
	Longitude float64

	DelaySeconds int
}

// DelayMinutes is the delay in minutes rounded to two decimals.
func (r MatchedDelayRecord) DelayMinutes() float64 {
	return math.Round(float64(r.DelaySeconds)/60*100) / 100
}

// Row renders the record in DelayRecordColumns order.
func (r MatchedDelayRecord) Row() []string {
	return []string{
		r.ObservedAt.Format(LocalTimestampLayout),
		r.Date,
		strconv.Itoa(r.Hour),
		strconv.Itoa(r.DayOfWeek),
		formatFlag(r.IsWeekend),
		string(r.Season),
		r.LineNumber,
		r.RouteID,
		r.TripID,
		r.VehicleID,
		r.StopID,
		strconv.FormatFloat(r.Latitude, 'f', -1, 64),
		strconv.FormatFloat(r.Longitude, 'f', -1, 64),
		strconv.Itoa(r.DelaySeconds),
		strconv.FormatFloat(r.DelayMinutes(), 'f', -1, 64),
	}
}

// Key identifies a record by the full content of its persisted row.
func (r MatchedDelayRecord) Key() string {
	return strings.Join(r.Row(), "\x1f")
}

// DelayRecordFromRow parses a persisted row. index maps column names to
// positions in row so files with extra or reordered columns still load.
func DelayRecordFromRow(index map[string]int, row []string, loc *time.Location) (MatchedDelayRecord, error) {
	get := func(col string) (string, error) {
		i, ok := index[col]
		if !ok {
			return "", fmt.Errorf("missing column %q", col)
		}
		if i >= len(row) {
			return "", fmt.Errorf("row too short for column %q", col)
		}
		return strings.TrimSpace(row[i]), nil
	}

	var (
		rec MatchedDelayRecord
		err error
		raw string
	)

	if raw, err = get("timestamp_local"); err != nil {
		return rec, err
	}
	if rec.ObservedAt, err = time.ParseInLocation(LocalTimestampLayout, raw, loc); err != nil {
		return rec, fmt.Errorf("timestamp_local: %w", err)
	}

	ints := []struct {
		col string
		dst *int
	}{
		{"hour", &rec.Hour},
		{"dow", &rec.DayOfWeek},
		{"delay_seconds", &rec.DelaySeconds},
	}
	for _, f := range ints {
		if raw, err = get(f.col); err != nil {
			return rec, err
		}
		if *f.dst, err = parseLooseInt(raw); err != nil {
			return rec, fmt.Errorf("%s: %w", f.col, err)
		}
	}

	floats := []struct {
		col string
		dst *float64
	}{
		{"latitude", &rec.Latitude},
		{"longitude", &rec.Longitude},
	}
	for _, f := range floats {
		if raw, err = get(f.col); err != nil {
			return rec, err
		}
		if *f.dst, err = strconv.ParseFloat(raw, 64); err != nil {
			return rec, fmt.Errorf("%s: %w", f.col, err)
		}
	}

	if raw, err = get("is_weekend"); err != nil {
		return rec, err
	}
	if rec.IsWeekend, err = parseFlag(raw); err != nil {
		return rec, fmt.Errorf("is_weekend: %w", err)
	}

	strs := []struct {
		col string
		dst *string
	}{
		{"date", &rec.Date},
		{"line_number", &rec.LineNumber},
		{"route_id", &rec.RouteID},
		{"trip_id", &rec.TripID},
		{"vehicle_id", &rec.VehicleID},
		{"nearest_stop", &rec.StopID},
	}
	for _, f := range strs {
		if *f.dst, err = get(f.col); err != nil {
			return rec, err
		}
	}

	if raw, err = get("season"); err != nil {
		return rec, err
	}
	rec.Season = Season(raw)

	return rec, nil
}

func formatFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid flag %q", s)
}

// parseLooseInt accepts "12" as well as the "12.0" that spreadsheet tools write back.
func parseLooseInt(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}
