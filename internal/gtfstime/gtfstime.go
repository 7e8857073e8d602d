// Package gtfstime converts GTFS time-of-day strings to seconds and back, and
// anchors them onto calendar instants. GTFS hours may exceed 23 for trips that
// run past midnight of their service day, so seconds values are not bounded
// by the length of a day.
package gtfstime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SecondsPerDay is the length of a service day in seconds.
const SecondsPerDay = 86400

// MalformedTimeError is returned when a GTFS time string cannot be parsed.
type MalformedTimeError struct {
	Value  string
	Reason string
}

func (e *MalformedTimeError) Error() string {
	return fmt.Sprintf("malformed GTFS time %q: %s", e.Value, e.Reason)
}

// Parse converts "HH:MM:SS" to seconds since the start of the service day.
// Single digit hours ("8:15:00") are accepted, as many feeds emit them.
func Parse(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	parts := strings.Split(trimmed, ":")
	if len(parts) != 3 {
		return 0, &MalformedTimeError{Value: value, Reason: "expected HH:MM:SS"}
	}

	var fields [3]int
	for i, p := range parts {
		if p == "" {
			return 0, &MalformedTimeError{Value: value, Reason: "empty component"}
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, &MalformedTimeError{Value: value, Reason: "non-numeric component"}
		}
		if n < 0 || strings.HasPrefix(p, "+") || strings.HasPrefix(p, "-") {
			return 0, &MalformedTimeError{Value: value, Reason: "negative component"}
		}
		fields[i] = n
	}

	if fields[1] >= 60 || fields[2] >= 60 {
		return 0, &MalformedTimeError{Value: value, Reason: "minutes and seconds must be below 60"}
	}

	return fields[0]*3600 + fields[1]*60 + fields[2], nil
}

// Format is the inverse of Parse. Hours are not wrapped at 24.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// NormalizedSecondsOfDay folds a GTFS seconds value into [0, 86400).
func NormalizedSecondsOfDay(seconds int) int {
	n := seconds % SecondsPerDay
	if n < 0 {
		n += SecondsPerDay
	}
	return n
}

// DayOffset is the number of whole days a GTFS seconds value extends past its service date.
func DayOffset(seconds int) int {
	if seconds < 0 {
		return 0
	}
	return seconds / SecondsPerDay
}

// SecondsOfDay returns the wall-clock seconds since local midnight of t, in t's location.
func SecondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// ToCalendarInstant anchors a GTFS seconds value on serviceDate in loc.
// Only the year, month and day of serviceDate are used; values of 24:00:00 or
// more land on the following calendar day(s).
func ToCalendarInstant(seconds int, serviceDate time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = serviceDate.Location()
	}
	y, m, d := serviceDate.Date()
	normalized := NormalizedSecondsOfDay(seconds)
	return time.Date(y, m, d+DayOffset(seconds), 0, 0, normalized, 0, loc)
}
