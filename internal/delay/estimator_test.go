package delay

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adherence.onebusaway.org/internal/gtfstime"
	"adherence.onebusaway.org/internal/models"
)

func helsinki(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)
	return loc
}

func obsAt(at time.Time) models.VehicleObservation {
	lat, lon := 60.181557, 24.926863
	return models.VehicleObservation{
		VehicleID:  "22/1234",
		TripID:     "1055_t1",
		RouteID:    "1055",
		Latitude:   &lat,
		Longitude:  &lon,
		ObservedAt: at,
	}
}

func visitAt(t *testing.T, hhmmss string) models.ScheduledStopVisit {
	t.Helper()
	seconds, err := gtfstime.Parse(hhmmss)
	require.NoError(t, err)
	return models.ScheduledStopVisit{TripID: "1055_t1", RouteID: "1055", StopID: "1130446", StopSequence: 4, ArrivalSeconds: seconds}
}

func TestEstimateLate(t *testing.T) {
	loc := helsinki(t)
	e := New(loc, 0)

	rec, err := e.Estimate(obsAt(time.Date(2025, 10, 2, 8, 15, 0, 0, loc)), visitAt(t, "08:10:00"), "55")
	require.NoError(t, err)

	assert.Equal(t, 300, rec.DelaySeconds)
	assert.Equal(t, 5.0, rec.DelayMinutes())
	assert.True(t, rec.ScheduledAt.Equal(time.Date(2025, 10, 2, 8, 10, 0, 0, loc)))
	assert.Equal(t, "2025-10-02", rec.Date)
	assert.Equal(t, 8, rec.Hour)
	assert.Equal(t, 3, rec.DayOfWeek, "2025-10-02 is a Thursday")
	assert.False(t, rec.IsWeekend)
	assert.Equal(t, models.SeasonAutumn, rec.Season)
	assert.Equal(t, "55", rec.LineNumber)
	assert.Equal(t, "1130446", rec.StopID)
	assert.Equal(t, "1055_t1", rec.TripID)
	assert.Equal(t, 60.181557, rec.Latitude)
}

func TestEstimateEarlyWeekend(t *testing.T) {
	loc := helsinki(t)
	e := New(loc, 0)

	rec, err := e.Estimate(obsAt(time.Date(2026, 1, 4, 10, 58, 30, 0, loc)), visitAt(t, "11:00:00"), "550")
	require.NoError(t, err)
	assert.Equal(t, -90, rec.DelaySeconds)
	assert.Equal(t, -1.5, rec.DelayMinutes())
	assert.Equal(t, 6, rec.DayOfWeek)
	assert.True(t, rec.IsWeekend)
	assert.Equal(t, models.SeasonWinter, rec.Season)
}

func TestEstimateConvertsToServiceZone(t *testing.T) {
	loc := helsinki(t)
	e := New(loc, 0)

	// 05:15 UTC is 08:15 in Helsinki during summer time.
	rec, err := e.Estimate(obsAt(time.Date(2025, 6, 2, 5, 15, 0, 0, time.UTC)), visitAt(t, "08:10:00"), "55")
	require.NoError(t, err)
	assert.Equal(t, 300, rec.DelaySeconds)
	assert.Equal(t, 8, rec.Hour)
	assert.Equal(t, loc, rec.ObservedAt.Location())
	assert.Equal(t, models.SeasonSummer, rec.Season)
}

func TestEstimatePlausibilityWindow(t *testing.T) {
	loc := helsinki(t)
	e := New(loc, 0)

	tests := []struct {
		name     string
		observed time.Time
		sched    string
		ok       bool
	}{
		{"exactly two hours late", time.Date(2025, 10, 2, 10, 10, 0, 0, loc), "08:10:00", true},
		{"one second too late", time.Date(2025, 10, 2, 10, 10, 1, 0, loc), "08:10:00", false},
		{"exactly two hours early", time.Date(2025, 10, 2, 6, 10, 0, 0, loc), "08:10:00", true},
		{"far too early", time.Date(2025, 10, 2, 5, 0, 0, 0, loc), "08:10:00", false},
		{"rollover visit matched after midnight", time.Date(2025, 10, 3, 1, 12, 0, 0, loc), "25:10:00", false},
		{"rollover visit matched before midnight", time.Date(2025, 10, 2, 23, 50, 0, 0, loc), "24:10:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Estimate(obsAt(tt.observed), visitAt(t, tt.sched), "55")
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var implausible *ImplausibleDelayError
			require.True(t, errors.As(err, &implausible))
			assert.Equal(t, DefaultPlausibilityWindow, implausible.Limit)
			assert.Equal(t, "1130446", implausible.StopID)
		})
	}
}

func TestEstimateCustomWindow(t *testing.T) {
	loc := helsinki(t)
	e := New(loc, 10*time.Minute)

	_, err := e.Estimate(obsAt(time.Date(2025, 10, 2, 8, 25, 0, 0, loc)), visitAt(t, "08:10:00"), "55")
	var implausible *ImplausibleDelayError
	require.True(t, errors.As(err, &implausible))
	assert.Equal(t, 900, implausible.DelaySeconds)
}

func TestEstimateRequiresPosition(t *testing.T) {
	loc := helsinki(t)
	obs := obsAt(time.Date(2025, 10, 2, 8, 15, 0, 0, loc))
	obs.Longitude = nil

	_, err := New(loc, 0).Estimate(obs, visitAt(t, "08:10:00"), "55")
	assert.Error(t, err)
}

func TestEstimateRejectsNaNPosition(t *testing.T) {
	loc := helsinki(t)
	obs := obsAt(time.Date(2025, 10, 2, 8, 15, 0, 0, loc))
	nan := math.NaN()
	obs.Latitude = &nan

	_, err := New(loc, 0).Estimate(obs, visitAt(t, "08:10:00"), "55")
	assert.ErrorContains(t, err, "invalid position")
}

func TestWeekdayIndex(t *testing.T) {
	assert.Equal(t, 0, weekdayIndex(time.Monday))
	assert.Equal(t, 4, weekdayIndex(time.Friday))
	assert.Equal(t, 5, weekdayIndex(time.Saturday))
	assert.Equal(t, 6, weekdayIndex(time.Sunday))
}
