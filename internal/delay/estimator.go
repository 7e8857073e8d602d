// Package delay turns a matched stop visit into a signed schedule deviation
// and the calendar fields stored alongside it.
package delay

import (
	"fmt"
	"time"

	"adherence.onebusaway.org/internal/gtfstime"
	"adherence.onebusaway.org/internal/models"
	"adherence.onebusaway.org/internal/utils"
)

// DefaultPlausibilityWindow bounds |delay|; anything larger is treated as a bad match.
const DefaultPlausibilityWindow = 2 * time.Hour

// ImplausibleDelayError is returned when a computed delay falls outside the plausibility window.
type ImplausibleDelayError struct {
	VehicleID    string
	StopID       string
	DelaySeconds int
	Limit        time.Duration
}

func (e *ImplausibleDelayError) Error() string {
	return fmt.Sprintf("implausible delay %ds for vehicle %q at stop %q (limit %s)",
		e.DelaySeconds, e.VehicleID, e.StopID, e.Limit)
}

type Estimator struct {
	location *time.Location
	window   time.Duration
}

// New returns an Estimator anchoring schedules in loc. A non-positive window selects the default.
func New(loc *time.Location, window time.Duration) *Estimator {
	if loc == nil {
		loc = time.Local
	}
	if window <= 0 {
		window = DefaultPlausibilityWindow
	}
	return &Estimator{location: loc, window: window}
}

// Estimate computes the delay of obs against visit. The scheduled instant is
// anchored on the observation's local calendar date.
func (e *Estimator) Estimate(obs models.VehicleObservation, visit models.ScheduledStopVisit, lineNumber string) (models.MatchedDelayRecord, error) {
	lat, lon, ok := obs.Position()
	if !ok {
		return models.MatchedDelayRecord{}, fmt.Errorf("vehicle %q has no position", obs.VehicleID)
	}
	if !utils.ValidCoordinate(lat, lon) {
		return models.MatchedDelayRecord{}, fmt.Errorf("vehicle %q has invalid position %v,%v", obs.VehicleID, lat, lon)
	}

	observed := obs.ObservedAt.In(e.location).Truncate(time.Second)
	scheduled := gtfstime.ToCalendarInstant(visit.ArrivalSeconds, observed, e.location)

	diff := observed.Sub(scheduled)
	delaySeconds := int(diff / time.Second)
	if diff > e.window || diff < -e.window {
		return models.MatchedDelayRecord{}, &ImplausibleDelayError{
			VehicleID:    obs.VehicleID,
			StopID:       visit.StopID,
			DelaySeconds: delaySeconds,
			Limit:        e.window,
		}
	}

	dow := weekdayIndex(observed.Weekday())
	return models.MatchedDelayRecord{
		ObservedAt:   observed,
		ScheduledAt:  scheduled,
		Date:         observed.Format(models.DateLayout),
		Hour:         observed.Hour(),
		DayOfWeek:    dow,
		IsWeekend:    dow >= 5,
		Season:       models.SeasonOf(observed.Month()),
		LineNumber:   lineNumber,
		RouteID:      obs.RouteID,
		TripID:       obs.TripID,
		VehicleID:    obs.VehicleID,
		StopID:       visit.StopID,
		Latitude:     lat,
		Longitude:    lon,
		DelaySeconds: delaySeconds,
	}, nil
}

// weekdayIndex numbers days Monday=0 through Sunday=6.
func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
