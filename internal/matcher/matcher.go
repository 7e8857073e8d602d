// Package matcher selects the scheduled stop visit that best explains a
// vehicle observation.
//
// Candidates come from the observation's trip when the static feed knows it,
// otherwise from every trip on its route. Visits scheduled more than
// Lookahead after the observation's time of day are discarded; the remaining
// ones are scored by distance plus a weighted penalty for how long ago they
// were scheduled, and the lowest score wins.
package matcher

import (
	"fmt"
	"time"

	"adherence.onebusaway.org/internal/gtfstime"
	"adherence.onebusaway.org/internal/models"
	"adherence.onebusaway.org/internal/utils"
)

const (
	DefaultLookahead  = 300 * time.Second
	DefaultTimeWeight = 5.0
)

// Reason explains why no candidate was selected.
type Reason string

const (
	ReasonNoPosition   Reason = "no_position"
	ReasonNoCandidates Reason = "no_candidates"
	ReasonAllInFuture  Reason = "all_beyond_lookahead"
)

// NoCandidateError is returned when an observation cannot be matched.
type NoCandidateError struct {
	VehicleID string
	Reason    Reason
}

func (e *NoCandidateError) Error() string {
	return fmt.Sprintf("no candidate stop visit for vehicle %q: %s", e.VehicleID, e.Reason)
}

// Level is the lookup used to gather candidates.
type Level string

const (
	LevelTrip  Level = "trip"
	LevelRoute Level = "route"
)

// CandidateSource is the subset of the schedule index the matcher reads.
type CandidateSource interface {
	CandidatesForTrip(tripID string) []models.ScheduledStopVisit
	CandidatesForRoute(routeID string) []models.ScheduledStopVisit
}

// Match is the selected visit with the figures that selected it.
type Match struct {
	Visit          models.ScheduledStopVisit
	DistanceMeters float64
	Score          float64
	Level          Level
}

// Config tunes the matcher. Zero values select the defaults.
type Config struct {
	Lookahead  time.Duration
	TimeWeight float64
}

type Matcher struct {
	lookaheadSeconds int
	timeWeight       float64
}

func New(cfg Config) *Matcher {
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = DefaultLookahead
	}
	if cfg.TimeWeight <= 0 {
		cfg.TimeWeight = DefaultTimeWeight
	}
	return &Matcher{
		lookaheadSeconds: int(cfg.Lookahead / time.Second),
		timeWeight:       cfg.TimeWeight,
	}
}

// Candidates returns the visits considered for obs and the level they came from.
func Candidates(obs models.VehicleObservation, src CandidateSource) ([]models.ScheduledStopVisit, Level) {
	if obs.HasTrip() {
		if visits := src.CandidatesForTrip(obs.TripID); len(visits) > 0 {
			return visits, LevelTrip
		}
	}
	return src.CandidatesForRoute(obs.RouteID), LevelRoute
}

// Match selects the best visit for obs. Ties on score go to the lowest
// stop_sequence, then to the earliest candidate in index order.
func (m *Matcher) Match(obs models.VehicleObservation, src CandidateSource) (Match, error) {
	candidates, level := Candidates(obs, src)
	if len(candidates) == 0 {
		return Match{}, &NoCandidateError{VehicleID: obs.VehicleID, Reason: ReasonNoCandidates}
	}

	lat, lon, ok := obs.Position()
	if !ok || !utils.ValidCoordinate(lat, lon) {
		return Match{}, &NoCandidateError{VehicleID: obs.VehicleID, Reason: ReasonNoPosition}
	}

	currentSeconds := gtfstime.SecondsOfDay(obs.ObservedAt)
	limit := currentSeconds + m.lookaheadSeconds

	var (
		best  Match
		found bool
	)
	for _, v := range candidates {
		scheduled := gtfstime.NormalizedSecondsOfDay(v.ArrivalSeconds)
		if scheduled > limit {
			continue
		}
		dist := utils.HaversineMeters(lat, lon, v.Lat, v.Lon)
		score := dist + float64(currentSeconds-scheduled)*m.timeWeight

		if !found || score < best.Score || (score == best.Score && v.StopSequence < best.Visit.StopSequence) {
			best = Match{Visit: v, DistanceMeters: dist, Score: score, Level: level}
			found = true
		}
	}

	if !found {
		return Match{}, &NoCandidateError{VehicleID: obs.VehicleID, Reason: ReasonAllInFuture}
	}
	return best, nil
}
