// Package schedule joins the static GTFS tables into scheduled stop visits
// and indexes them by trip and by route. An Index is immutable once built and
// may be shared by any number of readers.
package schedule

import (
	"fmt"
	"sort"

	"adherence.onebusaway.org/internal/models"
	"adherence.onebusaway.org/internal/utils"
)

// UnknownRouteError is returned when a route id is not present in the static feed.
type UnknownRouteError struct {
	RouteID string
}

func (e *UnknownRouteError) Error() string {
	return fmt.Sprintf("unknown route %q", e.RouteID)
}

// Stats describes how an Index was built.
type Stats struct {
	Routes    int
	Stops     int
	Trips     int
	StopTimes int
	Visits    int

	SkippedUnknownStop        int
	SkippedUnknownTrip        int
	SkippedDuplicateSequence  int
	SkippedInvalidCoordinates int
}

// Index is the static schedule keyed by trip and by route.
type Index struct {
	routes  map[string]models.Route
	byTrip  map[string][]models.ScheduledStopVisit
	byRoute map[string][]models.ScheduledStopVisit
	stats   Stats
}

// Build joins stop times with their stops and trips.
// Stop times referencing a missing stop or trip are skipped and counted; so
// are repeated stop_sequence values within a trip, where the first row wins.
func Build(routes []models.Route, stops []models.Stop, trips []models.Trip, stopTimes []models.StopTime) *Index {
	stopByID := make(map[string]models.Stop, len(stops))
	for _, s := range stops {
		stopByID[s.ID] = s
	}
	routeByTrip := make(map[string]string, len(trips))
	for _, t := range trips {
		routeByTrip[t.ID] = t.RouteID
	}

	stats := Stats{
		Stops:     len(stopByID),
		Trips:     len(routeByTrip),
		StopTimes: len(stopTimes),
	}

	visits := make([]models.ScheduledStopVisit, 0, len(stopTimes))
	for _, st := range stopTimes {
		stop, ok := stopByID[st.StopID]
		if !ok {
			stats.SkippedUnknownStop++
			continue
		}
		routeID, ok := routeByTrip[st.TripID]
		if !ok {
			stats.SkippedUnknownTrip++
			continue
		}
		visits = append(visits, models.ScheduledStopVisit{
			TripID:         st.TripID,
			RouteID:        routeID,
			StopID:         st.StopID,
			StopSequence:   st.StopSequence,
			ArrivalSeconds: st.ArrivalSeconds,
			Lat:            stop.Lat,
			Lon:            stop.Lon,
		})
	}

	idx := FromVisits(routes, visits)
	idx.stats.Stops = stats.Stops
	idx.stats.Trips = stats.Trips
	idx.stats.StopTimes = stats.StopTimes
	idx.stats.SkippedUnknownStop = stats.SkippedUnknownStop
	idx.stats.SkippedUnknownTrip = stats.SkippedUnknownTrip
	return idx
}

// FromVisits indexes already joined visits, as read back from the local cache.
func FromVisits(routes []models.Route, visits []models.ScheduledStopVisit) *Index {
	idx := &Index{
		routes:  make(map[string]models.Route, len(routes)),
		byTrip:  make(map[string][]models.ScheduledStopVisit),
		byRoute: make(map[string][]models.ScheduledStopVisit),
	}
	for _, r := range routes {
		idx.routes[r.ID] = r
	}

	seen := make(map[string]map[int]struct{})
	for _, v := range visits {
		if v.ArrivalSeconds < 0 {
			continue
		}
		if !utils.ValidCoordinate(v.Lat, v.Lon) {
			idx.stats.SkippedInvalidCoordinates++
			continue
		}
		seq, ok := seen[v.TripID]
		if !ok {
			seq = make(map[int]struct{})
			seen[v.TripID] = seq
		}
		if _, dup := seq[v.StopSequence]; dup {
			idx.stats.SkippedDuplicateSequence++
			continue
		}
		seq[v.StopSequence] = struct{}{}

		idx.byTrip[v.TripID] = append(idx.byTrip[v.TripID], v)
		idx.byRoute[v.RouteID] = append(idx.byRoute[v.RouteID], v)
		idx.stats.Visits++
	}

	for _, list := range idx.byTrip {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].StopSequence < list[j].StopSequence
		})
	}
	for _, list := range idx.byRoute {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].TripID != list[j].TripID {
				return list[i].TripID < list[j].TripID
			}
			return list[i].StopSequence < list[j].StopSequence
		})
	}

	idx.stats.Routes = len(idx.routes)
	idx.stats.Trips = len(idx.byTrip)
	return idx
}

// CandidatesForTrip returns the visits of a trip ordered by stop_sequence.
// The returned slice is shared and must not be modified.
func (idx *Index) CandidatesForTrip(tripID string) []models.ScheduledStopVisit {
	return idx.byTrip[tripID]
}

// CandidatesForRoute returns every visit of every trip on the route, ordered
// by trip id then stop_sequence. The returned slice is shared and must not be modified.
func (idx *Index) CandidatesForRoute(routeID string) []models.ScheduledStopVisit {
	return idx.byRoute[routeID]
}

// HasTrip reports whether the trip has at least one visit.
func (idx *Index) HasTrip(tripID string) bool {
	return len(idx.byTrip[tripID]) > 0
}

// ShortNameForRoute returns the public line number of a route.
func (idx *Index) ShortNameForRoute(routeID string) (string, bool) {
	r, ok := idx.routes[routeID]
	return r.ShortName, ok
}

// ResolveRoute returns the route or an UnknownRouteError.
func (idx *Index) ResolveRoute(routeID string) (models.Route, error) {
	r, ok := idx.routes[routeID]
	if !ok {
		return models.Route{}, &UnknownRouteError{RouteID: routeID}
	}
	return r, nil
}

// Routes returns all routes ordered by id.
func (idx *Index) Routes() []models.Route {
	routes := make([]models.Route, 0, len(idx.routes))
	for _, r := range idx.routes {
		routes = append(routes, r)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].ID < routes[j].ID })
	return routes
}

// Visits returns all indexed visits ordered by trip id then stop_sequence.
func (idx *Index) Visits() []models.ScheduledStopVisit {
	tripIDs := make([]string, 0, len(idx.byTrip))
	for id := range idx.byTrip {
		tripIDs = append(tripIDs, id)
	}
	sort.Strings(tripIDs)

	visits := make([]models.ScheduledStopVisit, 0, idx.stats.Visits)
	for _, id := range tripIDs {
		visits = append(visits, idx.byTrip[id]...)
	}
	return visits
}

func (idx *Index) Stats() Stats {
	return idx.stats
}
