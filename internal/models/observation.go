package models

import "time"

// VehicleObservation is one vehicle position taken from a realtime snapshot.
// It lives only for the round that produced it.
type VehicleObservation struct {
	VehicleID string
	// TripID is empty when the feed did not carry one.
	TripID  string
	RouteID string

	Latitude  *float64
	Longitude *float64
	Direction *int

	// ObservedAt is the vehicle timestamp, or the collector's clock when the
	// feed omitted it, expressed in the configured service time zone.
	ObservedAt     time.Time
	ClockTimestamp bool
}

// HasTrip reports whether the observation carries a trip identifier.
func (o VehicleObservation) HasTrip() bool {
	return o.TripID != ""
}

// Position returns the coordinates, with ok=false when either is missing.
func (o VehicleObservation) Position() (lat, lon float64, ok bool) {
	if o.Latitude == nil || o.Longitude == nil {
		return 0, 0, false
	}
	return *o.Latitude, *o.Longitude, true
}
