package models

// Route identifies a transit line. ShortName is the public line number.
type Route struct {
	ID        string
	ShortName string
}

type Stop struct {
	ID  string
	Lat float64
	Lon float64
}

type Trip struct {
	ID      string
	RouteID string
}

// StopTime is one row of stop_times.txt with its times already parsed.
// ArrivalSeconds may exceed 86399 for trips running past midnight.
type StopTime struct {
	TripID           string
	StopID           string
	StopSequence     int
	ArrivalSeconds   int
	DepartureSeconds int
}

// ScheduledStopVisit is a stop time joined with its trip's route and its stop's position.
type ScheduledStopVisit struct {
	TripID         string
	RouteID        string
	StopID         string
	StopSequence   int
	ArrivalSeconds int
	Lat            float64
	Lon            float64
}
