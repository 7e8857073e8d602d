package models

// LiveVehicle is the JSON shape published for live map consumers.
// Direction and coordinates are null when the feed omitted them.
type LiveVehicle struct {
	VehicleID  string   `json:"vehicle_id"`
	RouteID    string   `json:"route_id"`
	LineNumber string   `json:"line_number"`
	Direction  *int     `json:"direction"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

// LiveVehiclesFromObservations converts observations whose route resolves
// through lineNumber. Observations with an unknown route are left out.
func LiveVehiclesFromObservations(observations []VehicleObservation, lineNumber func(routeID string) (string, bool)) []LiveVehicle {
	vehicles := make([]LiveVehicle, 0, len(observations))
	for _, obs := range observations {
		line, ok := lineNumber(obs.RouteID)
		if !ok {
			continue
		}
		vehicles = append(vehicles, LiveVehicle{
			VehicleID:  obs.VehicleID,
			RouteID:    obs.RouteID,
			LineNumber: line,
			Direction:  obs.Direction,
			Latitude:   obs.Latitude,
			Longitude:  obs.Longitude,
		})
	}
	return vehicles
}
