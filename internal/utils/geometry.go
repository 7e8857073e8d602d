package utils

import "math"

const (
	// RadiusOfEarthInMeters is the mean earth radius used by the haversine formula.
	RadiusOfEarthInMeters = 6371000.0
)

func toRadians(deg float64) float64 {
	return deg * (math.Pi / 180)
}

// HaversineMeters returns the great-circle distance in meters between two
// WGS84 points. The intermediate term is clamped to [0,1] so rounding on
// near-antipodal points stays finite. NaN input yields NaN.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda

	root := math.Sqrt(a)
	if root > 1 {
		root = 1
	}

	return 2 * RadiusOfEarthInMeters * math.Asin(root)
}

// ValidCoordinate reports whether lat/lon are finite and within WGS84 ranges.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
