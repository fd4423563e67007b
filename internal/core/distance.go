package core

import (
	"github.com/golang/geo/s2"

	"harvest_service/internal/domain/model"
)

// earthRadiusKm is the mean Earth radius.
const earthRadiusKm = 6371.01

// DistanceKm is the great-circle distance between two points.
func DistanceKm(a, b model.Location) float64 {
	from := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	to := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return from.Distance(to).Radians() * earthRadiusKm
}
