package config

import (
	"fmt"
	"strconv"
	"strings"

	"harvest_service/internal/domain/model"
)

// Region is an axis-aligned bounding box in degrees.
type Region struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

func (r Region) Contains(loc model.Location) bool {
	return loc.Latitude >= r.MinLat && loc.Latitude <= r.MaxLat &&
		loc.Longitude >= r.MinLon && loc.Longitude <= r.MaxLon
}

func (r Region) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", r.MinLat, r.MinLon, r.MaxLat, r.MaxLon)
}

// ParseBBox parses a bbox string in format "minLat,minLon,maxLat,maxLon".
func ParseBBox(bbox string) (Region, error) {
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("bbox must have 4 components, got %d", len(parts))
	}

	names := [4]string{"minLat", "minLon", "maxLat", "maxLon"}
	var vals [4]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Region{}, fmt.Errorf("invalid %s: %w", names[i], err)
		}
		vals[i] = v
	}
	r := Region{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}

	// Validate ranges
	if r.MinLat < -90 || r.MinLat > 90 || r.MaxLat < -90 || r.MaxLat > 90 {
		return Region{}, fmt.Errorf("latitude out of range [-90, 90]")
	}
	if r.MinLon < -180 || r.MinLon > 180 || r.MaxLon < -180 || r.MaxLon > 180 {
		return Region{}, fmt.Errorf("longitude out of range [-180, 180]")
	}
	if r.MinLat > r.MaxLat || r.MinLon > r.MaxLon {
		return Region{}, fmt.Errorf("minLat must be <= maxLat and minLon must be <= maxLon")
	}

	return r, nil
}
