package model

import "time"

type MarketQuote struct {
	MarketName           string    `json:"name"`
	Location             *Location `json:"location,omitempty"`
	PricePerUnit         float64   `json:"price_per_kg"`
	DistanceFromFarmerKm float64   `json:"distance_km"`
	ObservedAt           time.Time `json:"last_updated"`
	Source               string    `json:"source,omitempty"`
}

// KnownMarket is a registered mandi with fixed coordinates and no price.
type KnownMarket struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"lat" yaml:"latitude"`
	Longitude float64 `json:"lon" yaml:"longitude"`
}

func (m KnownMarket) Location() Location {
	return Location{Latitude: m.Latitude, Longitude: m.Longitude}
}
