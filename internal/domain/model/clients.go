package model

import "context"

// GeospatialProvider fetches satellite-derived signals and the daily forecast
// for a location. A fetch either succeeds completely or fails.
type GeospatialProvider interface {
	Fetch(ctx context.Context, loc Location) (RawGeospatial, error)
}

// PriceSource returns current quotes for a crop across the markets it knows.
type PriceSource interface {
	Name() string
	FetchQuotes(ctx context.Context, crop string) ([]MarketQuote, error)
}

// MarketLocator resolves a market's coordinates from its name.
type MarketLocator interface {
	Locate(ctx context.Context, marketName string) (Location, bool, error)
}

// HistoryRecorder keeps emitted recommendations for later review.
type HistoryRecorder interface {
	Record(ctx context.Context, rec Recommendation) error
}
