package repository

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/serjvanilla/go-overpass"

	"harvest_service/internal/domain/model"
)

// MarketplaceLocator finds a market's coordinates by name among OSM
// amenity=marketplace features inside the service region. Results, including
// misses, are memoized for the life of the process.
type MarketplaceLocator struct {
	client  *overpass.Client
	timeout time.Duration
	bbox    string

	mu    sync.Mutex
	known map[string]locateResult
}

type locateResult struct {
	loc   model.Location
	found bool
}

// NewMarketplaceLocator builds a locator; bbox is "south,west,north,east".
func NewMarketplaceLocator(endpoint string, timeout time.Duration, bbox string) *MarketplaceLocator {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &MarketplaceLocator{
		client:  &client,
		timeout: timeout,
		bbox:    bbox,
		known:   make(map[string]locateResult),
	}
}

func (r *MarketplaceLocator) Locate(ctx context.Context, marketName string) (model.Location, bool, error) {
	name := normalizeMarketName(marketName)
	if name == "" {
		return model.Location{}, false, nil
	}

	r.mu.Lock()
	cached, ok := r.known[name]
	r.mu.Unlock()
	if ok {
		return cached.loc, cached.found, nil
	}

	query := fmt.Sprintf(`
		[out:json];
		(
			node["amenity"="marketplace"]["name"~"%s",i](%s);
			way["amenity"="marketplace"]["name"~"%s",i](%s);
		);
		out body;
		>;
		out skel qt;
	`, name, r.bbox, name, r.bbox)

	result, err := r.executeQuery(ctx, query)
	if err != nil {
		return model.Location{}, false, fmt.Errorf("failed to locate market %q: %w", marketName, err)
	}

	loc, found := firstMarketplace(result)
	r.mu.Lock()
	r.known[name] = locateResult{loc: loc, found: found}
	r.mu.Unlock()

	if !found {
		log.WithField("market", marketName).Debug("no marketplace found in OSM")
	}
	return loc, found, nil
}

// executeQuery runs the query on its own goroutine; the overpass client has
// no context support, so cancellation only stops the wait.
func (r *MarketplaceLocator) executeQuery(ctx context.Context, query string) (*overpass.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type reply struct {
		result overpass.Result
		err    error
	}
	done := make(chan reply, 1)
	go func() {
		res, err := r.client.Query(query)
		done <- reply{result: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("overpass query abandoned: %w", ctx.Err())
	case rep := <-done:
		if rep.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", rep.err)
		}
		return &rep.result, nil
	}
}

// firstMarketplace prefers nodes, then way centroids. Map iteration order is
// random so the lowest element ID wins for determinism.
func firstMarketplace(result *overpass.Result) (model.Location, bool) {
	var (
		best   model.Location
		bestID int64
		found  bool
	)
	for _, node := range result.Nodes {
		if node.Tags["amenity"] != "marketplace" {
			continue
		}
		if !found || node.ID < bestID {
			best = model.Location{Latitude: node.Lat, Longitude: node.Lon}
			bestID = node.ID
			found = true
		}
	}
	if found {
		return best, true
	}

	for _, way := range result.Ways {
		if way.Tags["amenity"] != "marketplace" {
			continue
		}
		var lat, lon float64
		count := 0
		for _, node := range way.Nodes {
			if node == nil {
				continue
			}
			lat += node.Lat
			lon += node.Lon
			count++
		}
		if count == 0 {
			continue
		}
		if !found || way.ID < bestID {
			best = model.Location{Latitude: lat / float64(count), Longitude: lon / float64(count)}
			bestID = way.ID
			found = true
		}
	}
	return best, found
}

var nonNameChars = regexp.MustCompile(`[^\p{L}\p{N} ]+`)

// normalizeMarketName keeps letters, digits and spaces so the name is safe to
// embed in an Overpass regex filter. Suffixes like "APMC" stay.
func normalizeMarketName(name string) string {
	name = nonNameChars.ReplaceAllString(name, " ")
	return strings.Join(strings.Fields(name), " ")
}
