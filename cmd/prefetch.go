package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"harvest_service/internal/config"
	"harvest_service/internal/domain/model"
)

func newPrefetchCommand(cfg *config.Config) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:     "prefetch lat,lon [lat,lon...]",
		Short:   "Warm the geospatial cache for the given locations",
		Example: "  harvest prefetch 20.94,77.76 21.15,79.09 --concurrency 2",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locs := make([]model.Location, 0, len(args))
			for _, arg := range args {
				loc, err := parseLocation(arg)
				if err != nil {
					return err
				}
				locs = append(locs, loc)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			failed := 0
			for _, r := range a.geo.Prefetch(ctx, locs, concurrency) {
				if r.Error != "" {
					failed++
					log.WithField("key", r.Key).Warnf("Warning: failed to prefetch: %s", r.Error)
					continue
				}
				log.WithField("key", r.Key).Info("prefetched")
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d locations failed", failed, len(locs))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "maximum concurrent provider fetches")
	return cmd
}

func parseLocation(s string) (model.Location, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return model.Location{}, fmt.Errorf("invalid location %q: want lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.Location{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.Location{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	loc := model.Location{Latitude: lat, Longitude: lon}
	if err := loc.Validate(); err != nil {
		return model.Location{}, err
	}
	return loc, nil
}
