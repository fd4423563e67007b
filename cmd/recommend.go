package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"harvest_service/internal/config"
	"harvest_service/internal/domain/model"
)

func newRecommendCommand(cfg *config.Config) *cobra.Command {
	var (
		req    model.RecommendationRequest
		stream bool
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Produce one recommendation and print it as JSON",
		Example: `  harvest recommend --lat 20.94 --lon 77.76 --crop tomato --field-size 2
  harvest recommend --lat 20.94 --lon 77.76 --crop onion --field-size 1 --lang hi --stream`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			enc := json.NewEncoder(os.Stdout)
			enc.SetEscapeHTML(false)

			if !stream {
				res, err := a.synth.Recommend(ctx, req)
				if err != nil {
					return err
				}
				enc.SetIndent("", "  ")
				return enc.Encode(res.Recommendation)
			}

			fragments, err := a.synth.Stream(ctx, req)
			if err != nil {
				return err
			}
			for f := range fragments {
				if err := enc.Encode(f); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&req.Location.Latitude, "lat", 0, "field latitude")
	cmd.Flags().Float64Var(&req.Location.Longitude, "lon", 0, "field longitude")
	cmd.Flags().StringVar(&req.Crop, "crop", "", "crop id (tomato, onion)")
	cmd.Flags().Float64Var(&req.FieldSizeHectares, "field-size", 1, "field size in hectares")
	cmd.Flags().StringVar(&req.Language, "lang", "en", "response language (en|hi)")
	cmd.Flags().StringVar(&req.FarmerID, "farmer", "", "farmer id recorded with the recommendation")
	cmd.Flags().BoolVar(&stream, "stream", false, "print fragments as JSON lines in stream order")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	_ = cmd.MarkFlagRequired("crop")
	return cmd
}
