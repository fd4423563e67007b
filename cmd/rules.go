package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"harvest_service/internal/config"
	"harvest_service/internal/core"
	"harvest_service/internal/domain/model"
	"harvest_service/internal/domain/repository"
)

func newRulesCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect or seed the biological spoilage rules",
	}
	cmd.AddCommand(newRulesListCommand(cfg))
	cmd.AddCommand(newRulesSeedCommand(cfg))
	return cmd
}

func newRulesListCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list [crop]",
		Short: "List rules in priority order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.ReadRules(cfg.RulesPath)
			if err != nil {
				return err
			}
			store, err := core.LoadRuleStore(data)
			if err != nil {
				return err
			}

			crops := store.Crops()
			if len(args) == 1 {
				if !store.HasCrop(args[0]) {
					return fmt.Errorf("no rules for crop %q", args[0])
				}
				crops = args[:1]
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CROP\tRULE\tSEVERITY\tTEMP °C\tHUMIDITY %\tSPOILS IN\tSOURCE")
			for _, crop := range crops {
				for _, r := range store.Rules(crop) {
					fmt.Fprintf(w, "%s\t%s\t%s\t%g-%g\t%g-%g\t%s\t%s\n",
						crop, r.ID, r.Severity, r.TempMin, r.TempMax, r.HumidityMin, r.HumidityMax,
						core.FormatSpoilage(r.SpoilageTimeHours), sourceName(store, r))
				}
			}
			return w.Flush()
		},
	}
}

func sourceName(store *core.RuleStore, r model.SpoilageRule) string {
	if src, ok := store.Source(r.SourceID); ok {
		return src.Name
	}
	return r.SourceID
}

func newRulesSeedCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace the rules stored in Postgres with the YAML rule set",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.PostgresURL == "" {
				return model.ConfigurationError("rules seed requires POSTGRES_URL")
			}
			ctx := cmd.Context()

			data, err := config.ReadRules(cfg.RulesPath)
			if err != nil {
				return err
			}
			store, err := core.LoadRuleStore(data)
			if err != nil {
				return err
			}

			db, err := repository.Connect(ctx, cfg.PostgresURL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := repository.EnsureSchema(ctx, db); err != nil {
				return err
			}

			set := store.RuleSet()
			if err := repository.NewRulesRepository(db).ReplaceRules(ctx, set.Sources, set.Rules); err != nil {
				return err
			}
			log.Infof("Seeded %s", store)
			return nil
		},
	}
}
