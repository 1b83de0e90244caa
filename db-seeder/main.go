package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/patra-app/matchrank/logging"
	"github.com/patra-app/matchrank/store"
)

func main() {
	logging.Init(logging.Config{Level: "info", Format: "console"})
	if err := newRootCmd().Execute(); err != nil {
		logging.Error().Err(err).Msg("seeder failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o genOptions
	root := &cobra.Command{
		Use:           "db-seeder",
		Short:         "Generate deterministic profiles and interactions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().IntVar(&o.Count, "count", 300, "number of users to create")
	root.PersistentFlags().Int64Var(&o.Seed, "seed", 42, "RNG seed (deterministic)")
	root.PersistentFlags().Float64Var(&o.InteractionRate, "interaction-rate", 4, "interactions per user")

	var dsn string
	var truncate bool
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the dataset to Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return errors.New("missing DSN: provide --dsn or set DATABASE_URL")
			}
			if err := o.validate(); err != nil {
				return err
			}
			o.Now = time.Now()
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			return seedPostgres(ctx, dsn, truncate, generate(o))
		},
	}
	seedCmd.Flags().StringVar(&dsn, "dsn", os.Getenv("DATABASE_URL"), "Postgres DSN [env: DATABASE_URL]")
	seedCmd.Flags().BoolVar(&truncate, "truncate", false, "delete existing profiles and interactions first")

	var out string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dataset as a YAML seed file for the memory store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.validate(); err != nil {
				return err
			}
			o.Now = time.Now()
			return exportYAML(out, generate(o))
		},
	}
	exportCmd.Flags().StringVarP(&out, "out", "o", "seed.yaml", "output file")

	root.AddCommand(seedCmd, exportCmd)
	return root
}

func (o genOptions) validate() error {
	if o.Count < 1 {
		return errors.New("--count must be at least 1")
	}
	if o.InteractionRate < 0 {
		return errors.New("--interaction-rate must not be negative")
	}
	return nil
}

func seedPostgres(ctx context.Context, dsn string, truncate bool, ds dataset) error {
	pg, err := store.OpenPostgres(ctx, dsn)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if truncate {
		if _, err := pg.DB().ExecContext(ctx, `TRUNCATE TABLE interactions, profiles CASCADE`); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
		logging.Info().Msg("truncated profiles and interactions")
	}

	for _, raw := range ds.Profiles {
		if err := pg.UpsertProfile(ctx, raw.Normalize()); err != nil {
			return fmt.Errorf("upsert profile %s: %w", raw.ID, err)
		}
	}
	logging.Info().Int("count", len(ds.Profiles)).Msg("inserted profiles")

	for _, in := range ds.Interactions {
		if err := pg.SaveInteraction(ctx, in); err != nil {
			return fmt.Errorf("save interaction %s: %w", in.ID, err)
		}
	}
	logging.Info().Int("count", len(ds.Interactions)).Msg("inserted interactions")
	logging.Info().Msg("seed complete")
	return nil
}

func exportYAML(path string, ds dataset) error {
	data, err := yaml.Marshal(store.SeedFile{Profiles: ds.Profiles, Interactions: ds.Interactions})
	if err != nil {
		return fmt.Errorf("encode seed file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write seed file: %w", err)
	}
	logging.Info().Str("path", path).Int("profiles", len(ds.Profiles)).
		Int("interactions", len(ds.Interactions)).Msg("seed file written")
	return nil
}
