// Package migrate creates the schema and optionally loads seed data.
package migrate

import (
	"github.com/spf13/cobra"

	"github.com/evmtrack/evmtrack/internal/conf"
	"github.com/evmtrack/evmtrack/internal/datastore"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/logger"
)

// Command creates the migrate command.
func Command(settings *conf.Settings) *cobra.Command {
	var seedFile string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long:  "Migrate the custody schema. With --seed, load districts, local bodies, warehouses, polling stations and users from a YAML file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Global().Module("migrate")

			db, err := datastore.Open(&settings.Database, settings.Main.Debug, logger.Global().Module("datastore"))
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Warn("database close failed", logger.Error(err))
				}
			}()

			if err := db.Migrate(); err != nil {
				return err
			}
			if seedFile == "" {
				return nil
			}

			seed, err := LoadSeed(seedFile)
			if err != nil {
				return err
			}
			counts, err := seed.Apply(cmd.Context(), repository.NewStore(db.DB()))
			if err != nil {
				return err
			}
			log.Info("seed data loaded",
				logger.String("file", seedFile),
				logger.Int("districts", counts.Districts),
				logger.Int("local_bodies", counts.LocalBodies),
				logger.Int("warehouses", counts.Warehouses),
				logger.Int("polling_stations", counts.PollingStations),
				logger.Int("users", counts.Users))
			return nil
		},
	}

	cmd.Flags().StringVar(&seedFile, "seed", "", "YAML file with directory data and users to load")

	return cmd
}
