package main

import (
	"context"
	"flag"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/bill-tracker/internal/config"
	infra "github.com/dvloznov/bill-tracker/internal/infra/bigquery"
	"github.com/dvloznov/bill-tracker/internal/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	projectID := flag.String("project", cfg.BigQuery.Project, "GCP project ID (required)")
	datasetID := flag.String("dataset", cfg.BigQuery.Dataset, "BigQuery dataset ID")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir := flag.String("migrations", "", "Directory of migration files (default: built-in migrations)")
	flag.Parse()

	if *projectID == "" {
		log.Fatal().Msg("-project flag is required. Please specify your GCP project ID.")
	}

	ctx := logger.WithContext(context.Background(), log)

	fsys := infra.Migrations()
	if *migrationsDir != "" {
		fsys = os.DirFS(*migrationsDir)
	}

	migrations, err := infra.ReadMigrations(ctx, fsys, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	applied, err := infra.NewMigrator(client, *projectID, *datasetID, *appliedBy).Apply(ctx, migrations)
	if err != nil {
		log.Fatal().Err(err).Int("applied", applied).Msg("Migration failed")
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
		return
	}
	log.Info().Int("applied", applied).Msg("Successfully applied migrations")
}
