package main

import (
	"context"
	"time"

	mongoMigration "slotkeeper/internal/migrations/mongo"
	postgresMigration "slotkeeper/internal/migrations/postgres"
	"slotkeeper/pkg/config"
)

const JobName = "migrate"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.Log.Info("Starting migration job", "store", cfg.StoreDriver)

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if err := postgresMigration.RunMigration(cfg.PostgresDSN, cfg.Log); err != nil {
			cfg.Log.Fatal("Migration failed", "error", err)
		}
	default:
		cfg.SetStore()
		defer cfg.GracefulShutdown()
		if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
			cfg.Log.Fatal("Migration failed", "error", err)
		}
	}

	cfg.Log.Info("Migration completed successfully")
}
