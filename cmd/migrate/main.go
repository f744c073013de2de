// Command migrate manages the database schema: the application tables and River's job tables.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/agendopro/webhook/internal/config"
	"github.com/agendopro/webhook/migrations"
	"github.com/agendopro/webhook/pkg/database"
)

func main() {
	config.LoadDotEnv()

	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultDeps() commandDeps {
	return commandDeps{
		newMigrator: func(databaseURL string) schemaMigrator {
			return database.NewMigrator(databaseURL, migrations.SQLs)
		},
		migrateRiver: migrateRiverUp,
	}
}

// migrateRiverUp installs or upgrades River's tables and returns the versions applied.
func migrateRiverUp(ctx context.Context, databaseURL string) ([]int, error) {
	pool, err := database.NewPostgresPool(ctx, databaseURL, database.WithMaxConns(2))
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return nil, fmt.Errorf("create river migrator: %w", err)
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return nil, fmt.Errorf("apply river migrations: %w", err)
	}

	versions := make([]int, 0, len(res.Versions))
	for _, v := range res.Versions {
		versions = append(versions, v.Version)
	}

	return versions, nil
}
