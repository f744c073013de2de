package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
)

// schemaMigrator is the part of database.Migrator the commands drive.
type schemaMigrator interface {
	Up() error
	Down() error
	Status() (version uint, dirty bool, err error)
}

type commandDeps struct {
	newMigrator  func(databaseURL string) schemaMigrator
	migrateRiver func(ctx context.Context, databaseURL string) ([]int, error)
}

var errMissingDatabaseURL = errors.New("database URL is required (--database-url or DATABASE_URL)")

func newRootCmd(deps commandDeps) *cobra.Command {
	var databaseURL string

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Database schema commands",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if databaseURL == "" {
				return errMissingDatabaseURL
			}

			return nil
		},
	}

	root.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := deps.newMigrator(databaseURL).Up(); err != nil {
					return err
				}

				cmd.Println("database is up-to-date")

				return nil
			},
		},
		newDownCmd(deps, &databaseURL),
		&cobra.Command{
			Use:   "status",
			Short: "Print the current migration version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				version, dirty, err := deps.newMigrator(databaseURL).Status()
				if err != nil {
					return err
				}

				state := "clean"
				if dirty {
					state = "dirty"
				}

				cmd.Printf("version %d (%s)\n", version, state)

				return nil
			},
		},
		&cobra.Command{
			Use:   "river-up",
			Short: "Install or upgrade River's job tables",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				versions, err := deps.migrateRiver(cmd.Context(), databaseURL)
				if err != nil {
					return err
				}

				if len(versions) == 0 {
					cmd.Println("river schema is up-to-date")

					return nil
				}

				cmd.Printf("applied river migrations %v\n", versions)

				return nil
			},
		},
	)

	return root
}

func newDownCmd(deps commandDeps, databaseURL *string) *cobra.Command {
	var yes bool

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to roll back without --yes")
			}

			if err := deps.newMigrator(*databaseURL).Down(); err != nil {
				return err
			}

			cmd.Println("rolled back one migration")

			return nil
		},
	}

	down.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the rollback")

	return down
}
