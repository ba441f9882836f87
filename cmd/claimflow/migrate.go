package main

import (
	"errors"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrationsSource string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run results store migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return eris.Wrap(err, "migration up failed")
			}
			zap.L().Info("migrations applied successfully")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert all migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return eris.Wrap(err, "migration down failed")
			}
			zap.L().Info("migrations reverted successfully")
			return nil
		})
	},
}

var migrateStepsCmd = &cobra.Command{
	Use:   "steps N",
	Short: "Apply N migrations, or revert them when N is negative",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return eris.Wrapf(err, "invalid steps argument %q", args[0])
		}
		return withMigrator(func(m *migrate.Migrate) error {
			if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return eris.Wrap(err, "migration steps failed")
			}
			zap.L().Info("applied migration steps", zap.Int("steps", n))
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current migration version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			v, dirty, err := m.Version()
			if err != nil {
				return eris.Wrap(err, "failed to get version")
			}
			cmd.Printf("version: %d, dirty: %v\n", v, dirty)
			return nil
		})
	},
}

func withMigrator(fn func(m *migrate.Migrate) error) error {
	m, err := migrate.New(migrationsSource, cfg.DB.DSN())
	if err != nil {
		return eris.Wrap(err, "failed to create migrate instance")
	}
	defer m.Close()
	return fn(m)
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsSource, "source", "file://db/migrations", "migrations source URL")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStepsCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}
