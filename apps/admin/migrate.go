package main

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/youknow/checklist/storage/database"
)

var errNoDatabase = errors.New("migrations need a postgres database (database.inMemory is set)")

// mockable
var (
	migrateUpFunc     = database.Migrate
	migrateDownFunc   = database.Rollback
	migrateStatusFunc = database.MigrationStatus
)

func (cli *commandLine) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "migrate",
		Args:    cobra.NoArgs,
		Aliases: []string{"m"},
		Short:   "Database migration commands",
	}
	cmd.AddCommand(
		cli.migrateSubCmd("up", "Apply all pending migrations", migrateUpFunc),
		cli.migrateSubCmd("down", "Roll back the last migration", migrateDownFunc),
		cli.migrateSubCmd("status", "Print the status of every migration", migrateStatusFunc),
	)
	return cmd
}

func (cli *commandLine) migrateSubCmd(use, short string, run func(*sqlx.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cli.db == nil {
				return errNoDatabase
			}
			return run(cli.db)
		},
	}
}
