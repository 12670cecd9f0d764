/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"raptorfleet/internal/bootstrap"
	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/infrastructure/persistence/schema"
)

// initDbCmd represents the initDb command
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize or upgrade the database schema",
	Long: `Initialize or upgrade the database schema.

With --rebuild every table is dropped and created again. A sqlite database is
first copied to <path>.bak.<unix>, and that copy is put back if the rebuild
fails; --no-backup skips the copy.`,
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		rebuild, _ := cmd.Flags().GetBool("rebuild")
		if rebuild {
			noBackup, _ := cmd.Flags().GetBool("no-backup")
			result, err := app.RebuildSchema(ctx, bootstrap.RebuildOptions{Backup: !noBackup})
			if err != nil {
				logging.Error(ctx, "rebuild database failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "rebuild database")
			}
			if result.BackupPath != "" {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s\n", result.BackupPath); err != nil {
					return errs.Wrap(err, "write init-db output")
				}
			}
		}

		version, err := schema.Version(ctx, app.DB)
		if err != nil {
			logging.Error(ctx, "read schema version failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "read schema version")
		}

		logging.Info(ctx, "init-db finished", slog.String("database_dsn", app.Config.Database.DSN), slog.Bool("rebuild", rebuild))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "database schema at version %d: %s\n", version, app.Config.Database.DSN); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
	initDbCmd.Flags().Bool("rebuild", false, "Drop every table and create the schema again")
	initDbCmd.Flags().Bool("no-backup", false, "Skip the sqlite backup taken before --rebuild")
}
