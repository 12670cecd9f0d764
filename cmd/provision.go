/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"raptorfleet/internal/bootstrap"
	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/usecase/provisioning"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Apply provisioning documents",
}

var provisionApplyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Replace the unit configuration with a json, yaml or toml document",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		path := cmd.Flags().Arg(0)
		ctx := logging.WithAttrs(cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("document", path),
		)
		force, _ := cmd.Flags().GetBool("force")

		result, err := svc.Provisioning.ApplyFile(ctx, path, provisioning.ApplyOptions{Force: force})
		if err != nil {
			logging.Error(ctx, "apply provisioning document failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "apply provisioning document")
		}
		logging.Info(ctx, "provisioning document handled",
			slog.String("digest", result.Digest),
			slog.Bool("skipped", result.Skipped),
		)

		if result.Skipped {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "unchanged since last apply (%s); use --force to apply again\n", result.Digest)
			return errs.Wrap(err, "write apply output")
		}
		return renderFields(cmd.OutOrStdout(), [][2]string{
			{"digest", result.Digest},
			{"hardware_created", strconv.Itoa(result.HardwareCreated)},
			{"hardware_removed", strconv.FormatInt(result.HardwareRemoved, 10)},
		})
	}),
}

var provisionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last applied document digest",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		digest, at, found := svc.Provisioning.LastApplied(cmd.Context())
		if !found {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no document applied"))
			return errs.Wrap(err, "write status output")
		}
		applied := "-"
		if !at.IsZero() {
			applied = at.Format(time.RFC3339)
		}
		return renderFields(cmd.OutOrStdout(), [][2]string{
			{"digest", digest},
			{"applied_at", applied},
		})
	}),
}

var provisionSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of provisioning documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		schema, err := provisioning.Schema()
		if err != nil {
			return errs.Wrap(err, "build provisioning schema")
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
		return errs.Wrap(err, "write schema")
	},
}

func init() {
	rootCmd.AddCommand(provisionCmd)
	provisionCmd.AddCommand(provisionApplyCmd, provisionStatusCmd, provisionSchemaCmd)

	provisionApplyCmd.Flags().Bool("force", false, "Apply even when the document matches the last one applied")
}
