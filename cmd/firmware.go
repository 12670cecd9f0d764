/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"raptorfleet/internal/bootstrap"
	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
)

var firmwareCmd = &cobra.Command{
	Use:   "firmware",
	Short: "Record and inspect reported firmware versions",
}

var firmwareReportCmd = &cobra.Command{
	Use:   "report <version-tag>",
	Short: "Record the firmware version the unit is running",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		at, err := timeFlag(cmd, "timestamp")
		if err != nil {
			return err
		}
		id, err := svc.Firmware.Report(ctx, cmd.Flags().Arg(0), at)
		if err != nil {
			return errs.Wrap(err, "report firmware")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "recorded firmware report %d\n", id)
		return errs.Wrap(err, "write report output")
	}),
}

var firmwareLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the most recently reported version",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		version, err := svc.Firmware.LatestVersion(cmd.Context())
		if errors.Is(err, fleet.ErrNotFound) {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no firmware reported"))
			return errs.Wrap(err, "write latest output")
		}
		if err != nil {
			return errs.Wrap(err, "load latest firmware")
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), version)
		return errs.Wrap(err, "write latest output")
	}),
}

var firmwareHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List firmware reports, newest first",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		limit, _ := cmd.Flags().GetInt("limit")
		reports, err := svc.Firmware.History(cmd.Context(), limit)
		if err != nil {
			return errs.Wrap(err, "load firmware history")
		}
		rows := make([][]string, 0, len(reports))
		for _, r := range reports {
			rows = append(rows, []string{
				strconv.FormatUint(r.ID, 10),
				r.VersionTag,
				r.Timestamp.Format(time.RFC3339),
			})
		}
		return renderTable(cmd.OutOrStdout(), []string{"ID", "VERSION", "REPORTED"}, rows)
	}),
}

var firmwareReconcileCmd = &cobra.Command{
	Use:   "reconcile <raptor-id>",
	Short: "Compare the reported firmware with the registry tag of a unit",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		drift, err := svc.Firmware.Reconcile(cmd.Context(), cmd.Flags().Arg(0))
		if err != nil {
			return errs.Wrap(err, "reconcile firmware")
		}
		return renderFields(cmd.OutOrStdout(), [][2]string{
			{"raptor_id", drift.RaptorID},
			{"registry_tag", orDash(drift.RegistryTag)},
			{"reported_tag", orDash(drift.ReportedTag)},
			{"has_report", strconv.FormatBool(drift.HasReport)},
			{"in_sync", strconv.FormatBool(drift.InSync)},
		})
	}),
}

func init() {
	rootCmd.AddCommand(firmwareCmd)
	firmwareCmd.AddCommand(firmwareReportCmd, firmwareLatestCmd, firmwareHistoryCmd, firmwareReconcileCmd)

	firmwareReportCmd.Flags().String("timestamp", "", "RFC3339 time of the report; defaults to now")
	firmwareHistoryCmd.Flags().Int("limit", 20, "Maximum reports; 0 means all")
}
