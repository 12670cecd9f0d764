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
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/usecase/telemetry"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Append to and read the telemetry log",
}

var telemetryAppendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append one telemetry payload",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		data, err := payloadFlag(cmd, "data")
		if err != nil {
			return err
		}
		at, err := timeFlag(cmd, "timestamp")
		if err != nil {
			return err
		}
		id, err := svc.Telemetry.Append(ctx, data, at)
		if err != nil {
			logging.Error(ctx, "append telemetry failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "append telemetry")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "appended telemetry %d\n", id)
		return errs.Wrap(err, "write append output")
	}),
}

var telemetryQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Read telemetry in id order",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		sinceID, _ := cmd.Flags().GetUint64("since-id")
		limit, _ := cmd.Flags().GetInt("limit")
		sinceTime, err := timeFlag(cmd, "since")
		if err != nil {
			return err
		}

		readings, err := svc.Telemetry.Query(cmd.Context(), telemetry.QueryOptions{
			SinceID:   sinceID,
			SinceTime: sinceTime,
			Limit:     limit,
		})
		if err != nil {
			return errs.Wrap(err, "query telemetry")
		}
		return renderReadings(cmd, readings)
	}),
}

var telemetryCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count stored telemetry",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		count, err := svc.Telemetry.Count(cmd.Context())
		if err != nil {
			return errs.Wrap(err, "count telemetry")
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), count)
		return errs.Wrap(err, "write count output")
	}),
}

var telemetryBacklogCmd = &cobra.Command{
	Use:   "backlog",
	Short: "Show the most recent telemetry, newest first",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		limit, _ := cmd.Flags().GetInt("limit")
		readings, err := svc.Telemetry.Backlog(cmd.Context(), limit)
		if err != nil {
			return errs.Wrap(err, "load telemetry backlog")
		}
		return renderReadings(cmd, readings)
	}),
}

func renderReadings(cmd *cobra.Command, readings []fleet.TelemetryReading) error {
	rows := make([][]string, 0, len(readings))
	for _, r := range readings {
		rows = append(rows, []string{
			strconv.FormatUint(r.ID, 10),
			r.Timestamp.Format(time.RFC3339Nano),
			r.Data.String(),
		})
	}
	return renderTable(cmd.OutOrStdout(), []string{"ID", "TIMESTAMP", "DATA"}, rows)
}

func init() {
	rootCmd.AddCommand(telemetryCmd)
	telemetryCmd.AddCommand(telemetryAppendCmd, telemetryQueryCmd, telemetryCountCmd, telemetryBacklogCmd)

	telemetryAppendCmd.Flags().String("data", "", "Payload, inline or @file")
	telemetryAppendCmd.Flags().String("timestamp", "", "RFC3339 time of the reading; defaults to now")
	_ = telemetryAppendCmd.MarkFlagRequired("data")

	telemetryQueryCmd.Flags().Uint64("since-id", 0, "Only readings with id at or above this")
	telemetryQueryCmd.Flags().String("since", "", "Only readings at or after this RFC3339 time")
	telemetryQueryCmd.Flags().Int("limit", 0, "Maximum readings; 0 means all")

	telemetryBacklogCmd.Flags().Int("limit", telemetry.DefaultBacklogLimit, "Maximum readings")
}
