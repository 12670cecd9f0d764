/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"raptorfleet/internal/bootstrap"
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
)

var telemetryConfigCmd = &cobra.Command{
	Use:   "telemetry-config",
	Short: "Read or replace the mqtt and telemetry configuration",
}

var telemetryConfigGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current configuration",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		current, err := svc.TelemetryConfig.Get(cmd.Context())
		if errors.Is(err, fleet.ErrNotFound) {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no telemetry configuration stored"))
			return errs.Wrap(err, "write config output")
		}
		if err != nil {
			return errs.Wrap(err, "load telemetry configuration")
		}
		return renderFields(cmd.OutOrStdout(), [][2]string{
			{"mqtt_config", current.MQTTConfig.String()},
			{"telemetry_config", current.TelemetryConfig.String()},
			{"updated_at", current.UpdatedAt.Format(time.RFC3339)},
		})
	}),
}

var telemetryConfigPutCmd = &cobra.Command{
	Use:   "put",
	Short: "Replace the configuration",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		mqtt, err := payloadFlag(cmd, "mqtt")
		if err != nil {
			return err
		}
		shaping, err := payloadFlag(cmd, "telemetry")
		if err != nil {
			return err
		}
		if err := svc.TelemetryConfig.Put(cmd.Context(), mqtt, shaping); err != nil {
			return errs.Wrap(err, "store telemetry configuration")
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "telemetry configuration stored")
		return errs.Wrap(err, "write config output")
	}),
}

func init() {
	rootCmd.AddCommand(telemetryConfigCmd)
	telemetryConfigCmd.AddCommand(telemetryConfigGetCmd, telemetryConfigPutCmd)

	telemetryConfigPutCmd.Flags().String("mqtt", "", "MQTT config, inline or @file")
	telemetryConfigPutCmd.Flags().String("telemetry", "", "Telemetry config, inline or @file")
	_ = telemetryConfigPutCmd.MarkFlagRequired("mqtt")
	_ = telemetryConfigPutCmd.MarkFlagRequired("telemetry")
}
