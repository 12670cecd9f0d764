/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"raptorfleet/internal/bootstrap"
	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/domain/blob"
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/usecase/hardware"
)

var hardwareCmd = &cobra.Command{
	Use:   "hardware",
	Short: "Manage configured hardware integrations",
}

var hardwareCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a hardware instance",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		hardwareType, _ := cmd.Flags().GetString("type")
		driverPath, _ := cmd.Flags().GetString("driver")
		externalRef, _ := cmd.Flags().GetString("external-ref")

		parameters, err := payloadFlag(cmd, "parameters")
		if err != nil {
			return err
		}
		scanGroups, err := optionalPayloadFlag(cmd, "scan-groups")
		if err != nil {
			return err
		}
		devices, err := optionalPayloadFlag(cmd, "devices")
		if err != nil {
			return err
		}
		var enabled *bool
		if cmd.Flags().Changed("enabled") {
			value, _ := cmd.Flags().GetBool("enabled")
			enabled = &value
		}

		id, err := svc.Hardware.CreateInstance(ctx, hardware.CreateInstanceInput{
			HardwareType: hardwareType,
			DriverPath:   driverPath,
			Parameters:   parameters,
			ScanGroups:   scanGroups,
			Devices:      devices,
			ExternalRef:  externalRef,
			Enabled:      enabled,
		})
		if err != nil {
			logging.Error(ctx, "create hardware instance failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create hardware instance")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "created hardware %d: %s\n", id, hardwareType)
		return errs.Wrap(err, "write create output")
	}),
}

var hardwareGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one hardware instance",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		id, err := parseID(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		instance, err := svc.Hardware.Get(cmd.Context(), id)
		if err != nil {
			return errs.Wrapf(err, "get hardware %d", id)
		}
		return renderFields(cmd.OutOrStdout(), [][2]string{
			{"id", strconv.FormatUint(instance.ID, 10)},
			{"type", instance.HardwareType},
			{"driver", instance.DriverPath},
			{"external_ref", orDash(instance.ExternalRef)},
			{"enabled", strconv.FormatBool(instance.Enabled)},
			{"parameters", instance.Parameters.String()},
			{"scan_groups", orDash(optionalString(instance.ScanGroups))},
			{"devices", orDash(optionalString(instance.Devices))},
		})
	}),
}

var hardwareSetParamsCmd = &cobra.Command{
	Use:   "set-params <id>",
	Short: "Replace the parameters blob of a hardware instance",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, err := parseID(cmd.Flags().Arg(0))
		if err != nil {
			return err
		}
		parameters, err := payloadFlag(cmd, "parameters")
		if err != nil {
			return err
		}
		if err := svc.Hardware.UpdateParameters(ctx, id, parameters); err != nil {
			return errs.Wrapf(err, "update hardware %d parameters", id)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "updated hardware %d parameters\n", id)
		return errs.Wrap(err, "write update output")
	}),
}

func newHardwareToggleCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: use + " a hardware instance",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
			id, err := parseID(cmd.Flags().Arg(0))
			if err != nil {
				return err
			}
			if err := svc.Hardware.SetEnabled(cmd.Context(), id, enabled); err != nil {
				return errs.Wrapf(err, "%s hardware %d", use, id)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%sd hardware %d\n", use, id)
			return errs.Wrap(err, "write toggle output")
		}),
	}
}

var hardwareListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enabled hardware, or every instance of --type",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := cmd.Context()
		hardwareType, _ := cmd.Flags().GetString("type")

		var items []fleet.HardwareInstance
		if cmd.Flags().Changed("type") {
			found, err := svc.Hardware.ListByType(ctx, hardwareType)
			if err != nil {
				return errs.Wrap(err, "list hardware by type")
			}
			items = found
		} else {
			for instance, err := range svc.Hardware.ListEnabled(ctx) {
				if err != nil {
					return errs.Wrap(err, "list enabled hardware")
				}
				items = append(items, instance)
			}
		}

		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{
				strconv.FormatUint(item.ID, 10),
				item.HardwareType,
				item.DriverPath,
				orDash(item.ExternalRef),
				strconv.FormatBool(item.Enabled),
			})
		}
		return renderTable(cmd.OutOrStdout(), []string{"ID", "TYPE", "DRIVER", "EXTERNAL REF", "ENABLED"}, rows)
	}),
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func optionalString(p *blob.Payload) string {
	if p == nil {
		return ""
	}
	return p.String()
}

func init() {
	rootCmd.AddCommand(hardwareCmd)
	hardwareCmd.AddCommand(
		hardwareCreateCmd,
		hardwareGetCmd,
		hardwareSetParamsCmd,
		newHardwareToggleCmd("enable", true),
		newHardwareToggleCmd("disable", false),
		hardwareListCmd,
	)

	hardwareCreateCmd.Flags().String("type", "", "Hardware type, e.g. bms or inverter")
	hardwareCreateCmd.Flags().String("driver", "", "Driver path")
	hardwareCreateCmd.Flags().String("parameters", "", "Driver parameters, inline or @file")
	hardwareCreateCmd.Flags().String("scan-groups", "", "Scan groups, inline or @file")
	hardwareCreateCmd.Flags().String("devices", "", "Devices, inline or @file")
	hardwareCreateCmd.Flags().String("external-ref", "", "Backend identifier of the instance")
	hardwareCreateCmd.Flags().Bool("enabled", true, "Create the instance enabled")
	_ = hardwareCreateCmd.MarkFlagRequired("type")
	_ = hardwareCreateCmd.MarkFlagRequired("driver")
	_ = hardwareCreateCmd.MarkFlagRequired("parameters")
	_ = hardwareCreateCmd.MarkFlagRequired("external-ref")

	hardwareSetParamsCmd.Flags().String("parameters", "", "Driver parameters, inline or @file")
	_ = hardwareSetParamsCmd.MarkFlagRequired("parameters")

	hardwareListCmd.Flags().String("type", "", "Filter by hardware type substring")
}
