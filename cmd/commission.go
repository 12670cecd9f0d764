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
	"raptorfleet/internal/usecase/commissioning"
)

var commissionCmd = &cobra.Command{
	Use:   "commission",
	Short: "Manage the commissioning registry",
}

var commissionRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new unit, or update it with --upsert",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		raptorID, _ := cmd.Flags().GetString("raptor-id")
		apiKey, _ := cmd.Flags().GetString("api-key")
		upsert, _ := cmd.Flags().GetBool("upsert")
		var tag *string
		if cmd.Flags().Changed("firmware-tag") {
			value, _ := cmd.Flags().GetString("firmware-tag")
			tag = &value
		}

		if upsert {
			result, err := svc.Registry.Commission(ctx, commissioning.CommissionInput{RaptorID: raptorID, APIKey: apiKey, FirmwareTag: tag})
			if err != nil {
				logging.Error(ctx, "commission unit failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "commission unit")
			}
			verb := "updated"
			if result.Created {
				verb = "registered"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s commission %d: %s\n", verb, result.ID, raptorID)
			return errs.Wrap(err, "write register output")
		}

		id, err := svc.Registry.Register(ctx, commissioning.RegisterInput{RaptorID: raptorID, APIKey: apiKey, FirmwareTag: tag})
		if err != nil {
			logging.Error(ctx, "register unit failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "register unit")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "registered commission %d: %s\n", id, raptorID)
		return errs.Wrap(err, "write register output")
	}),
}

var commissionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one unit by raptor id or api key",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		raptorID, _ := cmd.Flags().GetString("raptor-id")
		apiKey, _ := cmd.Flags().GetString("api-key")

		var (
			found fleet.Commission
			err   error
		)
		if apiKey != "" {
			found, err = svc.Registry.LookupByAPIKey(ctx, apiKey)
		} else {
			found, err = svc.Registry.LookupByRaptorID(ctx, raptorID)
		}
		if err != nil {
			return errs.Wrap(err, "lookup commission")
		}

		return renderFields(cmd.OutOrStdout(), [][2]string{
			{"id", strconv.FormatUint(found.ID, 10)},
			{"raptor_id", found.RaptorID},
			{"firmware_tag", orDash(found.FirmwareTagOrEmpty())},
			{"disabled", strconv.FormatBool(found.Disabled)},
			{"created_at", found.CreatedAt.Format(time.RFC3339)},
			{"updated_at", found.UpdatedAt.Format(time.RFC3339)},
		})
	}),
}

var commissionRotateKeyCmd = &cobra.Command{
	Use:   "rotate-key",
	Short: "Replace the api key of a unit",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		raptorID, _ := cmd.Flags().GetString("raptor-id")
		apiKey, _ := cmd.Flags().GetString("api-key")
		if err := svc.Registry.RotateAPIKey(ctx, raptorID, apiKey); err != nil {
			logging.Error(ctx, "rotate api key failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "rotate api key")
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "rotated api key: %s\n", raptorID)
		return errs.Wrap(err, "write rotate output")
	}),
}

var commissionFirmwareCmd = &cobra.Command{
	Use:   "firmware",
	Short: "Set the firmware tag the registry holds for a unit",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		raptorID, _ := cmd.Flags().GetString("raptor-id")
		tag, _ := cmd.Flags().GetString("firmware-tag")
		if err := svc.Registry.UpdateFirmwareTag(ctx, raptorID, tag); err != nil {
			return errs.Wrap(err, "update firmware tag")
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "firmware tag set: %s=%s\n", raptorID, orDash(tag))
		return errs.Wrap(err, "write firmware output")
	}),
}

var commissionDecommissionCmd = &cobra.Command{
	Use:   "decommission",
	Short: "Disable a unit, or enable it again with --undo",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		raptorID, _ := cmd.Flags().GetString("raptor-id")
		undo, _ := cmd.Flags().GetBool("undo")

		action := "decommissioned"
		var err error
		if undo {
			action = "recommissioned"
			err = svc.Registry.Recommission(ctx, raptorID)
		} else {
			err = svc.Registry.Decommission(ctx, raptorID)
		}
		if err != nil {
			return errs.Wrapf(err, "%s %s", action, raptorID)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", action, raptorID)
		return errs.Wrap(err, "write decommission output")
	}),
}

var commissionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List commissioned units",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		items, err := svc.Registry.List(cmd.Context())
		if err != nil {
			return errs.Wrap(err, "list commissions")
		}

		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{
				strconv.FormatUint(item.ID, 10),
				item.RaptorID,
				orDash(item.FirmwareTagOrEmpty()),
				strconv.FormatBool(item.Disabled),
				item.UpdatedAt.Format(time.RFC3339),
			})
		}
		return renderTable(cmd.OutOrStdout(), []string{"ID", "RAPTOR ID", "FIRMWARE", "DISABLED", "UPDATED"}, rows)
	}),
}

var commissionSiteCmd = &cobra.Command{
	Use:   "site",
	Short: "Show the site info, or set it with --location and --client",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if cmd.Flags().Changed("location") || cmd.Flags().Changed("client") {
			current, err := svc.Registry.SiteInfo(ctx)
			if err != nil {
				return errs.Wrap(err, "load site info")
			}
			if cmd.Flags().Changed("location") {
				current.Location, _ = cmd.Flags().GetString("location")
			}
			if cmd.Flags().Changed("client") {
				current.Client, _ = cmd.Flags().GetString("client")
			}
			if err := svc.Registry.SetSiteInfo(ctx, current.Location, current.Client); err != nil {
				return errs.Wrap(err, "set site info")
			}
		}

		site, err := svc.Registry.SiteInfo(ctx)
		if err != nil {
			return errs.Wrap(err, "load site info")
		}
		return renderFields(cmd.OutOrStdout(), [][2]string{
			{"location", orDash(site.Location)},
			{"client", orDash(site.Client)},
		})
	}),
}

func init() {
	rootCmd.AddCommand(commissionCmd)
	commissionCmd.AddCommand(
		commissionRegisterCmd,
		commissionShowCmd,
		commissionRotateKeyCmd,
		commissionFirmwareCmd,
		commissionDecommissionCmd,
		commissionListCmd,
		commissionSiteCmd,
	)

	commissionRegisterCmd.Flags().String("raptor-id", "", "24 character unit identity")
	commissionRegisterCmd.Flags().String("api-key", "", "Bearer key issued to the unit")
	commissionRegisterCmd.Flags().String("firmware-tag", "", "Firmware the unit ships with")
	commissionRegisterCmd.Flags().Bool("upsert", false, "Rotate key and tag when the unit is already registered")
	_ = commissionRegisterCmd.MarkFlagRequired("raptor-id")
	_ = commissionRegisterCmd.MarkFlagRequired("api-key")

	commissionShowCmd.Flags().String("raptor-id", "", "Unit identity")
	commissionShowCmd.Flags().String("api-key", "", "Authenticate by api key instead")
	commissionShowCmd.MarkFlagsOneRequired("raptor-id", "api-key")
	commissionShowCmd.MarkFlagsMutuallyExclusive("raptor-id", "api-key")

	commissionRotateKeyCmd.Flags().String("raptor-id", "", "Unit identity")
	commissionRotateKeyCmd.Flags().String("api-key", "", "New api key")
	_ = commissionRotateKeyCmd.MarkFlagRequired("raptor-id")
	_ = commissionRotateKeyCmd.MarkFlagRequired("api-key")

	commissionFirmwareCmd.Flags().String("raptor-id", "", "Unit identity")
	commissionFirmwareCmd.Flags().String("firmware-tag", "", "Firmware tag; empty clears it")
	_ = commissionFirmwareCmd.MarkFlagRequired("raptor-id")

	commissionDecommissionCmd.Flags().String("raptor-id", "", "Unit identity")
	commissionDecommissionCmd.Flags().Bool("undo", false, "Recommission instead")
	_ = commissionDecommissionCmd.MarkFlagRequired("raptor-id")

	commissionSiteCmd.Flags().String("location", "", "Installation location")
	commissionSiteCmd.Flags().String("client", "", "Client the unit is installed for")
}
