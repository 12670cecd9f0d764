package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"raptorfleet/internal/bootstrap"
	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/transport/httpapi"
	"raptorfleet/internal/usecase/commissioning"
	"raptorfleet/internal/usecase/firmware"
	"raptorfleet/internal/usecase/hardware"
	"raptorfleet/internal/usecase/provisioning"
	"raptorfleet/internal/usecase/telemetry"
)

// services is what a command may use once the application has started.
type services struct {
	fx.In

	Registry        *commissioning.Registry
	Hardware        *hardware.Store
	Telemetry       *telemetry.Log
	TelemetryConfig *telemetry.ConfigStore
	Firmware        *firmware.Tracker
	Provisioning    *provisioning.Service
	API             *httpapi.API
}

// withApp starts the fx application, migrates the schema and hands the
// services to run. The application is stopped when run returns.
func withApp(run func(cmd *cobra.Command, app *bootstrap.App, svc services) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var app *bootstrap.App
		var svc services
		fxApp := fx.New(
			bootstrap.Module,
			fx.NopLogger,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&app, &svc),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if !cmd.Flags().Changed("log-level") {
			if err := logging.SetLevel(app.Config.Log.Level); err != nil {
				logging.Warn(ctx, "ignoring configured log level", slog.Any("err", errs.Loggable(err)))
			}
		}

		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "initialize schema")
		}

		if err := run(cmd, app, svc); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
