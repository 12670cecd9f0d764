package bootstrap

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"raptorfleet/internal/bootstrap/config"
	"raptorfleet/internal/bootstrap/database"
	"raptorfleet/internal/bootstrap/logging"
	"raptorfleet/internal/errs"
	cacheinfra "raptorfleet/internal/infrastructure/cache"
	"raptorfleet/internal/infrastructure/events"
	"raptorfleet/internal/infrastructure/metrics"
	sqliterepo "raptorfleet/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "raptorfleet/internal/infrastructure/persistence/sqlite/uow"
	"raptorfleet/internal/ports"
	"raptorfleet/internal/transport/httpapi"
	"raptorfleet/internal/usecase/commissioning"
	"raptorfleet/internal/usecase/firmware"
	"raptorfleet/internal/usecase/hardware"
	"raptorfleet/internal/usecase/provisioning"
	"raptorfleet/internal/usecase/telemetry"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewCommissionRepository,
			fx.As(new(ports.CommissionRepository)),
			fx.As(new(ports.CommissionReadRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewSiteRepository,
			fx.As(new(ports.SiteRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewHardwareRepository,
			fx.As(new(ports.HardwareRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewTelemetryRepository,
			fx.As(new(ports.TelemetryRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewFirmwareRepository,
			fx.As(new(ports.FirmwareRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewTelemetryConfigRepository,
			fx.As(new(ports.TelemetryConfigRepository)),
		),
	),
	fx.Provide(provideUnitOfWork),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewMetaCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(metrics.New),
	fx.Provide(providePublisher),
	fx.Provide(
		commissioning.NewRegistry,
		hardware.NewStore,
		telemetry.NewLog,
		telemetry.NewConfigStore,
		firmware.NewTracker,
		provisioning.NewService,
	),
	fx.Provide(provideAPI),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideUnitOfWork(db *gorm.DB, cfg config.Config) ports.UnitOfWork {
	return sqliteuow.NewUnitOfWork(db, sqliteuow.WithRetryBudget(cfg.Database.RetryBudget))
}

// providePublisher connects to NATS when events.nats_url is set. Events are
// best effort, so an unreachable broker at start only logs a warning and the
// client keeps reconnecting in the background.
func providePublisher(lc fx.Lifecycle, ctx context.Context, cfg config.Config, m *metrics.Metrics) ports.EventPublisher {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	if cfg.Events.NATSURL == "" {
		return events.NewObserved(events.Nop{}, m)
	}

	publisher, err := events.Connect(logCtx, cfg.Events.NATSURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		logging.Warn(logCtx, "event publisher disabled", slog.Any("err", errs.Loggable(err)))
		return events.NewObserved(events.Nop{}, m)
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			publisher.Close()
			return nil
		},
	})
	return events.NewObserved(publisher, m)
}

func provideAPI(
	app *App,
	registry *commissioning.Registry,
	hardwareStore *hardware.Store,
	telemetryLog *telemetry.Log,
	configStore *telemetry.ConfigStore,
	tracker *firmware.Tracker,
	provisioner *provisioning.Service,
	m *metrics.Metrics,
) (*httpapi.API, error) {
	return httpapi.New(httpapi.Services{
		Registry:        registry,
		Hardware:        hardwareStore,
		Telemetry:       telemetryLog,
		TelemetryConfig: configStore,
		Firmware:        tracker,
		Provisioning:    provisioner,
	}, m, app.Ping)
}
