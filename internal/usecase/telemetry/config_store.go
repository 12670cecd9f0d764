package telemetry

import (
	"context"
	"errors"
	"time"

	"raptorfleet/internal/domain/blob"
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/ports"
)

// ConfigStore holds the single process-wide MQTT and telemetry
// configuration. Put overwrites it in place.
type ConfigStore struct {
	repo  ports.TelemetryConfigRepository
	uow   ports.UnitOfWork
	clock *fleet.Clock
}

func NewConfigStore(repo ports.TelemetryConfigRepository, uow ports.UnitOfWork) *ConfigStore {
	return &ConfigStore{repo: repo, uow: uow, clock: fleet.NewClock(time.Now)}
}

// Get returns fleet.ErrNotFound until the first Put.
func (s *ConfigStore) Get(ctx context.Context) (fleet.TelemetryConfiguration, error) {
	if err := s.ready(ctx); err != nil {
		return fleet.TelemetryConfiguration{}, err
	}

	var cfg fleet.TelemetryConfiguration
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		cfg, err = s.repo.Get(txCtx)
		return err
	}); err != nil {
		return fleet.TelemetryConfiguration{}, err
	}
	return cfg, nil
}

// Put replaces both blobs. Empty payloads are stored as empty text.
func (s *ConfigStore) Put(ctx context.Context, mqtt blob.Payload, telemetry blob.Payload) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	cfg, err := s.newConfiguration(mqtt, telemetry)
	if err != nil {
		return err
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		cfg.UpdatedAt = s.clock.Now()
		return s.repo.Put(txCtx, cfg)
	})
}

func (s *ConfigStore) newConfiguration(mqtt blob.Payload, telemetry blob.Payload) (fleet.TelemetryConfiguration, error) {
	if _, err := blob.Encode(mqtt); err != nil {
		return fleet.TelemetryConfiguration{}, errs.Wrap(err, "mqtt_config")
	}
	if _, err := blob.Encode(telemetry); err != nil {
		return fleet.TelemetryConfiguration{}, errs.Wrap(err, "telemetry_config")
	}
	return fleet.TelemetryConfiguration{
		MQTTConfig:      mqtt,
		TelemetryConfig: telemetry,
	}, nil
}

func (s *ConfigStore) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("telemetry config repository is required")
	}
	if s.uow == nil {
		return errors.New("telemetry config unit of work is required")
	}
	return nil
}
