package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"raptorfleet/internal/domain/blob"
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/ports"
)

const (
	cacheKeyDigest      = "provisioning.digest"
	cacheKeyLastApplied = "provisioning.last_applied"
)

// Service replaces the unit's configuration with a provisioning document.
type Service struct {
	configs  ports.TelemetryConfigRepository
	hardware ports.HardwareRepository
	sites    ports.SiteRepository
	uow      ports.UnitOfWork
	cache    ports.Cache
	events   ports.EventPublisher
	clock    *fleet.Clock
}

// NewService wires the service. cache and events may be nil.
func NewService(
	configs ports.TelemetryConfigRepository,
	hardware ports.HardwareRepository,
	sites ports.SiteRepository,
	uow ports.UnitOfWork,
	cache ports.Cache,
	events ports.EventPublisher,
) *Service {
	return &Service{
		configs:  configs,
		hardware: hardware,
		sites:    sites,
		uow:      uow,
		cache:    cache,
		events:   events,
		clock:    fleet.NewClock(time.Now),
	}
}

type ApplyOptions struct {
	// Force applies the document even when it matches the last applied one.
	Force bool
}

type ApplyResult struct {
	Digest          string
	HardwareCreated int
	HardwareRemoved int64
	Skipped         bool
}

// Apply writes the telemetry configuration, replaces every hardware row and
// records the site in one unit of work. Telemetry history is untouched.
//
// Without Force, a document whose digest matches the last applied one is
// skipped only when the stored configuration still equals what the document
// would write. Any later change to hardware, telemetry configuration or site
// makes the next Apply rewrite everything.
func (s *Service) Apply(ctx context.Context, doc Document, opts ApplyOptions) (ApplyResult, error) {
	if err := s.ready(ctx); err != nil {
		return ApplyResult{}, err
	}

	digest, err := doc.Digest()
	if err != nil {
		return ApplyResult{}, err
	}
	cfg, instances, site, err := s.plan(doc)
	if err != nil {
		return ApplyResult{}, err
	}
	checkCurrent := !opts.Force && s.lastDigest(ctx) == digest

	result := ApplyResult{Digest: digest}
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		result = ApplyResult{Digest: digest}
		if checkCurrent {
			current, err := s.storeMatches(txCtx, cfg, instances, site)
			if err != nil {
				return err
			}
			if current {
				result.Skipped = true
				return nil
			}
		}

		if err := s.configs.Put(txCtx, cfg); err != nil {
			return err
		}
		removed, err := s.hardware.DeleteAll(txCtx)
		if err != nil {
			return err
		}
		result.HardwareRemoved = removed
		for _, instance := range instances {
			if _, err := s.hardware.Create(txCtx, instance); err != nil {
				return err
			}
			result.HardwareCreated++
		}
		return s.sites.PutSite(txCtx, site)
	}); err != nil {
		return ApplyResult{}, err
	}
	if result.Skipped {
		return result, nil
	}

	s.remember(ctx, digest)
	if s.events != nil {
		_ = s.events.Publish(ctx, ports.SubjectHardwareChanged, map[string]any{
			"action":  "provisioned",
			"digest":  digest,
			"created": result.HardwareCreated,
			"removed": result.HardwareRemoved,
		})
	}
	return result, nil
}

// storeMatches reports whether the stored configuration is exactly what
// applying the plan would leave behind.
func (s *Service) storeMatches(ctx context.Context, cfg fleet.TelemetryConfiguration, instances []fleet.HardwareInstance, site fleet.SiteInfo) (bool, error) {
	stored, err := s.configs.Get(ctx)
	if errors.Is(err, fleet.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !stored.MQTTConfig.Equal(cfg.MQTTConfig) || !stored.TelemetryConfig.Equal(cfg.TelemetryConfig) {
		return false, nil
	}

	storedSite, err := s.sites.GetSite(ctx)
	if errors.Is(err, fleet.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if storedSite != site {
		return false, nil
	}

	rows, err := s.hardware.ListByType(ctx, "")
	if err != nil {
		return false, err
	}
	if len(rows) != len(instances) {
		return false, nil
	}
	for i := range rows {
		if !sameInstance(rows[i], instances[i]) {
			return false, nil
		}
	}
	return true, nil
}

func sameInstance(a, b fleet.HardwareInstance) bool {
	return a.HardwareType == b.HardwareType &&
		a.DriverPath == b.DriverPath &&
		a.ExternalRef == b.ExternalRef &&
		a.Enabled == b.Enabled &&
		a.Parameters.Equal(b.Parameters) &&
		sameOptional(a.ScanGroups, b.ScanGroups) &&
		sameOptional(a.Devices, b.Devices)
}

func sameOptional(a, b *blob.Payload) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// ApplyFile parses the document at path, picking the format from its
// extension, and applies it.
func (s *Service) ApplyFile(ctx context.Context, path string, opts ApplyOptions) (ApplyResult, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return ApplyResult{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ApplyResult{}, errs.Wrapf(err, "read %s", path)
	}
	doc, err := Parse(format, data)
	if err != nil {
		return ApplyResult{}, errs.Wrapf(err, "parse %s", path)
	}
	return s.Apply(ctx, doc, opts)
}

func (s *Service) plan(doc Document) (fleet.TelemetryConfiguration, []fleet.HardwareInstance, fleet.SiteInfo, error) {
	mqtt, err := doc.section("mqtt")
	if err != nil {
		return fleet.TelemetryConfiguration{}, nil, fleet.SiteInfo{}, err
	}
	telemetry, err := doc.section("telemetry")
	if err != nil {
		return fleet.TelemetryConfiguration{}, nil, fleet.SiteInfo{}, err
	}
	cfg := fleet.TelemetryConfiguration{
		MQTTConfig:      blob.JSON(mqtt),
		TelemetryConfig: blob.JSON(telemetry),
		UpdatedAt:       s.clock.Now(),
	}

	var instances []fleet.HardwareInstance
	for _, hardwareType := range sortedKeys(doc.Hardware) {
		for _, entry := range doc.Hardware[hardwareType] {
			instance, err := newInstance(hardwareType, entry)
			if err != nil {
				return fleet.TelemetryConfiguration{}, nil, fleet.SiteInfo{}, err
			}
			instances = append(instances, instance)
		}
	}

	site := fleet.SiteInfo{
		Location: strings.TrimSpace(doc.Raptor.Location),
		Client:   strings.TrimSpace(doc.Raptor.Client),
	}
	return cfg, instances, site, nil
}

func newInstance(hardwareType string, entry HardwareSection) (fleet.HardwareInstance, error) {
	parameters, err := json.Marshal(entry.Parameters)
	if err != nil {
		return fleet.HardwareInstance{}, errs.Wrapf(err, "encode %s parameters", hardwareType)
	}

	scanGroups := entry.ScanGroups
	if scanGroups == nil {
		scanGroups = []any{}
	}
	scan, err := json.Marshal(scanGroups)
	if err != nil {
		return fleet.HardwareInstance{}, errs.Wrapf(err, "encode %s scan_groups", hardwareType)
	}
	scanPayload := blob.JSON(scan)

	var devices *blob.Payload
	if entry.Devices != nil {
		data, err := json.Marshal(entry.Devices)
		if err != nil {
			return fleet.HardwareInstance{}, errs.Wrapf(err, "encode %s devices", hardwareType)
		}
		payload := blob.JSON(data)
		devices = &payload
	}

	enabled := true
	if entry.Enabled != nil {
		enabled = *entry.Enabled
	}
	return fleet.HardwareInstance{
		HardwareType: hardwareType,
		DriverPath:   entry.DriverPath,
		Parameters:   blob.JSON(parameters),
		ScanGroups:   &scanPayload,
		Devices:      devices,
		Enabled:      enabled,
		ExternalRef:  string(entry.Crem3ID),
	}, nil
}

// LastApplied reports the digest and time of the last successful Apply as
// remembered by the cache.
func (s *Service) LastApplied(ctx context.Context) (digest string, at time.Time, found bool) {
	if s.cache == nil {
		return "", time.Time{}, false
	}
	digest = s.lastDigest(ctx)
	if digest == "" {
		return "", time.Time{}, false
	}
	raw, ok, err := s.cache.Get(ctx, cacheKeyLastApplied)
	if err != nil || !ok {
		return digest, time.Time{}, true
	}
	at, _ = time.Parse(time.RFC3339Nano, raw)
	return digest, at, true
}

func (s *Service) lastDigest(ctx context.Context) string {
	if s.cache == nil {
		return ""
	}
	value, ok, err := s.cache.Get(ctx, cacheKeyDigest)
	if err != nil || !ok {
		return ""
	}
	return value
}

func (s *Service) remember(ctx context.Context, digest string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, cacheKeyDigest, digest, 0)
	_ = s.cache.Set(ctx, cacheKeyLastApplied, s.clock.Now().Format(time.RFC3339Nano), 0)
}

func (s *Service) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.configs == nil || s.hardware == nil || s.sites == nil {
		return errors.New("provisioning repositories are required")
	}
	if s.uow == nil {
		return errors.New("provisioning unit of work is required")
	}
	return nil
}
