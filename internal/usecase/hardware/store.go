package hardware

import (
	"context"
	"errors"
	"iter"
	"strings"

	"raptorfleet/internal/domain/blob"
	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
	"raptorfleet/internal/ports"
)

const defaultPageSize = 100

// Store records which driver backs each hardware integration. Blobs are
// stored verbatim and interpreted only by the drivers.
type Store struct {
	repo     ports.HardwareRepository
	uow      ports.UnitOfWork
	events   ports.EventPublisher
	pageSize int
}

// NewStore wires the store. events may be nil.
func NewStore(repo ports.HardwareRepository, uow ports.UnitOfWork, events ports.EventPublisher) *Store {
	return &Store{repo: repo, uow: uow, events: events, pageSize: defaultPageSize}
}

type CreateInstanceInput struct {
	HardwareType string
	DriverPath   string
	Parameters   blob.Payload
	ScanGroups   *blob.Payload
	Devices      *blob.Payload
	ExternalRef  string
	// Enabled defaults to true when nil.
	Enabled *bool
}

func (s *Store) CreateInstance(ctx context.Context, input CreateInstanceInput) (uint64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	instance, err := newInstance(input)
	if err != nil {
		return 0, err
	}

	var id uint64
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		id, err = s.repo.Create(txCtx, instance)
		return err
	}); err != nil {
		return 0, err
	}

	s.publishChanged(ctx, id, "created")
	return id, nil
}

// UpdateParameters overwrites the parameters blob verbatim.
func (s *Store) UpdateParameters(ctx context.Context, id uint64, parameters blob.Payload) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if parameters.IsEmpty() {
		return fleet.MissingField("parameters")
	}
	if _, err := blob.Encode(parameters); err != nil {
		return errs.Wrap(err, "parameters")
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.UpdateParameters(txCtx, id, parameters)
	}); err != nil {
		return err
	}

	s.publishChanged(ctx, id, "parameters_updated")
	return nil
}

func (s *Store) SetEnabled(ctx context.Context, id uint64, enabled bool) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.SetEnabled(txCtx, id, enabled)
	}); err != nil {
		return err
	}

	action := "disabled"
	if enabled {
		action = "enabled"
	}
	s.publishChanged(ctx, id, action)
	return nil
}

func (s *Store) Get(ctx context.Context, id uint64) (fleet.HardwareInstance, error) {
	if err := s.ready(ctx); err != nil {
		return fleet.HardwareInstance{}, err
	}

	var instance fleet.HardwareInstance
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		instance, err = s.repo.Get(txCtx, id)
		return err
	}); err != nil {
		return fleet.HardwareInstance{}, err
	}
	return instance, nil
}

// ListEnabled yields enabled instances in insertion order. Rows are read
// page by page as the caller iterates, and every range over the returned
// sequence starts again from the beginning. Iteration stops after the first
// error is yielded.
func (s *Store) ListEnabled(ctx context.Context) iter.Seq2[fleet.HardwareInstance, error] {
	return func(yield func(fleet.HardwareInstance, error) bool) {
		if err := s.ready(ctx); err != nil {
			yield(fleet.HardwareInstance{}, err)
			return
		}

		var after uint64
		for {
			var page []fleet.HardwareInstance
			if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
				var err error
				page, err = s.repo.ListEnabledAfter(txCtx, after, s.pageSize)
				return err
			}); err != nil {
				yield(fleet.HardwareInstance{}, err)
				return
			}

			for _, instance := range page {
				if !yield(instance, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			after = page[len(page)-1].ID
		}
	}
}

// ListByType returns every instance whose hardware type contains the given
// fragment, enabled or not.
func (s *Store) ListByType(ctx context.Context, hardwareType string) ([]fleet.HardwareInstance, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var items []fleet.HardwareInstance
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		items, err = s.repo.ListByType(txCtx, strings.TrimSpace(hardwareType))
		return err
	}); err != nil {
		return nil, err
	}
	return items, nil
}

func newInstance(input CreateInstanceInput) (fleet.HardwareInstance, error) {
	if strings.TrimSpace(input.DriverPath) == "" {
		return fleet.HardwareInstance{}, fleet.MissingField("driver_path")
	}
	if input.Parameters.IsEmpty() {
		return fleet.HardwareInstance{}, fleet.MissingField("parameters")
	}
	if strings.TrimSpace(input.ExternalRef) == "" {
		return fleet.HardwareInstance{}, fleet.MissingField("external_ref")
	}

	if _, err := blob.Encode(input.Parameters); err != nil {
		return fleet.HardwareInstance{}, errs.Wrap(err, "parameters")
	}
	if _, err := blob.EncodeOptional(input.ScanGroups); err != nil {
		return fleet.HardwareInstance{}, errs.Wrap(err, "scan_groups")
	}
	if _, err := blob.EncodeOptional(input.Devices); err != nil {
		return fleet.HardwareInstance{}, errs.Wrap(err, "devices")
	}

	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}
	return fleet.HardwareInstance{
		HardwareType: input.HardwareType,
		DriverPath:   input.DriverPath,
		Parameters:   input.Parameters,
		ScanGroups:   input.ScanGroups,
		Devices:      input.Devices,
		Enabled:      enabled,
		ExternalRef:  input.ExternalRef,
	}, nil
}

func (s *Store) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("hardware repository is required")
	}
	if s.uow == nil {
		return errors.New("hardware unit of work is required")
	}
	return nil
}

func (s *Store) publishChanged(ctx context.Context, id uint64, action string) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, ports.SubjectHardwareChanged, map[string]any{
		"hardware_id": id,
		"action":      action,
	})
}
