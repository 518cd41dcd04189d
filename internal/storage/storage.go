package storage

import (
	"context"
	"errors"

	"tickWindow/internal/model"
)

// Storage defines a sink for reconstructed windows.
type Storage interface {
	PutSnapshots(ctx context.Context, snapshots []model.Snapshot) error
	PutErrors(ctx context.Context, records []model.ReconstructError) error
}

// Multi fans writes out to every sink in order and joins their errors.
type Multi []Storage

func (m Multi) PutSnapshots(ctx context.Context, snapshots []model.Snapshot) error {
	var errs []error
	for _, s := range m {
		if err := s.PutSnapshots(ctx, snapshots); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) PutErrors(ctx context.Context, records []model.ReconstructError) error {
	var errs []error
	for _, s := range m {
		if err := s.PutErrors(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
