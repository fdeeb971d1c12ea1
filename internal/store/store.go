// Package store persists pipeline artifacts between stages so a run can
// resume from the last completed stage.
package store

import (
	"context"

	"github.com/couchcryptid/hydro-risk-atlas/internal/domain"
)

// Repository is the stage-artifact store. Writes are idempotent upserts
// keyed by the natural block-period keys, so re-running a stage replaces
// its artifact instead of duplicating rows.
type Repository interface {
	SaveBlocks(ctx context.Context, blocks []domain.Block) error
	ListBlocks(ctx context.Context) ([]domain.Block, error)

	SaveObservations(ctx context.Context, obs []domain.ClimateObservation) error
	ListObservations(ctx context.Context) ([]domain.ClimateObservation, error)

	SaveFeatures(ctx context.Context, rows []domain.FeatureRow) error
	ListFeatures(ctx context.Context) ([]domain.FeatureRow, error)

	SaveStressIndices(ctx context.Context, indices []domain.StressIndex) error
	ListStressIndices(ctx context.Context) ([]domain.StressIndex, error)

	Close() error
}
