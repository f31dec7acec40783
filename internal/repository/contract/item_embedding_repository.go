package contract

import (
	"context"

	"campus-dining-be/internal/entity"

	"github.com/google/uuid"
)

// EmbeddingSearchFilter restricts nearest-neighbor results beyond the
// always-applied online-status filter.
type EmbeddingSearchFilter struct {
	CanteenId *uuid.UUID
	Tags      []string
}

type ItemEmbeddingRepository interface {
	// FindByItemAndVersion returns nil, nil when no vector exists at that
	// version.
	FindByItemAndVersion(ctx context.Context, itemId uuid.UUID, version string) (*entity.ItemEmbedding, error)
	// Upsert writes the vector for (item, version), overwriting any
	// previous one. Concurrent upserts of the same key are last-write-wins.
	Upsert(ctx context.Context, embedding *entity.ItemEmbedding) error
	// SearchSimilar returns item ids ordered by ascending cosine distance
	// to the query vector, restricted to one embedding version and to
	// online items.
	SearchSimilar(ctx context.Context, vector []float32, version string, limit int, filter *EmbeddingSearchFilter, excludeItemId *uuid.UUID) ([]uuid.UUID, error)
	// FindStaleItemIds lists items whose best stored embedding is below
	// currentVersion, for the backfill worker.
	FindStaleItemIds(ctx context.Context, currentVersion string, limit int) ([]uuid.UUID, error)
}
