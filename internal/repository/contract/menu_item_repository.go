package contract

import (
	"context"

	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ItemFilter narrows rule-based and fallback recall queries.
type ItemFilter struct {
	CanteenId   *uuid.UUID
	Tags        []string
	PriceMax    *float64
	AvailableAt string
}

type MenuItemRepository interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.MenuItem, error)
	// FindByIds batch-fetches candidate records in one query. Order of the
	// result is unspecified; missing ids are silently absent.
	FindByIds(ctx context.Context, ids []uuid.UUID) ([]*entity.MenuItem, error)
	// FindTopQuality is the rule-based recall query: online items matching
	// the filter, ordered by quality signal descending.
	FindTopQuality(ctx context.Context, filter *ItemFilter, limit int) ([]*entity.MenuItem, error)
	// FindByTagsOrCanteen is the rule fallback for similar-item recall:
	// online items sharing a tag or the canteen with the anchor.
	FindByTagsOrCanteen(ctx context.Context, tags []string, canteenId *uuid.UUID, excludeId uuid.UUID, limit int) ([]*entity.MenuItem, error)
}
