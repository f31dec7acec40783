package contract

import (
	"context"

	"campus-dining-be/internal/entity"

	"github.com/google/uuid"
)

// UserBehaviorRepository reads the raw behavioral rows that user features
// are aggregated from.
type UserBehaviorRepository interface {
	// FindPreference returns nil, nil when the user never declared any.
	FindPreference(ctx context.Context, userId uuid.UUID) (*entity.PreferenceProfile, error)
	// FindAllergens returns the user's declared allergens.
	FindAllergens(ctx context.Context, userId uuid.UUID) ([]string, error)
	FindFavorites(ctx context.Context, userId uuid.UUID) ([]*entity.FavoriteRecord, error)
	// FindBrowseLogs returns the newest records first, capped at limit.
	FindBrowseLogs(ctx context.Context, userId uuid.UUID, limit int) ([]*entity.BrowseRecord, error)
	FindReviews(ctx context.Context, userId uuid.UUID) ([]*entity.ReviewRecord, error)
	// FindCoFavoritedItemIds implements collaborative recall in one query:
	// items favorited by users who share at least one favorite with this
	// user, excluding the user's own favorites, most-favorited first.
	FindCoFavoritedItemIds(ctx context.Context, userId uuid.UUID, limit int) ([]uuid.UUID, error)
}
