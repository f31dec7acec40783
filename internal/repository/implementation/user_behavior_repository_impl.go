package implementation

import (
	"context"
	"errors"

	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/mapper"
	"campus-dining-be/internal/model"
	"campus-dining-be/internal/repository/contract"
	"campus-dining-be/internal/repository/scope"
	"campus-dining-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserBehaviorRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.BehaviorMapper
}

func NewUserBehaviorRepository(db *gorm.DB) contract.UserBehaviorRepository {
	return &UserBehaviorRepositoryImpl{
		db:     db,
		mapper: mapper.NewBehaviorMapper(),
	}
}

func (r *UserBehaviorRepositoryImpl) FindPreference(ctx context.Context, userId uuid.UUID) (*entity.PreferenceProfile, error) {
	var m model.UserPreference
	err := specification.ByUserID{UserID: userId}.Apply(r.db.WithContext(ctx)).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.PreferenceToEntity(&m), nil
}

func (r *UserBehaviorRepositoryImpl) FindAllergens(ctx context.Context, userId uuid.UUID) ([]string, error) {
	var m model.UserPreference
	err := specification.ByUserID{UserID: userId}.
		Apply(r.db.WithContext(ctx).Select("allergens")).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.Allergens, nil
}

func (r *UserBehaviorRepositoryImpl) FindFavorites(ctx context.Context, userId uuid.UUID) ([]*entity.FavoriteRecord, error) {
	var models []*model.Favorite
	err := specification.ByUserID{UserID: userId}.
		Apply(r.db.WithContext(ctx)).
		Scopes(scope.OrderByCreatedDesc).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	records := make([]*entity.FavoriteRecord, len(models))
	for i, m := range models {
		records[i] = r.mapper.FavoriteToEntity(m)
	}
	return records, nil
}

func (r *UserBehaviorRepositoryImpl) FindBrowseLogs(ctx context.Context, userId uuid.UUID, limit int) ([]*entity.BrowseRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	var models []*model.BrowseLog
	err := specification.ByUserID{UserID: userId}.
		Apply(r.db.WithContext(ctx)).
		Scopes(scope.OrderByCreatedDesc).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	records := make([]*entity.BrowseRecord, len(models))
	for i, m := range models {
		records[i] = r.mapper.BrowseToEntity(m)
	}
	return records, nil
}

func (r *UserBehaviorRepositoryImpl) FindReviews(ctx context.Context, userId uuid.UUID) ([]*entity.ReviewRecord, error) {
	var models []*model.Review
	err := specification.ByUserID{UserID: userId}.
		Apply(r.db.WithContext(ctx)).
		Scopes(scope.OrderByCreatedDesc).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	records := make([]*entity.ReviewRecord, len(models))
	for i, m := range models {
		records[i] = r.mapper.ReviewToEntity(m)
	}
	return records, nil
}

func (r *UserBehaviorRepositoryImpl) FindCoFavoritedItemIds(ctx context.Context, userId uuid.UUID, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 20
	}

	// Neighbors: users sharing at least one favorited item with this user.
	// Their other favorites, minus the user's own, most-favorited first.
	ownFavorites := r.db.Table("favorites").Select("item_id").Where("user_id = ?", userId)
	neighbors := r.db.Table("favorites").Select("user_id").
		Where("item_id IN (?)", ownFavorites).
		Where("user_id <> ?", userId)

	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("favorites").
		Select("item_id").
		Where("user_id IN (?)", neighbors).
		Where("item_id NOT IN (?)", ownFavorites).
		Group("item_id").
		Order("COUNT(*) DESC").
		Limit(limit).
		Pluck("item_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
