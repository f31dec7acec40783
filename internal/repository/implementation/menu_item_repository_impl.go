package implementation

import (
	"context"
	"errors"

	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/mapper"
	"campus-dining-be/internal/model"
	"campus-dining-be/internal/repository/contract"
	"campus-dining-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MenuItemRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MenuItemMapper
}

func NewMenuItemRepository(db *gorm.DB) contract.MenuItemRepository {
	return &MenuItemRepositoryImpl{
		db:     db,
		mapper: mapper.NewMenuItemMapper(),
	}
}

func (r *MenuItemRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *MenuItemRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.MenuItem, error) {
	var m model.MenuItem
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *MenuItemRepositoryImpl) FindByIds(ctx context.Context, ids []uuid.UUID) ([]*entity.MenuItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []*model.MenuItem
	query := specification.ByIDs{IDs: ids}.Apply(r.db.WithContext(ctx))
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toEntities(models), nil
}

func (r *MenuItemRepositoryImpl) FindTopQuality(ctx context.Context, filter *contract.ItemFilter, limit int) ([]*entity.MenuItem, error) {
	if limit <= 0 {
		limit = 50
	}
	specs := []specification.Specification{
		specification.OnlineOnly{},
	}
	if filter != nil {
		if filter.CanteenId != nil {
			specs = append(specs, specification.ByCanteenID{CanteenID: *filter.CanteenId})
		}
		if len(filter.Tags) > 0 {
			specs = append(specs, specification.HasAnyTag{Tags: filter.Tags})
		}
		if filter.PriceMax != nil {
			specs = append(specs, specification.PriceAtMost{Max: *filter.PriceMax})
		}
		if filter.AvailableAt != "" {
			specs = append(specs, specification.AvailableAt{Time: filter.AvailableAt})
		}
	}
	specs = append(specs, specification.QualityOrder{}, specification.Limit{N: limit})

	var models []*model.MenuItem
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toEntities(models), nil
}

func (r *MenuItemRepositoryImpl) FindByTagsOrCanteen(ctx context.Context, tags []string, canteenId *uuid.UUID, excludeId uuid.UUID, limit int) ([]*entity.MenuItem, error) {
	if limit <= 0 {
		limit = 20
	}
	query := r.db.WithContext(ctx).
		Where("status = ?", entity.ItemStatusOnline).
		Where("id <> ?", excludeId)

	match := r.db.Session(&gorm.Session{NewDB: true})
	matched := false
	for i, tag := range tags {
		if i == 0 {
			match = match.Where("tags @> ?", `["`+tag+`"]`)
		} else {
			match = match.Or("tags @> ?", `["`+tag+`"]`)
		}
		matched = true
	}
	if canteenId != nil {
		if matched {
			match = match.Or("canteen_id = ?", *canteenId)
		} else {
			match = match.Where("canteen_id = ?", *canteenId)
		}
		matched = true
	}
	if matched {
		query = query.Where(match)
	}

	var models []*model.MenuItem
	err := query.
		Order("avg_rating DESC").
		Order("rating_count DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.toEntities(models), nil
}

func (r *MenuItemRepositoryImpl) toEntities(models []*model.MenuItem) []*entity.MenuItem {
	entities := make([]*entity.MenuItem, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities
}
