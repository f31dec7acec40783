package mapper

import (
	"time"

	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/model"
)

type MenuItemMapper struct{}

func NewMenuItemMapper() *MenuItemMapper {
	return &MenuItemMapper{}
}

func (m *MenuItemMapper) ToEntity(mod *model.MenuItem) *entity.MenuItem {
	if mod == nil {
		return nil
	}
	var updatedAt *time.Time
	if !mod.UpdatedAt.IsZero() {
		t := mod.UpdatedAt
		updatedAt = &t
	}
	return &entity.MenuItem{
		Id:            mod.Id,
		Name:          mod.Name,
		Description:   mod.Description,
		CanteenId:     mod.CanteenId,
		CanteenName:   mod.CanteenName,
		Tags:          mod.Tags,
		Ingredients:   mod.Ingredients,
		Allergens:     mod.Allergens,
		SpicyLevel:    mod.SpicyLevel,
		SweetLevel:    mod.SweetLevel,
		SaltyLevel:    mod.SaltyLevel,
		SourLevel:     mod.SourLevel,
		Price:         mod.Price,
		AvgRating:     mod.AvgRating,
		RatingCount:   mod.RatingCount,
		Status:        mod.Status,
		AvailableFrom: mod.AvailableFrom,
		AvailableTo:   mod.AvailableTo,
		CreatedAt:     mod.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}

func (m *MenuItemMapper) ToModel(e *entity.MenuItem) *model.MenuItem {
	if e == nil {
		return nil
	}
	mod := &model.MenuItem{
		Id:            e.Id,
		Name:          e.Name,
		Description:   e.Description,
		CanteenId:     e.CanteenId,
		CanteenName:   e.CanteenName,
		Tags:          e.Tags,
		Ingredients:   e.Ingredients,
		Allergens:     e.Allergens,
		SpicyLevel:    e.SpicyLevel,
		SweetLevel:    e.SweetLevel,
		SaltyLevel:    e.SaltyLevel,
		SourLevel:     e.SourLevel,
		Price:         e.Price,
		AvgRating:     e.AvgRating,
		RatingCount:   e.RatingCount,
		Status:        e.Status,
		AvailableFrom: e.AvailableFrom,
		AvailableTo:   e.AvailableTo,
		CreatedAt:     e.CreatedAt,
	}
	if e.UpdatedAt != nil {
		mod.UpdatedAt = *e.UpdatedAt
	}
	return mod
}
