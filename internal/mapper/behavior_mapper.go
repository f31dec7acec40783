package mapper

import (
	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/model"
)

type BehaviorMapper struct{}

func NewBehaviorMapper() *BehaviorMapper {
	return &BehaviorMapper{}
}

func (m *BehaviorMapper) PreferenceToEntity(mod *model.UserPreference) *entity.PreferenceProfile {
	if mod == nil {
		return nil
	}
	return &entity.PreferenceProfile{
		TagPreferences:        mod.TagPreferences,
		IngredientPreferences: mod.IngredientPreferences,
		AvoidIngredients:      mod.AvoidIngredients,
		PreferredCanteens:     mod.PreferredCanteens,
		SpicyLevel:            mod.SpicyLevel,
		SweetLevel:            mod.SweetLevel,
		SaltyLevel:            mod.SaltyLevel,
		SourLevel:             mod.SourLevel,
		PriceMin:              mod.PriceMin,
		PriceMax:              mod.PriceMax,
		PortionSize:           mod.PortionSize,
	}
}

func (m *BehaviorMapper) FavoriteToEntity(mod *model.Favorite) *entity.FavoriteRecord {
	if mod == nil {
		return nil
	}
	return &entity.FavoriteRecord{
		Id:        mod.Id,
		UserId:    mod.UserId,
		ItemId:    mod.ItemId,
		CreatedAt: mod.CreatedAt,
	}
}

func (m *BehaviorMapper) BrowseToEntity(mod *model.BrowseLog) *entity.BrowseRecord {
	if mod == nil {
		return nil
	}
	return &entity.BrowseRecord{
		Id:         mod.Id,
		UserId:     mod.UserId,
		ItemId:     mod.ItemId,
		DurationMs: mod.DurationMs,
		CreatedAt:  mod.CreatedAt,
	}
}

func (m *BehaviorMapper) ReviewToEntity(mod *model.Review) *entity.ReviewRecord {
	if mod == nil {
		return nil
	}
	return &entity.ReviewRecord{
		Id:        mod.Id,
		UserId:    mod.UserId,
		ItemId:    mod.ItemId,
		Rating:    mod.Rating,
		Content:   mod.Content,
		CreatedAt: mod.CreatedAt,
	}
}
