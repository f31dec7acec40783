package entity

import (
	"time"

	"github.com/google/uuid"
)

// PreferenceProfile is the user's declared preferences. Every field is
// optional; a nil taste level or price bound means the user never set it.
type PreferenceProfile struct {
	TagPreferences        []string `json:"tag_preferences"`
	IngredientPreferences []string `json:"ingredient_preferences"`
	AvoidIngredients      []string `json:"avoid_ingredients"`
	PreferredCanteens     []string `json:"preferred_canteens"`

	SpicyLevel *int `json:"spicy_level,omitempty"`
	SweetLevel *int `json:"sweet_level,omitempty"`
	SaltyLevel *int `json:"salty_level,omitempty"`
	SourLevel  *int `json:"sour_level,omitempty"`

	PriceMin *float64 `json:"price_min,omitempty"`
	PriceMax *float64 `json:"price_max,omitempty"`

	PortionSize string `json:"portion_size,omitempty"`
}

// FavoriteSummary aggregates every item the user has favorited.
type FavoriteSummary struct {
	TagWeights  map[string]float64 `json:"tag_weights"`
	Canteens    map[string]bool    `json:"canteens"`
	Ingredients map[string]bool    `json:"ingredients"`

	AvgSpicy float64 `json:"avg_spicy"`
	AvgSweet float64 `json:"avg_sweet"`
	AvgSalty float64 `json:"avg_salty"`
	AvgSour  float64 `json:"avg_sour"`
	AvgPrice float64 `json:"avg_price"`

	ItemIds map[uuid.UUID]bool `json:"item_ids"`
	Count   int                `json:"count"`
}

// BrowseSummary aggregates recent browse history with time decay, so that a
// tag viewed yesterday weighs more than the same tag viewed a month ago.
type BrowseSummary struct {
	TagWeights     map[string]float64 `json:"tag_weights"`
	CanteenWeights map[string]float64 `json:"canteen_weights"`
	RecentItemIds  map[uuid.UUID]bool `json:"recent_item_ids"`
}

// UserFeatures is the full behavioral picture of one user, derived from the
// store and cached. Nil sub-structs mean "no data", which the scoring engine
// treats as a neutral signal rather than a negative one.
type UserFeatures struct {
	UserId     uuid.UUID          `json:"user_id"`
	Preference *PreferenceProfile `json:"preference,omitempty"`
	Favorites  *FavoriteSummary   `json:"favorites,omitempty"`
	Browse     *BrowseSummary     `json:"browse,omitempty"`
	Allergens  map[string]bool    `json:"allergens,omitempty"`

	BuiltAt time.Time `json:"built_at"`
}

func (u *UserFeatures) HasFavorited(itemId uuid.UUID) bool {
	return u != nil && u.Favorites != nil && u.Favorites.ItemIds[itemId]
}

func (u *UserFeatures) RecentlyBrowsed(itemId uuid.UUID) bool {
	return u != nil && u.Browse != nil && u.Browse.RecentItemIds[itemId]
}
