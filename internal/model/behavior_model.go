package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type UserPreference struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	TagPreferences        datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	IngredientPreferences datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	AvoidIngredients      datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	PreferredCanteens     datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Allergens             datatypes.JSONSlice[string] `gorm:"type:jsonb"`

	SpicyLevel *int `gorm:""`
	SweetLevel *int `gorm:""`
	SaltyLevel *int `gorm:""`
	SourLevel  *int `gorm:""`

	PriceMin *float64 `gorm:"type:numeric(10,2)"`
	PriceMax *float64 `gorm:"type:numeric(10,2)"`

	PortionSize string `gorm:"type:varchar(16)"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserPreference) TableName() string {
	return "user_preferences"
}

type Favorite struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_fav_user_item"`
	ItemId    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_fav_user_item;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Favorite) TableName() string {
	return "favorites"
}

type BrowseLog struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId     uuid.UUID `gorm:"type:uuid;not null;index:idx_browse_user_time"`
	ItemId     uuid.UUID `gorm:"type:uuid;not null;index"`
	DurationMs int       `gorm:"default:0"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_browse_user_time"`
}

func (BrowseLog) TableName() string {
	return "browse_logs"
}

type Review struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;index"`
	ItemId    uuid.UUID `gorm:"type:uuid;not null;index"`
	Rating    int       `gorm:"not null"`
	Content   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Review) TableName() string {
	return "reviews"
}
