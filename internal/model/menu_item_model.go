package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MenuItem struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string    `gorm:"type:varchar(255);not null;index"`
	Description string    `gorm:"type:text"`
	CanteenId   uuid.UUID `gorm:"type:uuid;not null;index"`
	CanteenName string    `gorm:"type:varchar(255)"`

	Tags        datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Ingredients datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Allergens   datatypes.JSONSlice[string] `gorm:"type:jsonb"`

	SpicyLevel int `gorm:"default:0"`
	SweetLevel int `gorm:"default:0"`
	SaltyLevel int `gorm:"default:0"`
	SourLevel  int `gorm:"default:0"`

	Price float64 `gorm:"type:numeric(10,2);not null"`

	AvgRating   float64 `gorm:"type:numeric(3,2);default:0"`
	RatingCount int     `gorm:"default:0"`

	Status string `gorm:"type:varchar(16);default:'online';index"`

	AvailableFrom string `gorm:"type:varchar(5)"`
	AvailableTo   string `gorm:"type:varchar(5)"`

	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (MenuItem) TableName() string {
	return "menu_items"
}
