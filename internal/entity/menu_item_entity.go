package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	ItemStatusOnline  = "online"
	ItemStatusOffline = "offline"
)

type MenuItem struct {
	Id          uuid.UUID
	Name        string
	Description string
	CanteenId   uuid.UUID
	CanteenName string
	Tags        []string
	Ingredients []string
	Allergens   []string

	// Taste dimensions, each on a 0-5 scale.
	SpicyLevel int
	SweetLevel int
	SaltyLevel int
	SourLevel  int

	Price float64

	AvgRating   float64
	RatingCount int

	Status string

	// Daily availability window, "HH:MM" local time. Empty means always available.
	AvailableFrom string
	AvailableTo   string

	CreatedAt time.Time
	UpdatedAt *time.Time
}

func (m *MenuItem) IsOnline() bool {
	return m.Status == ItemStatusOnline
}

func (m *MenuItem) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
