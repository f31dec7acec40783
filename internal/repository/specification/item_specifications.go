package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OnlineOnly keeps items currently online. Recall never surfaces offline
// items.
type OnlineOnly struct{}

func (s OnlineOnly) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", "online")
}

type ByCanteenID struct {
	CanteenID uuid.UUID
}

func (s ByCanteenID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("canteen_id = ?", s.CanteenID)
}

// HasAnyTag matches items carrying at least one of the given tags, using
// the jsonb containment operator per tag.
type HasAnyTag struct {
	Tags []string
}

func (s HasAnyTag) Apply(db *gorm.DB) *gorm.DB {
	if len(s.Tags) == 0 {
		return db
	}
	query := db
	or := db.Session(&gorm.Session{NewDB: true})
	for i, tag := range s.Tags {
		if i == 0 {
			or = or.Where("tags @> ?", `["`+tag+`"]`)
		} else {
			or = or.Or("tags @> ?", `["`+tag+`"]`)
		}
	}
	return query.Where(or)
}

type PriceAtMost struct {
	Max float64
}

func (s PriceAtMost) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("price <= ?", s.Max)
}

// AvailableAt keeps items whose daily window covers the given "HH:MM"
// time. Items without a window are always available.
type AvailableAt struct {
	Time string
}

func (s AvailableAt) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(
		"(available_from = '' OR available_from IS NULL OR (available_from <= ? AND available_to >= ?))",
		s.Time, s.Time,
	)
}

// QualityOrder sorts by rating first, review volume second.
type QualityOrder struct{}

func (s QualityOrder) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("avg_rating DESC").Order("rating_count DESC")
}
