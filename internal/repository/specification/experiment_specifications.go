package specification

import (
	"time"

	"gorm.io/gorm"
)

// ActiveExperiments keeps experiments currently running at the given time.
type ActiveExperiments struct {
	Now time.Time
}

func (s ActiveExperiments) Apply(db *gorm.DB) *gorm.DB {
	return db.
		Where("status = ?", "active").
		Where("start_at <= ?", s.Now).
		Where("end_at IS NULL OR end_at >= ?", s.Now)
}
