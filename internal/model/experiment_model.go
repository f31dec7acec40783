package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Experiment struct {
	Id           string  `gorm:"type:varchar(64);primaryKey"`
	Name         string  `gorm:"type:varchar(255);not null"`
	TrafficRatio float64 `gorm:"type:numeric(4,3);not null"`

	// Groups holds the serialized []entity.ExperimentGroup, including the
	// optional per-group weight and quota overrides.
	Groups datatypes.JSON `gorm:"type:jsonb;not null"`

	Status  string     `gorm:"type:varchar(16);default:'active';index"`
	StartAt time.Time  `gorm:"not null"`
	EndAt   *time.Time `gorm:""`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Experiment) TableName() string {
	return "experiments"
}

type ExperimentAssignment struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_assign_user_exp"`
	ExperimentId string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_assign_user_exp"`
	GroupId      string    `gorm:"type:varchar(64);not null"`
	AssignedAt   time.Time `gorm:"autoCreateTime"`
}

func (ExperimentAssignment) TableName() string {
	return "experiment_assignments"
}
