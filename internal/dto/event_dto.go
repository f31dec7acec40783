package dto

import (
	"github.com/google/uuid"
)

type LogBehaviorRequest struct {
	ItemId    uuid.UUID `json:"item_id" validate:"required"`
	Scene     string    `json:"scene" validate:"required"`
	RequestId string    `json:"request_id,omitempty"`
	// Rating only applies to review events.
	Rating int `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
}

// RefreshTaskMessage is the payload of background refresh tasks queued on
// the internal bus.
type RefreshTaskMessage struct {
	Kind          string     `json:"kind"` // "user_features" or "item_embedding"
	UserId        *uuid.UUID `json:"user_id,omitempty"`
	ItemId        *uuid.UUID `json:"item_id,omitempty"`
	TargetVersion string     `json:"target_version,omitempty"`
}

const (
	RefreshKindUserFeatures  = "user_features"
	RefreshKindItemEmbedding = "item_embedding"
)
