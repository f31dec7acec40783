package dto

import (
	"crypto/md5"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RecommendFilter narrows the candidate pool before recall.
type RecommendFilter struct {
	CanteenId *uuid.UUID `json:"canteen_id,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	PriceMax  *float64   `json:"price_max,omitempty"`
	// AvailableAt restricts to items available at the given "HH:MM" time.
	AvailableAt string `json:"available_at,omitempty"`
}

// Hash gives a stable short digest of the filter for result cache keys.
func (f *RecommendFilter) Hash() string {
	if f == nil {
		return "none"
	}
	var b strings.Builder
	if f.CanteenId != nil {
		b.WriteString(f.CanteenId.String())
	}
	b.WriteString("|")
	b.WriteString(strings.Join(f.Tags, ","))
	b.WriteString("|")
	if f.PriceMax != nil {
		fmt.Fprintf(&b, "%.2f", *f.PriceMax)
	}
	b.WriteString("|")
	b.WriteString(f.AvailableAt)
	return fmt.Sprintf("%x", md5.Sum([]byte(b.String())))[:12]
}

type RecommendRequest struct {
	Scene         string           `json:"scene" validate:"required,oneof=home search category similar"`
	ExperimentId  string           `json:"experiment_id,omitempty"`
	TriggerItemId *uuid.UUID       `json:"trigger_item_id,omitempty"`
	Filter        *RecommendFilter `json:"filter,omitempty"`
	Search        string           `json:"search,omitempty"`

	Page     int `json:"page" validate:"min=1"`
	PageSize int `json:"page_size" validate:"min=1,max=100"`

	IncludeScoreBreakdown bool `json:"include_score_breakdown,omitempty"`
}

// ScoreBreakdownDTO exposes the six sub-scores in debug mode only.
type ScoreBreakdownDTO struct {
	Preference float64 `json:"preference"`
	Favorite   float64 `json:"favorite"`
	Browse     float64 `json:"browse"`
	Quality    float64 `json:"quality"`
	Diversity  float64 `json:"diversity"`
	Search     float64 `json:"search"`
	Final      float64 `json:"final"`
}

type RankedItemDTO struct {
	Id             uuid.UUID          `json:"id"`
	Score          float64            `json:"score"`
	ScoreBreakdown *ScoreBreakdownDTO `json:"score_breakdown,omitempty"`
	Sources        []string           `json:"sources,omitempty"`
}

type RecommendResponse struct {
	Items     []RankedItemDTO `json:"items"`
	Page      int             `json:"page"`
	PageSize  int             `json:"page_size"`
	Total     int             `json:"total"`
	RequestId string          `json:"request_id"`

	ExperimentId string `json:"experiment_id,omitempty"`
	GroupId      string `json:"group_id,omitempty"`

	Debug map[string]interface{} `json:"debug,omitempty"`
}

type ExperimentGroupResponse struct {
	ExperimentId string `json:"experiment_id"`
	GroupId      string `json:"group_id"`
	Assigned     bool   `json:"assigned"`
}
