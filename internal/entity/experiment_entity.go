package entity

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	ExperimentStatusActive   = "active"
	ExperimentStatusFinished = "finished"

	// Tolerance when checking that quota or group ratios sum to 1.
	RatioTolerance = 0.01
)

// RecallQuotaConfig splits the candidate budget across the three recall
// strategies. The three fractions must sum to 1 within RatioTolerance.
type RecallQuotaConfig struct {
	VectorQuota        float64 `json:"vector_quota"`
	RuleQuota          float64 `json:"rule_quota"`
	CollaborativeQuota float64 `json:"collaborative_quota"`
}

func DefaultRecallQuota() RecallQuotaConfig {
	return RecallQuotaConfig{VectorQuota: 0.6, RuleQuota: 0.3, CollaborativeQuota: 0.1}
}

func (q RecallQuotaConfig) Valid() bool {
	sum := q.VectorQuota + q.RuleQuota + q.CollaborativeQuota
	return math.Abs(sum-1.0) <= RatioTolerance
}

// ScoreWeights holds the six factor weights of the scoring engine. All
// weights must be >= 0; a config whose weights sum to zero falls back to the
// defaults at scoring time.
type ScoreWeights struct {
	Preference float64 `json:"preference"`
	Favorite   float64 `json:"favorite"`
	Browse     float64 `json:"browse"`
	Quality    float64 `json:"quality"`
	Diversity  float64 `json:"diversity"`
	Search     float64 `json:"search"`
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Preference: 0.30,
		Favorite:   0.20,
		Browse:     0.15,
		Quality:    0.15,
		Diversity:  0.10,
		Search:     0.10,
	}
}

func (w ScoreWeights) Sum() float64 {
	return w.Preference + w.Favorite + w.Browse + w.Quality + w.Diversity + w.Search
}

// ExperimentGroup is one bucket of an experiment. Ratio is the fraction of
// the experiment's participating traffic this group receives; group ratios
// within one experiment must sum to 1.
type ExperimentGroup struct {
	GroupId     string             `json:"group_id"`
	Ratio       float64            `json:"ratio"`
	Weights     *ScoreWeights      `json:"weights,omitempty"`
	RecallQuota *RecallQuotaConfig `json:"recall_quota,omitempty"`
}

type Experiment struct {
	Id           string
	Name         string
	TrafficRatio float64
	Groups       []ExperimentGroup
	Status       string
	StartAt      time.Time
	EndAt        *time.Time
}

func (e *Experiment) IsActive(now time.Time) bool {
	if e.Status != ExperimentStatusActive {
		return false
	}
	if now.Before(e.StartAt) {
		return false
	}
	if e.EndAt != nil && now.After(*e.EndAt) {
		return false
	}
	return true
}

// GroupRatiosValid checks that the group ratios partition the experiment's
// participating traffic exactly.
func (e *Experiment) GroupRatiosValid() bool {
	var sum float64
	for _, g := range e.Groups {
		sum += g.Ratio
	}
	return math.Abs(sum-1.0) <= RatioTolerance
}

// ExperimentAssignment is the persisted, permanent bucket decision for one
// (user, experiment) pair.
type ExperimentAssignment struct {
	Id           uuid.UUID `json:"id"`
	UserId       uuid.UUID `json:"user_id"`
	ExperimentId string    `json:"experiment_id"`
	GroupId      string    `json:"group_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}
