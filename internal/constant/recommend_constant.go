package constant

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Scenes select which recommendation profile applies.
const (
	SceneHome        = "home"
	SceneSearch      = "search"
	SceneCategory    = "category"
	SceneSimilarItem = "similar"
)

// Behavior event types emitted to the event sink.
const (
	EventImpression = "IMPRESSION"
	EventClick      = "CLICK"
	EventFavorite   = "FAVORITE"
	EventReview     = "REVIEW"
	EventDislike    = "DISLIKE"
)

// Recall sizing.
const (
	RecallMultiplier   = 3
	RecallMinCandidate = 50
)

// Cache TTLs.
const (
	UserFeaturesTTL  = 10 * time.Minute
	UserEmbeddingTTL = 30 * time.Minute
	ItemEmbeddingTTL = 6 * time.Hour
	ResultTTL        = 2 * time.Minute
	AssignmentTTL    = 24 * time.Hour
	DislikeCountTTL  = 7 * 24 * time.Hour
)

// Cache key builders. One place so invalidation patterns stay in sync with
// the writers.

func UserFeaturesKey(userId uuid.UUID) string {
	return fmt.Sprintf("reco:uf:%s", userId)
}

func UserFeaturesPattern(userId uuid.UUID) string {
	return fmt.Sprintf("reco:uf:%s*", userId)
}

func UserEmbeddingKey(userId uuid.UUID) string {
	return fmt.Sprintf("reco:uemb:%s", userId)
}

func ItemEmbeddingKey(itemId uuid.UUID, version string) string {
	return fmt.Sprintf("reco:iemb:%s:%s", itemId, version)
}

func ResultKey(userId uuid.UUID, scene, experimentId string, page, pageSize int, filterHash string) string {
	return fmt.Sprintf("reco:res:%s:%s:%s:%d:%d:%s", userId, scene, experimentId, page, pageSize, filterHash)
}

func ResultPattern(userId uuid.UUID) string {
	return fmt.Sprintf("reco:res:%s*", userId)
}

func AssignmentKey(userId uuid.UUID, experimentId string) string {
	return fmt.Sprintf("reco:exp:%s:%s", userId, experimentId)
}

func DislikeCountKey(userId, itemId uuid.UUID) string {
	return fmt.Sprintf("reco:dislike:%s:%s", userId, itemId)
}
