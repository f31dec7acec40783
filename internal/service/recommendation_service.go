package service

import (
	"context"
	"encoding/json"
	"time"

	"campus-dining-be/internal/cache"
	"campus-dining-be/internal/constant"
	"campus-dining-be/internal/dto"
	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/pkg/logger"
	"campus-dining-be/pkg/events"
	"campus-dining-be/pkg/scoring"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// A single dislike is enough to hide an item for the counter's lifetime.
const dislikeHideThreshold = 1

type IRecommendationService interface {
	// Recommend runs the full pipeline: experiment resolution, result cache,
	// feature loading, recall, scoring, pagination, impression logging.
	Recommend(ctx context.Context, userId uuid.UUID, req *dto.RecommendRequest) (*dto.RecommendResponse, error)
	// GetExperimentGroup exposes which experiment bucket governs this user.
	GetExperimentGroup(ctx context.Context, userId uuid.UUID) (*dto.ExperimentGroupResponse, error)
}

type recommendationService struct {
	features    IFeatureService
	embeddings  IEmbeddingService
	recall      IRecallService
	experiments IExperimentService
	cache       cache.Cache
	sink        events.Sink
	validate    *validator.Validate
	log         logger.ILogger
}

func NewRecommendationService(
	features IFeatureService,
	embeddings IEmbeddingService,
	recall IRecallService,
	experiments IExperimentService,
	cacheStore cache.Cache,
	sink events.Sink,
	log logger.ILogger,
) IRecommendationService {
	return &recommendationService{
		features:    features,
		embeddings:  embeddings,
		recall:      recall,
		experiments: experiments,
		cache:       cacheStore,
		sink:        sink,
		validate:    validator.New(),
		log:         log,
	}
}

func (s *recommendationService) Recommend(ctx context.Context, userId uuid.UUID, req *dto.RecommendRequest) (*dto.RecommendResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	resolution, err := s.experiments.Resolve(ctx, userId, req.ExperimentId)
	if err != nil {
		return nil, err
	}

	cacheKey := s.resultCacheKey(userId, req)
	if cacheKey != "" {
		if raw, found, err := s.cache.Get(ctx, cacheKey); err == nil && found {
			var cached dto.RecommendResponse
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	features, err := s.features.GetUserFeatures(ctx, userId)
	if err != nil {
		return nil, err
	}

	// Vector recall needs the user embedding cached before the fan-out.
	userEmb, err := s.embeddings.GetUserEmbedding(ctx, userId)
	if err == nil && userEmb == nil {
		userEmb, err = s.embeddings.GenerateUserEmbedding(ctx, features)
	}
	if err != nil {
		s.log.Warn("recommend", "user embedding unavailable, vector recall degraded", map[string]interface{}{
			"user_id": userId, "error": err.Error(),
		})
		userEmb = nil
	}

	candidates, err := s.recall.Recall(ctx, userId, req, resolution.RecallQuota)
	if err != nil {
		return nil, err
	}

	candidates = s.dropDisliked(ctx, userId, candidates)
	s.attachSimilarities(ctx, userEmb, candidates)

	ranked := scoring.Rank(
		candidates,
		features,
		resolution.Weights,
		scoring.NewSearchContext(req.Search),
		req.IncludeScoreBreakdown,
	)

	response := s.buildResponse(req, ranked, resolution)

	if cacheKey != "" {
		if raw, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, string(raw), constant.ResultTTL); err != nil {
				s.log.Warn("recommend", "result cache write failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	s.logImpressions(ctx, userId, req, response)
	return response, nil
}

func (s *recommendationService) GetExperimentGroup(ctx context.Context, userId uuid.UUID) (*dto.ExperimentGroupResponse, error) {
	resolution, err := s.experiments.Resolve(ctx, userId, "")
	if err != nil {
		return nil, err
	}
	return &dto.ExperimentGroupResponse{
		ExperimentId: resolution.ExperimentId,
		GroupId:      resolution.GroupId,
		Assigned:     resolution.ExperimentId != "",
	}, nil
}

// resultCacheKey returns "" for requests that must not be served from cache:
// free-text search results and debug requests.
func (s *recommendationService) resultCacheKey(userId uuid.UUID, req *dto.RecommendRequest) string {
	if req.Search != "" || req.IncludeScoreBreakdown {
		return ""
	}
	return constant.ResultKey(userId, req.Scene, req.ExperimentId, req.Page, req.PageSize, req.Filter.Hash())
}

// dropDisliked removes candidates the user has recently disliked. Counter
// lookup failures keep the candidate: hiding is best-effort.
func (s *recommendationService) dropDisliked(ctx context.Context, userId uuid.UUID, candidates []scoring.Candidate) []scoring.Candidate {
	kept := candidates[:0]
	for _, c := range candidates {
		raw, found, err := s.cache.Get(ctx, constant.DislikeCountKey(userId, c.Item.Id))
		if err == nil && found {
			var count int64
			if json.Unmarshal([]byte(raw), &count) == nil && count >= dislikeHideThreshold {
				continue
			}
		}
		kept = append(kept, c)
	}
	return kept
}

// attachSimilarities fills each candidate's embedding similarity to the
// user. Items without a comparable vector stay nil and score neutrally.
func (s *recommendationService) attachSimilarities(ctx context.Context, userEmb *entity.VersionedEmbedding, candidates []scoring.Candidate) {
	if userEmb == nil {
		return
	}
	for i := range candidates {
		sim := s.embeddings.ItemSimilarity(ctx, userEmb, candidates[i].Item.Id)
		if sim > 0 {
			candidates[i].EmbeddingSim = &sim
		}
	}
}

func (s *recommendationService) buildResponse(req *dto.RecommendRequest, ranked []scoring.Ranked, resolution *ExperimentResolution) *dto.RecommendResponse {
	total := len(ranked)
	start := (req.Page - 1) * req.PageSize
	if start > total {
		start = total
	}
	end := start + req.PageSize
	if end > total {
		end = total
	}

	items := make([]dto.RankedItemDTO, 0, end-start)
	for _, r := range ranked[start:end] {
		item := dto.RankedItemDTO{
			Id:      r.Item.Id,
			Score:   r.Score,
			Sources: r.Sources,
		}
		if r.Breakdown != nil {
			item.ScoreBreakdown = &dto.ScoreBreakdownDTO{
				Preference: r.Breakdown.Preference,
				Favorite:   r.Breakdown.Favorite,
				Browse:     r.Breakdown.Browse,
				Quality:    r.Breakdown.Quality,
				Diversity:  r.Breakdown.Diversity,
				Search:     r.Breakdown.Search,
				Final:      r.Breakdown.Final,
			}
		}
		items = append(items, item)
	}

	return &dto.RecommendResponse{
		Items:        items,
		Page:         req.Page,
		PageSize:     req.PageSize,
		Total:        total,
		RequestId:    uuid.New().String(),
		ExperimentId: resolution.ExperimentId,
		GroupId:      resolution.GroupId,
	}
}

// logImpressions records one impression per served item. Failures are logged
// and swallowed: the user already has their page.
func (s *recommendationService) logImpressions(ctx context.Context, userId uuid.UUID, req *dto.RecommendRequest, response *dto.RecommendResponse) {
	if len(response.Items) == 0 {
		return
	}
	now := time.Now()
	batch := make([]events.Event, 0, len(response.Items))
	offset := (req.Page - 1) * req.PageSize
	for i, item := range response.Items {
		itemId := item.Id
		position := offset + i
		score := item.Score
		batch = append(batch, events.BehaviorEvent{
			Type:         constant.EventImpression,
			UserId:       userId,
			ItemId:       &itemId,
			Scene:        req.Scene,
			RequestId:    response.RequestId,
			Position:     &position,
			Score:        &score,
			ExperimentId: response.ExperimentId,
			GroupId:      response.GroupId,
			OccurredAt:   now,
		})
	}
	if err := s.sink.PublishBatch(ctx, batch); err != nil {
		s.log.Warn("recommend", "impression batch publish failed", map[string]interface{}{
			"user_id": userId, "count": len(batch), "error": err.Error(),
		})
	}
}
