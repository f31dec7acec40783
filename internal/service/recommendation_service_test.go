package service

import (
	"context"
	"testing"
	"time"

	"campus-dining-be/internal/cache"
	"campus-dining-be/internal/constant"
	"campus-dining-be/internal/dto"
	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/pkg/logger"
	"campus-dining-be/pkg/events"
	"campus-dining-be/pkg/scoring"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeatures struct {
	features        *entity.UserFeatures
	invalidateCalls int
}

func (s *stubFeatures) GetUserFeatures(ctx context.Context, userId uuid.UUID) (*entity.UserFeatures, error) {
	if s.features != nil {
		return s.features, nil
	}
	return &entity.UserFeatures{UserId: userId}, nil
}

func (s *stubFeatures) BuildUserFeatures(ctx context.Context, userId uuid.UUID) (*entity.UserFeatures, error) {
	return s.GetUserFeatures(ctx, userId)
}

func (s *stubFeatures) Invalidate(ctx context.Context, userId uuid.UUID) error {
	s.invalidateCalls++
	return nil
}

type stubRecall struct {
	candidates []scoring.Candidate
	calls      int
}

func (s *stubRecall) Recall(ctx context.Context, userId uuid.UUID, req *dto.RecommendRequest, quota entity.RecallQuotaConfig) ([]scoring.Candidate, error) {
	s.calls++
	return s.candidates, nil
}

type stubExperiments struct {
	resolution *ExperimentResolution
	requested  []string
}

func (s *stubExperiments) Resolve(ctx context.Context, userId uuid.UUID, requestedExperimentId string) (*ExperimentResolution, error) {
	s.requested = append(s.requested, requestedExperimentId)
	if s.resolution != nil {
		return s.resolution, nil
	}
	return &ExperimentResolution{
		Weights:     entity.DefaultScoreWeights(),
		RecallQuota: entity.DefaultRecallQuota(),
	}, nil
}

func (s *stubExperiments) RequestRefresh() {}

func (s *stubExperiments) RunRefreshLoop(ctx context.Context, interval time.Duration) {}

type captureSink struct {
	published []events.Event
}

func (s *captureSink) Publish(ctx context.Context, event events.Event) error {
	s.published = append(s.published, event)
	return nil
}

func (s *captureSink) PublishBatch(ctx context.Context, batch []events.Event) error {
	s.published = append(s.published, batch...)
	return nil
}

func recommendFixture(n int) (*stubRecall, []uuid.UUID) {
	var candidates []scoring.Candidate
	var ids []uuid.UUID
	for i := 0; i < n; i++ {
		item := onlineItem("item")
		// Descending quality so the ranking order is predictable.
		item.AvgRating = 5 - float64(i)*0.5
		item.RatingCount = 100
		candidates = append(candidates, scoring.Candidate{Item: item, Sources: []string{SourceRule}})
		ids = append(ids, item.Id)
	}
	return &stubRecall{candidates: candidates}, ids
}

func newRecommendationFixture(recall IRecallService, store cache.Cache, sink events.Sink) IRecommendationService {
	return NewRecommendationService(
		&stubFeatures{},
		&stubEmbeddings{},
		recall,
		&stubExperiments{},
		store,
		sink,
		logger.NewNopLogger(),
	)
}

func TestRecommendPaginatesRankedResults(t *testing.T) {
	recall, ids := recommendFixture(5)
	sink := &captureSink{}
	svc := newRecommendationFixture(recall, cache.NewMemoryCache(), sink)

	resp, err := svc.Recommend(context.Background(), uuid.New(), &dto.RecommendRequest{
		Scene: constant.SceneHome, Page: 1, PageSize: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, resp.Total)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, ids[0], resp.Items[0].Id)
	assert.Equal(t, ids[1], resp.Items[1].Id)
	assert.GreaterOrEqual(t, resp.Items[0].Score, resp.Items[1].Score)
	assert.NotEmpty(t, resp.RequestId)

	// One impression per served item, carrying the request id.
	require.Len(t, sink.published, 2)
	assert.Equal(t, constant.EventImpression, sink.published[0].EventType())
	assert.Equal(t, resp.RequestId, sink.published[0].Payload()["request_id"])
}

func TestRecommendLastPagePartial(t *testing.T) {
	recall, _ := recommendFixture(5)
	svc := newRecommendationFixture(recall, cache.NewMemoryCache(), &captureSink{})

	resp, err := svc.Recommend(context.Background(), uuid.New(), &dto.RecommendRequest{
		Scene: constant.SceneHome, Page: 3, PageSize: 2,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 1)

	resp, err = svc.Recommend(context.Background(), uuid.New(), &dto.RecommendRequest{
		Scene: constant.SceneHome, Page: 9, PageSize: 2,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Equal(t, 5, resp.Total)
}

func TestRecommendServesFromResultCache(t *testing.T) {
	recall, _ := recommendFixture(3)
	svc := newRecommendationFixture(recall, cache.NewMemoryCache(), &captureSink{})
	userId := uuid.New()
	req := &dto.RecommendRequest{Scene: constant.SceneHome, Page: 1, PageSize: 2}

	first, err := svc.Recommend(context.Background(), userId, req)
	require.NoError(t, err)

	second, err := svc.Recommend(context.Background(), userId, req)
	require.NoError(t, err)

	assert.Equal(t, 1, recall.calls, "second request must not re-run the pipeline")
	assert.Equal(t, first.RequestId, second.RequestId)
}

func TestRecommendSearchBypassesResultCache(t *testing.T) {
	recall, _ := recommendFixture(3)
	svc := newRecommendationFixture(recall, cache.NewMemoryCache(), &captureSink{})
	userId := uuid.New()
	req := &dto.RecommendRequest{Scene: constant.SceneSearch, Search: "牛肉面", Page: 1, PageSize: 2}

	_, err := svc.Recommend(context.Background(), userId, req)
	require.NoError(t, err)
	_, err = svc.Recommend(context.Background(), userId, req)
	require.NoError(t, err)

	assert.Equal(t, 2, recall.calls)
}

func TestRecommendHidesDislikedItems(t *testing.T) {
	recall, ids := recommendFixture(3)
	store := cache.NewMemoryCache()
	userId := uuid.New()

	_, err := store.IncrWithTTL(context.Background(), constant.DislikeCountKey(userId, ids[0]), constant.DislikeCountTTL)
	require.NoError(t, err)

	svc := newRecommendationFixture(recall, store, &captureSink{})
	resp, err := svc.Recommend(context.Background(), userId, &dto.RecommendRequest{
		Scene: constant.SceneHome, Page: 1, PageSize: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Total)
	for _, item := range resp.Items {
		assert.NotEqual(t, ids[0], item.Id)
	}
}

func TestRecommendValidatesRequest(t *testing.T) {
	recall, _ := recommendFixture(1)
	svc := newRecommendationFixture(recall, cache.NewMemoryCache(), &captureSink{})

	_, err := svc.Recommend(context.Background(), uuid.New(), &dto.RecommendRequest{
		Scene: "unknown", Page: 1, PageSize: 10,
	})
	assert.Error(t, err)

	_, err = svc.Recommend(context.Background(), uuid.New(), &dto.RecommendRequest{
		Scene: constant.SceneHome, Page: 0, PageSize: 10,
	})
	assert.Error(t, err)

	_, err = svc.Recommend(context.Background(), uuid.New(), &dto.RecommendRequest{
		Scene: constant.SceneHome, Page: 1, PageSize: 500,
	})
	assert.Error(t, err)
}

func TestRecommendForwardsRequestedExperiment(t *testing.T) {
	recall, _ := recommendFixture(1)
	experiments := &stubExperiments{}
	svc := NewRecommendationService(
		&stubFeatures{},
		&stubEmbeddings{},
		recall,
		experiments,
		cache.NewMemoryCache(),
		&captureSink{},
		logger.NewNopLogger(),
	)
	userId := uuid.New()

	_, err := svc.Recommend(context.Background(), userId, &dto.RecommendRequest{
		Scene: constant.SceneHome, ExperimentId: "exp-weights", Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"exp-weights"}, experiments.requested)

	// A pinned request must not share cache entries with the
	// unpinned one, and vice versa.
	_, err = svc.Recommend(context.Background(), userId, &dto.RecommendRequest{
		Scene: constant.SceneHome, Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"exp-weights", ""}, experiments.requested)
	assert.Equal(t, 2, recall.calls)
}

func TestRecommendExposesExperimentAssignment(t *testing.T) {
	recall, _ := recommendFixture(1)
	svc := NewRecommendationService(
		&stubFeatures{},
		&stubEmbeddings{},
		recall,
		&stubExperiments{resolution: &ExperimentResolution{
			ExperimentId: "exp-1",
			GroupId:      "treatment",
			Weights:      entity.DefaultScoreWeights(),
			RecallQuota:  entity.DefaultRecallQuota(),
		}},
		cache.NewMemoryCache(),
		&captureSink{},
		logger.NewNopLogger(),
	)

	resp, err := svc.Recommend(context.Background(), uuid.New(), &dto.RecommendRequest{
		Scene: constant.SceneHome, Page: 1, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "exp-1", resp.ExperimentId)
	assert.Equal(t, "treatment", resp.GroupId)

	group, err := svc.GetExperimentGroup(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, group.Assigned)
	assert.Equal(t, "treatment", group.GroupId)
}
