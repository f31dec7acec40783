package service

import (
	"context"
	"fmt"
	"testing"

	"campus-dining-be/internal/cache"
	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/pkg/logger"
	"campus-dining-be/pkg/embedding"
	"campus-dining-be/pkg/encoder"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider is a controllable external generator.
type stubProvider struct {
	healthy bool
	vector  []float32
	err     error
	version string
}

func (p *stubProvider) Embed(text string, numericFeatures []float32, version string) ([]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.vector, nil
}

func (p *stubProvider) EmbedBatch(inputs []embedding.BatchInput, version string) ([][]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = p.vector
	}
	return out, nil
}

func (p *stubProvider) Healthy() bool { return p.healthy }

func (p *stubProvider) Version() string {
	if p.version != "" {
		return p.version
	}
	return entity.EmbeddingVersionRemote
}

func TestGetOrCreateItemEmbeddingLocalFallback(t *testing.T) {
	item := spicyNoodles()
	factory := newFakeFactory()
	factory.uow.items = newFakeMenuItemRepo(item)

	svc := NewEmbeddingService(factory, cache.NewMemoryCache(), &stubProvider{healthy: false}, logger.NewNopLogger())

	emb, err := svc.GetOrCreateItemEmbedding(context.Background(), item.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.EmbeddingVersionLocal, emb.Version)
	assert.Len(t, emb.Vector, encoder.Dimension)

	// Persisted at the generated version.
	stored := factory.uow.embeddings.stored[embeddingKey{item.Id, entity.EmbeddingVersionLocal}]
	require.NotNil(t, stored)
	assert.Equal(t, emb.Vector, stored.Vector)
}

func TestGetOrCreateItemEmbeddingUsesHealthyGenerator(t *testing.T) {
	item := spicyNoodles()
	factory := newFakeFactory()
	factory.uow.items = newFakeMenuItemRepo(item)
	provider := &stubProvider{healthy: true, vector: []float32{0.5, 0.25, 0.75}}

	svc := NewEmbeddingService(factory, cache.NewMemoryCache(), provider, logger.NewNopLogger())

	emb, err := svc.GetOrCreateItemEmbedding(context.Background(), item.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.EmbeddingVersionRemote, emb.Version)
	assert.Equal(t, provider.vector, emb.Vector)
}

func TestGetOrCreateItemEmbeddingIgnoresOlderProviderVersion(t *testing.T) {
	item := spicyNoodles()
	factory := newFakeFactory()
	factory.uow.items = newFakeMenuItemRepo(item)
	// Healthy, but advertising a version below the local encoder's.
	provider := &stubProvider{healthy: true, vector: []float32{0.5}, version: "v0"}

	svc := NewEmbeddingService(factory, cache.NewMemoryCache(), provider, logger.NewNopLogger())

	emb, err := svc.GetOrCreateItemEmbedding(context.Background(), item.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.EmbeddingVersionLocal, emb.Version)
	assert.Len(t, emb.Vector, encoder.Dimension)
}

func TestUpgradeEmbeddingRejectsUnknownVersion(t *testing.T) {
	item := spicyNoodles()
	factory := newFakeFactory()
	factory.uow.items = newFakeMenuItemRepo(item)

	svc := NewEmbeddingService(factory, cache.NewMemoryCache(), &stubProvider{}, logger.NewNopLogger())

	_, err := svc.UpgradeEmbedding(context.Background(), item.Id, "garbage")
	assert.ErrorContains(t, err, "unknown embedding version")
}

func TestGetOrCreateItemEmbeddingGeneratorFailureFallsBack(t *testing.T) {
	item := spicyNoodles()
	factory := newFakeFactory()
	factory.uow.items = newFakeMenuItemRepo(item)
	provider := &stubProvider{healthy: true, err: fmt.Errorf("generator overloaded")}

	svc := NewEmbeddingService(factory, cache.NewMemoryCache(), provider, logger.NewNopLogger())

	emb, err := svc.GetOrCreateItemEmbedding(context.Background(), item.Id)
	require.NoError(t, err)
	// The request must not fail; the local encoder covers for the generator.
	assert.Equal(t, entity.EmbeddingVersionLocal, emb.Version)
}

func TestItemEmbeddingCacheRoundTripExact(t *testing.T) {
	item := spicyNoodles()
	factory := newFakeFactory()
	factory.uow.items = newFakeMenuItemRepo(item)
	store := cache.NewMemoryCache()

	svc := NewEmbeddingService(factory, store, &stubProvider{}, logger.NewNopLogger())

	first, err := svc.GetOrCreateItemEmbedding(context.Background(), item.Id)
	require.NoError(t, err)

	// Drop the store row so a second read can only be served by the cache.
	delete(factory.uow.embeddings.stored, embeddingKey{item.Id, entity.EmbeddingVersionLocal})
	factory.uow.items = newFakeMenuItemRepo()

	second, err := svc.GetOrCreateItemEmbedding(context.Background(), item.Id)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, first.Vector, second.Vector)
}

func TestSimilarityVersionRules(t *testing.T) {
	svc := NewEmbeddingService(newFakeFactory(), cache.NewMemoryCache(), &stubProvider{}, logger.NewNopLogger())

	v1a := &entity.VersionedEmbedding{Vector: []float32{1, 0}, Version: "v1"}
	v1b := &entity.VersionedEmbedding{Vector: []float32{1, 0}, Version: "v1"}
	v2 := &entity.VersionedEmbedding{Vector: []float32{1, 0}, Version: "v2"}

	assert.InDelta(t, 1.0, svc.Similarity(v1a, v1b), 1e-9)
	assert.Equal(t, 0.0, svc.Similarity(v1a, v2), "mismatched versions never compare")
	assert.Equal(t, 0.0, svc.Similarity(nil, v1a))
}

func TestItemSimilarityUpgradesOnDemand(t *testing.T) {
	item := spicyNoodles()
	factory := newFakeFactory()
	factory.uow.items = newFakeMenuItemRepo(item)

	svc := NewEmbeddingService(factory, cache.NewMemoryCache(), &stubProvider{}, logger.NewNopLogger())

	// No stored vector at v1: the service must encode one on the fly.
	userEmb := &entity.VersionedEmbedding{
		Vector:  encoder.EncodeItem(item),
		Version: entity.EmbeddingVersionLocal,
	}
	sim := svc.ItemSimilarity(context.Background(), userEmb, item.Id)
	assert.InDelta(t, 1.0, sim, 1e-6)

	// The upgrade persisted its result.
	assert.NotNil(t, factory.uow.embeddings.stored[embeddingKey{item.Id, entity.EmbeddingVersionLocal}])
}

func TestItemSimilarityImpossibleUpgradeScoresZero(t *testing.T) {
	item := spicyNoodles()
	factory := newFakeFactory()
	factory.uow.items = newFakeMenuItemRepo(item)

	// Provider is down, so nothing can produce a v2 vector.
	svc := NewEmbeddingService(factory, cache.NewMemoryCache(), &stubProvider{healthy: false}, logger.NewNopLogger())

	userEmb := &entity.VersionedEmbedding{Vector: []float32{1, 0}, Version: entity.EmbeddingVersionRemote}
	assert.Equal(t, 0.0, svc.ItemSimilarity(context.Background(), userEmb, item.Id))
}

func TestGenerateUserEmbeddingCachesResult(t *testing.T) {
	factory := newFakeFactory()
	svc := NewEmbeddingService(factory, cache.NewMemoryCache(), &stubProvider{}, logger.NewNopLogger())
	userId := uuid.New()

	features := &entity.UserFeatures{
		UserId: userId,
		Preference: &entity.PreferenceProfile{
			TagPreferences: []string{"川菜"},
		},
	}

	generated, err := svc.GenerateUserEmbedding(context.Background(), features)
	require.NoError(t, err)
	assert.Equal(t, entity.EmbeddingVersionLocal, generated.Version)

	cached, err := svc.GetUserEmbedding(context.Background(), userId)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, generated.Vector, cached.Vector)
}

func TestGetUserEmbeddingIsCacheOnly(t *testing.T) {
	svc := NewEmbeddingService(newFakeFactory(), cache.NewMemoryCache(), &stubProvider{}, logger.NewNopLogger())

	emb, err := svc.GetUserEmbedding(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, emb)
}

func TestRecallSimilarToItemUnknownAnchor(t *testing.T) {
	svc := NewEmbeddingService(newFakeFactory(), cache.NewMemoryCache(), &stubProvider{}, logger.NewNopLogger())

	ids, err := svc.RecallSimilarToItem(context.Background(), uuid.New(), 10, true)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestEmbeddingVersionOrdering(t *testing.T) {
	assert.True(t, entity.EmbeddingVersionLess("v1", "v2"))
	assert.False(t, entity.EmbeddingVersionLess("v2", "v1"))
	assert.Equal(t, -1, entity.EmbeddingVersionRank("garbage"))
}
