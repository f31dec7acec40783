package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"campus-dining-be/internal/cache"
	"campus-dining-be/internal/constant"
	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/pkg/logger"
	"campus-dining-be/internal/repository/contract"
	"campus-dining-be/internal/repository/specification"
	"campus-dining-be/internal/repository/unitofwork"
	"campus-dining-be/pkg/embedding"
	"campus-dining-be/pkg/encoder"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type IEmbeddingService interface {
	// GetOrCreateItemEmbedding walks cache, store, then generation. The
	// external generator is preferred when healthy; the local encoder is
	// the fallback. The result is persisted and cached.
	GetOrCreateItemEmbedding(ctx context.Context, itemId uuid.UUID) (*entity.VersionedEmbedding, error)
	// GetUserEmbedding is a cache-only read. A nil result means the caller
	// must explicitly trigger generation.
	GetUserEmbedding(ctx context.Context, userId uuid.UUID) (*entity.VersionedEmbedding, error)
	// GenerateUserEmbedding builds and caches the user vector. It is never
	// persisted: user features churn too fast to warrant durability.
	GenerateUserEmbedding(ctx context.Context, features *entity.UserFeatures) (*entity.VersionedEmbedding, error)
	// UpgradeEmbedding regenerates an item's vector at the requested higher
	// version and overwrites cache and store.
	UpgradeEmbedding(ctx context.Context, itemId uuid.UUID, targetVersion string) (*entity.VersionedEmbedding, error)
	// Similarity is cosine similarity between two same-version embeddings;
	// mismatched versions or nil sides score 0. Callers wanting automatic
	// upgrading use ItemSimilarity.
	Similarity(a, b *entity.VersionedEmbedding) float64
	// ItemSimilarity compares a user embedding against an item, upgrading
	// the item's vector to the user's version when needed. Impossible
	// upgrades score 0.
	ItemSimilarity(ctx context.Context, userEmb *entity.VersionedEmbedding, itemId uuid.UUID) float64
	RecallByUserEmbedding(ctx context.Context, userId uuid.UUID, limit int, filter *contract.EmbeddingSearchFilter) ([]uuid.UUID, error)
	RecallSimilarToItem(ctx context.Context, itemId uuid.UUID, limit int, excludeSelf bool) ([]uuid.UUID, error)
}

type embeddingService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      cache.Cache
	provider   embedding.Provider
	log        logger.ILogger

	// Collapses concurrent generation of the same (item, version). Purely
	// a performance optimization: racing writers are idempotent.
	group singleflight.Group
}

func NewEmbeddingService(
	uowFactory unitofwork.RepositoryFactory,
	cacheStore cache.Cache,
	provider embedding.Provider,
	log logger.ILogger,
) IEmbeddingService {
	return &embeddingService{
		uowFactory: uowFactory,
		cache:      cacheStore,
		provider:   provider,
		log:        log,
	}
}

// desiredVersion is the richest version currently producible. A remote
// generator only wins when its version outranks the local encoder's.
func (s *embeddingService) desiredVersion() string {
	if s.provider != nil && s.provider.Healthy() &&
		entity.EmbeddingVersionLess(entity.EmbeddingVersionLocal, s.provider.Version()) {
		return s.provider.Version()
	}
	return entity.EmbeddingVersionLocal
}

func (s *embeddingService) GetOrCreateItemEmbedding(ctx context.Context, itemId uuid.UUID) (*entity.VersionedEmbedding, error) {
	version := s.desiredVersion()

	if emb := s.cachedEmbedding(ctx, constant.ItemEmbeddingKey(itemId, version)); emb != nil {
		return emb, nil
	}

	v, err, _ := s.group.Do(itemId.String()+":"+version, func() (interface{}, error) {
		uow := s.uowFactory.NewUnitOfWork(ctx)

		stored, err := uow.ItemEmbeddingRepository().FindByItemAndVersion(ctx, itemId, version)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			emb := stored.Versioned()
			s.cacheEmbedding(ctx, constant.ItemEmbeddingKey(itemId, version), emb, constant.ItemEmbeddingTTL)
			return emb, nil
		}

		item, err := uow.MenuItemRepository().FindOne(ctx, specification.ByID{ID: itemId})
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("item %s not found", itemId)
		}

		emb := s.generateItemEmbedding(item)
		if err := uow.ItemEmbeddingRepository().Upsert(ctx, &entity.ItemEmbedding{
			Id:      uuid.New(),
			ItemId:  itemId,
			Version: emb.Version,
			Vector:  emb.Vector,
		}); err != nil {
			return nil, err
		}
		s.cacheEmbedding(ctx, constant.ItemEmbeddingKey(itemId, emb.Version), emb, constant.ItemEmbeddingTTL)
		return emb, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entity.VersionedEmbedding), nil
}

func (s *embeddingService) GetUserEmbedding(ctx context.Context, userId uuid.UUID) (*entity.VersionedEmbedding, error) {
	return s.cachedEmbedding(ctx, constant.UserEmbeddingKey(userId)), nil
}

func (s *embeddingService) GenerateUserEmbedding(ctx context.Context, features *entity.UserFeatures) (*entity.VersionedEmbedding, error) {
	if features == nil {
		return nil, fmt.Errorf("user features required for embedding generation")
	}

	var emb *entity.VersionedEmbedding
	if version := s.desiredVersion(); version != entity.EmbeddingVersionLocal {
		vec, err := s.provider.Embed(userEmbeddingText(features), nil, version)
		if err == nil {
			emb = &entity.VersionedEmbedding{Vector: vec, Version: version}
		} else {
			s.log.Warn("embedding", "external generator failed for user, falling back to local encoder", map[string]interface{}{
				"user_id": features.UserId,
				"error":   err.Error(),
			})
		}
	}
	if emb == nil {
		emb = &entity.VersionedEmbedding{
			Vector:  encoder.EncodeUser(features),
			Version: entity.EmbeddingVersionLocal,
		}
	}

	s.cacheEmbedding(ctx, constant.UserEmbeddingKey(features.UserId), emb, constant.UserEmbeddingTTL)
	return emb, nil
}

func (s *embeddingService) UpgradeEmbedding(ctx context.Context, itemId uuid.UUID, targetVersion string) (*entity.VersionedEmbedding, error) {
	if entity.EmbeddingVersionRank(targetVersion) < 0 {
		return nil, fmt.Errorf("unknown embedding version %q", targetVersion)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	item, err := uow.MenuItemRepository().FindOne(ctx, specification.ByID{ID: itemId})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %s not found", itemId)
	}

	var vec []float32
	switch {
	case targetVersion == entity.EmbeddingVersionLocal:
		vec = encoder.EncodeItem(item)
	case s.provider != nil && s.provider.Healthy() && s.provider.Version() == targetVersion:
		vec, err = s.provider.Embed(itemEmbeddingText(item), itemNumericFeatures(item), targetVersion)
		if err != nil {
			return nil, fmt.Errorf("upgrade to %s failed: %w", targetVersion, err)
		}
	default:
		return nil, fmt.Errorf("no generator available for version %s", targetVersion)
	}

	emb := &entity.VersionedEmbedding{Vector: vec, Version: targetVersion}
	if err := uow.ItemEmbeddingRepository().Upsert(ctx, &entity.ItemEmbedding{
		Id:      uuid.New(),
		ItemId:  itemId,
		Version: targetVersion,
		Vector:  vec,
	}); err != nil {
		return nil, err
	}
	s.cacheEmbedding(ctx, constant.ItemEmbeddingKey(itemId, targetVersion), emb, constant.ItemEmbeddingTTL)
	return emb, nil
}

func (s *embeddingService) Similarity(a, b *entity.VersionedEmbedding) float64 {
	if a == nil || b == nil {
		return 0
	}
	if a.Version != b.Version {
		return 0
	}
	return embedding.Cosine(a.Vector, b.Vector)
}

func (s *embeddingService) ItemSimilarity(ctx context.Context, userEmb *entity.VersionedEmbedding, itemId uuid.UUID) float64 {
	if userEmb == nil {
		return 0
	}

	key := constant.ItemEmbeddingKey(itemId, userEmb.Version)
	itemEmb := s.cachedEmbedding(ctx, key)
	if itemEmb == nil {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		stored, err := uow.ItemEmbeddingRepository().FindByItemAndVersion(ctx, itemId, userEmb.Version)
		if err != nil {
			s.log.Warn("embedding", "item embedding lookup failed", map[string]interface{}{
				"item_id": itemId, "error": err.Error(),
			})
			return 0
		}
		if stored != nil {
			itemEmb = stored.Versioned()
			s.cacheEmbedding(ctx, key, itemEmb, constant.ItemEmbeddingTTL)
		}
	}

	if itemEmb == nil {
		// The item has no vector at the user's version; try upgrading it.
		upgraded, err := s.UpgradeEmbedding(ctx, itemId, userEmb.Version)
		if err != nil {
			return 0
		}
		itemEmb = upgraded
	}

	return s.Similarity(userEmb, itemEmb)
}

func (s *embeddingService) RecallByUserEmbedding(ctx context.Context, userId uuid.UUID, limit int, filter *contract.EmbeddingSearchFilter) ([]uuid.UUID, error) {
	userEmb, err := s.GetUserEmbedding(ctx, userId)
	if err != nil {
		return nil, err
	}
	if userEmb == nil {
		// Cache-only contract: no embedding means no vector recall.
		return nil, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ItemEmbeddingRepository().SearchSimilar(ctx, userEmb.Vector, userEmb.Version, limit, filter, nil)
}

func (s *embeddingService) RecallSimilarToItem(ctx context.Context, itemId uuid.UUID, limit int, excludeSelf bool) ([]uuid.UUID, error) {
	anchor, err := s.GetOrCreateItemEmbedding(ctx, itemId)
	if err != nil {
		// Unknown anchor is an empty result, not an error.
		s.log.Warn("embedding", "similar-item recall anchor unavailable", map[string]interface{}{
			"item_id": itemId, "error": err.Error(),
		})
		return nil, nil
	}

	var exclude *uuid.UUID
	if excludeSelf {
		exclude = &itemId
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ItemEmbeddingRepository().SearchSimilar(ctx, anchor.Vector, anchor.Version, limit, nil, exclude)
}

// generateItemEmbedding prefers the external generator and silently falls
// back to the local encoder. It never fails.
func (s *embeddingService) generateItemEmbedding(item *entity.MenuItem) *entity.VersionedEmbedding {
	if version := s.desiredVersion(); version != entity.EmbeddingVersionLocal {
		vec, err := s.provider.Embed(itemEmbeddingText(item), itemNumericFeatures(item), version)
		if err == nil {
			return &entity.VersionedEmbedding{Vector: vec, Version: version}
		}
		s.log.Warn("embedding", "external generator failed for item, falling back to local encoder", map[string]interface{}{
			"item_id": item.Id,
			"error":   err.Error(),
		})
	}
	return &entity.VersionedEmbedding{
		Vector:  encoder.EncodeItem(item),
		Version: entity.EmbeddingVersionLocal,
	}
}

func (s *embeddingService) cachedEmbedding(ctx context.Context, key string) *entity.VersionedEmbedding {
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil || !found {
		return nil
	}
	var emb entity.VersionedEmbedding
	if err := json.Unmarshal([]byte(raw), &emb); err != nil {
		return nil
	}
	return &emb
}

func (s *embeddingService) cacheEmbedding(ctx context.Context, key string, emb *entity.VersionedEmbedding, ttl time.Duration) {
	raw, err := json.Marshal(emb)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), ttl); err != nil {
		s.log.Warn("embedding", "cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func itemEmbeddingText(item *entity.MenuItem) string {
	parts := []string{item.Name}
	if item.CanteenName != "" {
		parts = append(parts, item.CanteenName)
	}
	if len(item.Tags) > 0 {
		parts = append(parts, strings.Join(item.Tags, " "))
	}
	if len(item.Ingredients) > 0 {
		parts = append(parts, strings.Join(item.Ingredients, " "))
	}
	if item.Description != "" {
		parts = append(parts, item.Description)
	}
	return strings.Join(parts, "\n")
}

func itemNumericFeatures(item *entity.MenuItem) []float32 {
	return []float32{
		float32(item.SpicyLevel) / 5.0,
		float32(item.SweetLevel) / 5.0,
		float32(item.SaltyLevel) / 5.0,
		float32(item.SourLevel) / 5.0,
		float32(item.Price),
		float32(item.AvgRating / 5.0),
	}
}

func userEmbeddingText(features *entity.UserFeatures) string {
	var parts []string
	if p := features.Preference; p != nil {
		parts = append(parts, strings.Join(p.TagPreferences, " "))
		parts = append(parts, strings.Join(p.IngredientPreferences, " "))
		parts = append(parts, strings.Join(p.PreferredCanteens, " "))
	}
	if f := features.Favorites; f != nil {
		for tag := range f.TagWeights {
			parts = append(parts, tag)
		}
	}
	if b := features.Browse; b != nil {
		for tag := range b.TagWeights {
			parts = append(parts, tag)
		}
	}
	return strings.Join(parts, " ")
}
