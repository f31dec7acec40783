package service

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"campus-dining-be/internal/cache"
	"campus-dining-be/internal/constant"
	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/pkg/logger"
	"campus-dining-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

const (
	browseLogLimit   = 200
	recentBrowseCap  = 50
	browseHalfLife   = 7 * 24 * time.Hour
	likedReviewScore = 4
)

type IFeatureService interface {
	// GetUserFeatures returns the cached feature snapshot, building it from
	// the store on a miss. A user with no data at all still gets a non-nil
	// snapshot with nil sub-structs.
	GetUserFeatures(ctx context.Context, userId uuid.UUID) (*entity.UserFeatures, error)
	// BuildUserFeatures aggregates the store directly, bypassing the cache,
	// and caches the result.
	BuildUserFeatures(ctx context.Context, userId uuid.UUID) (*entity.UserFeatures, error)
	// Invalidate drops the cached snapshot and derived user embedding so the
	// next request rebuilds them.
	Invalidate(ctx context.Context, userId uuid.UUID) error
}

type featureService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      cache.Cache
	log        logger.ILogger
}

func NewFeatureService(uowFactory unitofwork.RepositoryFactory, cacheStore cache.Cache, log logger.ILogger) IFeatureService {
	return &featureService{uowFactory: uowFactory, cache: cacheStore, log: log}
}

func (s *featureService) GetUserFeatures(ctx context.Context, userId uuid.UUID) (*entity.UserFeatures, error) {
	key := constant.UserFeaturesKey(userId)
	if raw, found, err := s.cache.Get(ctx, key); err == nil && found {
		var features entity.UserFeatures
		if err := json.Unmarshal([]byte(raw), &features); err == nil {
			return &features, nil
		}
		// Corrupt cache entries are rebuilt, not fatal.
		s.log.Warn("feature", "corrupt cached features, rebuilding", map[string]interface{}{"user_id": userId})
	}
	return s.BuildUserFeatures(ctx, userId)
}

func (s *featureService) BuildUserFeatures(ctx context.Context, userId uuid.UUID) (*entity.UserFeatures, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	behaviors := uow.UserBehaviorRepository()

	preference, err := behaviors.FindPreference(ctx, userId)
	if err != nil {
		return nil, err
	}
	allergenList, err := behaviors.FindAllergens(ctx, userId)
	if err != nil {
		return nil, err
	}
	favorites, err := behaviors.FindFavorites(ctx, userId)
	if err != nil {
		return nil, err
	}
	browseLogs, err := behaviors.FindBrowseLogs(ctx, userId, browseLogLimit)
	if err != nil {
		return nil, err
	}
	reviews, err := behaviors.FindReviews(ctx, userId)
	if err != nil {
		return nil, err
	}

	items, err := s.resolveItems(ctx, uow, favorites, browseLogs, reviews)
	if err != nil {
		return nil, err
	}

	features := &entity.UserFeatures{
		UserId:     userId,
		Preference: preference,
		Favorites:  buildFavoriteSummary(favorites, reviews, items),
		Browse:     buildBrowseSummary(browseLogs, items, time.Now()),
		Allergens:  toSet(allergenList),
		BuiltAt:    time.Now(),
	}

	if raw, err := json.Marshal(features); err == nil {
		if err := s.cache.Set(ctx, constant.UserFeaturesKey(userId), string(raw), constant.UserFeaturesTTL); err != nil {
			s.log.Warn("feature", "feature cache write failed", map[string]interface{}{
				"user_id": userId, "error": err.Error(),
			})
		}
	}
	return features, nil
}

func (s *featureService) Invalidate(ctx context.Context, userId uuid.UUID) error {
	if err := s.cache.DelPattern(ctx, constant.UserFeaturesPattern(userId)); err != nil {
		return err
	}
	return s.cache.Del(ctx, constant.UserEmbeddingKey(userId))
}

// resolveItems batch-fetches every item referenced by the behavior rows.
func (s *featureService) resolveItems(
	ctx context.Context,
	uow unitofwork.UnitOfWork,
	favorites []*entity.FavoriteRecord,
	browseLogs []*entity.BrowseRecord,
	reviews []*entity.ReviewRecord,
) (map[uuid.UUID]*entity.MenuItem, error) {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, f := range favorites {
		add(f.ItemId)
	}
	for _, b := range browseLogs {
		add(b.ItemId)
	}
	for _, r := range reviews {
		add(r.ItemId)
	}
	if len(ids) == 0 {
		return map[uuid.UUID]*entity.MenuItem{}, nil
	}

	records, err := uow.MenuItemRepository().FindByIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	byId := make(map[uuid.UUID]*entity.MenuItem, len(records))
	for _, item := range records {
		byId[item.Id] = item
	}
	return byId, nil
}

// buildFavoriteSummary folds favorites, plus well-rated reviews at half
// weight, into tag weights and taste averages. Tag weights are normalized by
// the largest weight so the strongest signal is 1.
func buildFavoriteSummary(
	favorites []*entity.FavoriteRecord,
	reviews []*entity.ReviewRecord,
	items map[uuid.UUID]*entity.MenuItem,
) *entity.FavoriteSummary {
	if len(favorites) == 0 {
		return nil
	}

	summary := &entity.FavoriteSummary{
		TagWeights:  map[string]float64{},
		Canteens:    map[string]bool{},
		Ingredients: map[string]bool{},
		ItemIds:     map[uuid.UUID]bool{},
	}

	var spicy, sweet, salty, sour, price float64
	var counted int
	for _, f := range favorites {
		summary.ItemIds[f.ItemId] = true
		item, ok := items[f.ItemId]
		if !ok {
			continue
		}
		for _, tag := range item.Tags {
			summary.TagWeights[tag] += 1.0
		}
		if item.CanteenName != "" {
			summary.Canteens[item.CanteenName] = true
		}
		for _, ing := range item.Ingredients {
			summary.Ingredients[ing] = true
		}
		spicy += float64(item.SpicyLevel)
		sweet += float64(item.SweetLevel)
		salty += float64(item.SaltyLevel)
		sour += float64(item.SourLevel)
		price += item.Price
		counted++
	}

	// High reviews reinforce taste the same way favorites do, at half weight.
	for _, r := range reviews {
		if r.Rating < likedReviewScore {
			continue
		}
		if item, ok := items[r.ItemId]; ok {
			for _, tag := range item.Tags {
				summary.TagWeights[tag] += 0.5
			}
		}
	}

	var max float64
	for _, w := range summary.TagWeights {
		if w > max {
			max = w
		}
	}
	if max > 0 {
		for tag, w := range summary.TagWeights {
			summary.TagWeights[tag] = w / max
		}
	}

	if counted > 0 {
		n := float64(counted)
		summary.AvgSpicy = spicy / n
		summary.AvgSweet = sweet / n
		summary.AvgSalty = salty / n
		summary.AvgSour = sour / n
		summary.AvgPrice = price / n
	}
	summary.Count = len(favorites)
	return summary
}

// buildBrowseSummary weights each view by exponential time decay so old
// history fades instead of dropping off a cliff.
func buildBrowseSummary(
	browseLogs []*entity.BrowseRecord,
	items map[uuid.UUID]*entity.MenuItem,
	now time.Time,
) *entity.BrowseSummary {
	if len(browseLogs) == 0 {
		return nil
	}

	summary := &entity.BrowseSummary{
		TagWeights:     map[string]float64{},
		CanteenWeights: map[string]float64{},
		RecentItemIds:  map[uuid.UUID]bool{},
	}

	for i, b := range browseLogs {
		if i < recentBrowseCap {
			summary.RecentItemIds[b.ItemId] = true
		}
		item, ok := items[b.ItemId]
		if !ok {
			continue
		}
		weight := decayWeight(now.Sub(b.CreatedAt))
		for _, tag := range item.Tags {
			summary.TagWeights[tag] += weight
		}
		if item.CanteenName != "" {
			summary.CanteenWeights[item.CanteenName] += weight
		}
	}

	normalizeWeights(summary.TagWeights)
	normalizeWeights(summary.CanteenWeights)
	return summary
}

func decayWeight(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	return math.Exp(-math.Ln2 * age.Hours() / browseHalfLife.Hours())
}

func normalizeWeights(weights map[string]float64) {
	var max float64
	for _, w := range weights {
		if w > max {
			max = w
		}
	}
	if max == 0 {
		return
	}
	for k, w := range weights {
		weights[k] = w / max
	}
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
