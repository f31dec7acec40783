package service

import (
	"context"
	"fmt"
	"math"
	"sync"

	"campus-dining-be/internal/constant"
	"campus-dining-be/internal/dto"
	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/pkg/logger"
	"campus-dining-be/internal/repository/contract"
	"campus-dining-be/internal/repository/specification"
	"campus-dining-be/internal/repository/unitofwork"
	"campus-dining-be/pkg/scoring"

	"github.com/google/uuid"
)

// Recall sources, recorded on each candidate for debugging and the
// diversity signal downstream.
const (
	SourceVector        = "vector"
	SourceRule          = "rule"
	SourceCollaborative = "collaborative"
	SourceSimilar       = "similar"
)

type IRecallService interface {
	// Recall assembles the deduplicated candidate pool for one request. A
	// single failing strategy degrades the pool instead of failing the
	// request; only an empty pool after the rule fallback is an error-free
	// empty result.
	Recall(ctx context.Context, userId uuid.UUID, req *dto.RecommendRequest, quota entity.RecallQuotaConfig) ([]scoring.Candidate, error)
}

type recallService struct {
	uowFactory unitofwork.RepositoryFactory
	embeddings IEmbeddingService
	log        logger.ILogger
}

func NewRecallService(uowFactory unitofwork.RepositoryFactory, embeddings IEmbeddingService, log logger.ILogger) IRecallService {
	return &recallService{uowFactory: uowFactory, embeddings: embeddings, log: log}
}

func candidateLimit(page, pageSize int) int {
	n := page * pageSize * constant.RecallMultiplier
	if n < constant.RecallMinCandidate {
		n = constant.RecallMinCandidate
	}
	return n
}

func (s *recallService) Recall(ctx context.Context, userId uuid.UUID, req *dto.RecommendRequest, quota entity.RecallQuotaConfig) ([]scoring.Candidate, error) {
	limit := candidateLimit(req.Page, req.PageSize)

	if req.Scene == constant.SceneSimilarItem {
		return s.recallSimilar(ctx, req, limit)
	}

	if !quota.Valid() {
		s.log.Warn("recall", "invalid recall quota, using defaults", map[string]interface{}{
			"vector": quota.VectorQuota, "rule": quota.RuleQuota, "collaborative": quota.CollaborativeQuota,
		})
		quota = entity.DefaultRecallQuota()
	}

	itemFilter := toItemFilter(req.Filter)
	embFilter := toEmbeddingFilter(req.Filter)

	var (
		wg          sync.WaitGroup
		vectorIds   []uuid.UUID
		ruleItems   []*entity.MenuItem
		collabIds   []uuid.UUID
		vectorErr   error
		ruleErr     error
		collabErr   error
		vectorLimit = quotaShare(limit, quota.VectorQuota)
		ruleLimit   = quotaShare(limit, quota.RuleQuota)
		collabLimit = quotaShare(limit, quota.CollaborativeQuota)
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		vectorIds, vectorErr = s.embeddings.RecallByUserEmbedding(ctx, userId, vectorLimit, embFilter)
	}()
	go func() {
		defer wg.Done()
		uow := s.uowFactory.NewUnitOfWork(ctx)
		ruleItems, ruleErr = uow.MenuItemRepository().FindTopQuality(ctx, itemFilter, ruleLimit)
	}()
	go func() {
		defer wg.Done()
		uow := s.uowFactory.NewUnitOfWork(ctx)
		collabIds, collabErr = uow.UserBehaviorRepository().FindCoFavoritedItemIds(ctx, userId, collabLimit)
	}()
	wg.Wait()

	for _, failure := range []struct {
		source string
		err    error
	}{
		{SourceVector, vectorErr},
		{SourceRule, ruleErr},
		{SourceCollaborative, collabErr},
	} {
		if failure.err != nil {
			s.log.Warn("recall", "recall strategy failed, continuing without it", map[string]interface{}{
				"source": failure.source, "user_id": userId, "error": failure.err.Error(),
			})
		}
	}

	union := newCandidateUnion()
	union.addIds(vectorIds, SourceVector)
	union.addItems(ruleItems, SourceRule)
	union.addIds(collabIds, SourceCollaborative)

	if union.empty() {
		// Every strategy came back empty: serve quality-ranked items so the
		// user never sees a blank page.
		uow := s.uowFactory.NewUnitOfWork(ctx)
		fallback, err := uow.MenuItemRepository().FindTopQuality(ctx, itemFilter, limit)
		if err != nil {
			return nil, fmt.Errorf("rule fallback recall: %w", err)
		}
		union.addItems(fallback, SourceRule)
	}

	return s.materialize(ctx, union)
}

// recallSimilar handles the similar-item scene: nearest neighbors of the
// anchor item, falling back to shared tags or canteen when the anchor has no
// usable embedding.
func (s *recallService) recallSimilar(ctx context.Context, req *dto.RecommendRequest, limit int) ([]scoring.Candidate, error) {
	if req.TriggerItemId == nil {
		return nil, fmt.Errorf("similar scene requires trigger_item_id")
	}
	anchorId := *req.TriggerItemId

	ids, err := s.embeddings.RecallSimilarToItem(ctx, anchorId, limit, true)
	if err != nil {
		s.log.Warn("recall", "similar-item vector recall failed", map[string]interface{}{
			"item_id": anchorId, "error": err.Error(),
		})
	}

	union := newCandidateUnion()
	union.addIds(ids, SourceSimilar)

	if union.empty() {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		anchor, err := uow.MenuItemRepository().FindOne(ctx, specification.ByID{ID: anchorId})
		if err != nil {
			return nil, err
		}
		if anchor == nil {
			// Unknown anchor: an empty result, not an error.
			s.log.Warn("recall", "similar-item anchor not found", map[string]interface{}{
				"item_id": anchorId,
			})
			return nil, nil
		}
		canteenId := anchor.CanteenId
		fallback, err := uow.MenuItemRepository().FindByTagsOrCanteen(ctx, anchor.Tags, &canteenId, anchorId, limit)
		if err != nil {
			return nil, err
		}
		union.addItems(fallback, SourceRule)
	}

	return s.materialize(ctx, union)
}

// materialize fetches any id-only entries in bulk and drops offline items,
// preserving the union's insertion order.
func (s *recallService) materialize(ctx context.Context, union *candidateUnion) ([]scoring.Candidate, error) {
	missing := union.missingIds()
	if len(missing) > 0 {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		items, err := uow.MenuItemRepository().FindByIds(ctx, missing)
		if err != nil {
			return nil, err
		}
		union.fill(items)
	}

	candidates := make([]scoring.Candidate, 0, len(union.order))
	for _, id := range union.order {
		e := union.entries[id]
		if e.item == nil || !e.item.IsOnline() {
			continue
		}
		candidates = append(candidates, scoring.Candidate{Item: e.item, Sources: e.sources})
	}
	return candidates, nil
}

// quotaShare sizes one strategy's slice of the candidate budget, never below
// one so a tiny quota still contributes.
func quotaShare(limit int, quota float64) int {
	n := int(math.Ceil(float64(limit) * quota))
	if n < 1 {
		n = 1
	}
	return n
}

func toItemFilter(f *dto.RecommendFilter) *contract.ItemFilter {
	if f == nil {
		return nil
	}
	return &contract.ItemFilter{
		CanteenId:   f.CanteenId,
		Tags:        f.Tags,
		PriceMax:    f.PriceMax,
		AvailableAt: f.AvailableAt,
	}
}

func toEmbeddingFilter(f *dto.RecommendFilter) *contract.EmbeddingSearchFilter {
	if f == nil {
		return nil
	}
	return &contract.EmbeddingSearchFilter{
		CanteenId: f.CanteenId,
		Tags:      f.Tags,
	}
}

// candidateUnion deduplicates candidates across strategies while keeping
// first-seen order and accumulating every source that produced each item.
type candidateUnion struct {
	order   []uuid.UUID
	entries map[uuid.UUID]*unionEntry
}

type unionEntry struct {
	item    *entity.MenuItem
	sources []string
}

func newCandidateUnion() *candidateUnion {
	return &candidateUnion{entries: map[uuid.UUID]*unionEntry{}}
}

func (u *candidateUnion) add(id uuid.UUID, item *entity.MenuItem, source string) {
	e, ok := u.entries[id]
	if !ok {
		e = &unionEntry{}
		u.entries[id] = e
		u.order = append(u.order, id)
	}
	if e.item == nil {
		e.item = item
	}
	for _, s := range e.sources {
		if s == source {
			return
		}
	}
	e.sources = append(e.sources, source)
}

func (u *candidateUnion) addIds(ids []uuid.UUID, source string) {
	for _, id := range ids {
		u.add(id, nil, source)
	}
}

func (u *candidateUnion) addItems(items []*entity.MenuItem, source string) {
	for _, item := range items {
		u.add(item.Id, item, source)
	}
}

func (u *candidateUnion) empty() bool {
	return len(u.order) == 0
}

func (u *candidateUnion) missingIds() []uuid.UUID {
	var ids []uuid.UUID
	for _, id := range u.order {
		if u.entries[id].item == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (u *candidateUnion) fill(items []*entity.MenuItem) {
	for _, item := range items {
		if e, ok := u.entries[item.Id]; ok && e.item == nil {
			e.item = item
		}
	}
}
