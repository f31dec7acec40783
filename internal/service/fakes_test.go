package service

import (
	"context"
	"fmt"
	"time"

	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/repository/contract"
	"campus-dining-be/internal/repository/specification"
	"campus-dining-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// In-memory repository fakes. FindOne only understands the ByID
// specification, which is the only one the services use with it.

type fakeMenuItemRepo struct {
	items map[uuid.UUID]*entity.MenuItem

	topQuality      []*entity.MenuItem
	topQualityErr   error
	topQualityCalls int
	// failures remaining before FindTopQuality starts succeeding
	topQualityFailures int

	byTagsOrCanteen []*entity.MenuItem
}

func newFakeMenuItemRepo(items ...*entity.MenuItem) *fakeMenuItemRepo {
	m := &fakeMenuItemRepo{items: map[uuid.UUID]*entity.MenuItem{}}
	for _, item := range items {
		m.items[item.Id] = item
	}
	return m
}

func (r *fakeMenuItemRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.MenuItem, error) {
	for _, s := range specs {
		if byId, ok := s.(specification.ByID); ok {
			return r.items[byId.ID], nil
		}
	}
	return nil, fmt.Errorf("unsupported specification in fake")
}

func (r *fakeMenuItemRepo) FindByIds(ctx context.Context, ids []uuid.UUID) ([]*entity.MenuItem, error) {
	var out []*entity.MenuItem
	for _, id := range ids {
		if item, ok := r.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakeMenuItemRepo) FindTopQuality(ctx context.Context, filter *contract.ItemFilter, limit int) ([]*entity.MenuItem, error) {
	r.topQualityCalls++
	if r.topQualityFailures > 0 {
		r.topQualityFailures--
		return nil, fmt.Errorf("transient rule query failure")
	}
	if r.topQualityErr != nil {
		return nil, r.topQualityErr
	}
	if limit < len(r.topQuality) {
		return r.topQuality[:limit], nil
	}
	return r.topQuality, nil
}

func (r *fakeMenuItemRepo) FindByTagsOrCanteen(ctx context.Context, tags []string, canteenId *uuid.UUID, excludeId uuid.UUID, limit int) ([]*entity.MenuItem, error) {
	return r.byTagsOrCanteen, nil
}

type fakeBehaviorRepo struct {
	preference *entity.PreferenceProfile
	allergens  []string
	favorites  []*entity.FavoriteRecord
	browseLogs []*entity.BrowseRecord
	reviews    []*entity.ReviewRecord

	coFavorited    []uuid.UUID
	coFavoritedErr error

	findPreferenceCalls int
}

func (r *fakeBehaviorRepo) FindPreference(ctx context.Context, userId uuid.UUID) (*entity.PreferenceProfile, error) {
	r.findPreferenceCalls++
	return r.preference, nil
}

func (r *fakeBehaviorRepo) FindAllergens(ctx context.Context, userId uuid.UUID) ([]string, error) {
	return r.allergens, nil
}

func (r *fakeBehaviorRepo) FindFavorites(ctx context.Context, userId uuid.UUID) ([]*entity.FavoriteRecord, error) {
	return r.favorites, nil
}

func (r *fakeBehaviorRepo) FindBrowseLogs(ctx context.Context, userId uuid.UUID, limit int) ([]*entity.BrowseRecord, error) {
	if limit < len(r.browseLogs) {
		return r.browseLogs[:limit], nil
	}
	return r.browseLogs, nil
}

func (r *fakeBehaviorRepo) FindReviews(ctx context.Context, userId uuid.UUID) ([]*entity.ReviewRecord, error) {
	return r.reviews, nil
}

func (r *fakeBehaviorRepo) FindCoFavoritedItemIds(ctx context.Context, userId uuid.UUID, limit int) ([]uuid.UUID, error) {
	if r.coFavoritedErr != nil {
		return nil, r.coFavoritedErr
	}
	if limit < len(r.coFavorited) {
		return r.coFavorited[:limit], nil
	}
	return r.coFavorited, nil
}

type embeddingKey struct {
	itemId  uuid.UUID
	version string
}

type fakeEmbeddingRepo struct {
	stored map[embeddingKey]*entity.ItemEmbedding

	similar    []uuid.UUID
	similarErr error

	staleIds []uuid.UUID
}

func newFakeEmbeddingRepo() *fakeEmbeddingRepo {
	return &fakeEmbeddingRepo{stored: map[embeddingKey]*entity.ItemEmbedding{}}
}

func (r *fakeEmbeddingRepo) FindByItemAndVersion(ctx context.Context, itemId uuid.UUID, version string) (*entity.ItemEmbedding, error) {
	return r.stored[embeddingKey{itemId, version}], nil
}

func (r *fakeEmbeddingRepo) Upsert(ctx context.Context, emb *entity.ItemEmbedding) error {
	r.stored[embeddingKey{emb.ItemId, emb.Version}] = emb
	return nil
}

func (r *fakeEmbeddingRepo) SearchSimilar(ctx context.Context, vector []float32, version string, limit int, filter *contract.EmbeddingSearchFilter, excludeItemId *uuid.UUID) ([]uuid.UUID, error) {
	if r.similarErr != nil {
		return nil, r.similarErr
	}
	var out []uuid.UUID
	for _, id := range r.similar {
		if excludeItemId != nil && id == *excludeItemId {
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeEmbeddingRepo) FindStaleItemIds(ctx context.Context, currentVersion string, limit int) ([]uuid.UUID, error) {
	return r.staleIds, nil
}

type assignmentKey struct {
	userId       uuid.UUID
	experimentId string
}

type fakeExperimentRepo struct {
	active      []*entity.Experiment
	assignments map[assignmentKey]*entity.ExperimentAssignment

	createCalls int
}

func newFakeExperimentRepo(active ...*entity.Experiment) *fakeExperimentRepo {
	return &fakeExperimentRepo{
		active:      active,
		assignments: map[assignmentKey]*entity.ExperimentAssignment{},
	}
}

func (r *fakeExperimentRepo) FindActive(ctx context.Context, now time.Time) ([]*entity.Experiment, error) {
	return r.active, nil
}

func (r *fakeExperimentRepo) FindAssignment(ctx context.Context, userId uuid.UUID, experimentId string) (*entity.ExperimentAssignment, error) {
	return r.assignments[assignmentKey{userId, experimentId}], nil
}

func (r *fakeExperimentRepo) CreateAssignment(ctx context.Context, assignment *entity.ExperimentAssignment) (*entity.ExperimentAssignment, error) {
	r.createCalls++
	key := assignmentKey{assignment.UserId, assignment.ExperimentId}
	if existing, ok := r.assignments[key]; ok {
		return existing, nil
	}
	r.assignments[key] = assignment
	return assignment, nil
}

// fakeUow wires the repo fakes into the unit-of-work shape the services
// expect. Transactions are no-ops.

type fakeUow struct {
	items       *fakeMenuItemRepo
	behaviors   *fakeBehaviorRepo
	embeddings  *fakeEmbeddingRepo
	experiments *fakeExperimentRepo
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error                   { return nil }
func (u *fakeUow) Rollback() error                 { return nil }

func (u *fakeUow) MenuItemRepository() contract.MenuItemRepository {
	return u.items
}

func (u *fakeUow) UserBehaviorRepository() contract.UserBehaviorRepository {
	return u.behaviors
}

func (u *fakeUow) ItemEmbeddingRepository() contract.ItemEmbeddingRepository {
	return u.embeddings
}

func (u *fakeUow) ExperimentRepository() contract.ExperimentRepository {
	return u.experiments
}

type fakeFactory struct {
	uow *fakeUow
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{uow: &fakeUow{
		items:       newFakeMenuItemRepo(),
		behaviors:   &fakeBehaviorRepo{},
		embeddings:  newFakeEmbeddingRepo(),
		experiments: newFakeExperimentRepo(),
	}}
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return f.uow
}
