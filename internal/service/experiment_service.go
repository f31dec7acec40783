package service

import (
	"context"
	"sync"
	"time"

	"campus-dining-be/internal/cache"
	"campus-dining-be/internal/constant"
	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/pkg/logger"
	"campus-dining-be/internal/repository/unitofwork"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// notParticipatingSentinel marks a (user, experiment) pair that hashed
// outside the experiment's traffic. It is cached like a real assignment so
// repeat requests skip the store, but never persisted.
const notParticipatingSentinel = "-"

// ExperimentResolution is the experiment outcome applied to one request.
// Empty ExperimentId means the user is outside every active experiment and
// the defaults apply.
type ExperimentResolution struct {
	ExperimentId string
	GroupId      string
	Weights      entity.ScoreWeights
	RecallQuota  entity.RecallQuotaConfig
}

type IExperimentService interface {
	// Resolve determines which experiment group, if any, governs this
	// user's requests. A non-empty requestedExperimentId pins resolution to
	// that experiment when it is active and admits the user; otherwise the
	// first admitting active experiment wins. The decision is deterministic
	// per (user, experiment) and survives cache eviction via the persisted
	// assignment.
	Resolve(ctx context.Context, userId uuid.UUID, requestedExperimentId string) (*ExperimentResolution, error)
	// RequestRefresh asks for the active-experiment snapshot to be rebuilt.
	// Bursts collapse into one rebuild.
	RequestRefresh()
	// RunRefreshLoop serves refresh requests and periodic rebuilds until the
	// context is cancelled.
	RunRefreshLoop(ctx context.Context, interval time.Duration)
}

type experimentService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      cache.Cache
	log        logger.ILogger

	// memo short-circuits assignment lookups within one process.
	memo *gocache.Cache

	mu       sync.RWMutex
	snapshot []*entity.Experiment

	refreshCh chan struct{}
	debounce  time.Duration
}

func NewExperimentService(
	uowFactory unitofwork.RepositoryFactory,
	cacheStore cache.Cache,
	debounce time.Duration,
	log logger.ILogger,
) IExperimentService {
	return &experimentService{
		uowFactory: uowFactory,
		cache:      cacheStore,
		log:        log,
		memo:       gocache.New(time.Minute, 5*time.Minute),
		refreshCh:  make(chan struct{}, 1),
		debounce:   debounce,
	}
}

// hashUnit maps a string deterministically onto [0, 1).
func hashUnit(s string) float64 {
	return float64(xxhash.Sum64String(s)) / float64(1<<64)
}

func (s *experimentService) Resolve(ctx context.Context, userId uuid.UUID, requestedExperimentId string) (*ExperimentResolution, error) {
	experiments := s.activeExperiments(ctx)

	if requestedExperimentId != "" {
		for _, exp := range experiments {
			if exp.Id != requestedExperimentId {
				continue
			}
			groupId, err := s.assignmentFor(ctx, userId, exp)
			if err != nil {
				s.log.Warn("experiment", "requested experiment resolution failed", map[string]interface{}{
					"experiment_id": exp.Id, "user_id": userId, "error": err.Error(),
				})
			} else if groupId != "" {
				return s.resolution(exp, groupId), nil
			}
			// Outside the requested experiment's traffic; the ordinary
			// walk below decides.
			break
		}
	}

	for _, exp := range experiments {
		groupId, err := s.assignmentFor(ctx, userId, exp)
		if err != nil {
			s.log.Warn("experiment", "assignment resolution failed, skipping experiment", map[string]interface{}{
				"experiment_id": exp.Id, "user_id": userId, "error": err.Error(),
			})
			continue
		}
		if groupId == "" {
			continue
		}
		return s.resolution(exp, groupId), nil
	}

	return &ExperimentResolution{
		Weights:     entity.DefaultScoreWeights(),
		RecallQuota: entity.DefaultRecallQuota(),
	}, nil
}

// assignmentFor returns the group id for the user within one experiment, or
// "" when the user is outside its traffic. Lookup order is process memo,
// shared cache, store, then a fresh hash decision persisted before caching.
func (s *experimentService) assignmentFor(ctx context.Context, userId uuid.UUID, exp *entity.Experiment) (string, error) {
	key := constant.AssignmentKey(userId, exp.Id)

	if v, ok := s.memo.Get(key); ok {
		return sentinelToGroup(v.(string)), nil
	}

	if raw, found, err := s.cache.Get(ctx, key); err == nil && found {
		s.memo.SetDefault(key, raw)
		return sentinelToGroup(raw), nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	stored, err := uow.ExperimentRepository().FindAssignment(ctx, userId, exp.Id)
	if err != nil {
		return "", err
	}
	if stored != nil {
		s.rememberAssignment(ctx, key, stored.GroupId)
		return stored.GroupId, nil
	}

	// First sight of this (user, experiment): decide by consistent hash.
	if hashUnit(userId.String()+exp.Id) >= exp.TrafficRatio {
		s.rememberAssignment(ctx, key, notParticipatingSentinel)
		return "", nil
	}

	if !exp.GroupRatiosValid() {
		s.log.Warn("experiment", "group ratios do not sum to 1, excluding user", map[string]interface{}{
			"experiment_id": exp.Id,
		})
		s.rememberAssignment(ctx, key, notParticipatingSentinel)
		return "", nil
	}

	groupId := pickGroup(hashUnit(userId.String()+exp.Id+":group"), exp.Groups)

	created, err := uow.ExperimentRepository().CreateAssignment(ctx, &entity.ExperimentAssignment{
		Id:           uuid.New(),
		UserId:       userId,
		ExperimentId: exp.Id,
		GroupId:      groupId,
		AssignedAt:   time.Now(),
	})
	if err != nil {
		return "", err
	}
	// A concurrent request may have won the insert; its group is the truth.
	s.rememberAssignment(ctx, key, created.GroupId)
	return created.GroupId, nil
}

// pickGroup walks the cumulative group ratios until the draw falls inside a
// bucket. Rounding drift at the top end lands in the last group.
func pickGroup(draw float64, groups []entity.ExperimentGroup) string {
	var cumulative float64
	for _, g := range groups {
		cumulative += g.Ratio
		if draw < cumulative {
			return g.GroupId
		}
	}
	return groups[len(groups)-1].GroupId
}

func (s *experimentService) rememberAssignment(ctx context.Context, key, value string) {
	s.memo.SetDefault(key, value)
	if err := s.cache.Set(ctx, key, value, constant.AssignmentTTL); err != nil {
		s.log.Warn("experiment", "assignment cache write failed", map[string]interface{}{
			"key": key, "error": err.Error(),
		})
	}
}

func sentinelToGroup(v string) string {
	if v == notParticipatingSentinel {
		return ""
	}
	return v
}

// resolution materializes the effective config of one group, falling back to
// defaults for anything the group leaves unset or sets invalidly.
func (s *experimentService) resolution(exp *entity.Experiment, groupId string) *ExperimentResolution {
	res := &ExperimentResolution{
		ExperimentId: exp.Id,
		GroupId:      groupId,
		Weights:      entity.DefaultScoreWeights(),
		RecallQuota:  entity.DefaultRecallQuota(),
	}
	for _, g := range exp.Groups {
		if g.GroupId != groupId {
			continue
		}
		if g.Weights != nil && g.Weights.Sum() > 0 {
			res.Weights = *g.Weights
		}
		if g.RecallQuota != nil {
			if g.RecallQuota.Valid() {
				res.RecallQuota = *g.RecallQuota
			} else {
				s.log.Warn("experiment", "group recall quota does not sum to 1, using defaults", map[string]interface{}{
					"experiment_id": exp.Id, "group_id": groupId,
				})
			}
		}
		break
	}
	return res
}

// activeExperiments returns the current snapshot, loading it on first use.
func (s *experimentService) activeExperiments(ctx context.Context) []*entity.Experiment {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()
	if snap != nil {
		return snap
	}
	s.reloadSnapshot(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *experimentService) reloadSnapshot(ctx context.Context) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	experiments, err := uow.ExperimentRepository().FindActive(ctx, time.Now())
	if err != nil {
		s.log.Error("experiment", "active experiment reload failed, keeping previous snapshot", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	s.mu.Lock()
	if experiments == nil {
		experiments = []*entity.Experiment{}
	}
	s.snapshot = experiments
	s.mu.Unlock()
	s.log.Debug("experiment", "snapshot reloaded", map[string]interface{}{"count": len(experiments)})
}

func (s *experimentService) RequestRefresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

func (s *experimentService) RunRefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reloadSnapshot(ctx)
		case <-s.refreshCh:
			// Debounce: let a burst of invalidations settle before reloading.
			timer := time.NewTimer(s.debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			s.reloadSnapshot(ctx)
		}
	}
}
