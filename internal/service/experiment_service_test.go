package service

import (
	"context"
	"testing"
	"time"

	"campus-dining-be/internal/cache"
	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoGroupExperiment(traffic float64) *entity.Experiment {
	return &entity.Experiment{
		Id:           "exp-quota-split",
		Name:         "recall quota split",
		TrafficRatio: traffic,
		Status:       entity.ExperimentStatusActive,
		StartAt:      time.Now().Add(-time.Hour),
		Groups: []entity.ExperimentGroup{
			{GroupId: "control", Ratio: 0.5},
			{GroupId: "treatment", Ratio: 0.5, RecallQuota: &entity.RecallQuotaConfig{
				VectorQuota: 0.8, RuleQuota: 0.1, CollaborativeQuota: 0.1,
			}},
		},
	}
}

func newExperimentServiceForTest(factory *fakeFactory, store cache.Cache) IExperimentService {
	return NewExperimentService(factory, store, time.Millisecond, logger.NewNopLogger())
}

func TestHashUnitRange(t *testing.T) {
	for _, s := range []string{"a", "b", "user-1exp-1", "user-1exp-1:group", ""} {
		v := hashUnit(s)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
		assert.Equal(t, v, hashUnit(s))
	}
}

func TestPickGroupWalksCumulativeRatios(t *testing.T) {
	groups := []entity.ExperimentGroup{
		{GroupId: "a", Ratio: 0.2},
		{GroupId: "b", Ratio: 0.3},
		{GroupId: "c", Ratio: 0.5},
	}

	assert.Equal(t, "a", pickGroup(0.0, groups))
	assert.Equal(t, "a", pickGroup(0.19, groups))
	assert.Equal(t, "b", pickGroup(0.2, groups))
	assert.Equal(t, "b", pickGroup(0.49, groups))
	assert.Equal(t, "c", pickGroup(0.5, groups))
	// Rounding drift above the last boundary still lands somewhere.
	assert.Equal(t, "c", pickGroup(0.999999, groups))
}

func TestResolveAssignsDeterministically(t *testing.T) {
	factory := newFakeFactory()
	factory.uow.experiments = newFakeExperimentRepo(twoGroupExperiment(1.0))
	svc := newExperimentServiceForTest(factory, cache.NewMemoryCache())
	userId := uuid.New()

	first, err := svc.Resolve(context.Background(), userId, "")
	require.NoError(t, err)
	require.NotEmpty(t, first.GroupId)

	second, err := svc.Resolve(context.Background(), userId, "")
	require.NoError(t, err)
	assert.Equal(t, first.GroupId, second.GroupId)

	// The assignment was persisted exactly once; the second resolve came
	// from cache.
	assert.Equal(t, 1, factory.uow.experiments.createCalls)
}

func TestResolveSurvivesCacheEviction(t *testing.T) {
	factory := newFakeFactory()
	factory.uow.experiments = newFakeExperimentRepo(twoGroupExperiment(1.0))
	userId := uuid.New()

	first, err := newExperimentServiceForTest(factory, cache.NewMemoryCache()).Resolve(context.Background(), userId, "")
	require.NoError(t, err)

	// Fresh service and fresh cache simulate eviction of every cache layer.
	// The persisted assignment, not a re-hash, must decide the group.
	second, err := newExperimentServiceForTest(factory, cache.NewMemoryCache()).Resolve(context.Background(), userId, "")
	require.NoError(t, err)

	assert.Equal(t, first.GroupId, second.GroupId)
	assert.Equal(t, 1, factory.uow.experiments.createCalls)
}

func TestResolveZeroTrafficExcludesEveryone(t *testing.T) {
	factory := newFakeFactory()
	factory.uow.experiments = newFakeExperimentRepo(twoGroupExperiment(0.0))
	svc := newExperimentServiceForTest(factory, cache.NewMemoryCache())

	res, err := svc.Resolve(context.Background(), uuid.New(), "")
	require.NoError(t, err)

	assert.Empty(t, res.ExperimentId)
	assert.Equal(t, entity.DefaultScoreWeights(), res.Weights)
	assert.Equal(t, entity.DefaultRecallQuota(), res.RecallQuota)
	assert.Equal(t, 0, factory.uow.experiments.createCalls)
}

func TestResolveAppliesGroupConfig(t *testing.T) {
	factory := newFakeFactory()
	exp := twoGroupExperiment(1.0)
	factory.uow.experiments = newFakeExperimentRepo(exp)
	svc := newExperimentServiceForTest(factory, cache.NewMemoryCache())

	// Find a user that lands in the treatment group.
	var res *ExperimentResolution
	for i := 0; i < 200; i++ {
		r, err := svc.Resolve(context.Background(), uuid.New(), "")
		require.NoError(t, err)
		if r.GroupId == "treatment" {
			res = r
			break
		}
	}
	require.NotNil(t, res, "no user landed in treatment after 200 draws")

	assert.Equal(t, exp.Id, res.ExperimentId)
	assert.InDelta(t, 0.8, res.RecallQuota.VectorQuota, 1e-9)
	// Treatment defines no weights, so defaults apply.
	assert.Equal(t, entity.DefaultScoreWeights(), res.Weights)
}

func TestResolveInvalidGroupRatiosExcludesUser(t *testing.T) {
	factory := newFakeFactory()
	broken := twoGroupExperiment(1.0)
	broken.Groups[0].Ratio = 0.9
	broken.Groups[1].Ratio = 0.9
	factory.uow.experiments = newFakeExperimentRepo(broken)
	svc := newExperimentServiceForTest(factory, cache.NewMemoryCache())

	res, err := svc.Resolve(context.Background(), uuid.New(), "")
	require.NoError(t, err)
	assert.Empty(t, res.ExperimentId)
	assert.Equal(t, 0, factory.uow.experiments.createCalls)
}

func TestResolveHonorsRequestedExperiment(t *testing.T) {
	weightsExp := twoGroupExperiment(1.0)
	weightsExp.Id = "exp-weights"
	weightsExp.Name = "score weight split"

	factory := newFakeFactory()
	factory.uow.experiments = newFakeExperimentRepo(twoGroupExperiment(1.0), weightsExp)
	svc := newExperimentServiceForTest(factory, cache.NewMemoryCache())
	userId := uuid.New()

	// Without a requested id the first active experiment wins.
	res, err := svc.Resolve(context.Background(), userId, "")
	require.NoError(t, err)
	assert.Equal(t, "exp-quota-split", res.ExperimentId)

	// Naming the second experiment pins resolution to it.
	pinned, err := svc.Resolve(context.Background(), userId, "exp-weights")
	require.NoError(t, err)
	assert.Equal(t, "exp-weights", pinned.ExperimentId)
	assert.NotEmpty(t, pinned.GroupId)

	// An unknown id falls back to the ordinary walk.
	fallback, err := svc.Resolve(context.Background(), userId, "exp-missing")
	require.NoError(t, err)
	assert.Equal(t, "exp-quota-split", fallback.ExperimentId)
}

func TestRefreshLoopPicksUpNewExperiments(t *testing.T) {
	factory := newFakeFactory()
	svc := newExperimentServiceForTest(factory, cache.NewMemoryCache())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.RunRefreshLoop(ctx, time.Hour)

	// Snapshot starts empty: nobody is in any experiment.
	res, err := svc.Resolve(ctx, uuid.New(), "")
	require.NoError(t, err)
	assert.Empty(t, res.ExperimentId)

	factory.uow.experiments.active = []*entity.Experiment{twoGroupExperiment(1.0)}
	// A burst of triggers coalesces into one debounced reload.
	svc.RequestRefresh()
	svc.RequestRefresh()
	svc.RequestRefresh()

	assert.Eventually(t, func() bool {
		r, err := svc.Resolve(ctx, uuid.New(), "")
		return err == nil && r.ExperimentId == "exp-quota-split"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAssignmentSplitRoughlyMatchesRatios(t *testing.T) {
	factory := newFakeFactory()
	factory.uow.experiments = newFakeExperimentRepo(twoGroupExperiment(1.0))
	svc := newExperimentServiceForTest(factory, cache.NewMemoryCache())

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		res, err := svc.Resolve(context.Background(), uuid.New(), "")
		require.NoError(t, err)
		counts[res.GroupId]++
	}

	// 50/50 groups over 1000 users: allow a wide statistical margin.
	assert.Greater(t, counts["control"], 400)
	assert.Greater(t, counts["treatment"], 400)
}

func TestPartialTrafficLeavesSomeUsersOut(t *testing.T) {
	factory := newFakeFactory()
	factory.uow.experiments = newFakeExperimentRepo(twoGroupExperiment(0.5))
	svc := newExperimentServiceForTest(factory, cache.NewMemoryCache())

	var in, out int
	for i := 0; i < 1000; i++ {
		res, err := svc.Resolve(context.Background(), uuid.New(), "")
		require.NoError(t, err)
		if res.ExperimentId == "" {
			out++
		} else {
			in++
		}
	}

	assert.Greater(t, in, 400)
	assert.Greater(t, out, 400)
}
