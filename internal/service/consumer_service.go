package service

import (
	"context"
	"encoding/json"
	"time"

	"campus-dining-be/internal/dto"
	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/pkg/logger"
	"campus-dining-be/internal/repository/unitofwork"
	"campus-dining-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const backfillBatchSize = 100

type IConsumerService interface {
	// Consume starts draining refresh tasks until the context is cancelled.
	Consume(ctx context.Context) error
	// RunBackfillLoop periodically finds items whose stored embeddings lag
	// the current model version and enqueues upgrades for them.
	RunBackfillLoop(ctx context.Context, interval time.Duration)
}

type consumerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	features   IFeatureService
	embeddings IEmbeddingService
	publisher  IPublisherService
	provider   embedding.Provider
	log        logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	features IFeatureService,
	embeddings IEmbeddingService,
	publisher IPublisherService,
	provider embedding.Provider,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
		features:   features,
		embeddings: embeddings,
		publisher:  publisher,
		provider:   provider,
		log:        log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	// Every message is acked: refresh tasks are best-effort and the state
	// they rebuild regenerates lazily on the next request anyway. Retrying
	// a poisoned message forever would be worse than dropping it.
	defer msg.Ack()

	var task dto.RefreshTaskMessage
	if err := json.Unmarshal(msg.Payload, &task); err != nil {
		cs.log.Error("consumer", "undecodable refresh task dropped", map[string]interface{}{"error": err.Error()})
		return
	}

	switch task.Kind {
	case dto.RefreshKindUserFeatures:
		cs.refreshUserFeatures(ctx, &task)
	case dto.RefreshKindItemEmbedding:
		cs.refreshItemEmbedding(ctx, &task)
	default:
		cs.log.Warn("consumer", "unknown refresh task kind dropped", map[string]interface{}{"kind": task.Kind})
	}
}

func (cs *consumerService) refreshUserFeatures(ctx context.Context, task *dto.RefreshTaskMessage) {
	if task.UserId == nil {
		cs.log.Warn("consumer", "user features task without user id dropped", nil)
		return
	}
	userId := *task.UserId

	if err := cs.features.Invalidate(ctx, userId); err != nil {
		cs.log.Error("consumer", "feature invalidation failed", map[string]interface{}{
			"user_id": userId, "error": err.Error(),
		})
		return
	}
	features, err := cs.features.BuildUserFeatures(ctx, userId)
	if err != nil {
		cs.log.Error("consumer", "feature rebuild failed", map[string]interface{}{
			"user_id": userId, "error": err.Error(),
		})
		return
	}
	// Re-derive the user vector from the fresh features so vector recall
	// picks up the behavior change without waiting for the cache to expire.
	if _, err := cs.embeddings.GenerateUserEmbedding(ctx, features); err != nil {
		cs.log.Warn("consumer", "user embedding regeneration failed", map[string]interface{}{
			"user_id": userId, "error": err.Error(),
		})
	}
	cs.log.Debug("consumer", "user features refreshed", map[string]interface{}{"user_id": userId})
}

func (cs *consumerService) refreshItemEmbedding(ctx context.Context, task *dto.RefreshTaskMessage) {
	if task.ItemId == nil {
		cs.log.Warn("consumer", "item embedding task without item id dropped", nil)
		return
	}
	version := task.TargetVersion
	if version == "" {
		version = entity.EmbeddingVersionLocal
	}
	if _, err := cs.embeddings.UpgradeEmbedding(ctx, *task.ItemId, version); err != nil {
		cs.log.Error("consumer", "item embedding refresh failed", map[string]interface{}{
			"item_id": task.ItemId, "version": version, "error": err.Error(),
		})
		return
	}
	cs.log.Debug("consumer", "item embedding refreshed", map[string]interface{}{
		"item_id": task.ItemId, "version": version,
	})
}

func (cs *consumerService) RunBackfillLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cs.backfillOnce(ctx)
		}
	}
}

// backfillOnce enqueues upgrades for a batch of items that lack a vector at
// the current model version. It only runs while the external generator is
// healthy: backfilling to the local version would be a downgrade.
func (cs *consumerService) backfillOnce(ctx context.Context) {
	if cs.provider == nil || !cs.provider.Healthy() {
		return
	}
	version := cs.provider.Version()

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	staleIds, err := uow.ItemEmbeddingRepository().FindStaleItemIds(ctx, version, backfillBatchSize)
	if err != nil {
		cs.log.Error("consumer", "stale embedding scan failed", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, id := range staleIds {
		if err := cs.publisher.PublishRefreshItemEmbedding(id, version); err != nil {
			cs.log.Warn("consumer", "backfill enqueue failed", map[string]interface{}{
				"item_id": id, "error": err.Error(),
			})
		}
	}
	if len(staleIds) > 0 {
		cs.log.Info("consumer", "embedding backfill batch enqueued", map[string]interface{}{
			"count": len(staleIds), "version": version,
		})
	}
}
