package service

import (
	"context"
	"fmt"
	"time"

	"campus-dining-be/internal/cache"
	"campus-dining-be/internal/constant"
	"campus-dining-be/internal/dto"
	"campus-dining-be/internal/pkg/logger"
	"campus-dining-be/pkg/events"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// IEventService ingests explicit user behavior. Each event goes to the sink
// for offline analysis and triggers whatever online state has to react:
// feature refreshes, result cache invalidation, dislike counters.
type IEventService interface {
	LogClick(ctx context.Context, userId uuid.UUID, req *dto.LogBehaviorRequest) error
	LogFavorite(ctx context.Context, userId uuid.UUID, req *dto.LogBehaviorRequest) error
	LogReview(ctx context.Context, userId uuid.UUID, req *dto.LogBehaviorRequest) error
	LogDislike(ctx context.Context, userId uuid.UUID, req *dto.LogBehaviorRequest) error
}

type eventService struct {
	features  IFeatureService
	publisher IPublisherService
	cache     cache.Cache
	sink      events.Sink
	validate  *validator.Validate
	log       logger.ILogger
}

func NewEventService(
	features IFeatureService,
	publisher IPublisherService,
	cacheStore cache.Cache,
	sink events.Sink,
	log logger.ILogger,
) IEventService {
	return &eventService{
		features:  features,
		publisher: publisher,
		cache:     cacheStore,
		sink:      sink,
		validate:  validator.New(),
		log:       log,
	}
}

func (s *eventService) LogClick(ctx context.Context, userId uuid.UUID, req *dto.LogBehaviorRequest) error {
	if err := s.emit(ctx, constant.EventClick, userId, req, nil); err != nil {
		return err
	}
	// Clicks shift browse weights; rebuild off the request path.
	s.enqueueFeatureRefresh(userId)
	return nil
}

func (s *eventService) LogFavorite(ctx context.Context, userId uuid.UUID, req *dto.LogBehaviorRequest) error {
	if err := s.emit(ctx, constant.EventFavorite, userId, req, nil); err != nil {
		return err
	}
	s.invalidateUserState(ctx, userId)
	s.enqueueFeatureRefresh(userId)
	return nil
}

func (s *eventService) LogReview(ctx context.Context, userId uuid.UUID, req *dto.LogBehaviorRequest) error {
	if req.Rating < 1 || req.Rating > 5 {
		return fmt.Errorf("review requires a rating between 1 and 5")
	}
	extra := map[string]interface{}{"rating": req.Rating}
	if err := s.emit(ctx, constant.EventReview, userId, req, extra); err != nil {
		return err
	}
	s.invalidateUserState(ctx, userId)
	s.enqueueFeatureRefresh(userId)
	return nil
}

func (s *eventService) LogDislike(ctx context.Context, userId uuid.UUID, req *dto.LogBehaviorRequest) error {
	if err := s.emit(ctx, constant.EventDislike, userId, req, nil); err != nil {
		return err
	}

	count, err := s.cache.IncrWithTTL(ctx, constant.DislikeCountKey(userId, req.ItemId), constant.DislikeCountTTL)
	if err != nil {
		s.log.Warn("event", "dislike counter increment failed", map[string]interface{}{
			"user_id": userId, "item_id": req.ItemId, "error": err.Error(),
		})
	} else {
		s.log.Debug("event", "dislike recorded", map[string]interface{}{
			"user_id": userId, "item_id": req.ItemId, "count": count,
		})
	}

	// Drop cached pages so the disliked item disappears immediately.
	if err := s.cache.DelPattern(ctx, constant.ResultPattern(userId)); err != nil {
		s.log.Warn("event", "result cache invalidation failed", map[string]interface{}{
			"user_id": userId, "error": err.Error(),
		})
	}
	return nil
}

// emit validates and publishes one behavior event. Sink failures are
// swallowed after logging: behavior capture never fails the caller.
func (s *eventService) emit(ctx context.Context, eventType string, userId uuid.UUID, req *dto.LogBehaviorRequest, extra map[string]interface{}) error {
	if err := s.validate.Struct(req); err != nil {
		return err
	}
	itemId := req.ItemId
	event := events.BehaviorEvent{
		Type:       eventType,
		UserId:     userId,
		ItemId:     &itemId,
		Scene:      req.Scene,
		RequestId:  req.RequestId,
		Extra:      extra,
		OccurredAt: time.Now(),
	}
	if err := s.sink.Publish(ctx, event); err != nil {
		s.log.Warn("event", "behavior event publish failed", map[string]interface{}{
			"event_type": eventType, "user_id": userId, "error": err.Error(),
		})
	}
	return nil
}

func (s *eventService) invalidateUserState(ctx context.Context, userId uuid.UUID) {
	if err := s.features.Invalidate(ctx, userId); err != nil {
		s.log.Warn("event", "feature invalidation failed", map[string]interface{}{
			"user_id": userId, "error": err.Error(),
		})
	}
	if err := s.cache.DelPattern(ctx, constant.ResultPattern(userId)); err != nil {
		s.log.Warn("event", "result cache invalidation failed", map[string]interface{}{
			"user_id": userId, "error": err.Error(),
		})
	}
}

func (s *eventService) enqueueFeatureRefresh(userId uuid.UUID) {
	if err := s.publisher.PublishRefreshUserFeatures(userId); err != nil {
		s.log.Warn("event", "feature refresh enqueue failed", map[string]interface{}{
			"user_id": userId, "error": err.Error(),
		})
	}
}
