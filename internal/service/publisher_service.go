package service

import (
	"encoding/json"

	"campus-dining-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// IPublisherService enqueues background refresh tasks on the in-process bus.
// Publishing is fire-and-forget: a lost task just means the refresh happens
// lazily on the next request instead.
type IPublisherService interface {
	PublishRefreshUserFeatures(userId uuid.UUID) error
	PublishRefreshItemEmbedding(itemId uuid.UUID, targetVersion string) error
}

type publisherService struct {
	pubSub    *gochannel.GoChannel
	topicName string
}

func NewPublisherService(pubSub *gochannel.GoChannel, topicName string) IPublisherService {
	return &publisherService{pubSub: pubSub, topicName: topicName}
}

func (ps *publisherService) PublishRefreshUserFeatures(userId uuid.UUID) error {
	return ps.publish(dto.RefreshTaskMessage{
		Kind:   dto.RefreshKindUserFeatures,
		UserId: &userId,
	})
}

func (ps *publisherService) PublishRefreshItemEmbedding(itemId uuid.UUID, targetVersion string) error {
	return ps.publish(dto.RefreshTaskMessage{
		Kind:          dto.RefreshKindItemEmbedding,
		ItemId:        &itemId,
		TargetVersion: targetVersion,
	})
}

func (ps *publisherService) publish(task dto.RefreshTaskMessage) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return ps.pubSub.Publish(ps.topicName, msg)
}
