package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event defines the contract for all behavior events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CLICK").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Sink is the append-only destination for behavior events. Publishing is
// best-effort from the caller's point of view; a recommendation request is
// never failed because its events could not be recorded.
type Sink interface {
	Publish(ctx context.Context, event Event) error
	// PublishBatch appends many events at once, used for impressions.
	PublishBatch(ctx context.Context, events []Event) error
}

// BehaviorEvent is one user-item interaction record.
type BehaviorEvent struct {
	Type         string                 `json:"event_type"`
	UserId       uuid.UUID              `json:"user_id"`
	ItemId       *uuid.UUID             `json:"item_id,omitempty"`
	Scene        string                 `json:"scene"`
	RequestId    string                 `json:"request_id,omitempty"`
	Position     *int                   `json:"position,omitempty"`
	Score        *float64               `json:"score,omitempty"`
	ExperimentId string                 `json:"experiment_id,omitempty"`
	GroupId      string                 `json:"group_id,omitempty"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
	OccurredAt   time.Time              `json:"timestamp"`
}

func (e BehaviorEvent) EventType() string {
	return e.Type
}

func (e BehaviorEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"event_type": e.Type,
		"user_id":    e.UserId.String(),
		"scene":      e.Scene,
		"timestamp":  e.OccurredAt,
	}
	if e.ItemId != nil {
		p["item_id"] = e.ItemId.String()
	}
	if e.RequestId != "" {
		p["request_id"] = e.RequestId
	}
	if e.Position != nil {
		p["position"] = *e.Position
	}
	if e.Score != nil {
		p["score"] = *e.Score
	}
	if e.ExperimentId != "" {
		p["experiment_id"] = e.ExperimentId
		p["group_id"] = e.GroupId
	}
	for k, v := range e.Extra {
		p[k] = v
	}
	return p
}

func (e BehaviorEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NoopSink drops every event. Used in place of nil when the real sink is
// unavailable, so callers never have to check for presence.
type NoopSink struct{}

func (NoopSink) Publish(ctx context.Context, event Event) error {
	return nil
}

func (NoopSink) PublishBatch(ctx context.Context, events []Event) error {
	return nil
}
