package contract

import (
	"context"
	"time"

	"campus-dining-be/internal/entity"

	"github.com/google/uuid"
)

type ExperimentRepository interface {
	FindActive(ctx context.Context, now time.Time) ([]*entity.Experiment, error)
	// FindAssignment returns nil, nil when the user was never assigned.
	FindAssignment(ctx context.Context, userId uuid.UUID, experimentId string) (*entity.ExperimentAssignment, error)
	// CreateAssignment persists a new assignment. When a concurrent request
	// already assigned the same (user, experiment), the existing row wins
	// and is returned; the uniqueness constraint guarantees there is never
	// more than one.
	CreateAssignment(ctx context.Context, assignment *entity.ExperimentAssignment) (*entity.ExperimentAssignment, error)
}
