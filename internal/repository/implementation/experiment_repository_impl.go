package implementation

import (
	"context"
	"errors"
	"time"

	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/mapper"
	"campus-dining-be/internal/model"
	"campus-dining-be/internal/repository/contract"
	"campus-dining-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ExperimentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ExperimentMapper
}

func NewExperimentRepository(db *gorm.DB) contract.ExperimentRepository {
	return &ExperimentRepositoryImpl{
		db:     db,
		mapper: mapper.NewExperimentMapper(),
	}
}

func (r *ExperimentRepositoryImpl) FindActive(ctx context.Context, now time.Time) ([]*entity.Experiment, error) {
	var models []*model.Experiment
	query := specification.ActiveExperiments{Now: now}.Apply(r.db.WithContext(ctx))
	query = specification.OrderBy{Field: "start_at"}.Apply(query)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	experiments := make([]*entity.Experiment, 0, len(models))
	for _, m := range models {
		e, err := r.mapper.ToEntity(m)
		if err != nil {
			// A malformed definition must not take down every other
			// experiment; skip it and let the resolver report the gap.
			continue
		}
		experiments = append(experiments, e)
	}
	return experiments, nil
}

func (r *ExperimentRepositoryImpl) FindAssignment(ctx context.Context, userId uuid.UUID, experimentId string) (*entity.ExperimentAssignment, error) {
	var m model.ExperimentAssignment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Where("experiment_id = ?", experimentId).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.AssignmentToEntity(&m), nil
}

func (r *ExperimentRepositoryImpl) CreateAssignment(ctx context.Context, assignment *entity.ExperimentAssignment) (*entity.ExperimentAssignment, error) {
	m := r.mapper.AssignmentToModel(assignment)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "experiment_id"}},
			DoNothing: true,
		}).
		Create(m).Error
	if err != nil {
		return nil, err
	}

	// A conflicting insert means another request won the race; the stored
	// row is authoritative either way.
	return r.FindAssignment(ctx, assignment.UserId, assignment.ExperimentId)
}
