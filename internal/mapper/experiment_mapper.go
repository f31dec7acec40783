package mapper

import (
	"encoding/json"
	"fmt"

	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/model"

	"gorm.io/datatypes"
)

type ExperimentMapper struct{}

func NewExperimentMapper() *ExperimentMapper {
	return &ExperimentMapper{}
}

func (m *ExperimentMapper) ToEntity(mod *model.Experiment) (*entity.Experiment, error) {
	if mod == nil {
		return nil, nil
	}
	var groups []entity.ExperimentGroup
	if len(mod.Groups) > 0 {
		if err := json.Unmarshal(mod.Groups, &groups); err != nil {
			return nil, fmt.Errorf("experiment %s has malformed groups: %w", mod.Id, err)
		}
	}
	return &entity.Experiment{
		Id:           mod.Id,
		Name:         mod.Name,
		TrafficRatio: mod.TrafficRatio,
		Groups:       groups,
		Status:       mod.Status,
		StartAt:      mod.StartAt,
		EndAt:        mod.EndAt,
	}, nil
}

func (m *ExperimentMapper) ToModel(e *entity.Experiment) (*model.Experiment, error) {
	if e == nil {
		return nil, nil
	}
	groups, err := json.Marshal(e.Groups)
	if err != nil {
		return nil, err
	}
	return &model.Experiment{
		Id:           e.Id,
		Name:         e.Name,
		TrafficRatio: e.TrafficRatio,
		Groups:       datatypes.JSON(groups),
		Status:       e.Status,
		StartAt:      e.StartAt,
		EndAt:        e.EndAt,
	}, nil
}

func (m *ExperimentMapper) AssignmentToEntity(mod *model.ExperimentAssignment) *entity.ExperimentAssignment {
	if mod == nil {
		return nil
	}
	return &entity.ExperimentAssignment{
		Id:           mod.Id,
		UserId:       mod.UserId,
		ExperimentId: mod.ExperimentId,
		GroupId:      mod.GroupId,
		AssignedAt:   mod.AssignedAt,
	}
}

func (m *ExperimentMapper) AssignmentToModel(e *entity.ExperimentAssignment) *model.ExperimentAssignment {
	if e == nil {
		return nil
	}
	return &model.ExperimentAssignment{
		Id:           e.Id,
		UserId:       e.UserId,
		ExperimentId: e.ExperimentId,
		GroupId:      e.GroupId,
		AssignedAt:   e.AssignedAt,
	}
}
