package mapper

import (
	"time"

	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type ItemEmbeddingMapper struct{}

func NewItemEmbeddingMapper() *ItemEmbeddingMapper {
	return &ItemEmbeddingMapper{}
}

func (m *ItemEmbeddingMapper) ToEntity(mod *model.ItemEmbedding) *entity.ItemEmbedding {
	if mod == nil {
		return nil
	}
	var updatedAt *time.Time
	if !mod.UpdatedAt.IsZero() {
		t := mod.UpdatedAt
		updatedAt = &t
	}
	return &entity.ItemEmbedding{
		Id:        mod.Id,
		ItemId:    mod.ItemId,
		Version:   mod.Version,
		Vector:    mod.Embedding.Slice(),
		CreatedAt: mod.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *ItemEmbeddingMapper) ToModel(e *entity.ItemEmbedding) *model.ItemEmbedding {
	if e == nil {
		return nil
	}
	return &model.ItemEmbedding{
		Id:        e.Id,
		ItemId:    e.ItemId,
		Version:   e.Version,
		Embedding: pgvector.NewVector(e.Vector),
		CreatedAt: e.CreatedAt,
	}
}
