package implementation

import (
	"context"
	"errors"

	"campus-dining-be/internal/entity"
	"campus-dining-be/internal/mapper"
	"campus-dining-be/internal/model"
	"campus-dining-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ItemEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ItemEmbeddingMapper
}

func NewItemEmbeddingRepository(db *gorm.DB) contract.ItemEmbeddingRepository {
	return &ItemEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewItemEmbeddingMapper(),
	}
}

func (r *ItemEmbeddingRepositoryImpl) FindByItemAndVersion(ctx context.Context, itemId uuid.UUID, version string) (*entity.ItemEmbedding, error) {
	var m model.ItemEmbedding
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemId).
		Where("version = ?", version).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ItemEmbeddingRepositoryImpl) Upsert(ctx context.Context, embedding *entity.ItemEmbedding) error {
	m := r.mapper.ToModel(embedding)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}, {Name: "version"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "updated_at"}),
		}).
		Create(m).Error
	if err != nil {
		return err
	}
	*embedding = *r.mapper.ToEntity(m)
	return nil
}

func (r *ItemEmbeddingRepositoryImpl) SearchSimilar(ctx context.Context, vector []float32, version string, limit int, filter *contract.EmbeddingSearchFilter, excludeItemId *uuid.UUID) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 20
	}

	// Cosine distance via pgvector: embedding <=> query. The join against
	// menu_items enforces the online-status filter at the index side.
	query := r.db.WithContext(ctx).
		Table("item_embeddings").
		Select("item_embeddings.item_id").
		Joins("JOIN menu_items ON menu_items.id = item_embeddings.item_id").
		Where("item_embeddings.version = ?", version).
		Where("menu_items.status = ?", entity.ItemStatusOnline).
		Where("menu_items.deleted_at IS NULL")

	if filter != nil {
		if filter.CanteenId != nil {
			query = query.Where("menu_items.canteen_id = ?", *filter.CanteenId)
		}
		if len(filter.Tags) > 0 {
			or := r.db.Session(&gorm.Session{NewDB: true})
			for i, tag := range filter.Tags {
				if i == 0 {
					or = or.Where("menu_items.tags @> ?", `["`+tag+`"]`)
				} else {
					or = or.Or("menu_items.tags @> ?", `["`+tag+`"]`)
				}
			}
			query = query.Where(or)
		}
	}
	if excludeItemId != nil {
		query = query.Where("item_embeddings.item_id <> ?", *excludeItemId)
	}

	var ids []uuid.UUID
	err := query.
		Order(gorm.Expr("item_embeddings.embedding <=> ?", pgvector.NewVector(vector))).
		Limit(limit).
		Pluck("item_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *ItemEmbeddingRepositoryImpl) FindStaleItemIds(ctx context.Context, currentVersion string, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	current := r.db.Table("item_embeddings").Select("item_id").Where("version = ?", currentVersion)

	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("item_embeddings").
		Select("DISTINCT item_id").
		Where("item_id NOT IN (?)", current).
		Limit(limit).
		Pluck("item_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
