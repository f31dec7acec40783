package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ItemEmbedding stores one vector per (item, version). The column is sized
// for the richest version; lower-dimensional vectors are stored as-is since
// pgvector columns declared without a fixed dimension accept any length.
type ItemEmbedding struct {
	Id        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ItemId    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_emb_item_version"`
	Version   string          `gorm:"type:varchar(16);not null;uniqueIndex:idx_emb_item_version;index"`
	Embedding pgvector.Vector `gorm:"type:vector"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (ItemEmbedding) TableName() string {
	return "item_embeddings"
}
