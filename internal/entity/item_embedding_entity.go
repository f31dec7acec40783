package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Known embedding versions. Higher rank means a richer representation.
const (
	EmbeddingVersionLocal  = "v1" // hash-slot feature encoder, 128 dims
	EmbeddingVersionRemote = "v2" // external embedding model, 768 dims
)

// VersionedEmbedding is a vector tied to the version of the model that
// produced it. Similarity is only defined between equal versions.
type VersionedEmbedding struct {
	Vector  []float32 `json:"vector"`
	Version string    `json:"version"`
}

// EmbeddingVersionRank parses a "v<N>" tag into its numeric rank for
// comparison. Unknown formats rank as -1, below every valid version.
func EmbeddingVersionRank(version string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(version, "v"))
	if err != nil {
		return -1
	}
	return n
}

// EmbeddingVersionLess reports whether a is a strictly lower (poorer)
// version than b.
func EmbeddingVersionLess(a, b string) bool {
	return EmbeddingVersionRank(a) < EmbeddingVersionRank(b)
}

type ItemEmbedding struct {
	Id        uuid.UUID
	ItemId    uuid.UUID
	Version   string
	Vector    []float32
	CreatedAt time.Time
	UpdatedAt *time.Time
}

func (e *ItemEmbedding) Versioned() *VersionedEmbedding {
	return &VersionedEmbedding{Vector: e.Vector, Version: e.Version}
}

func (e *ItemEmbedding) String() string {
	return fmt.Sprintf("ItemEmbedding{item=%s version=%s dims=%d}", e.ItemId, e.Version, len(e.Vector))
}
