package entity

import (
	"time"

	"github.com/google/uuid"
)

type FavoriteRecord struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	ItemId    uuid.UUID
	CreatedAt time.Time
}

type BrowseRecord struct {
	Id         uuid.UUID
	UserId     uuid.UUID
	ItemId     uuid.UUID
	DurationMs int
	CreatedAt  time.Time
}

type ReviewRecord struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	ItemId    uuid.UUID
	Rating    int
	Content   string
	CreatedAt time.Time
}
