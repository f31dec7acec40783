package unitofwork

import (
	"context"

	"campus-dining-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	MenuItemRepository() contract.MenuItemRepository
	UserBehaviorRepository() contract.UserBehaviorRepository
	ItemEmbeddingRepository() contract.ItemEmbeddingRepository
	ExperimentRepository() contract.ExperimentRepository
}
