package unitofwork

import (
	"context"
	"fmt"

	"campus-dining-be/internal/repository/contract"
	"campus-dining-be/internal/repository/implementation"

	"gorm.io/gorm"
)

type UnitOfWorkImpl struct {
	db *gorm.DB
	tx *gorm.DB // active transaction, nil outside one
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &UnitOfWorkImpl{db: db}
}

func (u *UnitOfWorkImpl) getDB() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	u.tx = u.db.WithContext(ctx).Begin()
	return u.tx.Error
}

func (u *UnitOfWorkImpl) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

func (u *UnitOfWorkImpl) Rollback() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

// Repository Accessors

func (u *UnitOfWorkImpl) MenuItemRepository() contract.MenuItemRepository {
	return implementation.NewMenuItemRepository(u.getDB())
}

func (u *UnitOfWorkImpl) UserBehaviorRepository() contract.UserBehaviorRepository {
	return implementation.NewUserBehaviorRepository(u.getDB())
}

func (u *UnitOfWorkImpl) ItemEmbeddingRepository() contract.ItemEmbeddingRepository {
	return implementation.NewItemEmbeddingRepository(u.getDB())
}

func (u *UnitOfWorkImpl) ExperimentRepository() contract.ExperimentRepository {
	return implementation.NewExperimentRepository(u.getDB())
}
