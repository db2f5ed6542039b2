// Package repo holds the gorm plumbing shared by the domain repositories.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Base carries the connection or transaction a repository is bound to.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the bound connection scoped to ctx. A nil ctx returns it unscoped.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// FirstOrNil loads the first row matching conds. A missing row is (nil, nil)
// so callers decide which not-found error their API reports.
func FirstOrNil[T any](query *gorm.DB, conds ...any) (*T, error) {
	var row T
	if err := query.First(&row, conds...).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
