// Package repo holds the connection plumbing shared by the domain
// repositories.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/restaurant-core/pkg/db"
)

// Base carries the connection, or the transaction, a repository runs on.
type Base struct {
	db *gorm.DB
}

func NewBase(conn *gorm.DB) Base {
	return Base{db: conn}
}

// DB returns the connection scoped to ctx. A nil ctx returns the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Locked returns a query that takes row write locks on what it reads. It is
// only meaningful on a Base bound to a transaction.
func (b Base) Locked(ctx context.Context) *gorm.DB {
	return db.ForUpdate(b.DB(ctx))
}

// Bind returns a copy running against tx. A nil tx keeps the current
// connection.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// InTx runs fn with a Base bound to a new transaction on the current
// connection.
func (b Base) InTx(ctx context.Context, fn func(Base) error) error {
	return b.DB(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Base{db: tx})
	})
}
