package condbuilder

import (
	"context"

	"gorm.io/gorm"
)

type transactionKey struct{}

func withTransaction(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, transactionKey{}, tx)
}

// TransactionFromContext returns the gorm transaction started by
// Repository.Transaction. Save, Find, Count and FindMaps run inside it when
// they receive a context carrying one.
func TransactionFromContext(ctx context.Context) (*gorm.DB, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(transactionKey{}).(*gorm.DB)
	if !ok || tx == nil {
		return nil, false
	}
	return tx, true
}

// Transaction runs fn inside a database transaction. The context passed to fn
// carries the transaction; fn returning an error rolls it back. Nested calls
// join the outer transaction.
func (r *Repository) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TransactionFromContext(ctx); ok {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(withTransaction(ctx, tx))
	})
}

// conn returns the handle statements for ctx should run on.
func (r *Repository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := TransactionFromContext(ctx); ok {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}
