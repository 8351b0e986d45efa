package database

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-svc/apperr"
)

// WithTx runs fn inside one transaction. Any error from fn rolls back every
// write fn made; otherwise the transaction is committed.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %v: %w", err, apperr.ErrPersistence)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %v: %w", err, apperr.ErrPersistence)
	}
	return nil
}
