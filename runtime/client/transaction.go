package client

import (
	"context"
	"database/sql"
	"fmt"
)

// TxFunc runs inside a transaction.
type TxFunc func(tx *sql.Tx) error

// WithTx runs fn in a transaction with the driver's default options.
func WithTx(ctx context.Context, db *sql.DB, fn TxFunc) error {
	return WithTxOptions(ctx, db, nil, fn)
}

// WithTxOptions runs fn in a transaction. The transaction is rolled back if
// fn returns an error or panics, and committed otherwise.
func WithTxOptions(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
