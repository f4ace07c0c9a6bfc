package seeddb

import (
	"context"
	"database/sql"
	"errors"
)

// Tx is a transaction with the same statement surface as DB
type Tx struct {
	tx *sql.Tx
}

// BeginTx starts a new transaction
func (db *DB) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, &DBError{
			Code:    CodeTxFailed,
			Message: "failed to begin transaction",
			Err:     err,
		}
	}
	return &Tx{tx: tx}, nil
}

// ExecContext executes a single statement inside the transaction
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return execStatement(ctx, t.tx, query, args...)
}

// QueryContext executes a query inside the transaction
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &DBError{
			Code:    CodeQueryFailed,
			Message: "failed to execute query",
			Err:     err,
		}
	}
	return rows, nil
}

// QueryRowContext executes a query that returns at most one row
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// Commit commits the transaction
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return &DBError{
			Code:    CodeTxFailed,
			Message: "failed to commit transaction",
			Err:     err,
		}
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return &DBError{
			Code:    CodeTxFailed,
			Message: "failed to roll back transaction",
			Err:     err,
		}
	}
	return nil
}

// WithTx runs fn in a transaction, committing when fn succeeds and rolling
// back when it fails.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
