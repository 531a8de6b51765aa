package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Transactor runs a function inside one transaction; repos called with
// the returned context share it. Used by the cascading user purge so
// jobs, credentials and records disappear together.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var _ Transactor = (*transactorImpl)(nil)

type transactorImpl struct {
	db  *DB
	log *zap.Logger
}

func NewTransactor(db *DB, log *zap.Logger) *transactorImpl {
	return &transactorImpl{db: db, log: log}
}

func (t *transactorImpl) WithTx(ctx context.Context, fn func(ctx context.Context) error) (txErr error) {
	txCtx, tx, started, err := beginTx(ctx, t.db)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if !started {
		// Already inside a transaction; join it.
		return fn(txCtx)
	}

	defer func() {
		if txErr != nil {
			if err := tx.Rollback(txCtx); err != nil {
				t.log.Error("rollback", zap.Error(err))
			}
			return
		}
		if err := tx.Commit(txCtx); err != nil {
			t.log.Error("commit", zap.Error(err))
			txErr = fmt.Errorf("commit: %w", err)
		}
	}()

	return fn(txCtx)
}

type txKey struct{}

func beginTx(ctx context.Context, db *DB) (context.Context, pgx.Tx, bool, error) {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return ctx, tx, false, nil
	}
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, nil, false, err
	}
	return context.WithValue(ctx, txKey{}, tx), tx, true, nil
}

// querier is the pool or, when the context carries one, the open tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *DB) querier(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return db.Pool
}
