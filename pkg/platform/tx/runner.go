package tx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Runner provides the atomic unit every mutating registry operation runs in.
// Implementations may wrap a database transaction or, in-memory, a coarse
// lock; either way conflicting writers against the same records are
// serialized and multi-record writes commit together.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner runs fn inside a database transaction threaded through context,
// so every store call inside fn joins the same transaction.
type SQLRunner struct {
	db *sql.DB
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	dbTx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(WithTx(ctx, dbTx)); err != nil {
		_ = dbTx.Rollback()
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// MutexRunner serializes atomic units with one lock. In-memory counterpart
// of SQLRunner for tests and single-node development; writes inside fn are
// visible immediately, so fn must not fail after its first mutation unless
// callers tolerate partial state.
type MutexRunner struct {
	mu sync.Mutex
}

func NewMutexRunner() *MutexRunner {
	return &MutexRunner{}
}

func (r *MutexRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}
