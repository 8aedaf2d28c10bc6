package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contentvault/internal/domain"
	"contentvault/internal/domain/repositories"
)

// TransactionManager implements the TransactionManager interface
type TransactionManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(pool *pgxpool.Pool, logger *slog.Logger) repositories.TransactionManager {
	return &TransactionManager{pool: pool, logger: logger}
}

// ExecTx executes a function within a transaction.
//
// Nested calls join the transaction already stored in the context: only the
// outermost call begins, commits, and fires after-commit hooks. This keeps
// deferred reindex/pipeline dispatch bound to the outermost commit, so
// sub-transactions never trigger redundant work or index not-yet-durable
// state.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if repositories.GetTx(ctx) != nil {
		// Already inside a transaction scope: join it
		return fn(ctx)
	}

	tx, err := tm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Defer rollback - safe even if commit succeeds
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			tm.logger.Warn("rollback failed", "error", err)
		}
	}()

	txCtx := repositories.SetTx(ctx, tx)
	txCtx, hooks := repositories.SetHooks(txCtx)

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if IsPgDuplicateError(err) {
			// Deferred uniqueness violations surface here
			return fmt.Errorf("commit transaction: %w", domain.ErrConflict)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}

	// Hooks run on the original context: the transaction is gone
	hooks.Fire(ctx)

	return nil
}
