package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Tx wraps a pgx.Tx, adding one half of the advisory-lock duality
// described in spec §4.2: Tx.LockPair takes a transaction-scoped lock
// (released at commit/rollback), while Pool.LockPair, used outside any
// transaction, takes a session-scoped one.
type Tx struct {
	pgx.Tx
}

// Begin starts a standard transaction.
func (p *Pool) Begin(ctx context.Context) (*Tx, error) {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("db: begin: %w", err)
	}
	return &Tx{Tx: tx}, nil
}

// BeginSnapshot starts a REPEATABLE READ, READ ONLY transaction, used by
// the ELF closure resolver to take a consistent snapshot of a package
// set's ELF facts without blocking concurrent writers (spec §4.14
// step 1).
func (p *Pool) BeginSnapshot(ctx context.Context) (*Tx, error) {
	tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("db: begin snapshot: %w", err)
	}
	return &Tx{Tx: tx}, nil
}

// BeginNoSync starts a transaction with synchronous_commit disabled for
// its duration, used by the ingestion pipeline for per-package bulk
// loads where losing the last few commits on a crash is acceptable
// (spec §4.2).
func (p *Pool) BeginNoSync(ctx context.Context) (*Tx, error) {
	tx, err := p.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, "SET LOCAL synchronous_commit = off"); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("db: disabling synchronous_commit: %w", err)
	}
	return tx, nil
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.Tx.Commit(ctx); err != nil {
		return fmt.Errorf("db: commit: %w", err)
	}
	return nil
}

// Rollback rolls the transaction back. It is safe to call after a
// successful Commit (pgx reports pgx.ErrTxClosed, which is swallowed).
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.Tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("db: rollback: %w", err)
	}
	return nil
}
