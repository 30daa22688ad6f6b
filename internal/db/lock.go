package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LockPair acquires a transaction-scoped PostgreSQL advisory lock on the
// pair of 32-bit keys (a, b). The lock is automatically released when
// the transaction commits or rolls back; there is no guard to release
// explicitly; a transaction lock is exactly what intra-transaction mutual
// exclusion needs, since it can't be dropped out from under an aborted
// transaction (spec §4.2).
func (t *Tx) LockPair(ctx context.Context, a, b int32) error {
	const q = `SELECT pg_advisory_xact_lock($1, $2)`
	if _, err := t.Exec(ctx, q, a, b); err != nil {
		return fmt.Errorf("db: acquiring transaction advisory lock (%d,%d): %w", a, b, err)
	}
	return nil
}

// SessionLock represents a session-scoped advisory lock held on a
// dedicated connection. Release must be called exactly once to unlock
// and return the connection to the pool.
type SessionLock struct {
	conn *pgxpool.Conn
	a, b int32
}

// LockPair acquires a session-scoped advisory lock on (a, b) using a
// connection pulled from the pool for the lifetime of the lock. Unlike a
// transaction-scoped lock, this survives outside of any one transaction,
// and must be explicitly released via the returned SessionLock.Release.
func (p *Pool) LockPair(ctx context.Context, a, b int32) (*SessionLock, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("db: acquiring connection for advisory lock: %w", err)
	}
	const q = `SELECT pg_advisory_lock($1, $2)`
	if _, err := conn.Exec(ctx, q, a, b); err != nil {
		conn.Release()
		return nil, fmt.Errorf("db: acquiring session advisory lock (%d,%d): %w", a, b, err)
	}
	return &SessionLock{conn: conn, a: a, b: b}, nil
}

// Release unlocks the advisory lock and returns the underlying
// connection to the pool. It is safe to call at most once.
func (l *SessionLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Release()
		l.conn = nil
	}()
	const q = `SELECT pg_advisory_unlock($1, $2)`
	if _, err := l.conn.Exec(ctx, q, l.a, l.b); err != nil {
		return fmt.Errorf("db: releasing session advisory lock (%d,%d): %w", l.a, l.b, err)
	}
	return nil
}

// DigestLockKeys derives a pair of deterministic 32-bit advisory-lock
// keys from a content digest, used to serialize concurrent insertion of
// the same file-cache entry or the same package (spec §4.4, §4.11).
func DigestLockKeys(digest []byte) (int32, int32) {
	var a, b uint32
	for i, c := range digest {
		switch i % 8 {
		case 0, 1, 2, 3:
			a = a<<8 | uint32(c)
		default:
			b = b<<8 | uint32(c)
		}
	}
	return int32(a), int32(b)
}
