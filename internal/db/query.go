package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MaxParams is the parameter bound spec §4.2 calls out for typed
// parameterized queries.
const MaxParams = 15

// Queryer is implemented by both *Pool and *Tx, letting callers write
// query helpers that work inside or outside an explicit transaction.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NullParam returns nil (encoded as SQL NULL) when p is nil, or *p
// otherwise. Use for optional scalar parameters such as a package's
// epoch (spec §3.2's "epoch (signed, optional)").
func NullParam[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// CheckParamCount validates that a query uses no more than MaxParams
// bound parameters, matching spec §4.2.
func CheckParamCount(args []any) error {
	if len(args) > MaxParams {
		return fmt.Errorf("db: query uses %d parameters, exceeding the bound of %d", len(args), MaxParams)
	}
	return nil
}
