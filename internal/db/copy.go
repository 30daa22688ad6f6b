package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CopyLoader bulk-loads rows into a table via PostgreSQL's COPY FROM
// STDIN protocol, used by the ELF closure resolver to populate its
// temporary staging table (spec §4.14 step 6).
type CopyLoader struct {
	tx      *Tx
	table   string
	columns []string
}

// NewCopyLoader returns a loader for table's columns, bound to tx.
func NewCopyLoader(tx *Tx, table string, columns []string) *CopyLoader {
	return &CopyLoader{tx: tx, table: table, columns: columns}
}

// Load streams rows (each a slice matching len(columns)) via COPY and
// returns the number of rows copied.
func (c *CopyLoader) Load(ctx context.Context, rows [][]any) (int64, error) {
	n, err := c.tx.CopyFrom(ctx,
		pgx.Identifier{c.table},
		c.columns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("db: COPY into %q: %w", c.table, err)
	}
	return n, nil
}
