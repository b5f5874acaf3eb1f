// Package db provides the database seams used by the loaders: a single-session
// Conn, explicit transactions, prepared inserts that hand back generated keys,
// and an appendable Batch that is flushed on demand.
//
// Two adapters implement the interfaces:
//   - pgConn wraps *pgx.Conn (Postgres) and batches with pgx.Batch.
//   - sqlConn wraps a dedicated *sql.Conn for MySQL, SQL Server, and SQLite.
package db

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoKey reports that a single-row insert affected no rows or the database
// did not hand back a generated key. Callers treat it as a per-unit failure,
// not a fatal one.
var ErrNoKey = errors.New("no generated key returned")

// Insert describes a parameterized single-row INSERT. Key names the
// auto-generated identity column; leave it empty for statements whose key
// is never read (batched child rows).
type Insert struct {
	Table   string
	Key     string
	Columns []string
}

// Table is a fully materialized query result with every value rendered as
// text. It is only used for small diagnostic reads.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Conn is one database session. Implementations are not safe for concurrent use.
type Conn interface {
	Dialect() Dialect
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (*Table, error)
	Begin(ctx context.Context) (Tx, error)
	Close(ctx context.Context) error
}

// Tx is an open transaction on a Conn.
type Tx interface {
	Prepare(ctx context.Context, ins Insert) (Stmt, error)
	NewBatch(ctx context.Context, ins Insert) (Batch, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Stmt is a reusable prepared single-row insert.
type Stmt interface {
	// InsertKey executes the insert and returns the generated key, or an
	// error wrapping ErrNoKey when no row or key came back.
	InsertKey(ctx context.Context, args ...any) (int64, error)
	Close(ctx context.Context) error
}

// Batch buffers bound parameter sets for one Insert and executes them
// together on Flush. A flushed batch is empty and may be reused.
type Batch interface {
	Add(args ...any)
	Len() int
	// Flush executes every queued row and returns the affected-row count per
	// row, in queue order.
	Flush(ctx context.Context) ([]int64, error)
	Close(ctx context.Context) error
}

// Open connects using the adapter that matches d.
func Open(ctx context.Context, d Dialect, dsn string) (Conn, error) {
	switch d {
	case Postgres:
		return NewPgConn(ctx, dsn)
	case MySQL, SQLServer, SQLite:
		return NewSQLConn(ctx, d, dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", d)
	}
}

// noKey wraps ErrNoKey with the table that failed to produce one.
func noKey(table string, cause error) error {
	if cause != nil {
		return fmt.Errorf("insert into %s: %w: %v", table, ErrNoKey, cause)
	}
	return fmt.Errorf("insert into %s: %w", table, ErrNoKey)
}
