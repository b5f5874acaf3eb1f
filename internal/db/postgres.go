// Package db provides database adapter implementations. This file contains
// the Postgres adapter, which wraps pgx.Conn/pgx.Tx while remaining testable
// via lightweight seams.
//
// Design goals:
//   - Allow mocking via the pgConnLike/pgTxLike interfaces.
//   - Keep behavior minimal and predictable; no implicit retries.
//   - Use pgx.Batch so a Flush is one round trip.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//
// ===========================
//  Interface seams for testing
// ===========================
//

// pgRowsLike is the subset of pgx.Rows used by Query.
type pgRowsLike interface {
	FieldDescriptions() []pgconn.FieldDescription
	Next() bool
	Values() ([]any, error)
	Err() error
	Close()
}

// pgTxLike is the subset of pgx.Tx we use. pgx.Tx satisfies it as is.
type pgTxLike interface {
	Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// pgConnLike is the subset of *pgx.Conn we use, with Query and Begin
// narrowed to the seams above.
type pgConnLike interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgRowsLike, error)
	Begin(ctx context.Context) (pgTxLike, error)
	Close(ctx context.Context) error
}

type realPgConn struct{ c *pgx.Conn }

func (r realPgConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return r.c.Exec(ctx, sql, args...)
}
func (r realPgConn) Query(ctx context.Context, sql string, args ...any) (pgRowsLike, error) {
	return r.c.Query(ctx, sql, args...)
}
func (r realPgConn) Begin(ctx context.Context) (pgTxLike, error) {
	return r.c.Begin(ctx)
}
func (r realPgConn) Close(ctx context.Context) error { return r.c.Close(ctx) }

//
// ===============
//  Core pgConn type
// ===============
//

type pgConn struct{ conn pgConnLike }

// NewPgConn connects to Postgres using pgx.Connect. Callers close it via Close().
func NewPgConn(ctx context.Context, dsn string) (Conn, error) {
	c, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &pgConn{conn: realPgConn{c: c}}, nil
}

func (p *pgConn) Dialect() Dialect { return Postgres }

func (p *pgConn) Exec(ctx context.Context, q string, args ...any) error {
	_, err := p.conn.Exec(ctx, q, args...)
	return err
}

func (p *pgConn) Query(ctx context.Context, q string, args ...any) (*Table, error) {
	rows, err := p.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	out := &Table{Columns: make([]string, len(fds))}
	for i, fd := range fds {
		out.Columns[i] = fd.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]string, len(vals))
		for i, v := range vals {
			row[i] = textValue(v)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, rows.Err()
}

func (p *pgConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

func (p *pgConn) Close(ctx context.Context) error { return p.conn.Close(ctx) }

//
// =====================
//  Transaction wrapper
// =====================
//

type pgTx struct{ tx pgTxLike }

// stmtName is stable per statement shape so re-preparing in a later
// transaction hits pgx's statement cache on the same connection.
func stmtName(ins Insert) string {
	if ins.Key == "" {
		return "recordloader_" + ins.Table + "_batch"
	}
	return "recordloader_" + ins.Table
}

func (t *pgTx) Prepare(ctx context.Context, ins Insert) (Stmt, error) {
	name := stmtName(ins)
	if _, err := t.tx.Prepare(ctx, name, Postgres.InsertSQL(ins)); err != nil {
		return nil, fmt.Errorf("prepare insert into %s: %w", ins.Table, err)
	}
	return &pgStmt{tx: t.tx, name: name, table: ins.Table}, nil
}

func (t *pgTx) NewBatch(ctx context.Context, ins Insert) (Batch, error) {
	ins.Key = ""
	name := stmtName(ins)
	if _, err := t.tx.Prepare(ctx, name, Postgres.InsertSQL(ins)); err != nil {
		return nil, fmt.Errorf("prepare batch into %s: %w", ins.Table, err)
	}
	return &pgBatch{tx: t.tx, name: name, table: ins.Table, b: &pgx.Batch{}}, nil
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

type pgStmt struct {
	tx    pgTxLike
	name  string
	table string
}

// InsertKey runs the prepared INSERT ... RETURNING and scans the key.
func (s *pgStmt) InsertKey(ctx context.Context, args ...any) (int64, error) {
	var id int64
	if err := s.tx.QueryRow(ctx, s.name, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, noKey(s.table, nil)
		}
		return 0, err
	}
	return id, nil
}

// Close is a no-op: prepared statements live on the connection.
func (s *pgStmt) Close(ctx context.Context) error { return nil }

type pgBatch struct {
	tx    pgTxLike
	name  string
	table string
	b     *pgx.Batch
}

func (b *pgBatch) Add(args ...any) { b.b.Queue(b.name, args...) }
func (b *pgBatch) Len() int        { return b.b.Len() }

// Flush sends every queued row in one round trip and reads back each
// command tag.
func (b *pgBatch) Flush(ctx context.Context) ([]int64, error) {
	n := b.b.Len()
	if n == 0 {
		return nil, nil
	}
	queued := b.b
	b.b = &pgx.Batch{}

	br := b.tx.SendBatch(ctx, queued)
	counts := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return counts, fmt.Errorf("batch %s row %d: %w", b.table, i, err)
		}
		counts = append(counts, tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return counts, fmt.Errorf("batch %s: %w", b.table, err)
	}
	return counts, nil
}

func (b *pgBatch) Close(ctx context.Context) error { return nil }

// textValue renders a decoded pgx value for display. Dates without a time
// part print as YYYY-MM-DD.
func textValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
