// Package db provides a portable SQL adapter for engines behind database/sql
// (MySQL, SQL Server, SQLite). Each adapter owns one dedicated *sql.Conn so
// that transaction state is tied to a single session, the way the loaders
// expect. Batches fall back to executing a prepared INSERT once per queued row.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

//
// =======================
//  Testability-first seams
// =======================
//
// The adapter talks to these narrow interfaces instead of *sql.Conn/*sql.Tx/
// *sql.Stmt so unit tests can inject light fakes with no sockets. The real*
// wrappers below satisfy them in production.
//

// rowScanner is the subset of *sql.Row we use.
type rowScanner interface {
	Scan(dest ...any) error
}

// rowsCore is the subset of *sql.Rows we use.
type rowsCore interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// stmtCore is the subset of *sql.Stmt we use.
type stmtCore interface {
	ExecContext(ctx context.Context, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, args ...any) rowScanner
	Close() error
}

// sqlTxCore is the subset of *sql.Tx we use.
type sqlTxCore interface {
	PrepareContext(ctx context.Context, query string) (stmtCore, error)
	Commit() error
	Rollback() error
}

// sqlConnCore is the subset of *sql.Conn we use.
type sqlConnCore interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (rowsCore, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (sqlTxCore, error)
	Close() error
}

//
// ============================
//  Real wrappers for production
// ============================
//

type realStmt struct{ s *sql.Stmt }

func (r realStmt) ExecContext(ctx context.Context, args ...any) (sql.Result, error) {
	return r.s.ExecContext(ctx, args...)
}
func (r realStmt) QueryRowContext(ctx context.Context, args ...any) rowScanner {
	return r.s.QueryRowContext(ctx, args...)
}
func (r realStmt) Close() error { return r.s.Close() }

type realSQLTx struct{ tx *sql.Tx }

func (r realSQLTx) PrepareContext(ctx context.Context, q string) (stmtCore, error) {
	st, err := r.tx.PrepareContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return realStmt{st}, nil
}
func (r realSQLTx) Commit() error   { return r.tx.Commit() }
func (r realSQLTx) Rollback() error { return r.tx.Rollback() }

// realSQLConn pins one connection out of pool. Closing it returns the
// connection and shuts the pool down.
type realSQLConn struct {
	conn *sql.Conn
	pool *sql.DB
}

func (r realSQLConn) ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return r.conn.ExecContext(ctx, q, args...)
}
func (r realSQLConn) QueryContext(ctx context.Context, q string, args ...any) (rowsCore, error) {
	return r.conn.QueryContext(ctx, q, args...)
}
func (r realSQLConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (sqlTxCore, error) {
	tx, err := r.conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return realSQLTx{tx: tx}, nil
}
func (r realSQLConn) Close() error {
	err := r.conn.Close()
	if perr := r.pool.Close(); err == nil {
		err = perr
	}
	return err
}

//
// =====================
//  sqlConn (Conn adapter)
// =====================
//

type sqlConn struct {
	d    Dialect
	core sqlConnCore
}

// NewSQLConn opens a pool for d, pings it, and pins a single session.
func NewSQLConn(ctx context.Context, d Dialect, dsn string) (Conn, error) {
	name := d.DriverName()
	if name == "" {
		return nil, fmt.Errorf("dialect %q has no database/sql driver", d)
	}
	pool, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d, err)
	}
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("%s: ping: %w", d, err)
	}
	c, err := pool.Conn(ctx)
	if err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("%s: conn: %w", d, err)
	}
	if d == SQLite {
		if err := enableForeignKeys(ctx, c); err != nil {
			_ = c.Close()
			_ = pool.Close()
			return nil, err
		}
	}
	return &sqlConn{d: d, core: realSQLConn{conn: c, pool: pool}}, nil
}

type execer interface {
	ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error)
}

// enableForeignKeys turns on SQLite's per-connection enforcement of the
// order_id/artist_id/album_id references.
func enableForeignKeys(ctx context.Context, c execer) error {
	if _, err := c.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	return nil
}

func (s *sqlConn) Dialect() Dialect { return s.d }

// Exec forwards a statement (typically DDL) outside any transaction.
func (s *sqlConn) Exec(ctx context.Context, q string, args ...any) error {
	_, err := s.core.ExecContext(ctx, q, args...)
	return err
}

// Query runs q and renders every column as text. NULLs become "".
func (s *sqlConn) Query(ctx context.Context, q string, args ...any) (*Table, error) {
	rows, err := s.core.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := &Table{Columns: cols}
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = v.String
		}
		out.Rows = append(out.Rows, row)
	}
	return out, rows.Err()
}

func (s *sqlConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.core.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{d: s.d, tx: tx}, nil
}

func (s *sqlConn) Close(ctx context.Context) error { return s.core.Close() }

//
// ==================
//  sqlTx (Tx adapter)
// ==================
//

type sqlTx struct {
	d  Dialect
	tx sqlTxCore
}

func (t *sqlTx) Prepare(ctx context.Context, ins Insert) (Stmt, error) {
	st, err := t.tx.PrepareContext(ctx, t.d.InsertSQL(ins))
	if err != nil {
		return nil, fmt.Errorf("prepare insert into %s: %w", ins.Table, err)
	}
	return &sqlStmt{d: t.d, table: ins.Table, s: st}, nil
}

func (t *sqlTx) NewBatch(ctx context.Context, ins Insert) (Batch, error) {
	ins.Key = ""
	st, err := t.tx.PrepareContext(ctx, t.d.InsertSQL(ins))
	if err != nil {
		return nil, fmt.Errorf("prepare batch into %s: %w", ins.Table, err)
	}
	return &sqlBatch{table: ins.Table, s: st}, nil
}

func (t *sqlTx) Commit(ctx context.Context) error   { return t.tx.Commit() }
func (t *sqlTx) Rollback(ctx context.Context) error { return t.tx.Rollback() }

//
// =========================
//  sqlStmt / sqlBatch
// =========================
//

type sqlStmt struct {
	d     Dialect
	table string
	s     stmtCore
}

// InsertKey reads the key from an OUTPUT row on SQL Server and from
// LastInsertId on MySQL/SQLite.
func (s *sqlStmt) InsertKey(ctx context.Context, args ...any) (int64, error) {
	if s.d.returnsKey() {
		var id int64
		if err := s.s.QueryRowContext(ctx, args...).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, noKey(s.table, nil)
			}
			return 0, err
		}
		return id, nil
	}

	res, err := s.s.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, noKey(s.table, nil)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, noKey(s.table, err)
	}
	if id <= 0 {
		return 0, noKey(s.table, nil)
	}
	return id, nil
}

func (s *sqlStmt) Close(ctx context.Context) error { return s.s.Close() }

type sqlBatch struct {
	table string
	s     stmtCore
	rows  [][]any
}

func (b *sqlBatch) Add(args ...any) { b.rows = append(b.rows, args) }
func (b *sqlBatch) Len() int        { return len(b.rows) }

// Flush executes the prepared INSERT once per queued row. A driver that cannot
// report affected rows yields -1 for that row.
func (b *sqlBatch) Flush(ctx context.Context) ([]int64, error) {
	rows := b.rows
	b.rows = nil

	counts := make([]int64, 0, len(rows))
	for i, args := range rows {
		res, err := b.s.ExecContext(ctx, args...)
		if err != nil {
			return counts, fmt.Errorf("batch %s row %d: %w", b.table, i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = -1
		}
		counts = append(counts, n)
	}
	return counts, nil
}

func (b *sqlBatch) Close(ctx context.Context) error { return b.s.Close() }
