// Package dbtest provides an in-memory, transaction-aware fake of db.Conn for
// importer tests. Rows written inside a transaction become visible in Rows
// only after Commit; Rollback discards them. Every call is appended to Events
// so tests can assert on the exact begin/commit/rollback sequence.
package dbtest

import (
	"context"
	"errors"
	"fmt"

	"recordloader/internal/db"
)

// Conn is a fake db.Conn. The zero value is ready to use.
type Conn struct {
	// InsertKeyErr, when set, is consulted before every InsertKey. n is the
	// 1-based call count for table.
	InsertKeyErr func(table string, n int) error
	// FlushErr, when set, is consulted before every non-empty Flush.
	FlushErr func(table string) error
	// BeginErr fails every Begin.
	BeginErr error

	Events []string
	Rows   map[string][][]any
	Closed bool
	// Prepared counts Prepare and NewBatch calls per table.
	Prepared map[string]int

	pending map[string][][]any
	calls   map[string]int
	nextID  int64
	open    bool
}

var _ db.Conn = (*Conn)(nil)

func (c *Conn) event(format string, args ...any) {
	c.Events = append(c.Events, fmt.Sprintf(format, args...))
}

// Count returns how many events equal e.
func (c *Conn) Count(e string) int {
	n := 0
	for _, got := range c.Events {
		if got == e {
			n++
		}
	}
	return n
}

// Committed returns the committed rows of table.
func (c *Conn) Committed(table string) [][]any { return c.Rows[table] }

func (c *Conn) Dialect() db.Dialect { return db.SQLite }

func (c *Conn) Exec(ctx context.Context, q string, args ...any) error {
	c.event("exec")
	return nil
}

func (c *Conn) Query(ctx context.Context, q string, args ...any) (*db.Table, error) {
	c.event("query")
	return &db.Table{}, nil
}

func (c *Conn) Begin(ctx context.Context) (db.Tx, error) {
	if c.BeginErr != nil {
		return nil, c.BeginErr
	}
	if c.open {
		return nil, errors.New("dbtest: transaction already open")
	}
	c.event("begin")
	c.open = true
	c.pending = map[string][][]any{}
	return &tx{c: c}, nil
}

func (c *Conn) Close(ctx context.Context) error {
	c.event("close")
	c.Closed = true
	return nil
}

type tx struct{ c *Conn }

func (t *tx) Prepare(ctx context.Context, ins db.Insert) (db.Stmt, error) {
	t.c.prepared(ins.Table)
	return &stmt{c: t.c, ins: ins}, nil
}

func (t *tx) NewBatch(ctx context.Context, ins db.Insert) (db.Batch, error) {
	t.c.prepared(ins.Table)
	return &batch{c: t.c, ins: ins}, nil
}

func (c *Conn) prepared(table string) {
	if c.Prepared == nil {
		c.Prepared = map[string]int{}
	}
	c.Prepared[table]++
}

func (t *tx) Commit(ctx context.Context) error {
	c := t.c
	if !c.open {
		return errors.New("dbtest: commit without transaction")
	}
	c.event("commit")
	if c.Rows == nil {
		c.Rows = map[string][][]any{}
	}
	for table, rows := range c.pending {
		c.Rows[table] = append(c.Rows[table], rows...)
	}
	c.pending = nil
	c.open = false
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	c := t.c
	if !c.open {
		return errors.New("dbtest: rollback without transaction")
	}
	c.event("rollback")
	c.pending = nil
	c.open = false
	return nil
}

type stmt struct {
	c   *Conn
	ins db.Insert
}

func (s *stmt) InsertKey(ctx context.Context, args ...any) (int64, error) {
	c := s.c
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[s.ins.Table]++
	c.event("insert %s", s.ins.Table)
	if c.InsertKeyErr != nil {
		if err := c.InsertKeyErr(s.ins.Table, c.calls[s.ins.Table]); err != nil {
			return 0, err
		}
	}
	c.nextID++
	row := append([]any{c.nextID}, args...)
	c.pending[s.ins.Table] = append(c.pending[s.ins.Table], row)
	return c.nextID, nil
}

func (s *stmt) Close(ctx context.Context) error { return nil }

type batch struct {
	c    *Conn
	ins  db.Insert
	rows [][]any
}

func (b *batch) Add(args ...any) { b.rows = append(b.rows, args) }
func (b *batch) Len() int        { return len(b.rows) }

func (b *batch) Flush(ctx context.Context) ([]int64, error) {
	if len(b.rows) == 0 {
		return nil, nil
	}
	c := b.c
	c.event("flush %s %d", b.ins.Table, len(b.rows))
	if c.FlushErr != nil {
		if err := c.FlushErr(b.ins.Table); err != nil {
			return nil, err
		}
	}
	counts := make([]int64, len(b.rows))
	for i, r := range b.rows {
		c.pending[b.ins.Table] = append(c.pending[b.ins.Table], r)
		counts[i] = 1
	}
	b.rows = nil
	return counts, nil
}

func (b *batch) Close(ctx context.Context) error { return nil }
