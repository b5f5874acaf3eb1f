// Package orders loads the multi-line orders file. Each block is one order
// plus its detail lines; a block is inserted inside its own transaction:
// parent insert for the generated key, one detail batch flushed at the end of
// the block, then commit.
//
// Outcomes per block:
//   - invalid date: skipped before any transaction starts, logged, written to
//     the skip log.
//   - parent insert returns no key: rolled back, logged, loop continues.
//   - any other database error: rolled back, logged with the driver code,
//     loop stops and the error is returned.
package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"recordloader/internal/db"
	"recordloader/internal/domain"
	"recordloader/internal/metrics"
	"recordloader/internal/skiplog"
)

// Job is the metrics job label for this loader.
const Job = "orders"

var (
	orderInsert = db.Insert{
		Table:   "orders",
		Key:     "order_id",
		Columns: []string{"order_date"},
	}
	detailInsert = db.Insert{
		Table:   "order_details",
		Columns: []string{"quantity", "item_description", "order_id"},
	}
)

// Options tune an import run. The zero value logs to the standard logger
// and keeps no skip log.
type Options struct {
	Logger *log.Logger
	Skips  *skiplog.Log
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// Stats summarizes one import.
type Stats struct {
	Blocks       int // blocks with a valid header date
	Orders       int // committed orders
	Details      int // committed detail rows
	InvalidDates int
	NoKey        int // blocks rolled back because no key came back
}

// ImportFile opens path and runs Import over it.
func ImportFile(ctx context.Context, sess *db.Session, path string, opts Options) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open orders file: %w", err)
	}
	defer f.Close()

	done := metrics.Step(Job, "load")
	st, err := Import(ctx, sess, f, opts)
	done(err)
	return st, err
}

// Import reads every block from r and loads it through sess.
func Import(ctx context.Context, sess *db.Session, r io.Reader, opts Options) (Stats, error) {
	var st Stats
	lg := opts.logger()

	for blk, err := range Blocks(r) {
		if errors.Is(err, ErrInvalidDate) {
			st.InvalidDates++
			lg.Printf("⚠️ skipping order block at line %d: %v", blk.Line, err)
			opts.Skips.Add("invalid_date", blk.Line, blk.DateField, blk.Raw)
			metrics.RecordRow(Job, "skipped_invalid_date", 1)
			continue
		}
		if err != nil {
			return st, fmt.Errorf("parse orders: %w", err)
		}
		st.Blocks++
		metrics.RecordRow(Job, "blocks", 1)

		id, counts, err := loadBlock(ctx, sess, &blk)
		if err == nil {
			st.Orders++
			st.Details += len(counts)
			metrics.RecordTx(Job, metrics.TxCommit)
			metrics.RecordRow(Job, "orders", 1)
			metrics.RecordRow(Job, "details", int64(len(counts)))
			lg.Printf("order %d: inserted details %v", id, counts)
			continue
		}

		if rbErr := sess.Rollback(ctx); rbErr != nil {
			lg.Printf("❌ rollback after block at line %d: %v", blk.Line, rbErr)
		}
		metrics.RecordTx(Job, metrics.TxRollback)

		if errors.Is(err, db.ErrNoKey) {
			st.NoKey++
			lg.Printf("⚠️ order block at line %d: %v; rolled back", blk.Line, err)
			opts.Skips.Add("no_key", blk.Line, blk.DateField, blk.Raw)
			metrics.RecordRow(Job, "no_key", 1)
			continue
		}

		lg.Printf("❌ order block at line %d: %v (code %s); rolled back", blk.Line, err, codeOrUnknown(err))
		return st, fmt.Errorf("order block at line %d: %w", blk.Line, err)
	}
	return st, nil
}

// loadBlock inserts one order and its details and commits. On error the
// transaction is left open for the caller to roll back.
func loadBlock(ctx context.Context, sess *db.Session, blk *domain.OrderBlock) (int64, []int64, error) {
	tx, err := sess.Begin(ctx)
	if err != nil {
		return 0, nil, err
	}

	// Statements belong to the transaction that prepared them, so each block
	// prepares its own pair.
	ins, err := tx.Prepare(ctx, orderInsert)
	if err != nil {
		return 0, nil, fmt.Errorf("prepare order insert: %w", err)
	}
	defer ins.Close(ctx)

	id, err := ins.InsertKey(ctx, blk.Order.Date)
	if err != nil {
		return 0, nil, err
	}
	blk.Order.ID = id

	batch, err := tx.NewBatch(ctx, detailInsert)
	if err != nil {
		return 0, nil, fmt.Errorf("prepare detail insert: %w", err)
	}
	defer batch.Close(ctx)

	for i := range blk.Details {
		d := &blk.Details[i]
		d.OrderID = id
		batch.Add(d.Quantity, d.Description, d.OrderID)
	}
	counts, err := batch.Flush(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("insert details for order %d: %w", id, err)
	}
	if len(counts) > 0 {
		metrics.RecordBatches(Job, 1)
	}

	if err := sess.Commit(ctx); err != nil {
		return 0, nil, err
	}
	return id, counts, nil
}

func codeOrUnknown(err error) string {
	if c := db.ErrorCode(err); c != "" {
		return c
	}
	return "unknown"
}
