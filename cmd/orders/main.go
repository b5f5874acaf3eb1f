// Command orders loads the storefront orders file. Each block (an "order,"
// header line plus its detail lines) becomes one order row and its detail
// rows, committed on its own.
//
// main only loads configuration; run does the work through Deps so tests
// can swap the database and importer.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"recordloader/internal/app"
	"recordloader/internal/config"
	"recordloader/internal/db"
	"recordloader/internal/importer/orders"
	"recordloader/internal/schema"
	"recordloader/internal/skiplog"
)

// skipFile is the name of the skipped-block log inside cfg.SkippedDir.
const skipFile = "orders_skipped.csv"

// Deps holds the boundaries run crosses.
type Deps struct {
	Open        app.Opener
	Import      func(ctx context.Context, sess *db.Session, path string, opts orders.Options) (orders.Stats, error)
	OpenSkipLog func(path, runID string) (*skiplog.Log, error)
	NewRunID    func() string
	Stderr      io.Writer
}

func defaultDeps() Deps {
	return Deps{
		Open:        db.Open,
		Import:      orders.ImportFile,
		OpenSkipLog: skiplog.Open,
		NewRunID:    app.NewRunID,
		Stderr:      os.Stderr,
	}
}

func run(ctx context.Context, cfg *config.Config, deps Deps) error {
	runID := deps.NewRunID()
	lg := app.NewLogger(deps.Stderr, orders.Job, runID)
	lg.Printf("run %s: loading %s", runID, cfg.OrdersCSV)

	flush := app.StartMetrics(cfg, orders.Job, runID, lg)
	defer flush()

	sess, err := app.OpenSession(ctx, cfg, cfg.OrdersDB, schema.Orders, deps.Open, lg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(ctx); err != nil {
			lg.Printf("⚠️ close: %v", err)
		}
	}()

	skipPath := filepath.Join(cfg.SkippedDir, skipFile)
	skips, err := deps.OpenSkipLog(skipPath, runID)
	if err != nil {
		return fmt.Errorf("skip log: %w", err)
	}
	defer func() {
		if err := skips.Close(); err != nil {
			lg.Printf("⚠️ skip log: %v", err)
		}
	}()

	st, err := deps.Import(ctx, sess, cfg.OrdersCSV, orders.Options{Logger: lg, Skips: skips})
	lg.Printf("orders: %d committed, %d details, %d invalid dates, %d without key", st.Orders, st.Details, st.InvalidDates, st.NoKey)
	if err != nil {
		return fmt.Errorf("orders import failed: %w", err)
	}
	for _, reason := range []string{"invalid_date", "no_key"} {
		if n := skips.Counts()[reason]; n > 0 {
			lg.Printf("⚠️ %d blocks skipped (%s); see %s", n, reason, skipPath)
		}
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if err := run(context.Background(), cfg, defaultDeps()); err != nil {
		log.Fatal(err)
	}
}
