// Command catalog loads the music catalog file into artists, albums, and
// songs in a single transaction, then prints the albumview rows of one
// artist.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"recordloader/internal/app"
	"recordloader/internal/config"
	"recordloader/internal/db"
	"recordloader/internal/importer/catalog"
	"recordloader/internal/metrics"
	"recordloader/internal/report"
	"recordloader/internal/schema"
)

// Deps holds the boundaries run crosses.
type Deps struct {
	Open     app.Opener
	Import   func(ctx context.Context, sess *db.Session, path string, opts catalog.Options) (catalog.Stats, error)
	Report   func(ctx context.Context, conn db.Conn, w io.Writer, artist string) (int, error)
	NewRunID func() string
	Stdout   io.Writer
	Stderr   io.Writer
}

func defaultDeps() Deps {
	return Deps{
		Open:     db.Open,
		Import:   catalog.ImportFile,
		Report:   report.AlbumView,
		NewRunID: app.NewRunID,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

func run(ctx context.Context, cfg *config.Config, deps Deps) error {
	runID := deps.NewRunID()
	lg := app.NewLogger(deps.Stderr, catalog.Job, runID)
	lg.Printf("run %s: loading %s (grouping=%s)", runID, cfg.CatalogCSV, cfg.Grouping)

	flush := app.StartMetrics(cfg, catalog.Job, runID, lg)
	defer flush()

	sess, err := app.OpenSession(ctx, cfg, cfg.CatalogDB, schema.Catalog, deps.Open, lg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(ctx); err != nil {
			lg.Printf("⚠️ close: %v", err)
		}
	}()

	opts := catalog.Options{Logger: lg, Keyed: cfg.Grouping == config.GroupingKeyed}
	st, err := deps.Import(ctx, sess, cfg.CatalogCSV, opts)
	if err != nil {
		return fmt.Errorf("catalog import failed: %w", err)
	}
	lg.Printf("catalog: %d records, %d artists, %d albums, %d songs", st.Records, st.Artists, st.Albums, st.Songs)
	if st.Regrouped > 0 {
		lg.Printf("⚠️ %d names reappeared out of order; rerun with -grouping=%s to merge them", st.Regrouped, config.GroupingKeyed)
	}

	if cfg.ReportArtist == "" {
		return nil
	}
	done := metrics.Step(catalog.Job, "report")
	n, err := deps.Report(ctx, sess.Conn(), deps.Stdout, cfg.ReportArtist)
	done(err)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	lg.Printf("report: %d rows for %q", n, cfg.ReportArtist)
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
