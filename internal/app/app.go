// Package app holds the startup steps both loader commands share: run ids,
// the per-run logger, the metrics backend, and the database session.
package app

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"recordloader/internal/config"
	"recordloader/internal/db"
	"recordloader/internal/metrics"
	"recordloader/internal/metrics/datadog"
	"recordloader/internal/metrics/prompush"
	"recordloader/internal/schema"
)

// Opener connects to a database. db.Open is the production value.
type Opener func(ctx context.Context, d db.Dialect, dsn string) (db.Conn, error)

// NewRunID returns a fresh random run id.
func NewRunID() string { return uuid.NewString() }

// NewLogger returns a logger whose prefix names the job and the first
// segment of the run id.
func NewLogger(w io.Writer, job, runID string) *log.Logger {
	short := runID
	if u, err := uuid.Parse(runID); err == nil {
		short = u.String()[:8]
	}
	return log.New(w, fmt.Sprintf("[%s %s] ", job, short), log.LstdFlags)
}

// MetricsBackend builds the backend selected by cfg, or returns nil when
// metrics are off.
func MetricsBackend(cfg *config.Config, job, runID string) (metrics.Backend, error) {
	switch cfg.MetricsBackend {
	case config.MetricsNone, "":
		return nil, nil
	case config.MetricsPushgateway:
		b, err := prompush.NewBackend(job, cfg.PushgatewayURL, runID)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		return b, nil
	case config.MetricsDatadog:
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       cfg.DogStatsdAddr,
			Namespace:  "recordloader.",
			GlobalTags: []string{"job:" + job, "run_id:" + runID},
		})
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("metrics: unknown backend %q", cfg.MetricsBackend)
	}
}

// StartMetrics installs the configured backend and returns a func that
// flushes it. A backend that cannot be built is logged and metrics stay off.
func StartMetrics(cfg *config.Config, job, runID string, lg *log.Logger) (flush func()) {
	b, err := MetricsBackend(cfg, job, runID)
	if err != nil {
		lg.Printf("⚠️ %v; metrics disabled", err)
		return func() {}
	}
	if b == nil {
		return func() {}
	}
	metrics.SetBackend(b)
	lg.Printf("metrics: backend=%s", cfg.MetricsBackend)
	return func() {
		if err := metrics.Flush(); err != nil {
			lg.Printf("⚠️ metrics: flush error: %v", err)
		}
	}
}

// OpenSession connects to database with cfg's driver and credentials and,
// when cfg.CreateTables is set, applies the schema set first.
func OpenSession(ctx context.Context, cfg *config.Config, database string, set schema.Set, open Opener, lg *log.Logger) (*db.Session, error) {
	d, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}
	dsn, err := cfg.DSNFor(database)
	if err != nil {
		return nil, err
	}
	conn, err := open(ctx, d, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s database %q: %w", d, database, err)
	}
	lg.Printf("connected: driver=%s database=%s", d, database)

	if cfg.CreateTables {
		if err := schema.Ensure(ctx, conn, set); err != nil {
			_ = conn.Close(ctx)
			return nil, fmt.Errorf("create tables: %w", err)
		}
		lg.Printf("schema %s ready", set)
	}
	return db.NewSession(conn), nil
}
