package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recordloader/internal/config"
	"recordloader/internal/db"
	"recordloader/internal/db/dbtest"
	"recordloader/internal/importer/catalog"
)

func testCfg(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		CatalogCSV:     filepath.Join(dir, "NewAlbums.csv"),
		DBDriver:       "sqlite",
		CatalogDB:      filepath.Join(dir, "music"),
		Grouping:       config.GroupingRun,
		ReportArtist:   "Bob Dylan",
		MetricsBackend: config.MetricsNone,
	}
}

// fakeDeps wires a dbtest.Conn, a recording importer, and a recording report.
func fakeDeps(fc *dbtest.Conn) (Deps, *[]string) {
	var calls []string
	return Deps{
		Open: func(context.Context, db.Dialect, string) (db.Conn, error) {
			calls = append(calls, "open")
			return fc, nil
		},
		Import: func(ctx context.Context, sess *db.Session, path string, opts catalog.Options) (catalog.Stats, error) {
			if opts.Keyed {
				calls = append(calls, "import keyed")
			} else {
				calls = append(calls, "import run")
			}
			return catalog.Stats{Records: 3, Artists: 1, Albums: 2, Songs: 3, Batches: 1}, nil
		},
		Report: func(ctx context.Context, conn db.Conn, w io.Writer, artist string) (int, error) {
			calls = append(calls, "report "+artist)
			return 3, nil
		},
		NewRunID: func() string { return "run-1" },
		Stdout:   &bytes.Buffer{},
		Stderr:   &bytes.Buffer{},
	}, &calls
}

func TestDefaultDeps_ProvidesNonNilProductionWiring(t *testing.T) {
	d := defaultDeps()
	if d.Open == nil || d.Import == nil || d.Report == nil || d.NewRunID == nil || d.Stdout == nil || d.Stderr == nil {
		t.Fatalf("production deps must be non-nil")
	}
}

func TestRun_Sequence(t *testing.T) {
	cases := []struct {
		name  string
		tweak func(*config.Config)
		want  string
	}{
		{"default", func(*config.Config) {}, "open;import run;report Bob Dylan"},
		{"keyed", func(c *config.Config) { c.Grouping = config.GroupingKeyed }, "open;import keyed;report Bob Dylan"},
		{"no report", func(c *config.Config) { c.ReportArtist = "" }, "open;import run"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testCfg(t)
			tc.tweak(cfg)
			fc := &dbtest.Conn{}
			deps, calls := fakeDeps(fc)
			if err := run(context.Background(), cfg, deps); err != nil {
				t.Fatalf("run: %v", err)
			}
			if got := strings.Join(*calls, ";"); got != tc.want {
				t.Fatalf("calls = %s; want %s", got, tc.want)
			}
			if !fc.Closed {
				t.Fatalf("connection must be closed")
			}
		})
	}
}

func TestRun_ImportErrorSkipsReport(t *testing.T) {
	cfg := testCfg(t)
	fc := &dbtest.Conn{}
	deps, calls := fakeDeps(fc)
	boom := errors.New("line 7: want 4 fields, got 3")
	deps.Import = func(context.Context, *db.Session, string, catalog.Options) (catalog.Stats, error) {
		return catalog.Stats{}, boom
	}

	err := run(context.Background(), cfg, deps)
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "catalog import failed") {
		t.Fatalf("err = %v", err)
	}
	if strings.Contains(strings.Join(*calls, ";"), "report") || !fc.Closed {
		t.Fatalf("calls = %v closed=%v", *calls, fc.Closed)
	}
}

func TestRun_ReportError(t *testing.T) {
	cfg := testCfg(t)
	deps, _ := fakeDeps(&dbtest.Conn{})
	boom := errors.New("no such view")
	deps.Report = func(context.Context, db.Conn, io.Writer, string) (int, error) { return 0, boom }

	if err := run(context.Background(), cfg, deps); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_SQLiteEndToEnd(t *testing.T) {
	cfg := testCfg(t)
	cfg.CreateTables = true
	input := "Bob Dylan,Blonde on Blonde,1,Rainy Day Women\n" +
		"Bob Dylan,Blonde on Blonde,2,Pledging My Time\n" +
		"Bob Dylan,Blood on the Tracks,1,Tangled Up in Blue\n" +
		"Neil Young,Harvest,1,Out on the Weekend\n"
	if err := os.WriteFile(cfg.CatalogCSV, []byte(input), 0o644); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	deps := defaultDeps()
	deps.Stdout, deps.Stderr = &stdout, &stderr

	if err := run(context.Background(), cfg, deps); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}
	out := stdout.String()
	for _, s := range []string{"Rainy Day Women", "Pledging My Time", "Tangled Up in Blue"} {
		if !strings.Contains(out, s) {
			t.Fatalf("report misses %q:\n%s", s, out)
		}
	}
	if strings.Contains(out, "Harvest") {
		t.Fatalf("report must only list the chosen artist:\n%s", out)
	}
	if !strings.Contains(stderr.String(), "4 records, 2 artists, 3 albums, 4 songs") {
		t.Fatalf("log = %s", stderr.String())
	}
}
