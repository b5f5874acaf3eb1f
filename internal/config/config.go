// Package config centralizes loader configuration. Every tunable is a
// command-line flag whose default is seeded from an environment variable, so
// `-help` lists all knobs and the same binary works from a shell or a
// container.
//
// Typical usage:
//
//	cfg := config.Load() // reads os.Args and os.Environ
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg := config.LoadFromArgs(fs, getenv, []string{"-db_driver=sqlite"})
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"recordloader/internal/db"
)

// Grouping modes for the catalog loader.
const (
	GroupingRun   = "run"
	GroupingKeyed = "keyed"
)

// Metrics backends.
const (
	MetricsNone        = "none"
	MetricsPushgateway = "pushgateway"
	MetricsDatadog     = "datadog"
)

// Config holds all process configuration derived from flags and
// environment variables. Both loaders share it; each reads only the
// fields it needs.
type Config struct {
	// Input and diagnostic file locations.
	OrdersCSV  string // Orders file (multi-line blocks).
	CatalogCSV string // Music catalog file (one song per line).
	SkippedDir string // Directory for skipped-block CSV logs.

	// DB describes the target database. When DSN is set it wins; otherwise a
	// DSN is built from the discrete parts plus the per-loader database name.
	DBDriver   string
	DSN        string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string // Empty means the driver's usual port.
	OrdersDB   string
	CatalogDB  string

	// Behavior toggles.
	CreateTables bool   // Apply the schema before loading.
	Grouping     string // Catalog grouping: "run" or "keyed".
	ReportArtist string // Artist for the post-load album report; empty disables it.

	// Metrics.
	MetricsBackend string // "none", "pushgateway", or "datadog".
	PushgatewayURL string
	DogStatsdAddr  string
}

// LoadFromArgs builds a Config by defining flags on fs, seeding each flag's
// default from getenv, and then parsing args.
//
// Precedence:
//  1. Environment values seed each flag's default.
//  2. Explicit CLI flags (in args) override the seeded defaults.
//
// Parse errors are returned; fs decides whether it also prints usage.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := &Config{}

	envOrDefaultFn := func(d string, keys ...string) string {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				return v
			}
		}
		return d
	}
	boolEnvOrDefaultFn := func(k string, d bool) bool {
		return parseBool(getenv(k), d)
	}

	// IO paths
	fs.StringVar(&cfg.OrdersCSV, "orders_csv", envOrDefaultFn("Orders.csv", "ORDERS_CSV"), "Path to the orders file")
	fs.StringVar(&cfg.CatalogCSV, "catalog_csv", envOrDefaultFn("NewAlbums.csv", "CATALOG_CSV"), "Path to the music catalog file")
	fs.StringVar(&cfg.SkippedDir, "skipped_dir", envOrDefaultFn("./skipped", "SKIPPED_DIR"), "Directory for skipped-block CSV logs")

	// DB connectivity
	fs.StringVar(&cfg.DBDriver, "db_driver", envOrDefaultFn(string(db.MySQL), "DB_DRIVER"), "Database driver: mysql, postgres, mssql, or sqlite")
	fs.StringVar(&cfg.DSN, "dsn", getenv("DB_DSN"), "Full DSN; overrides the discrete connection flags")
	fs.StringVar(&cfg.DBUser, "db_user", envOrDefaultFn("", "DB_USER", "USER"), "DB user")
	fs.StringVar(&cfg.DBPassword, "db_password", envOrDefaultFn("", "DB_PASSWORD", "PASS", "PASSWORD"), "DB password")
	fs.StringVar(&cfg.DBHost, "db_host", envOrDefaultFn("localhost", "DB_HOST"), "DB host")
	fs.StringVar(&cfg.DBPort, "db_port", getenv("DB_PORT"), "DB port (default depends on driver)")
	fs.StringVar(&cfg.OrdersDB, "orders_db", envOrDefaultFn("storefront", "ORDERS_DB"), "Database holding the orders tables")
	fs.StringVar(&cfg.CatalogDB, "catalog_db", envOrDefaultFn("music", "CATALOG_DB"), "Database holding the catalog tables")

	// Toggles
	fs.BoolVar(&cfg.CreateTables, "create_tables", boolEnvOrDefaultFn("CREATE_TABLES", false), "Create tables and views before loading")
	fs.StringVar(&cfg.Grouping, "grouping", envOrDefaultFn(GroupingRun, "GROUPING"), "Catalog grouping: run (input sorted by artist, album) or keyed")
	fs.StringVar(&cfg.ReportArtist, "report_artist", envOrDefaultFn("Bob Dylan", "REPORT_ARTIST"), "Artist shown in the album report after a catalog load; empty disables")

	// Metrics
	fs.StringVar(&cfg.MetricsBackend, "metrics_backend", envOrDefaultFn(MetricsNone, "METRICS_BACKEND"), "Metrics backend: none, pushgateway, or datadog")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway_url", getenv("PUSHGATEWAY_URL"), "Prometheus Pushgateway base URL")
	fs.StringVar(&cfg.DogStatsdAddr, "dogstatsd_addr", envOrDefaultFn("127.0.0.1:8125", "DOGSTATSD_ADDR"), "DogStatsD address")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom is LoadFromArgs without extra arguments.
func LoadFrom(fs *flag.FlagSet, getenv func(string) string) (*Config, error) {
	return LoadFromArgs(fs, getenv, nil)
}

// Load is the production entry point: flag.CommandLine, os.Getenv and
// os.Args[1:].
func Load() (*Config, error) {
	return LoadFromArgs(flag.CommandLine, os.Getenv, os.Args[1:])
}

// Validate rejects unknown drivers, grouping modes, and metrics backends,
// and settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	if _, err := db.ParseDialect(c.DBDriver); err != nil {
		errs = append(errs, err)
	}
	switch c.Grouping {
	case GroupingRun, GroupingKeyed:
	default:
		errs = append(errs, fmt.Errorf("unknown grouping %q (want %s or %s)", c.Grouping, GroupingRun, GroupingKeyed))
	}
	switch c.MetricsBackend {
	case MetricsNone, "":
	case MetricsPushgateway:
		if c.PushgatewayURL == "" {
			errs = append(errs, errors.New("metrics_backend=pushgateway requires -pushgateway_url"))
		}
	case MetricsDatadog:
		if c.DogStatsdAddr == "" {
			errs = append(errs, errors.New("metrics_backend=datadog requires -dogstatsd_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown metrics backend %q", c.MetricsBackend))
	}
	if c.DBPort != "" {
		if _, err := strconv.Atoi(c.DBPort); err != nil {
			errs = append(errs, fmt.Errorf("db_port %q is not a number", c.DBPort))
		}
	}
	return errors.Join(errs...)
}

// Dialect returns the parsed DBDriver.
func (c *Config) Dialect() (db.Dialect, error) {
	return db.ParseDialect(c.DBDriver)
}

// DSNFor returns the connection string for database. An explicit DSN is
// returned unchanged.
func (c *Config) DSNFor(database string) (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	d, err := c.Dialect()
	if err != nil {
		return "", err
	}
	port := c.DBPort
	if port == "" {
		port = DefaultPort(d)
	}
	return db.DSN(d, db.ConnParams{
		User:     c.DBUser,
		Password: c.DBPassword,
		Host:     c.DBHost,
		Port:     port,
		Database: database,
	})
}

// DefaultPort is the conventional TCP port for d, or "" for file databases.
func DefaultPort(d db.Dialect) string {
	switch d {
	case db.MySQL:
		return "3306"
	case db.Postgres:
		return "5432"
	case db.SQLServer:
		return "1433"
	default:
		return ""
	}
}

// parseBool accepts "1/0", "true/false", "yes/no", "on/off" in any case.
// Anything else yields d.
func parseBool(v string, d bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}
