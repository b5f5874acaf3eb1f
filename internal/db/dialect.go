package db

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// Dialect names a supported database engine.
type Dialect string

const (
	MySQL     Dialect = "mysql"
	Postgres  Dialect = "postgres"
	SQLServer Dialect = "mssql"
	SQLite    Dialect = "sqlite"
)

// ParseDialect maps a --db_driver value onto a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case MySQL, Postgres, SQLServer, SQLite:
		return d, nil
	case "sqlserver":
		return SQLServer, nil
	case "pgx", "postgresql":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported db driver %q (want mysql, postgres, mssql, or sqlite)", s)
	}
}

// DriverName is the database/sql driver registered for d. Postgres goes
// through pgx directly and has no database/sql name here.
func (d Dialect) DriverName() string {
	switch d {
	case MySQL:
		return "mysql"
	case SQLServer:
		return "sqlserver"
	case SQLite:
		return "sqlite"
	default:
		return ""
	}
}

// Placeholder returns the bind marker for the 1-based parameter i.
func (d Dialect) Placeholder(i int) string {
	switch d {
	case Postgres:
		return "$" + strconv.Itoa(i)
	case SQLServer:
		return "@p" + strconv.Itoa(i)
	default:
		return "?"
	}
}

// returnsKey reports whether the generated key comes back as a result row
// (RETURNING / OUTPUT) instead of through sql.Result.LastInsertId.
func (d Dialect) returnsKey() bool {
	return d == Postgres || d == SQLServer
}

// InsertSQL renders ins for d. When ins.Key is set on an engine without
// LastInsertId support, the key is requested in the statement itself.
func (d Dialect) InsertSQL(ins Insert) string {
	ph := make([]string, len(ins.Columns))
	for i := range ins.Columns {
		ph[i] = d.Placeholder(i + 1)
	}
	cols := strings.Join(ins.Columns, ", ")
	vals := strings.Join(ph, ", ")

	switch {
	case ins.Key != "" && d == Postgres:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s", ins.Table, cols, vals, ins.Key)
	case ins.Key != "" && d == SQLServer:
		return fmt.Sprintf("INSERT INTO %s (%s) OUTPUT INSERTED.%s VALUES (%s)", ins.Table, cols, ins.Key, vals)
	default:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", ins.Table, cols, vals)
	}
}

// ConnParams are the discrete connection settings used when no full DSN is given.
type ConnParams struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
}

// DSN renders p as a connection string for d.
func DSN(d Dialect, p ConnParams) (string, error) {
	addr := net.JoinHostPort(p.Host, p.Port)
	switch d {
	case MySQL:
		c := mysql.NewConfig()
		c.User = p.User
		c.Passwd = p.Password
		c.Net = "tcp"
		c.Addr = addr
		c.DBName = p.Database
		return c.FormatDSN(), nil

	case Postgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(p.User, p.Password),
			Host:   addr,
			Path:   "/" + p.Database,
		}
		return u.String(), nil

	case SQLServer:
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(p.User, p.Password),
			Host:     addr,
			RawQuery: url.Values{"database": {p.Database}}.Encode(),
		}
		dsn := u.String()
		if _, err := msdsn.Parse(dsn); err != nil {
			return "", fmt.Errorf("mssql dsn: %w", err)
		}
		return dsn, nil

	case SQLite:
		if p.Database == "" {
			return "", fmt.Errorf("sqlite: database file name must not be empty")
		}
		if filepath.Ext(p.Database) == "" {
			return p.Database + ".db", nil
		}
		return p.Database, nil

	default:
		return "", fmt.Errorf("unsupported dialect %q", d)
	}
}
