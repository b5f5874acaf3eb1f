package db

import (
	"errors"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"
	"modernc.org/sqlite"
)

// ErrorCode extracts the vendor error code carried by err, or "" when err did
// not originate in one of the supported drivers.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var my *mysql.MySQLError
	if errors.As(err, &my) {
		return strconv.Itoa(int(my.Number))
	}
	var pg *pgconn.PgError
	if errors.As(err, &pg) {
		return pg.Code
	}
	var ms mssql.Error
	if errors.As(err, &ms) {
		return strconv.Itoa(int(ms.Number))
	}
	var lite *sqlite.Error
	if errors.As(err, &lite) {
		return strconv.Itoa(lite.Code())
	}
	return ""
}
