package db

import (
	"strings"
	"testing"
)

func TestDialect_InsertSQL(t *testing.T) {
	t.Parallel()

	order := Insert{Table: "orders", Key: "order_id", Columns: []string{"order_date"}}
	detail := Insert{Table: "order_details", Columns: []string{"quantity", "item_description", "order_id"}}

	tests := []struct {
		name string
		d    Dialect
		ins  Insert
		want string
	}{
		{"mysql key", MySQL, order, "INSERT INTO orders (order_date) VALUES (?)"},
		{"sqlite key", SQLite, order, "INSERT INTO orders (order_date) VALUES (?)"},
		{"postgres key", Postgres, order, "INSERT INTO orders (order_date) VALUES ($1) RETURNING order_id"},
		{"mssql key", SQLServer, order, "INSERT INTO orders (order_date) OUTPUT INSERTED.order_id VALUES (@p1)"},
		{"mysql batch", MySQL, detail, "INSERT INTO order_details (quantity, item_description, order_id) VALUES (?, ?, ?)"},
		{"postgres batch", Postgres, detail, "INSERT INTO order_details (quantity, item_description, order_id) VALUES ($1, $2, $3)"},
		{"mssql batch", SQLServer, detail, "INSERT INTO order_details (quantity, item_description, order_id) VALUES (@p1, @p2, @p3)"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.d.InsertSQL(tc.ins); got != tc.want {
				t.Fatalf("InsertSQL:\n got %q\nwant %q", got, tc.want)
			}
		})
	}
}

func TestParseDialect(t *testing.T) {
	t.Parallel()

	good := map[string]Dialect{
		"mysql":      MySQL,
		"MySQL":      MySQL,
		"postgres":   Postgres,
		"postgresql": Postgres,
		"pgx":        Postgres,
		"mssql":      SQLServer,
		"sqlserver":  SQLServer,
		" sqlite ":   SQLite,
	}
	for in, want := range good {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Fatalf("ParseDialect(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestDialect_DriverName(t *testing.T) {
	t.Parallel()
	if MySQL.DriverName() != "mysql" || SQLServer.DriverName() != "sqlserver" || SQLite.DriverName() != "sqlite" {
		t.Fatalf("unexpected database/sql driver names")
	}
	if Postgres.DriverName() != "" {
		t.Fatalf("postgres is served by pgx directly")
	}
}

func TestDSN(t *testing.T) {
	t.Parallel()

	p := ConnParams{User: "dev", Password: "s3cret", Host: "localhost", Port: "3306", Database: "storefront"}

	my, err := DSN(MySQL, p)
	if err != nil {
		t.Fatalf("mysql: %v", err)
	}
	if !strings.HasPrefix(my, "dev:s3cret@tcp(localhost:3306)/storefront") {
		t.Fatalf("mysql dsn = %q", my)
	}

	pg, err := DSN(Postgres, ConnParams{User: "dev", Password: "p@ss", Host: "db", Port: "5432", Database: "music"})
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	if pg != "postgres://dev:p%40ss@db:5432/music" {
		t.Fatalf("postgres dsn = %q", pg)
	}

	ms, err := DSN(SQLServer, ConnParams{User: "sa", Password: "pw", Host: "db", Port: "1433", Database: "music"})
	if err != nil {
		t.Fatalf("mssql: %v", err)
	}
	if ms != "sqlserver://sa:pw@db:1433?database=music" {
		t.Fatalf("mssql dsn = %q", ms)
	}

	lite, err := DSN(SQLite, ConnParams{Database: "music"})
	if err != nil || lite != "music.db" {
		t.Fatalf("sqlite dsn = %q, %v", lite, err)
	}
	lite, err = DSN(SQLite, ConnParams{Database: "/tmp/x.sqlite"})
	if err != nil || lite != "/tmp/x.sqlite" {
		t.Fatalf("sqlite dsn with extension = %q, %v", lite, err)
	}
	if _, err := DSN(SQLite, ConnParams{}); err == nil {
		t.Fatalf("expected error for empty sqlite database")
	}
}
