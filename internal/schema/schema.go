// Package schema holds the DDL for the orders and music catalog databases,
// one literal script per dialect. Every statement is idempotent so Ensure can
// run before each load.
package schema

import (
	"context"
	"fmt"

	"recordloader/internal/db"
)

// Set names a group of tables that belong to one loader.
type Set string

const (
	Orders  Set = "orders"
	Catalog Set = "catalog"
)

// Statements returns the DDL for set on d, in execution order.
func Statements(d db.Dialect, set Set) ([]string, error) {
	var byDialect map[db.Dialect][]string
	switch set {
	case Orders:
		byDialect = ordersDDL
	case Catalog:
		byDialect = catalogDDL
	default:
		return nil, fmt.Errorf("unknown schema set %q", set)
	}
	stmts, ok := byDialect[d]
	if !ok {
		return nil, fmt.Errorf("no %s schema for dialect %q", set, d)
	}
	return stmts, nil
}

// Ensure creates the tables (and views) of set on conn.
func Ensure(ctx context.Context, conn db.Conn, set Set) error {
	stmts, err := Statements(conn.Dialect(), set)
	if err != nil {
		return err
	}
	for i, s := range stmts {
		if err := conn.Exec(ctx, s); err != nil {
			return fmt.Errorf("%s schema statement %d: %w", set, i+1, err)
		}
	}
	return nil
}

var ordersDDL = map[db.Dialect][]string{
	db.MySQL: {`
	CREATE TABLE IF NOT EXISTS orders (
		order_id INT AUTO_INCREMENT PRIMARY KEY,
		order_date DATETIME NOT NULL
	)`, `
	CREATE TABLE IF NOT EXISTS order_details (
		order_detail_id INT AUTO_INCREMENT PRIMARY KEY,
		quantity INT NOT NULL,
		item_description VARCHAR(255),
		order_id INT NOT NULL,
		FOREIGN KEY (order_id) REFERENCES orders(order_id)
	)`},

	db.Postgres: {`
	CREATE TABLE IF NOT EXISTS orders (
		order_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		order_date TIMESTAMP NOT NULL
	)`, `
	CREATE TABLE IF NOT EXISTS order_details (
		order_detail_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		quantity INT NOT NULL,
		item_description TEXT,
		order_id BIGINT NOT NULL REFERENCES orders(order_id)
	)`},

	db.SQLServer: {`
	IF OBJECT_ID(N'orders', N'U') IS NULL
	CREATE TABLE orders (
		order_id INT IDENTITY(1,1) PRIMARY KEY,
		order_date DATETIME2 NOT NULL
	)`, `
	IF OBJECT_ID(N'order_details', N'U') IS NULL
	CREATE TABLE order_details (
		order_detail_id INT IDENTITY(1,1) PRIMARY KEY,
		quantity INT NOT NULL,
		item_description NVARCHAR(255),
		order_id INT NOT NULL REFERENCES orders(order_id)
	)`},

	db.SQLite: {`
	CREATE TABLE IF NOT EXISTS orders (
		order_id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_date DATETIME NOT NULL
	)`, `
	CREATE TABLE IF NOT EXISTS order_details (
		order_detail_id INTEGER PRIMARY KEY AUTOINCREMENT,
		quantity INTEGER NOT NULL,
		item_description TEXT,
		order_id INTEGER NOT NULL REFERENCES orders(order_id)
	)`},
}

var catalogDDL = map[db.Dialect][]string{
	db.MySQL: {`
	CREATE TABLE IF NOT EXISTS artists (
		artist_id INT AUTO_INCREMENT PRIMARY KEY,
		artist_name VARCHAR(255) NOT NULL
	)`, `
	CREATE TABLE IF NOT EXISTS albums (
		album_id INT AUTO_INCREMENT PRIMARY KEY,
		album_name VARCHAR(255) NOT NULL,
		artist_id INT NOT NULL,
		FOREIGN KEY (artist_id) REFERENCES artists(artist_id)
	)`, `
	CREATE TABLE IF NOT EXISTS songs (
		song_id INT AUTO_INCREMENT PRIMARY KEY,
		track_number INT NOT NULL,
		song_title VARCHAR(255) NOT NULL,
		album_id INT NOT NULL,
		FOREIGN KEY (album_id) REFERENCES albums(album_id)
	)`, `
	CREATE OR REPLACE VIEW albumview AS
	SELECT ar.artist_name, al.album_name, s.track_number, s.song_title
	FROM songs s
	JOIN albums al ON s.album_id = al.album_id
	JOIN artists ar ON al.artist_id = ar.artist_id`},

	db.Postgres: {`
	CREATE TABLE IF NOT EXISTS artists (
		artist_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		artist_name TEXT NOT NULL
	)`, `
	CREATE TABLE IF NOT EXISTS albums (
		album_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		album_name TEXT NOT NULL,
		artist_id BIGINT NOT NULL REFERENCES artists(artist_id)
	)`, `
	CREATE TABLE IF NOT EXISTS songs (
		song_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		track_number INT NOT NULL,
		song_title TEXT NOT NULL,
		album_id BIGINT NOT NULL REFERENCES albums(album_id)
	)`, `
	CREATE OR REPLACE VIEW albumview AS
	SELECT ar.artist_name, al.album_name, s.track_number, s.song_title
	FROM songs s
	JOIN albums al ON s.album_id = al.album_id
	JOIN artists ar ON al.artist_id = ar.artist_id`},

	db.SQLServer: {`
	IF OBJECT_ID(N'artists', N'U') IS NULL
	CREATE TABLE artists (
		artist_id INT IDENTITY(1,1) PRIMARY KEY,
		artist_name NVARCHAR(255) NOT NULL
	)`, `
	IF OBJECT_ID(N'albums', N'U') IS NULL
	CREATE TABLE albums (
		album_id INT IDENTITY(1,1) PRIMARY KEY,
		album_name NVARCHAR(255) NOT NULL,
		artist_id INT NOT NULL REFERENCES artists(artist_id)
	)`, `
	IF OBJECT_ID(N'songs', N'U') IS NULL
	CREATE TABLE songs (
		song_id INT IDENTITY(1,1) PRIMARY KEY,
		track_number INT NOT NULL,
		song_title NVARCHAR(255) NOT NULL,
		album_id INT NOT NULL REFERENCES albums(album_id)
	)`, `
	CREATE OR ALTER VIEW albumview AS
	SELECT ar.artist_name, al.album_name, s.track_number, s.song_title
	FROM songs s
	JOIN albums al ON s.album_id = al.album_id
	JOIN artists ar ON al.artist_id = ar.artist_id`},

	db.SQLite: {`
	CREATE TABLE IF NOT EXISTS artists (
		artist_id INTEGER PRIMARY KEY AUTOINCREMENT,
		artist_name TEXT NOT NULL
	)`, `
	CREATE TABLE IF NOT EXISTS albums (
		album_id INTEGER PRIMARY KEY AUTOINCREMENT,
		album_name TEXT NOT NULL,
		artist_id INTEGER NOT NULL REFERENCES artists(artist_id)
	)`, `
	CREATE TABLE IF NOT EXISTS songs (
		song_id INTEGER PRIMARY KEY AUTOINCREMENT,
		track_number INTEGER NOT NULL,
		song_title TEXT NOT NULL,
		album_id INTEGER NOT NULL REFERENCES albums(album_id)
	)`, `
	CREATE VIEW IF NOT EXISTS albumview AS
	SELECT ar.artist_name, al.album_name, s.track_number, s.song_title
	FROM songs s
	JOIN albums al ON s.album_id = al.album_id
	JOIN artists ar ON al.artist_id = ar.artist_id`},
}
