// Package report prints what the catalog loader wrote, read back through the
// albumview view.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"recordloader/internal/db"
)

// AlbumView writes every albumview row of artist to w as a table and returns
// the number of rows printed.
func AlbumView(ctx context.Context, conn db.Conn, w io.Writer, artist string) (int, error) {
	q := "SELECT * FROM albumview WHERE artist_name = " + conn.Dialect().Placeholder(1)
	tbl, err := conn.Query(ctx, q, artist)
	if err != nil {
		return 0, fmt.Errorf("query albumview: %w", err)
	}
	if len(tbl.Rows) == 0 {
		fmt.Fprintf(w, "no songs found for %q\n", artist)
		return 0, nil
	}
	if err := render(w, tbl); err != nil {
		return 0, fmt.Errorf("render albumview: %w", err)
	}
	return len(tbl.Rows), nil
}

func render(w io.Writer, tbl *db.Table) error {
	table := tablewriter.NewWriter(w)
	table.Header(tbl.Columns)
	for _, row := range tbl.Rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
