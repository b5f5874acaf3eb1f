// Package catalog loads the music catalog file: one song per line, grouped
// into artists and albums. The whole file is one transaction. Artist and
// album rows are inserted as new names come up and their generated keys are
// reused for the following records; songs are queued in a single batch that
// is flushed once after the last line, then everything is committed.
//
// Any error (malformed line, missing key, driver error) rolls the whole file
// back.
package catalog

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"recordloader/internal/db"
	"recordloader/internal/domain"
	"recordloader/internal/metrics"
)

// Job is the metrics job label for this loader.
const Job = "catalog"

var (
	artistInsert = db.Insert{
		Table:   "artists",
		Key:     "artist_id",
		Columns: []string{"artist_name"},
	}
	albumInsert = db.Insert{
		Table:   "albums",
		Key:     "album_id",
		Columns: []string{"album_name", "artist_id"},
	}
	songInsert = db.Insert{
		Table:   "songs",
		Columns: []string{"track_number", "song_title", "album_id"},
	}
)

// Options tune an import run.
type Options struct {
	Logger *log.Logger
	// Keyed deduplicates artists and albums by name regardless of input
	// order. The default reuses a parent only across adjacent records.
	Keyed bool
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// Stats summarizes one import.
type Stats struct {
	Records   int
	Artists   int
	Albums    int
	Songs     int
	Batches   int
	Regrouped int // names that came back after a different run (run mode only)
}

// ImportFile opens path and runs Import over it.
func ImportFile(ctx context.Context, sess *db.Session, path string, opts Options) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()

	done := metrics.Step(Job, "load")
	st, err := Import(ctx, sess, f, opts)
	done(err)
	return st, err
}

// Import loads every record of r inside one transaction on sess.
func Import(ctx context.Context, sess *db.Session, r io.Reader, opts Options) (Stats, error) {
	lg := opts.logger()
	st, err := load(ctx, sess, r, opts, lg)
	if err != nil {
		if rbErr := sess.Rollback(ctx); rbErr != nil {
			lg.Printf("❌ rollback: %v", rbErr)
		}
		metrics.RecordTx(Job, metrics.TxRollback)
		lg.Printf("❌ catalog load failed: %v (code %s); rolled back", err, codeOrUnknown(err))
		return st, err
	}
	metrics.RecordTx(Job, metrics.TxCommit)
	metrics.RecordRow(Job, "records", int64(st.Records))
	metrics.RecordRow(Job, "artists", int64(st.Artists))
	metrics.RecordRow(Job, "albums", int64(st.Albums))
	metrics.RecordRow(Job, "songs", int64(st.Songs))
	metrics.RecordRow(Job, "regrouped", int64(st.Regrouped))
	metrics.RecordBatches(Job, int64(st.Batches))
	return st, nil
}

// loader carries the prepared statements of one import.
type loader struct {
	lg      *log.Logger
	g       *grouper
	artists db.Stmt
	albums  db.Stmt
	songs   db.Batch
	st      *Stats
}

func load(ctx context.Context, sess *db.Session, r io.Reader, opts Options, lg *log.Logger) (Stats, error) {
	var st Stats
	tx, err := sess.Begin(ctx)
	if err != nil {
		return st, err
	}

	artists, err := tx.Prepare(ctx, artistInsert)
	if err != nil {
		return st, err
	}
	defer artists.Close(ctx)
	albums, err := tx.Prepare(ctx, albumInsert)
	if err != nil {
		return st, err
	}
	defer albums.Close(ctx)
	songs, err := tx.NewBatch(ctx, songInsert)
	if err != nil {
		return st, err
	}
	defer songs.Close(ctx)

	l := &loader{lg: lg, g: newGrouper(opts.Keyed), artists: artists, albums: albums, songs: songs, st: &st}
	for rec, err := range Records(r) {
		if err != nil {
			return st, fmt.Errorf("parse catalog: %w", err)
		}
		if err := l.add(ctx, rec); err != nil {
			return st, fmt.Errorf("line %d: %w", rec.Line, err)
		}
	}

	counts, err := songs.Flush(ctx)
	if err != nil {
		return st, fmt.Errorf("insert songs: %w", err)
	}
	if len(counts) > 0 {
		st.Batches++
	}
	lg.Printf("%d songs added", len(counts))

	if err := sess.Commit(ctx); err != nil {
		return st, err
	}
	return st, nil
}

// add resolves the artist and album of rec, inserting them when needed, and
// queues the song.
func (l *loader) add(ctx context.Context, rec domain.CatalogRecord) error {
	l.st.Records++

	artistID, ok, again := l.g.artist(rec.Artist)
	if again {
		l.st.Regrouped++
		l.lg.Printf("⚠️ line %d: artist %q reappears after other artists; input is not sorted, inserting a duplicate", rec.Line, rec.Artist)
	}
	if !ok {
		a := domain.Artist{Name: rec.Artist}
		id, err := l.artists.InsertKey(ctx, a.Name)
		if err != nil {
			return err
		}
		a.ID = id
		artistID = a.ID
		l.g.addArtist(a.Name, a.ID)
		l.st.Artists++
		l.lg.Printf("artist %q: id %d", a.Name, a.ID)
	}

	albumID, ok, again := l.g.album(rec.Artist, rec.Album)
	if again {
		l.st.Regrouped++
		l.lg.Printf("⚠️ line %d: album %q by %q reappears; input is not sorted, inserting a duplicate", rec.Line, rec.Album, rec.Artist)
	}
	if !ok {
		al := domain.Album{Name: rec.Album, ArtistID: artistID}
		id, err := l.albums.InsertKey(ctx, al.Name, al.ArtistID)
		if err != nil {
			return err
		}
		al.ID = id
		albumID = al.ID
		l.g.addAlbum(rec.Artist, al.Name, al.ID)
		l.st.Albums++
		l.lg.Printf("album %q: id %d", al.Name, al.ID)
	}

	song := domain.Song{Track: rec.Track, Title: rec.Title, AlbumID: albumID}
	l.songs.Add(song.Track, song.Title, song.AlbumID)
	l.st.Songs++
	return nil
}

func codeOrUnknown(err error) string {
	if c := db.ErrorCode(err); c != "" {
		return c
	}
	return "unknown"
}
