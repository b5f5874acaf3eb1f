package catalog

// albumKey identifies an album within its artist.
type albumKey struct {
	artist string
	album  string
}

// grouper decides whether a record's artist and album can reuse a row that
// was already inserted.
//
// In run mode only the previous record counts: a new artist row is created
// whenever the name differs from the last one, and a new album row whenever
// the album differs or the artist changed. That matches the contract that
// input is sorted by artist then album. Names seen before but not adjacent
// are reported as reappearances; they still get a new row.
//
// In keyed mode every name maps to the first id it was given, so order does
// not matter. On sorted input both modes produce the same rows.
type grouper struct {
	keyed bool

	haveArtist bool
	lastArtist string
	artistID   int64

	haveAlbum bool
	lastAlbum albumKey
	albumID   int64

	artists map[string]int64
	albums  map[albumKey]int64
}

func newGrouper(keyed bool) *grouper {
	return &grouper{
		keyed:   keyed,
		artists: make(map[string]int64),
		albums:  make(map[albumKey]int64),
	}
}

// artist returns the id to reuse for name and ok=true, or ok=false when a
// row must be inserted. reappeared is set in run mode when name was seen
// earlier in a different run.
func (g *grouper) artist(name string) (id int64, ok, reappeared bool) {
	if g.keyed {
		id, ok = g.artists[name]
		return id, ok, false
	}
	if g.haveArtist && g.lastArtist == name {
		return g.artistID, true, false
	}
	_, seen := g.artists[name]
	return 0, false, seen
}

// addArtist records a freshly inserted artist. It ends the current album run.
func (g *grouper) addArtist(name string, id int64) {
	if _, dup := g.artists[name]; !dup {
		g.artists[name] = id
	}
	g.haveArtist, g.lastArtist, g.artistID = true, name, id
	g.haveAlbum = false
}

// album is the album counterpart of artist.
func (g *grouper) album(artist, album string) (id int64, ok, reappeared bool) {
	k := albumKey{artist, album}
	if g.keyed {
		id, ok = g.albums[k]
		return id, ok, false
	}
	if g.haveAlbum && g.lastAlbum == k {
		return g.albumID, true, false
	}
	_, seen := g.albums[k]
	return 0, false, seen
}

func (g *grouper) addAlbum(artist, album string, id int64) {
	k := albumKey{artist, album}
	if _, dup := g.albums[k]; !dup {
		g.albums[k] = id
	}
	g.haveAlbum, g.lastAlbum, g.albumID = true, k, id
}
