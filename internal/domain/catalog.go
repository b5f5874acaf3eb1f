package domain

// Artist, Album, and Song mirror the music catalog tables.
type Artist struct {
	ID   int64
	Name string
}

type Album struct {
	ID       int64
	Name     string
	ArtistID int64
}

type Song struct {
	Track   int
	Title   string
	AlbumID int64
}

// CatalogRecord is one line of the catalog file.
type CatalogRecord struct {
	Line   int
	Artist string
	Album  string
	Track  int
	Title  string
}
