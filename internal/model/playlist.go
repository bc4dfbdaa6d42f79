package model

// PlaylistEntry is one item of an expanded playlist source
type PlaylistEntry struct {
	ID    string
	Title string
	URL   string
}
