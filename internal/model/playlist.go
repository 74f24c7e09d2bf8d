package model

// PlaylistEntry is a single video discovered while expanding a playlist URL.
// Entries are submitted to the manager as independent tasks.
type PlaylistEntry struct {
	VideoID string
	Title   string
	URL     string
}

// Playlist is the result of expanding a playlist URL
type Playlist struct {
	ID      string
	Title   string
	URL     string
	Entries []PlaylistEntry
}
