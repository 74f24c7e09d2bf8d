package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"

	"github.com/gitchzh/Yeguo-IDM/internal/model"
)

// Playlist parsing constants
const (
	DefaultPlaylistTimeout = 60 * time.Second

	PlaylistParam  = "list="
	ParamSeparator = "&"

	YouTubeVideoURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// Playlist title constants
const (
	MinPrefixLength = 10
	PlaylistSuffix  = " Playlist"
)

// PlaylistParser expands a playlist URL into individual video entries
type PlaylistParser struct {
	timeout time.Duration
}

// NewPlaylistParser creates a parser with the default timeout
func NewPlaylistParser() *PlaylistParser {
	return &PlaylistParser{
		timeout: DefaultPlaylistTimeout,
	}
}

// SetTimeout sets the timeout for parsing operations
func (p *PlaylistParser) SetTimeout(timeout time.Duration) {
	p.timeout = timeout
}

// Parse fetches the playlist and returns one entry per video in playlist
// order, ready for submission to the download manager.
func (p *PlaylistParser) Parse(ctx context.Context, url string) (*model.Playlist, error) {
	if !IsPlaylistURL(url) {
		return nil, fmt.Errorf("invalid playlist URL: %s", url)
	}

	playlistID := ExtractPlaylistID(url)
	if playlistID == "" {
		return nil, fmt.Errorf("could not extract playlist ID from URL: %s", url)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	d := ytdlp.New()
	items, err := d.GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	entries := make([]model.PlaylistEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, model.PlaylistEntry{
			VideoID: it.VideoID,
			Title:   it.Title,
			URL:     fmt.Sprintf(YouTubeVideoURLTemplate, it.VideoID),
		})
	}

	return &model.Playlist{
		ID:      playlistID,
		Title:   playlistTitle(entries, playlistID),
		URL:     url,
		Entries: entries,
	}, nil
}

// IsPlaylistURL reports whether the URL carries a playlist parameter
func IsPlaylistURL(url string) bool {
	return strings.Contains(url, PlaylistParam)
}

// ExtractPlaylistID pulls the playlist ID out of the supported URL shapes:
// watch URLs with a list parameter and bare /playlist?list= URLs.
func ExtractPlaylistID(url string) string {
	if !strings.Contains(url, PlaylistParam) {
		return ""
	}

	parts := strings.Split(url, PlaylistParam)
	if len(parts) < 2 {
		return ""
	}

	id := parts[1]
	if strings.Contains(id, ParamSeparator) {
		id = strings.Split(id, ParamSeparator)[0]
	}
	return id
}

// playlistTitle derives a display title from the video titles. With more
// than one video a long shared title prefix usually names the series.
func playlistTitle(entries []model.PlaylistEntry, playlistID string) string {
	if len(entries) == 0 {
		return "Playlist " + playlistID
	}

	if len(entries) > 1 {
		prefix := commonPrefix(entries[0].Title, entries[1].Title)
		if len(prefix) > MinPrefixLength {
			return strings.TrimSpace(prefix) + PlaylistSuffix
		}
	}

	return entries[0].Title + PlaylistSuffix
}

// commonPrefix finds the common prefix between two strings
func commonPrefix(s1, s2 string) string {
	minLen := min(len(s1), len(s2))
	for i := 0; i < minLen; i++ {
		if s1[i] != s2[i] {
			return s1[:i]
		}
	}
	return s1[:minLen]
}
