package platform

import (
	"context"
	"testing"
	"time"

	"github.com/gitchzh/Yeguo-IDM/internal/model"
)

func TestNewPlaylistParser(t *testing.T) {
	parser := NewPlaylistParser()

	if parser == nil {
		t.Fatal("parser should not be nil")
	}

	if parser.timeout != DefaultPlaylistTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultPlaylistTimeout, parser.timeout)
	}
}

func TestPlaylistSetTimeout(t *testing.T) {
	parser := NewPlaylistParser()
	parser.SetTimeout(90 * time.Second)

	if parser.timeout != 90*time.Second {
		t.Errorf("expected timeout %v, got %v", 90*time.Second, parser.timeout)
	}
}

func TestIsPlaylistURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{
			name:     "watch URL with list parameter",
			url:      "https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID",
			expected: true,
		},
		{
			name:     "bare playlist URL",
			url:      "https://www.youtube.com/playlist?list=PLAYLIST_ID",
			expected: true,
		},
		{
			name:     "watch URL with additional parameters",
			url:      "https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID&index=1",
			expected: true,
		},
		{
			name:     "watch URL without list parameter",
			url:      "https://www.youtube.com/watch?v=VIDEO_ID",
			expected: false,
		},
		{
			name:     "empty URL",
			url:      "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsPlaylistURL(tt.url)

			if result != tt.expected {
				t.Errorf("expected %v, got %v for URL: %s", tt.expected, result, tt.url)
			}
		})
	}
}

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		expectedID string
	}{
		{
			name:       "extract playlist ID from watch URL",
			url:        "https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID",
			expectedID: "PLAYLIST_ID",
		},
		{
			name:       "extract playlist ID from playlist URL",
			url:        "https://www.youtube.com/playlist?list=PLAYLIST_ID",
			expectedID: "PLAYLIST_ID",
		},
		{
			name:       "extract playlist ID with trailing parameters",
			url:        "https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID&start_radio=1",
			expectedID: "PLAYLIST_ID",
		},
		{
			name:       "extract playlist ID with multiple trailing parameters",
			url:        "https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID&index=1&t=30",
			expectedID: "PLAYLIST_ID",
		},
		{
			name:       "URL without playlist parameter",
			url:        "https://www.youtube.com/watch?v=VIDEO_ID",
			expectedID: "",
		},
		{
			name:       "URL with empty playlist parameter",
			url:        "https://www.youtube.com/watch?v=VIDEO_ID&list=",
			expectedID: "",
		},
		{
			name:       "empty URL",
			url:        "",
			expectedID: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractPlaylistID(tt.url)

			if result != tt.expectedID {
				t.Errorf("expected playlist ID %q, got %q", tt.expectedID, result)
			}
		})
	}
}

func TestPlaylistTitle(t *testing.T) {
	tests := []struct {
		name     string
		entries  []model.PlaylistEntry
		expected string
	}{
		{
			name:     "no entries falls back to the playlist ID",
			entries:  nil,
			expected: "Playlist PLtest",
		},
		{
			name: "single entry uses its title",
			entries: []model.PlaylistEntry{
				{Title: "Test Video"},
			},
			expected: "Test Video" + PlaylistSuffix,
		},
		{
			name: "long shared prefix names the series",
			entries: []model.PlaylistEntry{
				{Title: "Go Tutorial Part 1"},
				{Title: "Go Tutorial Part 2"},
			},
			expected: "Go Tutorial Part" + PlaylistSuffix,
		},
		{
			name: "short shared prefix falls back to first title",
			entries: []model.PlaylistEntry{
				{Title: "Alpha Video"},
				{Title: "Alternate Cut"},
			},
			expected: "Alpha Video" + PlaylistSuffix,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := playlistTitle(tt.entries, "PLtest")

			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestParseRejectsNonPlaylistURL(t *testing.T) {
	parser := NewPlaylistParser()
	ctx := context.Background()

	_, err := parser.Parse(ctx, "https://www.youtube.com/watch?v=VIDEO_ID")
	if err == nil {
		t.Fatal("expected error for URL without playlist parameter, got nil")
	}

	_, err = parser.Parse(ctx, "https://www.youtube.com/watch?v=VIDEO_ID&list=")
	if err == nil {
		t.Fatal("expected error for empty playlist ID, got nil")
	}
}
