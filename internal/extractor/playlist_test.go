package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/ytget/yt-relay/internal/model"
)

func TestIsPlaylistURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"watch with list", "https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID", false},
		{"mix share link", "https://www.youtube.com/watch?v=a&list=RDa&start_radio=1", false},
		{"playlist page", "https://www.youtube.com/playlist?list=PLAYLIST_ID", true},
		{"mobile playlist page", "https://m.youtube.com/playlist/?list=PLAYLIST_ID", true},
		{"playlist page without id", "https://www.youtube.com/playlist?list=", false},
		{"list inside another parameter", "https://example.com/v/1?blacklist=0", false},
		{"list in fragment", "https://www.youtube.com/playlist#list=PL1", false},
		{"single video", "https://www.youtube.com/watch?v=VIDEO_ID", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPlaylistURL(tt.url); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"playlist page", "https://www.youtube.com/playlist?list=PL123", "PL123"},
		{"with trailing params", "https://www.youtube.com/watch?v=abc&list=PL456&index=2", "PL456"},
		{"with fragment", "https://www.youtube.com/playlist?list=PL789#top", "PL789"},
		{"no list", "https://www.youtube.com/watch?v=abc", ""},
		{"similar parameter", "https://example.com/playlist?blacklist=0", ""},
		{"empty list", "https://www.youtube.com/playlist?list=", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractPlaylistID(tt.url); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestListPlaylist_RejectsNonPlaylist(t *testing.T) {
	p := NewPlaylists()

	_, err := p.ListPlaylist(context.Background(), "https://www.youtube.com/watch?v=abc")
	if !errors.Is(err, model.ErrUnsupportedSource) {
		t.Errorf("expected unsupported source, got %v", err)
	}

	_, err = p.ListPlaylist(context.Background(), "https://www.youtube.com/playlist?list=")
	if !errors.Is(err, model.ErrUnsupportedSource) {
		t.Errorf("expected unsupported source for empty id, got %v", err)
	}
}

func TestSetTimeout(t *testing.T) {
	p := NewPlaylists()
	if p.timeout != DefaultParseTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultParseTimeout, p.timeout)
	}
	p.SetTimeout(0)
	if p.timeout != 0 {
		t.Errorf("expected zero timeout, got %v", p.timeout)
	}
}
