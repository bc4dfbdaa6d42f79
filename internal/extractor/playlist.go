package extractor

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"

	"github.com/ytget/yt-relay/internal/model"
)

// DefaultParseTimeout bounds one playlist listing
const DefaultParseTimeout = 60 * time.Second

// A source is a playlist only on the playlist page with a list parameter.
// Watch links that merely carry list= name a single video.
const (
	PlaylistPath  = "/playlist"
	PlaylistParam = "list"
)

// VideoURLTemplate builds the watch URL of a playlist entry
const VideoURLTemplate = "https://www.youtube.com/watch?v=%s"

// Playlists lists playlist items through github.com/ytget/ytdlp/v2
type Playlists struct {
	timeout time.Duration
}

// NewPlaylists creates a playlist lister
func NewPlaylists() *Playlists {
	return &Playlists{
		timeout: DefaultParseTimeout,
	}
}

// SetTimeout sets the timeout for listing operations
func (p *Playlists) SetTimeout(timeout time.Duration) {
	p.timeout = timeout
}

// ListPlaylist returns the entries of the playlist referenced by url, in order
func (p *Playlists) ListPlaylist(ctx context.Context, url string) ([]model.PlaylistEntry, error) {
	if !IsPlaylistURL(url) {
		return nil, fmt.Errorf("%w: not a playlist URL: %s", model.ErrUnsupportedSource, url)
	}

	playlistID := ExtractPlaylistID(url)
	if playlistID == "" {
		return nil, fmt.Errorf("%w: could not extract playlist ID from URL: %s", model.ErrUnsupportedSource, url)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, classifyError(ctx, StageMetadata, err, "")
	}

	entries := make([]model.PlaylistEntry, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		entries = append(entries, model.PlaylistEntry{
			ID:    it.VideoID,
			Title: it.Title,
			URL:   fmt.Sprintf(VideoURLTemplate, it.VideoID),
		})
	}
	return entries, nil
}

// IsPlaylistURL reports whether rawURL is an explicit playlist page
func IsPlaylistURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if strings.TrimSuffix(u.Path, "/") != PlaylistPath {
		return false
	}
	return u.Query().Get(PlaylistParam) != ""
}

// ExtractPlaylistID returns the value of the list query parameter of rawURL
func ExtractPlaylistID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(PlaylistParam)
}
