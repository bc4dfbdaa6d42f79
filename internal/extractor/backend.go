// Package extractor adapts yt-dlp style extraction backends. It exposes a
// metadata-only lookup, a byte download with progress ticks and playlist
// expansion, and maps backend failures onto the model error taxonomy.
package extractor

import (
	"context"
	"time"

	"github.com/ytget/yt-relay/internal/model"
)

// Metadata is the raw info dictionary reported by the backend. Numeric fields
// are untrusted and must go through sizemath before use.
type Metadata map[string]any

// Formats returns the raw stream list, skipping entries that are not objects
func (m Metadata) Formats() []map[string]any {
	raw, ok := m["formats"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if entry, ok := item.(map[string]any); ok {
			out = append(out, entry)
		}
	}
	return out
}

// String returns the string field key or ""
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// DownloadOptions configures one backend download
type DownloadOptions struct {
	OutputTemplate      string
	RestrictFilenames   bool
	Playlist            bool
	NoCheckCertificates bool
	Format              string // empty selects the backend default
}

// ProgressEvent is one backend progress tick
type ProgressEvent struct {
	Filename   string
	Title      string
	Downloaded int64
	Total      int64 // 0 when unknown
	Speed      float64
	ETA        time.Duration
	Finished   bool
}

// ProgressFunc receives progress ticks. It is called from the backend's goroutine.
type ProgressFunc func(ProgressEvent)

// MediaInfo holds the media properties the backend knows for one file.
// Zero values mean unknown.
type MediaInfo struct {
	Duration float64
	Width    int
	Height   int
}

// Complete reports whether every property is known
func (m MediaInfo) Complete() bool {
	return m.Duration > 0 && m.Width > 0 && m.Height > 0
}

// DownloadResult lists what the backend reports it produced
type DownloadResult struct {
	Files []string
	Title string
	Media map[string]MediaInfo // keyed by reported file
}

// Backend is the extraction/download capability the pipeline depends on
type Backend interface {
	ExtractMetadata(ctx context.Context, url string) (Metadata, error)
	Download(ctx context.Context, url string, opts DownloadOptions, progress ProgressFunc) (*DownloadResult, error)
}

// PlaylistLister expands a playlist URL into its entries
type PlaylistLister interface {
	ListPlaylist(ctx context.Context, url string) ([]model.PlaylistEntry, error)
}
