// Package catalog resolves the downloadable formats of a source URL.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ytget/yt-relay/internal/extractor"
	"github.com/ytget/yt-relay/internal/model"
	"github.com/ytget/yt-relay/internal/sizemath"
)

// DefaultTimeout bounds one metadata lookup
const DefaultTimeout = 60 * time.Second

// Defaults for fields the backend leaves out
const (
	DefaultTitle      = "Unknown"
	DefaultResolution = "N/A"
	codecNone         = "none"
)

// Service builds format menus from backend metadata
type Service struct {
	backend extractor.Backend
	logger  *slog.Logger
	timeout time.Duration
}

// NewService creates a catalog service on top of backend
func NewService(backend extractor.Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: backend,
		logger:  logger,
		timeout: DefaultTimeout,
	}
}

// SetTimeout sets the timeout of metadata lookups. Zero disables it.
func (s *Service) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// ListFormats queries url in metadata-only mode and returns its format menu:
// video formats by descending resolution, then audio formats in backend order.
func (s *Service) ListFormats(ctx context.Context, url string) (*model.CatalogResult, error) {
	s.logger.Info("fetching available formats", "url", url)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	meta, err := s.backend.ExtractMetadata(ctx, url)
	if err != nil {
		s.logger.Error("error fetching formats", "url", url, "error", err)
		if errors.Is(err, model.ErrExtraction) || errors.Is(err, model.ErrCancelled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", model.ErrExtraction, err)
	}

	result := &model.CatalogResult{
		Title:        stringField(meta, "title", DefaultTitle),
		Uploader:     stringField(meta, "uploader", ""),
		ThumbnailURL: stringField(meta, "thumbnail", ""),
		SourceURL:    stringField(meta, "webpage_url", url),
		Formats:      BuildFormats(meta.Formats()),
	}

	if duration := sizemath.ToFloat(meta["duration"], -1); duration >= 0 {
		d := uint(duration)
		result.DurationSeconds = &d
	}

	return result, nil
}

// BuildFormats classifies raw stream entries, drops those with neither a video
// nor an audio codec and orders the rest for the menu.
func BuildFormats(raw []map[string]any) []model.FormatDescriptor {
	var videos, audios []model.FormatDescriptor

	for _, entry := range raw {
		entry = sizemath.SanitizeNumeric(entry)

		vcodec := codec(entry, "vcodec")
		acodec := codec(entry, "acodec")
		if vcodec == codecNone && acodec == codecNone {
			continue
		}

		f := describe(entry)
		note := stringField(entry, "format_note", "")
		if vcodec != codecNone {
			f.IsVideo = true
			f.Resolution = stringField(entry, "resolution", DefaultResolution)
			f.Description = fmt.Sprintf("%s (%s) [%s] %s", f.Resolution, note, f.Container, f.HumanSize)
			videos = append(videos, f)
			continue
		}

		f.Resolution = model.AudioOnlyResolution
		f.Description = fmt.Sprintf("Audio %s [%s] %s", note, f.Container, f.HumanSize)
		audios = append(audios, f)
	}

	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].Resolution > videos[j].Resolution
	})

	return append(videos, audios...)
}

func describe(entry map[string]any) model.FormatDescriptor {
	f := model.FormatDescriptor{
		FormatID:  idField(entry["format_id"]),
		Container: stringField(entry, "ext", ""),
		Width:     int(sizemath.ToInt(entry["width"], 0)),
		Height:    int(sizemath.ToInt(entry["height"], 0)),
		FPS:       int(sizemath.ToInt(entry["fps"], 0)),
		TBR:       sizemath.ToFloat(entry["tbr"], 0),
		ABR:       sizemath.ToFloat(entry["abr"], 0),
		VBR:       sizemath.ToFloat(entry["vbr"], 0),
	}

	size := sizemath.ToInt(entry["filesize"], 0)
	if !sizemath.GreaterThan(size, 0) {
		size = sizemath.ToInt(entry["filesize_approx"], 0)
	}
	if sizemath.GreaterThan(size, 0) {
		f.ApproxSize = &size
	}
	f.HumanSize = sizemath.FormatFileSize(size)
	return f
}

func codec(entry map[string]any, key string) string {
	c := strings.TrimSpace(stringField(entry, key, codecNone))
	if c == "" {
		return codecNone
	}
	return c
}

func stringField(m map[string]any, key, def string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return def
}

func idField(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
