package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ytget/yt-relay/internal/extractor"
	"github.com/ytget/yt-relay/internal/model"
	"github.com/ytget/yt-relay/internal/platform"
	"github.com/ytget/yt-relay/internal/probe"
	"github.com/ytget/yt-relay/internal/sizemath"
)

// OutputTemplate is the backend file naming template inside a task directory
const OutputTemplate = "%(title)s.%(ext)s"

// DefaultRetryDelay is the backoff between network retries
const DefaultRetryDelay = 2 * time.Second

// Engine executes fetch tasks
type Engine struct {
	backend     extractor.Backend
	playlists   extractor.PlaylistLister
	prober      probe.Prober
	logger      *slog.Logger
	maxPartSize int64
	retries     int
	retryDelay  time.Duration
	checkCerts  bool
}

// Option configures an Engine
type Option func(*Engine)

// WithPlaylists enables playlist expansion through lister
func WithPlaylists(lister extractor.PlaylistLister) Option {
	return func(e *Engine) { e.playlists = lister }
}

// WithProber fills media properties of finished files through prober
func WithProber(prober probe.Prober) Option {
	return func(e *Engine) { e.prober = prober }
}

// WithMaxPartSize sets the size above which a FileResult needs splitting
func WithMaxPartSize(size int64) Option {
	return func(e *Engine) {
		if size > 0 {
			e.maxPartSize = size
		}
	}
}

// WithRetries retries network failures up to n times, waiting delay between attempts
func WithRetries(n int, delay time.Duration) Option {
	return func(e *Engine) {
		e.retries = max(n, 0)
		e.retryDelay = delay
	}
}

// WithCertificateChecks turns TLS certificate validation back on
func WithCertificateChecks() Option {
	return func(e *Engine) { e.checkCerts = true }
}

// NewEngine creates a fetch engine on top of backend
func NewEngine(backend extractor.Backend, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		backend:     backend,
		logger:      logger,
		maxPartSize: model.MaxPartSize,
		retryDelay:  DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// target is one URL the backend has to fetch
type target struct {
	url      string
	title    string
	playlist bool
}

// Fetch downloads task.URL into task.OutputDir. It returns one FileResult per
// produced file, in source order. A cancelled fetch returns no results and
// an error matching model.ErrCancelled.
func (e *Engine) Fetch(ctx context.Context, task *model.FetchTask) ([]model.FileResult, error) {
	if task.Cancelled() || ctx.Err() != nil {
		task.SetStatus(model.TaskStatusCancelled)
		return nil, fmt.Errorf("fetch %s: %w", task.ID, model.ErrCancelled)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	task.BindCancel(cancel)

	task.SetStatus(model.TaskStatusDownloading)
	e.logger.Info("fetch started", "task", task.ID, "url", task.URL, "format", task.FormatID)

	results, err := e.run(ctx, task)
	if err != nil {
		return nil, e.abort(task, err)
	}

	// a cancel that raced the last tick still wins
	if !task.Finish() {
		return nil, e.abort(task, model.ErrCancelled)
	}

	e.logger.Info("fetch finished", "task", task.ID, "files", len(results))
	return results, nil
}

func (e *Engine) run(ctx context.Context, task *model.FetchTask) ([]model.FileResult, error) {
	if err := platform.CreateDirectoryIfNotExists(task.OutputDir); err != nil {
		return nil, fmt.Errorf("%w: failed to create output directory: %v", model.ErrIO, err)
	}

	targets := e.expand(ctx, task)

	var results []model.FileResult
	seen := make(map[string]bool)
	for _, tgt := range targets {
		if task.Cancelled() {
			return nil, model.ErrCancelled
		}

		produced, err := e.fetchTarget(ctx, task, tgt, seen)
		if err != nil {
			return nil, err
		}
		results = append(results, produced...)
	}
	return results, nil
}

// expand turns a playlist URL into its entries. Without a lister, or when
// listing fails, the backend expands the playlist itself.
func (e *Engine) expand(ctx context.Context, task *model.FetchTask) []target {
	if !extractor.IsPlaylistURL(task.URL) {
		return []target{{url: task.URL}}
	}
	if e.playlists == nil {
		return []target{{url: task.URL, playlist: true}}
	}

	entries, err := e.playlists.ListPlaylist(ctx, task.URL)
	if err != nil || len(entries) == 0 {
		e.logger.Warn("playlist listing failed, letting the backend expand it", "task", task.ID, "url", task.URL, "error", err)
		return []target{{url: task.URL, playlist: true}}
	}

	targets := make([]target, 0, len(entries))
	for _, entry := range entries {
		targets = append(targets, target{url: entry.URL, title: entry.Title})
	}
	e.logger.Info("playlist expanded", "task", task.ID, "entries", len(targets))
	return targets
}

func (e *Engine) fetchTarget(ctx context.Context, task *model.FetchTask, tgt target, seen map[string]bool) ([]model.FileResult, error) {
	opts := extractor.DownloadOptions{
		OutputTemplate:      filepath.Join(task.OutputDir, OutputTemplate),
		RestrictFilenames:   true,
		Playlist:            tgt.playlist,
		NoCheckCertificates: !e.checkCerts,
		Format:              task.FormatID,
	}

	result, err := e.downloadWithRetry(ctx, task, tgt.url, opts)
	if err != nil {
		return nil, err
	}

	resolved, err := e.resolveFiles(task, result, seen)
	if err != nil {
		return nil, err
	}

	title := result.Title
	if title == "" {
		title = tgt.title
	}

	files := make([]model.FileResult, 0, len(resolved))
	for _, rf := range resolved {
		fr, err := e.describe(ctx, rf, title, task.Caption)
		if err != nil {
			return nil, err
		}
		files = append(files, fr)
	}
	return files, nil
}

// downloadWithRetry attempts download with retry logic
func (e *Engine) downloadWithRetry(ctx context.Context, task *model.FetchTask, url string, opts extractor.DownloadOptions) (*extractor.DownloadResult, error) {
	var lastErr error

	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(e.retryDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", model.ErrCancelled, ctx.Err())
			}
			e.logger.Info("retrying download", "task", task.ID, "attempt", attempt+1)
		}

		result, err := e.backend.Download(ctx, url, opts, e.progressFunc(task))
		if err == nil {
			return result, nil
		}

		lastErr = err
		e.logger.Warn("download attempt failed", "task", task.ID, "attempt", attempt+1, "error", err)

		if ctx.Err() != nil || task.Cancelled() {
			return nil, fmt.Errorf("%w: %v", model.ErrCancelled, err)
		}
		if !errors.Is(err, model.ErrNetwork) {
			break
		}
	}

	return nil, lastErr
}

// progressFunc updates the task snapshot on every backend tick and aborts the
// backend once the task's cancellation flag is observed.
func (e *Engine) progressFunc(task *model.FetchTask) extractor.ProgressFunc {
	return func(ev extractor.ProgressEvent) {
		if task.Cancelled() {
			task.Interrupt()
			return
		}

		percent := 0.0
		if sizemath.GreaterThan(ev.Total, 0) {
			percent = float64(ev.Downloaded) / float64(ev.Total) * 100
		}
		eta := -1
		if ev.ETA > 0 {
			eta = int(ev.ETA.Seconds())
		}

		task.UpdateProgress(model.ProgressSnapshot{
			Filename:        ev.Filename,
			DownloadedBytes: ev.Downloaded,
			TotalBytes:      ev.Total,
			SpeedBPS:        ev.Speed,
			ETASec:          eta,
			Percent:         percent,
			UpdatedAt:       time.Now(),
		})
		e.logger.Debug("download progress", "task", task.ID, "file", ev.Filename, "percent", percent)
	}
}

// resolvedFile is a produced file on disk with the media properties the
// backend reported for it
type resolvedFile struct {
	path  string
	media extractor.MediaInfo
}

// resolveFiles maps the backend's reported files onto disk. When the backend
// reports nothing, every finished file in the task directory counts.
func (e *Engine) resolveFiles(task *model.FetchTask, result *extractor.DownloadResult, seen map[string]bool) ([]resolvedFile, error) {
	var files []resolvedFile
	if result != nil {
		for _, reported := range result.Files {
			f := reported
			if !filepath.IsAbs(f) && filepath.Dir(f) == "." {
				f = filepath.Join(task.OutputDir, f)
			}
			resolved, err := platform.FindFileWithFallback(f)
			if err != nil {
				return nil, err
			}
			if !seen[resolved] {
				seen[resolved] = true
				files = append(files, resolvedFile{path: resolved, media: result.Media[reported]})
			}
		}
	}

	if len(files) == 0 {
		found, err := platform.FindMediaFiles(task.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrFileNotFound, err)
		}
		for _, p := range found {
			if !seen[p] {
				seen[p] = true
				files = append(files, resolvedFile{path: p})
			}
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files were downloaded for %s", model.ErrFileNotFound, task.URL)
	}
	return files, nil
}

// describe builds the FileResult of a finished file. Backend media
// properties come first; the prober fills whatever is still unknown.
func (e *Engine) describe(ctx context.Context, rf resolvedFile, title, customCaption string) (model.FileResult, error) {
	path := rf.path
	info, err := os.Stat(path)
	if err != nil {
		return model.FileResult{}, fmt.Errorf("%w: %v", model.ErrFileNotFound, err)
	}

	caption := customCaption
	if caption == "" {
		caption = title
	}
	if caption == "" {
		caption = filepath.Base(path)
	}

	fr := model.FileResult{
		Path:       path,
		FileName:   filepath.Base(path),
		SizeBytes:  info.Size(),
		Caption:    caption,
		NeedsSplit: sizemath.GreaterThan(info.Size(), e.maxPartSize),
		Duration:   rf.media.Duration,
		Width:      rf.media.Width,
		Height:     rf.media.Height,
	}

	if e.prober == nil || rf.media.Complete() {
		return fr, nil
	}

	pi, err := e.prober.Probe(ctx, path)
	if err != nil {
		e.logger.Warn("media probe failed", "path", path, "error", err)
		return fr, nil
	}
	if fr.Duration <= 0 {
		fr.Duration = pi.Duration
	}
	if fr.Width <= 0 {
		fr.Width = pi.Width
	}
	if fr.Height <= 0 {
		fr.Height = pi.Height
	}
	return fr, nil
}

// abort records the terminal state of a failed or cancelled fetch and purges
// partial downloads from the task directory.
func (e *Engine) abort(task *model.FetchTask, err error) error {
	cancelled := task.Cancelled() || errors.Is(err, model.ErrCancelled) || errors.Is(err, context.Canceled)

	if removed, perr := platform.RemovePartialFiles(task.OutputDir); perr != nil {
		e.logger.Warn("failed to purge partial files", "task", task.ID, "error", perr)
	} else if removed > 0 {
		e.logger.Debug("purged partial files", "task", task.ID, "count", removed)
	}

	if cancelled {
		task.SetStatus(model.TaskStatusCancelled)
		e.logger.Info("fetch cancelled", "task", task.ID)
		if errors.Is(err, model.ErrCancelled) {
			return fmt.Errorf("fetch %s: %w", task.ID, err)
		}
		return fmt.Errorf("fetch %s: %w", task.ID, model.ErrCancelled)
	}

	task.Fail(err)
	e.logger.Error("fetch failed", "task", task.ID, "error", err)
	return fmt.Errorf("fetch %s: %w", task.ID, err)
}
