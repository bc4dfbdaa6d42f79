package extractor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// DefaultProgressInterval is how often the backend emits progress ticks
const DefaultProgressInterval = 500 * time.Millisecond

// YTDLP drives the yt-dlp executable through go-ytdlp
type YTDLP struct {
	logger           *slog.Logger
	progressInterval time.Duration
}

// NewYTDLP creates a yt-dlp backend
func NewYTDLP(logger *slog.Logger) *YTDLP {
	if logger == nil {
		logger = slog.Default()
	}
	return &YTDLP{
		logger:           logger,
		progressInterval: DefaultProgressInterval,
	}
}

// SetProgressInterval sets the interval between progress ticks
func (y *YTDLP) SetProgressInterval(interval time.Duration) {
	if interval > 0 {
		y.progressInterval = interval
	}
}

// ExtractMetadata dumps the info dictionary of url without fetching media bytes
func (y *YTDLP) ExtractMetadata(ctx context.Context, url string) (Metadata, error) {
	cmd := ytdlp.New().
		SkipDownload().
		DumpJSON().
		NoPlaylist().
		NoCheckCertificates()

	result, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, classifyError(ctx, StageMetadata, err, stderrOf(result))
	}

	meta, err := parseMetadata(result.Stdout)
	if err != nil {
		return nil, classifyError(ctx, StageMetadata, err, "")
	}
	return meta, nil
}

// Download fetches url according to opts, forwarding progress ticks
func (y *YTDLP) Download(ctx context.Context, url string, opts DownloadOptions, progress ProgressFunc) (*DownloadResult, error) {
	dl := ytdlp.New().
		ForceOverwrites().
		Output(opts.OutputTemplate)

	if opts.RestrictFilenames {
		dl.RestrictFilenames()
	}
	if opts.Playlist {
		dl.YesPlaylist()
	} else {
		dl.NoPlaylist()
	}
	if opts.NoCheckCertificates {
		dl.NoCheckCertificates()
	}
	if opts.Format != "" {
		dl.Format(opts.Format)
	}

	var (
		mu       sync.Mutex
		finished []string
		title    string
	)
	dl.ProgressFunc(y.progressInterval, func(update ytdlp.ProgressUpdate) {
		ev := progressEvent(&update)

		mu.Lock()
		if ev.Title != "" && title == "" {
			title = ev.Title
		}
		if ev.Finished && ev.Filename != "" {
			finished = appendUnique(finished, ev.Filename)
		}
		mu.Unlock()

		if progress != nil {
			progress(ev)
		}
	})

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, classifyError(ctx, StageDownload, err, stderrOf(result))
	}

	out := &DownloadResult{Title: title, Media: make(map[string]MediaInfo)}
	if info, err := result.GetExtractedInfo(); err == nil {
		for _, item := range info {
			if item.Filename != nil && *item.Filename != "" {
				out.Files = appendUnique(out.Files, *item.Filename)
				out.Media[*item.Filename] = mediaInfo(item)
			}
			if out.Title == "" && item.Title != nil {
				out.Title = *item.Title
			}
		}
	} else {
		y.logger.Debug("no extracted info in backend output", "url", url, "error", err)
	}

	mu.Lock()
	if len(out.Files) == 0 {
		out.Files = append(out.Files, finished...)
	}
	mu.Unlock()

	return out, nil
}

func progressEvent(update *ytdlp.ProgressUpdate) ProgressEvent {
	ev := ProgressEvent{
		Filename:   update.Filename,
		Downloaded: int64(update.DownloadedBytes),
		Total:      int64(update.TotalBytes),
		Finished:   update.Status == ytdlp.ProgressStatusFinished,
	}

	if !update.Started.IsZero() {
		elapsed := time.Since(update.Started)
		if elapsed.Seconds() > 0 {
			ev.Speed = float64(update.DownloadedBytes) / elapsed.Seconds()
		}
	}

	if eta := update.ETA(); eta > 0 {
		ev.ETA = eta
	}

	if update.Info != nil && update.Info.Title != nil {
		ev.Title = *update.Info.Title
	}
	return ev
}

func mediaInfo(item *ytdlp.ExtractedInfo) MediaInfo {
	var m MediaInfo
	if item.Duration != nil {
		m.Duration = *item.Duration
	}
	if item.ExtractedFormat != nil {
		if item.Width != nil {
			m.Width = int(*item.Width)
		}
		if item.Height != nil {
			m.Height = int(*item.Height)
		}
	}
	return m
}

func stderrOf(result *ytdlp.Result) string {
	if result == nil {
		return ""
	}
	return result.Stderr
}

// parseMetadata decodes the first JSON object in yt-dlp's stdout
func parseMetadata(stdout string) (Metadata, error) {
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}

		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		var meta Metadata
		if err := dec.Decode(&meta); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		return meta, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	return nil, fmt.Errorf("backend returned no metadata")
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
