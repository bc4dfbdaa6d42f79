package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ytget/yt-relay/internal/extractor"
	"github.com/ytget/yt-relay/internal/model"
)

type fakeBackend struct {
	meta  extractor.Metadata
	err   error
	calls int
}

func (f *fakeBackend) ExtractMetadata(ctx context.Context, url string) (extractor.Metadata, error) {
	f.calls++
	return f.meta, f.err
}

func (f *fakeBackend) Download(ctx context.Context, url string, opts extractor.DownloadOptions, progress extractor.ProgressFunc) (*extractor.DownloadResult, error) {
	return nil, errors.New("not used")
}

func sampleMetadata() extractor.Metadata {
	return extractor.Metadata{
		"title":       "Sample Clip",
		"uploader":    "Uploader",
		"duration":    json.Number("125.4"),
		"thumbnail":   "https://img.example/t.jpg",
		"webpage_url": "https://video.example/watch?v=1",
		"formats": []any{
			map[string]any{"format_id": "sb0", "ext": "mhtml", "vcodec": "none", "acodec": "none"},
			map[string]any{"format_id": "140", "ext": "m4a", "vcodec": "none", "acodec": "mp4a.40.2", "format_note": "medium", "filesize": json.Number("3145728"), "abr": "129.5"},
			map[string]any{"format_id": "18", "ext": "mp4", "vcodec": "avc1", "acodec": "mp4a", "resolution": "640x360", "format_note": "360p", "filesize": "", "filesize_approx": 2048},
			map[string]any{"format_id": "137", "ext": "mp4", "vcodec": "avc1", "acodec": "none", "resolution": "1920x1080", "format_note": "1080p", "filesize": json.Number("1073741824"), "width": "1920", "height": 1080.0, "fps": "30"},
			map[string]any{"format_id": "139", "ext": "m4a", "vcodec": "none", "acodec": "mp4a.40.5", "format_note": "low"},
			map[string]any{"format_id": "22", "ext": "mp4", "vcodec": "avc1", "acodec": "mp4a", "resolution": "1280x720", "format_note": "720p", "tbr": "bogus"},
			map[string]any{"format_id": "398", "ext": "mp4", "vcodec": "av01", "resolution": "1280x720", "format_note": "720p60"},
			"not an object",
		},
	}
}

func TestListFormats(t *testing.T) {
	backend := &fakeBackend{meta: sampleMetadata()}
	svc := NewService(backend, nil)

	result, err := svc.ListFormats(context.Background(), "https://video.example/watch?v=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Title != "Sample Clip" || result.Uploader != "Uploader" {
		t.Errorf("unexpected header: %+v", result)
	}
	if result.DurationSeconds == nil || *result.DurationSeconds != 125 {
		t.Errorf("expected duration 125, got %v", result.DurationSeconds)
	}

	// raw string order: "640x360" sorts above "1920x1080"
	expectedOrder := []string{"18", "137", "22", "398", "140", "139"}
	if len(result.Formats) != len(expectedOrder) {
		t.Fatalf("expected %d formats, got %d: %+v", len(expectedOrder), len(result.Formats), result.Formats)
	}
	for i, id := range expectedOrder {
		if result.Formats[i].FormatID != id {
			t.Errorf("position %d: expected format %s, got %s", i, id, result.Formats[i].FormatID)
		}
	}

	seenAudio := false
	for _, f := range result.Formats {
		if f.FormatID == "sb0" {
			t.Error("format without codecs must be dropped")
		}
		if !f.IsVideo {
			seenAudio = true
			if f.Resolution != model.AudioOnlyResolution {
				t.Errorf("audio format %s has resolution %q", f.FormatID, f.Resolution)
			}
		} else if seenAudio {
			t.Errorf("video format %s follows an audio format", f.FormatID)
		}
	}
}

func TestListFormats_Descriptions(t *testing.T) {
	backend := &fakeBackend{meta: sampleMetadata()}
	result, err := NewService(backend, nil).ListFormats(context.Background(), "u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		id          string
		description string
		humanSize   string
		approxSize  int64
	}{
		{"137", "1920x1080 (1080p) [mp4] 1.0 GB", "1.0 GB", 1073741824},
		{"18", "640x360 (360p) [mp4] 2.0 KB", "2.0 KB", 2048},
		{"22", "1280x720 (720p) [mp4] Unknown size", "Unknown size", 0},
		{"140", "Audio medium [m4a] 3.0 MB", "3.0 MB", 3145728},
	}

	for _, tt := range tests {
		f, ok := result.Find(tt.id)
		if !ok {
			t.Fatalf("format %s missing", tt.id)
		}
		if f.Description != tt.description {
			t.Errorf("format %s: expected description %q, got %q", tt.id, tt.description, f.Description)
		}
		if f.HumanSize != tt.humanSize {
			t.Errorf("format %s: expected size %q, got %q", tt.id, tt.humanSize, f.HumanSize)
		}
		switch {
		case tt.approxSize == 0 && f.ApproxSize != nil:
			t.Errorf("format %s: expected no size, got %d", tt.id, *f.ApproxSize)
		case tt.approxSize != 0 && (f.ApproxSize == nil || *f.ApproxSize != tt.approxSize):
			t.Errorf("format %s: expected size %d, got %v", tt.id, tt.approxSize, f.ApproxSize)
		}
	}

	hd, _ := result.Find("137")
	if hd.Width != 1920 || hd.Height != 1080 || hd.FPS != 30 {
		t.Errorf("expected sanitized dimensions, got %dx%d@%d", hd.Width, hd.Height, hd.FPS)
	}
	audio, _ := result.Find("140")
	if audio.ABR != 129.5 {
		t.Errorf("expected abr 129.5, got %v", audio.ABR)
	}
}

func TestListFormats_Defaults(t *testing.T) {
	backend := &fakeBackend{meta: extractor.Metadata{}}
	result, err := NewService(backend, nil).ListFormats(context.Background(), "https://x.example/v")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Title != DefaultTitle {
		t.Errorf("expected default title, got %q", result.Title)
	}
	if result.SourceURL != "https://x.example/v" {
		t.Errorf("expected source url fallback, got %q", result.SourceURL)
	}
	if result.DurationSeconds != nil {
		t.Errorf("expected unknown duration, got %d", *result.DurationSeconds)
	}
	if len(result.Formats) != 0 {
		t.Errorf("expected no formats, got %d", len(result.Formats))
	}
}

func TestListFormats_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		wantIs []error
	}{
		{"extraction passes through", model.ErrExtraction, []error{model.ErrExtraction}},
		{"network is wrapped", model.ErrNetwork, []error{model.ErrExtraction, model.ErrNetwork}},
		{"plain error is wrapped", errors.New("boom"), []error{model.ErrExtraction}},
		{"cancellation passes through", model.ErrCancelled, []error{model.ErrCancelled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{err: tt.err}
			_, err := NewService(backend, nil).ListFormats(context.Background(), "https://unreachable.invalid/")
			for _, target := range tt.wantIs {
				if !errors.Is(err, target) {
					t.Errorf("expected %v to match %v", err, target)
				}
			}
			if backend.calls != 1 {
				t.Errorf("expected one backend call, got %d", backend.calls)
			}
		})
	}
}

func TestBuildFormats_NullCodecsAreDropped(t *testing.T) {
	formats := BuildFormats([]map[string]any{
		{"format_id": "a", "vcodec": nil, "acodec": ""},
		{"format_id": 251, "acodec": "opus"},
	})
	if len(formats) != 1 {
		t.Fatalf("expected 1 format, got %d", len(formats))
	}
	if formats[0].FormatID != "251" || formats[0].IsVideo {
		t.Errorf("unexpected format: %+v", formats[0])
	}
}
