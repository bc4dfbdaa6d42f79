package coordinator

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ytget/yt-relay/internal/callback"
	"github.com/ytget/yt-relay/internal/model"
)

func TestFormatDuration(t *testing.T) {
	secs := func(v uint) *uint { return &v }
	tests := []struct {
		in   *uint
		want string
	}{
		{nil, "Unknown"},
		{secs(0), "Unknown"},
		{secs(5), "0:05"},
		{secs(125), "2:05"},
		{secs(3600), "1:00:00"},
		{secs(3725), "1:02:05"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration() = %q, want %q", got, tt.want)
		}
	}
}

func TestMenuMessage(t *testing.T) {
	res := &model.CatalogResult{
		Title:    "Clip",
		Uploader: "Someone",
		Formats: []model.FormatDescriptor{
			{FormatID: "137", IsVideo: true, Description: "1080p"},
			{FormatID: "22", IsVideo: true, Description: "720p"},
			{FormatID: "18", IsVideo: true, Description: "360p"},
			{FormatID: "140", Description: "Audio m4a"},
			{FormatID: "139", Description: "Audio low"},
		},
	}

	msg, count := menuMessage(42, res)
	if count != 5 {
		t.Fatalf("Expected 5 buttons, got %d", count)
	}
	if !strings.Contains(msg.Text, "Uploader: Someone") || !strings.Contains(msg.Text, "Duration: Unknown") {
		t.Errorf("Unexpected menu text: %q", msg.Text)
	}

	layout := make([]int, len(msg.Buttons))
	for i, row := range msg.Buttons {
		layout[i] = len(row)
	}
	if fmt.Sprint(layout) != "[2 1 2]" {
		t.Fatalf("Expected rows [2 1 2], got %v", layout)
	}

	first, err := callback.Decode(msg.Buttons[0][0].Data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := callback.SelectFormat{UserID: 42, FormatID: "137", MediaKind: model.KindVideo}
	if first != want {
		t.Errorf("Expected %+v, got %+v", want, first)
	}

	last, _ := callback.Decode(msg.Buttons[2][1].Data)
	if sf, ok := last.(callback.SelectFormat); !ok || sf.FormatID != "139" || sf.MediaKind != model.KindAudio {
		t.Errorf("Expected audio 139 last, got %+v", last)
	}
	if !strings.HasPrefix(msg.Buttons[2][0].Text, "🎵") {
		t.Errorf("Expected audio icon, got %q", msg.Buttons[2][0].Text)
	}
}

func TestMenuMessage_SkipsOversizedFormat(t *testing.T) {
	res := &model.CatalogResult{Formats: []model.FormatDescriptor{
		{FormatID: strings.Repeat("x", 80), IsVideo: true},
		{FormatID: "18", IsVideo: true},
	}}
	msg, count := menuMessage(42, res)
	if count != 1 || len(msg.Buttons) != 1 || len(msg.Buttons[0]) != 1 {
		t.Errorf("Expected a single button, got %d %v", count, msg.Buttons)
	}
}

func TestProgressMessage(t *testing.T) {
	task := model.NewFetchTask("task-1", "https://v.example", "/tmp/x", "137", 42)

	msg := progressMessage("Clip", "137", model.KindVideo, task)
	if !strings.Contains(msg.Text, textWaiting) {
		t.Errorf("Expected waiting text, got %q", msg.Text)
	}
	if len(msg.Buttons) != 1 || msg.Buttons[0][0].Data != "c:42:task-1" {
		t.Errorf("Unexpected cancel button: %+v", msg.Buttons)
	}

	task.UpdateProgress(model.ProgressSnapshot{
		Filename:  "Clip.mp4",
		Percent:   42.5,
		SpeedBPS:  3 * 1024 * 1024,
		ETASec:    83,
		UpdatedAt: task.CreatedAt,
	})
	msg = progressMessage("Clip", "137", model.KindVideo, task)
	for _, want := range []string{"Downloaded: 42.5%", "Speed: 3.0 MB/s", "ETA: 01:23", "Format: 137 (video)"} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("Expected %q in %q", want, msg.Text)
		}
	}
}

func TestPartCaption(t *testing.T) {
	if got := partCaption("Clip", 1, 1); got != "Clip" {
		t.Errorf("Expected plain caption, got %q", got)
	}
	if got := partCaption("Clip", 2, 3); got != "Clip (Part 2/3)" {
		t.Errorf("Expected numbered caption, got %q", got)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("fetch: %w", model.ErrCancelled), "cancelled by user"},
		{fmt.Errorf("%w: %w", model.ErrExtraction, model.ErrUnsupportedSource), "not supported"},
		{fmt.Errorf("%w: %w", model.ErrExtraction, model.ErrNetwork), "Error processing URL"},
		{fmt.Errorf("x: %w", model.ErrFileNotFound), "Failed to download file"},
		{fmt.Errorf("send: %w", model.ErrNetwork), "Network error"},
		{fmt.Errorf("split: %w", model.ErrIO), "Could not prepare"},
		{model.ErrSessionBusy, "already running"},
		{model.ErrSessionExpired, "Session expired"},
		{model.ErrNotAuthorized, "not authorized"},
		{errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		if got := userMessage(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("userMessage(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
	if userMessage(nil) != "" {
		t.Error("Expected empty message for nil error")
	}
}
