package extractor

import (
	"encoding/json"
	"testing"

	"github.com/lrstanley/go-ytdlp"
)

func TestParseMetadata(t *testing.T) {
	stdout := "\n[debug] ignored\n" +
		`{"title":"Clip","uploader":"Someone","duration":61.5,"formats":[{"format_id":"18","filesize":1024},"junk"]}` +
		"\n" + `{"title":"Second"}` + "\n"

	meta, err := parseMetadata(stdout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if meta.String("title") != "Clip" {
		t.Errorf("expected first object, got title %q", meta.String("title"))
	}
	if _, ok := meta["duration"].(json.Number); !ok {
		t.Errorf("expected numbers to decode as json.Number, got %T", meta["duration"])
	}

	formats := meta.Formats()
	if len(formats) != 1 {
		t.Fatalf("expected 1 format object, got %d", len(formats))
	}
	if formats[0]["format_id"] != "18" {
		t.Errorf("unexpected format: %v", formats[0])
	}
}

func TestParseMetadata_Empty(t *testing.T) {
	tests := []string{"", "   \n", "[info] nothing to see"}
	for _, stdout := range tests {
		if _, err := parseMetadata(stdout); err == nil {
			t.Errorf("expected error for %q", stdout)
		}
	}
}

func TestParseMetadata_Malformed(t *testing.T) {
	if _, err := parseMetadata(`{"title": `); err == nil {
		t.Error("expected decode error")
	}
}

func TestMetadata_FormatsMissing(t *testing.T) {
	if got := (Metadata{"formats": "nope"}).Formats(); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
	if got := (Metadata{}).String("title"); got != "" {
		t.Errorf("expected empty title, got %q", got)
	}
}

func TestAppendUnique(t *testing.T) {
	list := appendUnique(nil, "a")
	list = appendUnique(list, "b")
	list = appendUnique(list, "a")
	if len(list) != 2 || list[0] != "a" || list[1] != "b" {
		t.Errorf("unexpected list: %v", list)
	}
}

func TestMediaInfo(t *testing.T) {
	duration, width, height := 61.5, 1280.0, 720.0

	full := &ytdlp.ExtractedInfo{
		Duration:        &duration,
		ExtractedFormat: &ytdlp.ExtractedFormat{Width: &width, Height: &height},
	}
	got := mediaInfo(full)
	if got != (MediaInfo{Duration: 61.5, Width: 1280, Height: 720}) {
		t.Errorf("unexpected media info: %+v", got)
	}
	if !got.Complete() {
		t.Error("expected complete media info")
	}

	partial := mediaInfo(&ytdlp.ExtractedInfo{Duration: &duration})
	if partial.Duration != 61.5 || partial.Width != 0 || partial.Height != 0 {
		t.Errorf("unexpected partial media info: %+v", partial)
	}
	if partial.Complete() {
		t.Error("expected incomplete media info without a format")
	}
}
