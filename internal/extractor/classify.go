package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ytget/yt-relay/internal/model"
)

// Stage tells classifyError which phase of the pipeline failed
type Stage int

const (
	StageMetadata Stage = iota
	StageDownload
)

var unsupportedMarkers = []string{
	"unsupported url",
	"no video formats found",
	"is not a valid url",
}

var unavailableMarkers = []string{
	"private video",
	"video unavailable",
	"has been removed",
	"this video is not available",
	"sign in to confirm",
	"members-only",
}

var networkMarkers = []string{
	"unable to download webpage",
	"urlopen error",
	"connection reset",
	"connection refused",
	"timed out",
	"temporary failure in name resolution",
	"name or service not known",
	"network is unreachable",
	"http error 5",
	"read timed out",
	"ssl:",
}

// classifyError wraps a backend failure with the matching model error.
// Every metadata stage failure is an extraction error; network failures also
// match model.ErrNetwork so callers may tell them apart.
func classifyError(ctx context.Context, stage Stage, err error, stderr string) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", model.ErrCancelled, err)
	}

	detail := lastErrorLine(stderr)
	if detail == "" {
		detail = err.Error()
	}
	text := strings.ToLower(detail + " " + err.Error())

	var kind error
	switch {
	case containsAny(text, unsupportedMarkers):
		kind = model.ErrUnsupportedSource
	case containsAny(text, unavailableMarkers):
		// content is gone, retrying will not help
	case containsAny(text, networkMarkers), errors.Is(err, context.DeadlineExceeded):
		kind = model.ErrNetwork
	}

	if stage == StageMetadata {
		if kind != nil {
			return fmt.Errorf("%w: %w: %s", model.ErrExtraction, kind, detail)
		}
		return fmt.Errorf("%w: %s", model.ErrExtraction, detail)
	}

	if kind != nil {
		return fmt.Errorf("%w: %s", kind, detail)
	}
	return fmt.Errorf("%w: %s", model.ErrExtraction, detail)
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// lastErrorLine returns the last "ERROR:" line of yt-dlp's stderr
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	return ""
}
