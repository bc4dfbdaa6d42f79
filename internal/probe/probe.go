// Package probe reads media properties from finished files with ffprobe.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/ytget/yt-relay/internal/sizemath"
)

// FFprobe invocation constants
const (
	FFprobeCommand      = "ffprobe"
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=duration:stream=codec_type,width,height,duration"
	FFprobeOutputFormat = "json"
)

// Info holds the properties the relay sink needs for streamable video
type Info struct {
	Duration float64
	Width    int
	Height   int
}

// Prober extracts media properties from a local file
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// FFprobe runs the ffprobe executable
type FFprobe struct {
	command string
	logger  *slog.Logger
}

// New creates an ffprobe runner
func New(logger *slog.Logger) *FFprobe {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFprobe{
		command: FFprobeCommand,
		logger:  logger,
	}
}

// Available reports whether the ffprobe executable is on PATH
func (p *FFprobe) Available() bool {
	_, err := exec.LookPath(p.command)
	return err == nil
}

// Probe returns duration and dimensions of the first video stream of path
func (p *FFprobe) Probe(ctx context.Context, path string) (Info, error) {
	cmd := exec.CommandContext(ctx, p.command, BuildFFprobeArgs(path)...)
	output, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("failed to run ffprobe: %w", err)
	}

	info, err := ParseOutput(output)
	if err != nil {
		return Info{}, err
	}
	p.logger.Debug("probed media file", "path", path, "duration", info.Duration, "width", info.Width, "height", info.Height)
	return info, nil
}

// BuildFFprobeArgs builds the ffprobe command arguments
func BuildFFprobeArgs(path string) []string {
	return []string{
		"-v", FFprobeLogLevel, // Errors only
		"-show_entries", FFprobeShowEntries, // Container duration and stream geometry
		"-of", FFprobeOutputFormat, // Machine readable output
		path,
	}
}

type ffprobeOutput struct {
	Format struct {
		Duration any `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     any    `json:"width"`
		Height    any    `json:"height"`
		Duration  any    `json:"duration"`
	} `json:"streams"`
}

// ParseOutput decodes ffprobe JSON output. Missing fields stay zero.
func ParseOutput(output []byte) (Info, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(output, &out); err != nil {
		return Info{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := Info{Duration: sizemath.ToFloat(out.Format.Duration, 0)}
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.Width = int(sizemath.ToInt(s.Width, 0))
		info.Height = int(sizemath.ToInt(s.Height, 0))
		if info.Duration <= 0 {
			info.Duration = sizemath.ToFloat(s.Duration, 0)
		}
		break
	}
	return info, nil
}
