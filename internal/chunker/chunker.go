// Package chunker splits files that exceed the relay ceiling into numbered
// byte-range parts.
package chunker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ytget/yt-relay/internal/model"
	"github.com/ytget/yt-relay/internal/platform"
)

// SplitDirPrefix names the sibling directory holding the parts
const SplitDirPrefix = "split_"

// Splitter writes parts next to the source file
type Splitter struct {
	logger *slog.Logger
	now    func() time.Time
	open   func(name string) (io.ReadCloser, error)
}

// New creates a splitter
func New(logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{
		logger: logger,
		now:    time.Now,
		open:   func(name string) (io.ReadCloser, error) { return os.Open(name) },
	}
}

// PartCount returns ceil(size / chunkSize), and at least 1
func PartCount(size, chunkSize int64) int {
	if chunkSize <= 0 || size <= chunkSize {
		return 1
	}
	return int((size + chunkSize - 1) / chunkSize)
}

// PartName returns the name of the 1-based part index of base
func PartName(base string, index int) string {
	return fmt.Sprintf("%s.part%03d", base, index)
}

// Split cuts path into chunkSize windows. A file that fits is returned as a
// single part referencing the source itself. Parts of a failed split are
// removed before the error is returned.
func (s *Splitter) Split(path string, chunkSize int64) (model.ChunkSet, error) {
	if chunkSize <= 0 {
		chunkSize = model.MaxPartSize
	}

	info, err := os.Stat(path)
	if err != nil {
		return model.ChunkSet{}, fmt.Errorf("%w: %v", model.ErrIO, err)
	}
	size := info.Size()

	if size <= chunkSize {
		return model.ChunkSet{
			Source: path,
			Parts:  []model.Chunk{{PartPath: path, PartIndex: 1, PartCount: 1, Size: size}},
		}, nil
	}

	s.logger.Info("splitting large file", "path", path, "size", size, "chunk_size", chunkSize)

	dir, err := s.makeSplitDir(filepath.Dir(path))
	if err != nil {
		return model.ChunkSet{}, fmt.Errorf("%w: %v", model.ErrIO, err)
	}

	set, err := s.writeParts(path, dir, size, chunkSize)
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			s.logger.Warn("failed to remove parts of failed split", "dir", dir, "error", rmErr)
		}
		return model.ChunkSet{}, fmt.Errorf("%w: %v", model.ErrIO, err)
	}

	s.logger.Info("split file into chunks", "path", path, "parts", len(set.Parts))
	return set, nil
}

// makeSplitDir creates split_<unix seconds> next to the source, adding a
// suffix when a concurrent split of the same second already owns the name.
func (s *Splitter) makeSplitDir(parent string) (string, error) {
	base := SplitDirPrefix + strconv.FormatInt(s.now().Unix(), 10)
	dir := filepath.Join(parent, base)
	for i := 1; ; i++ {
		err := os.Mkdir(dir, platform.DefaultDirPermissions)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) || i > 100 {
			return "", err
		}
		dir = filepath.Join(parent, fmt.Sprintf("%s_%d", base, i))
	}
}

func (s *Splitter) writeParts(path, dir string, size, chunkSize int64) (model.ChunkSet, error) {
	src, err := s.open(path)
	if err != nil {
		return model.ChunkSet{}, err
	}
	defer src.Close()

	count := PartCount(size, chunkSize)
	base := filepath.Base(path)
	set := model.ChunkSet{Source: path, Dir: dir, Parts: make([]model.Chunk, 0, count)}

	for i := 1; i <= count; i++ {
		partPath := filepath.Join(dir, PartName(base, i))
		written, err := copyPart(src, partPath, chunkSize)
		if err != nil {
			return model.ChunkSet{}, err
		}
		if written == 0 {
			return model.ChunkSet{}, fmt.Errorf("source %s shrank while splitting", path)
		}
		set.Parts = append(set.Parts, model.Chunk{
			PartPath:  partPath,
			PartIndex: i,
			PartCount: count,
			Size:      written,
		})
	}
	return set, nil
}

// copyPart streams up to n bytes from src into a new file at partPath
func copyPart(src io.Reader, partPath string, n int64) (int64, error) {
	dst, err := os.OpenFile(partPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return 0, err
	}

	written, err := io.CopyN(dst, src, n)
	if err != nil && !errors.Is(err, io.EOF) {
		dst.Close()
		return written, err
	}
	if err := dst.Close(); err != nil {
		return written, err
	}
	return written, nil
}
