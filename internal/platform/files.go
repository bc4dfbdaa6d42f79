package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ytget/yt-relay/internal/model"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// File length thresholds
const (
	MinFileNameLength = 10
	MaxNameDifference = 10
)

// Scoring system constants
const (
	ScoreForLongName   = 3
	ScoreForSpaces     = 2
	ScoreForSeparators = 1
	LongFileNameLength = 20
)

// File extensions left behind by interrupted downloads
var (
	SkippedExtensions = []string{".part", ".ytdl", ".temp", ".tmp"}
)

// fragmentMarker appears in the names of fragment files of segmented streams
const fragmentMarker = ".part-Frag"

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// TaskDirName returns the timestamp-derived directory name of a task started at t
func TaskDirName(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

// IsPartialFile reports whether name belongs to an unfinished download
func IsPartialFile(name string) bool {
	if strings.Contains(name, fragmentMarker) {
		return true
	}
	for _, ext := range SkippedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// FindFileWithFallback tries to find a file by its original path, and if not found,
// searches for files with similar names in the same directory. The backend may
// change the extension after merging streams, so candidates with the same base
// name and another extension are accepted too.
func FindFileWithFallback(filePath string) (string, error) {
	if filePath == "" {
		return "", fmt.Errorf("%w: file path is empty", model.ErrFileNotFound)
	}

	if strings.HasPrefix(filePath, "http://") || strings.HasPrefix(filePath, "https://") {
		return "", fmt.Errorf("%w: file path appears to be a URL: %s", model.ErrFileNotFound, filePath)
	}

	if info, err := os.Stat(filePath); err == nil && info.Mode().IsRegular() {
		return filePath, nil
	}

	dir := filepath.Dir(filePath)
	originalName := filepath.Base(filePath)
	originalExt := filepath.Ext(originalName)
	baseName := strings.TrimSuffix(originalName, originalExt)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read directory %s: %v", model.ErrFileNotFound, dir, err)
	}

	var sameExt, otherExt []string
	for _, entry := range entries {
		if entry.IsDir() || IsPartialFile(entry.Name()) {
			continue
		}

		entryName := entry.Name()
		entryExt := filepath.Ext(entryName)
		entryBase := strings.TrimSuffix(entryName, entryExt)

		if !isSimilarFileName(entryBase, baseName) {
			continue
		}
		if entryExt == originalExt {
			sameExt = append(sameExt, filepath.Join(dir, entryName))
		} else {
			otherExt = append(otherExt, filepath.Join(dir, entryName))
		}
	}

	for _, candidates := range [][]string{sameExt, otherExt} {
		if len(candidates) > 0 {
			sort.Slice(candidates, func(i, j int) bool {
				si := getDescriptiveScore(filepath.Base(candidates[i]))
				sj := getDescriptiveScore(filepath.Base(candidates[j]))
				if si != sj {
					return si > sj
				}
				return candidates[i] < candidates[j]
			})
			return candidates[0], nil
		}
	}

	return "", fmt.Errorf("%w: %s", model.ErrFileNotFound, filePath)
}

// FindMediaFiles lists the finished regular files directly inside dir, oldest first
func FindMediaFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var found []candidate
	for _, entry := range entries {
		if !entry.Type().IsRegular() || IsPartialFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{path: filepath.Join(dir, entry.Name()), modTime: info.ModTime()})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].modTime.Before(found[j].modTime)
	})

	paths := make([]string, 0, len(found))
	for _, c := range found {
		paths = append(paths, c.path)
	}
	return paths, nil
}

// RemovePartialFiles deletes every unfinished download file below dir and
// returns how many were removed.
func RemovePartialFiles(dir string) (int, error) {
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !IsPartialFile(d.Name()) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("%w: failed to purge partial files in %s: %v", model.ErrIO, dir, err)
	}
	return removed, nil
}

// RemoveIfEmpty deletes dir when it has no entries. It reports whether the
// directory is gone afterwards; a missing directory counts as removed.
func RemoveIfEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %v", model.ErrIO, err)
	}
	if len(entries) > 0 {
		return false, nil
	}
	if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("%w: %v", model.ErrIO, err)
	}
	return true, nil
}

// RemoveFiles deletes paths, logging failures at warning level instead of
// returning them. It returns the number of paths that no longer exist.
func RemoveFiles(logger *slog.Logger, paths ...string) int {
	if logger == nil {
		logger = slog.Default()
	}
	gone := 0
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to remove file", "path", p, "error", err)
			continue
		}
		gone++
	}
	return gone
}

// RemoveDirIfEmpty is RemoveIfEmpty with warning-level logging instead of an error
func RemoveDirIfEmpty(logger *slog.Logger, dir string) bool {
	if logger == nil {
		logger = slog.Default()
	}
	removed, err := RemoveIfEmpty(dir)
	if err != nil {
		logger.Warn("failed to remove directory", "path", dir, "error", err)
	}
	return removed
}

// RemoveTree deletes dir with everything inside, logging failures at warning level
func RemoveTree(logger *slog.Logger, dir string) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("failed to remove directory tree", "path", dir, "error", err)
	}
}

// isSimilarFileName checks if two file names are similar enough to be considered the same file
func isSimilarFileName(name1, name2 string) bool {
	clean1 := strings.TrimSpace(name1)
	clean2 := strings.TrimSpace(name2)

	if clean1 == clean2 {
		return true
	}
	if clean1 == "" || clean2 == "" {
		return false
	}

	// downloaders prepend or append separators
	for _, sep := range []string{"-", "_", " "} {
		if clean2 == sep+clean1 || clean2 == clean1+sep || clean1 == sep+clean2 || clean1 == clean2+sep {
			return true
		}
	}

	// truncated names
	if strings.Contains(clean1, clean2) || strings.Contains(clean2, clean1) {
		diff := len(clean1) - len(clean2)
		if diff < 0 {
			diff = -diff
		}
		return diff <= MaxNameDifference
	}

	return false
}

// getDescriptiveScore calculates a score indicating how descriptive a filename is
func getDescriptiveScore(filename string) int {
	score := 0
	if len(filename) > LongFileNameLength {
		score += ScoreForLongName
	} else if len(filename) > MinFileNameLength {
		score++
	}
	if strings.Contains(filename, " ") {
		score += ScoreForSpaces
	}
	if strings.ContainsAny(filename, "_-") {
		score += ScoreForSeparators
	}
	return score
}
