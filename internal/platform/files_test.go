package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ytget/yt-relay/internal/model"
)

func writeFile(t *testing.T, path string, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestCreateDirectoryIfNotExists(t *testing.T) {
	tempDir := t.TempDir()
	testDir := filepath.Join(tempDir, "test_dir", "nested")

	if _, err := os.Stat(testDir); !os.IsNotExist(err) {
		t.Fatalf("Test directory already exists: %s", testDir)
	}

	if err := CreateDirectoryIfNotExists(testDir); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	if _, err := os.Stat(testDir); os.IsNotExist(err) {
		t.Fatalf("Directory was not created: %s", testDir)
	}

	// Second call should not fail
	if err := CreateDirectoryIfNotExists(testDir); err != nil {
		t.Fatalf("Failed to handle existing directory: %v", err)
	}
}

func TestTaskDirName(t *testing.T) {
	ts := time.Unix(1700000000, 42)
	if got := TaskDirName(ts); got != "1700000000000000042" {
		t.Errorf("Expected nanosecond timestamp, got %s", got)
	}
}

func TestIsPartialFile(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"clip.mp4", false},
		{"clip.mp4.part", true},
		{"clip.mp4.ytdl", true},
		{"clip.f137.mp4.part-Frag12", true},
		{"clip.temp", true},
		{"clip.part001", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPartialFile(tt.name); got != tt.expected {
				t.Errorf("IsPartialFile(%q) = %v, expected %v", tt.name, got, tt.expected)
			}
		})
	}
}

func TestFindFileWithFallback_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_file.txt")
	writeFile(t, path, "x")

	foundPath, err := FindFileWithFallback(path)
	if err != nil {
		t.Fatalf("Failed to find existing file: %v", err)
	}
	if foundPath != path {
		t.Errorf("Expected path %s, got %s", path, foundPath)
	}
}

func TestFindFileWithFallback_SimilarFileName(t *testing.T) {
	tempDir := t.TempDir()
	originalPath := filepath.Join(tempDir, "test_video.mp4")
	similarPath := filepath.Join(tempDir, "-test_video.mp4")
	writeFile(t, similarPath, "x")

	foundPath, err := FindFileWithFallback(originalPath)
	if err != nil {
		t.Fatalf("Failed to find similar file: %v", err)
	}
	if foundPath != similarPath {
		t.Errorf("Expected path %s, got %s", similarPath, foundPath)
	}
}

func TestFindFileWithFallback_MergedExtension(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, filepath.Join(tempDir, "My_Clip.webm.part"), "partial")
	merged := filepath.Join(tempDir, "My_Clip.mkv")
	writeFile(t, merged, "merged")

	foundPath, err := FindFileWithFallback(filepath.Join(tempDir, "My_Clip.webm"))
	if err != nil {
		t.Fatalf("Failed to find merged file: %v", err)
	}
	if foundPath != merged {
		t.Errorf("Expected path %s, got %s", merged, foundPath)
	}
}

func TestFindFileWithFallback_NoSimilarFile(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, filepath.Join(tempDir, "a.mp4"), "x")

	originalPath := filepath.Join(tempDir, "test_video.mp4")
	_, err := FindFileWithFallback(originalPath)
	if err == nil {
		t.Fatal("Expected error for non-existent file, got nil")
	}
	if !errors.Is(err, model.ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
}

func TestFindFileWithFallback_InvalidInput(t *testing.T) {
	for _, path := range []string{"", "https://example.com/video.mp4"} {
		if _, err := FindFileWithFallback(path); !errors.Is(err, model.ErrFileNotFound) {
			t.Errorf("FindFileWithFallback(%q): expected ErrFileNotFound, got %v", path, err)
		}
	}
}

func TestFindMediaFiles(t *testing.T) {
	tempDir := t.TempDir()
	first := filepath.Join(tempDir, "first.mp4")
	second := filepath.Join(tempDir, "second.m4a")
	writeFile(t, first, "1")
	writeFile(t, second, "2")
	writeFile(t, filepath.Join(tempDir, "third.mp4.part"), "3")
	if err := os.Mkdir(filepath.Join(tempDir, "split_1"), 0755); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(first, old, old); err != nil {
		t.Fatal(err)
	}

	files, err := FindMediaFiles(tempDir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(files) != 2 || files[0] != first || files[1] != second {
		t.Errorf("Unexpected files: %v", files)
	}

	if _, err := FindMediaFiles(filepath.Join(tempDir, "missing")); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestRemovePartialFiles(t *testing.T) {
	tempDir := t.TempDir()
	nested := filepath.Join(tempDir, "nested")
	if err := os.Mkdir(nested, 0755); err != nil {
		t.Fatal(err)
	}
	keep := filepath.Join(tempDir, "done.mp4")
	writeFile(t, keep, "x")
	writeFile(t, filepath.Join(tempDir, "clip.mp4.part"), "x")
	writeFile(t, filepath.Join(nested, "clip.ytdl"), "x")

	removed, err := RemovePartialFiles(tempDir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed files, got %d", removed)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("Finished file must survive: %v", err)
	}

	if _, err := RemovePartialFiles(filepath.Join(tempDir, "missing")); err != nil {
		t.Errorf("Missing directory should not fail: %v", err)
	}
}

func TestRemoveIfEmpty(t *testing.T) {
	tempDir := t.TempDir()
	empty := filepath.Join(tempDir, "empty")
	full := filepath.Join(tempDir, "full")
	for _, d := range []string{empty, full} {
		if err := os.Mkdir(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(t, filepath.Join(full, "f"), "x")

	if removed, err := RemoveIfEmpty(empty); err != nil || !removed {
		t.Errorf("Expected empty directory removal, got %v %v", removed, err)
	}
	if _, err := os.Stat(empty); !os.IsNotExist(err) {
		t.Error("Empty directory still exists")
	}

	if removed, err := RemoveIfEmpty(full); err != nil || removed {
		t.Errorf("Expected non-empty directory to stay, got %v %v", removed, err)
	}

	if removed, err := RemoveIfEmpty(filepath.Join(tempDir, "missing")); err != nil || !removed {
		t.Errorf("Missing directory should count as removed, got %v %v", removed, err)
	}
}

func TestRemoveFiles(t *testing.T) {
	tempDir := t.TempDir()
	a := filepath.Join(tempDir, "a")
	writeFile(t, a, "x")

	if gone := RemoveFiles(nil, a, filepath.Join(tempDir, "missing"), ""); gone != 2 {
		t.Errorf("Expected 2 paths gone, got %d", gone)
	}
	if _, err := os.Stat(a); !os.IsNotExist(err) {
		t.Error("File still exists")
	}
}

func TestRemoveTree(t *testing.T) {
	tempDir := t.TempDir()
	root := filepath.Join(tempDir, "task")
	if err := os.MkdirAll(filepath.Join(root, "split_1"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "split_1", "x.part001"), "x")

	RemoveTree(nil, root)
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Error("Tree still exists")
	}
	RemoveTree(nil, "")
}

func TestIsSimilarFileName(t *testing.T) {
	tests := []struct {
		name1, name2 string
		expected     bool
	}{
		{"test", "test", true},
		{"test", "-test", true},
		{"test", "test-", true},
		{"test", "_test", true},
		{"test", "test_", true},
		{"test", " test", true},
		{"-test", "test", true},
		{"test", "other", false},
		{"", "test", false},
		{"test_video", "test_video_long", true},
		{"test_video_long", "test_video", true},
		{"test_video_very_long_name", "test_video", false}, // too different
	}

	for _, tt := range tests {
		t.Run(tt.name1+"_"+tt.name2, func(t *testing.T) {
			result := isSimilarFileName(tt.name1, tt.name2)
			if result != tt.expected {
				t.Errorf("isSimilarFileName(%q, %q) = %v, expected %v",
					tt.name1, tt.name2, result, tt.expected)
			}
		})
	}
}

func TestGetDescriptiveScore(t *testing.T) {
	tests := []struct {
		filename string
		expected int
	}{
		{"short.mp4", 0},                 // len=9
		{"medium_name.mp4", 2},           // medium with underscore
		{"long descriptive name.mp4", 5}, // long with spaces
		{"artist-song-official.mp4", 4},  // long with hyphens
		{"a.mp4", 0},                     // very short
		{"plainfilename.mp4", 1},         // medium, no separators
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			result := getDescriptiveScore(tt.filename)
			if result != tt.expected {
				t.Errorf("getDescriptiveScore(%q) = %d, expected %d",
					tt.filename, result, tt.expected)
			}
		})
	}
}
