package model

import (
	"path/filepath"
	"strings"
)

// MaxPartSize is the largest payload the relay sink accepts per call
const MaxPartSize int64 = 2040108421

// VideoExtensions are the containers relayed as streamable video
var VideoExtensions = []string{".mp4", ".mkv", ".avi", ".mov", ".flv"}

// FileResult describes a file the backend finished writing
type FileResult struct {
	Path       string
	FileName   string
	SizeBytes  int64
	Caption    string
	Duration   float64
	Width      int
	Height     int
	NeedsSplit bool
}

// IsVideoFile reports whether the file extension is a relayable video container
func (f FileResult) IsVideoFile() bool {
	ext := strings.ToLower(filepath.Ext(f.Path))
	for _, v := range VideoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

// Chunk is one contiguous byte range of a file written to PartPath
type Chunk struct {
	PartPath  string
	PartIndex int // 1-based
	PartCount int
	Size      int64
}

// ChunkSet is the ordered list of parts covering one file
type ChunkSet struct {
	Source string
	Dir    string // split directory, empty when the set is the source itself
	Parts  []Chunk
}

// IsSplit reports whether the set references new part files
func (c ChunkSet) IsSplit() bool {
	return c.Dir != ""
}
