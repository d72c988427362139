package types

import (
	"strconv"
	"strings"
	"time"
)

// Chunk is a contiguous, line-bounded slice of a source file
type Chunk struct {
	ID         string // SourceFile + ":" + index
	Text       string
	StartLine  int // 1-based, inclusive
	EndLine    int // 1-based, inclusive
	SourceFile string
	ModifiedAt time.Time
}

// ChunkID builds the deterministic chunk identifier for the index-th chunk of a file
func ChunkID(sourceFile string, index int) string {
	return sourceFile + ":" + strconv.Itoa(index)
}

// ParseChunkID splits a chunk identifier into its source file and index.
// The file part may itself contain colons, so the last one is the separator.
func ParseChunkID(id string) (string, int, bool) {
	sep := strings.LastIndexByte(id, ':')
	if sep <= 0 {
		return "", 0, false
	}
	index, err := strconv.Atoi(id[sep+1:])
	if err != nil || index < 0 {
		return "", 0, false
	}
	return id[:sep], index, true
}

// Validate checks if the chunk is well formed
func (c *Chunk) Validate() error {
	if c.SourceFile == "" {
		return ErrMissingSourceFile
	}
	if c.Text == "" {
		return ErrEmptyContent
	}
	if c.StartLine <= 0 || c.EndLine < c.StartLine {
		return ErrInvalidLineRange
	}
	return nil
}

// Metadata returns the stored metadata describing the chunk's source
func (c *Chunk) Metadata() ChunkMetadata {
	return ChunkMetadata{
		ChunkID:    c.ID,
		SourceFile: c.SourceFile,
		StartLine:  c.StartLine,
		EndLine:    c.EndLine,
		ModifiedAt: c.ModifiedAt,
	}
}
