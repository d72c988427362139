package types

import "time"

// ChunkMetadata describes where a stored chunk came from
type ChunkMetadata struct {
	ChunkID    string    `json:"chunk_id"`
	SourceFile string    `json:"file_path"`
	StartLine  int       `json:"start"`
	EndLine    int       `json:"end"`
	ModifiedAt time.Time `json:"modified"`
}

// SearchHit is a single similarity search result
type SearchHit struct {
	Text     string        `json:"text"`
	Score    float64       `json:"score"` // Higher is closer
	Metadata ChunkMetadata `json:"meta"`
}

// IndexResult summarises a completed full index run
type IndexResult struct {
	ProjectID     string `json:"project_id"`
	ChunksIndexed int    `json:"chunks_indexed"`
	FilesIndexed  int    `json:"files_indexed"`
	ChunksPruned  int    `json:"chunks_pruned"`
}
