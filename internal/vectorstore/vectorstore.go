// Package vectorstore defines the collection-oriented vector store the
// indexer writes to and the searcher reads from.
//
// Two backends exist: internal/storage keeps vectors in the local SQLite
// database, and internal/vectorstore/qdrant talks to a Qdrant server.
package vectorstore

import (
	"context"
	"errors"

	"github.com/dshills/semindex/pkg/types"
)

// ErrCollectionNotFound is returned by GetCollection for unknown names
var ErrCollectionNotFound = errors.New("collection not found")

// ErrDimensionMismatch is returned when a record or query vector does not
// match the dimension a collection was first written with
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Record is one stored chunk: its id, text, vector and metadata
type Record struct {
	ID       string
	Document string
	Vector   []float32
	Metadata types.ChunkMetadata
}

// RecordFromChunk pairs a chunk with its embedding
func RecordFromChunk(chunk types.Chunk, vector []float32) Record {
	return Record{
		ID:       chunk.ID,
		Document: chunk.Text,
		Vector:   vector,
		Metadata: chunk.Metadata(),
	}
}

// KeepFunc decides, by chunk id, whether Prune keeps a record
type KeepFunc func(id string) bool

// KeepIDs keeps exactly the listed ids
func KeepIDs(ids map[string]bool) KeepFunc {
	return func(id string) bool { return ids[id] }
}

// Match is a query result. Score is a similarity where higher is closer.
type Match struct {
	Record
	Score float64
}

// Hit converts a match to the search result shape
func (m Match) Hit() types.SearchHit {
	return types.SearchHit{
		Text:     m.Document,
		Score:    m.Score,
		Metadata: m.Metadata,
	}
}

// Store manages named collections
type Store interface {
	// GetOrCreateCollection returns the named collection, creating it with
	// the given metadata if it does not exist
	GetOrCreateCollection(ctx context.Context, name string, metadata map[string]string) (Collection, error)

	// GetCollection returns ErrCollectionNotFound if the collection does not exist
	GetCollection(ctx context.Context, name string) (Collection, error)

	// DeleteCollection removes a collection and all its records
	DeleteCollection(ctx context.Context, name string) error

	Close() error
}

// Collection holds records addressed by id. Writing an existing id
// replaces it; there is never more than one record per id.
type Collection interface {
	Name() string

	// Upsert inserts or replaces records by id
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to k records ordered closest first
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)

	// DeleteBySource removes every record whose metadata names sourceFile
	DeleteBySource(ctx context.Context, sourceFile string) error

	// ReplaceSource atomically swaps the records of one source file
	ReplaceSource(ctx context.Context, sourceFile string, records []Record) error

	// Prune removes every record keep rejects and returns how many were removed
	Prune(ctx context.Context, keep KeepFunc) (int, error)

	Count(ctx context.Context) (int, error)
}
