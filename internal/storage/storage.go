package storage

import (
	"context"
	"time"

	"github.com/dshills/semindex/internal/vectorstore"
	"github.com/dshills/semindex/pkg/types"
)

// Storage defines the interface for persisting projects and their chunk vectors
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *types.Project) error
	GetProject(ctx context.Context, id string) (*types.Project, error)
	UpdateProject(ctx context.Context, project *types.Project) error
	ListProjects(ctx context.Context) ([]*types.Project, error)
	DeleteProject(ctx context.Context, id string) error

	// Collection operations
	CreateCollection(ctx context.Context, collection *Collection) error
	GetCollectionByName(ctx context.Context, name string) (*Collection, error)
	ListCollections(ctx context.Context) ([]*Collection, error)
	DeleteCollectionByName(ctx context.Context, name string) error

	// Chunk operations
	UpsertChunks(ctx context.Context, collectionID int64, records []vectorstore.Record) error
	GetChunk(ctx context.Context, collectionID int64, chunkID string) (*Chunk, error)
	ListChunkIDs(ctx context.Context, collectionID int64) ([]string, error)
	DeleteChunksBySource(ctx context.Context, collectionID int64, sourceFile string) (int, error)
	DeleteChunksBatch(ctx context.Context, collectionID int64, chunkIDs []string) (int, error)
	CountChunks(ctx context.Context, collectionID int64) (int, error)

	// Search operations
	SearchVector(ctx context.Context, collectionID int64, vector []float32, limit int) ([]vectorstore.Match, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Collection is a named group of chunk vectors, one per project
type Collection struct {
	ID        int64
	Name      string
	Metadata  map[string]string
	Dimension int // 0 until the first vector is written
	CreatedAt time.Time
}

// Chunk is a stored chunk row
type Chunk struct {
	ID           int64
	CollectionID int64
	ChunkID      string
	Content      string
	SourceFile   string
	StartLine    int
	EndLine      int
	ModifiedAt   time.Time
	Vector       []byte // Serialized float32 array
	Dimension    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ToRecord converts a stored chunk back to a vector store record
func (c *Chunk) ToRecord() vectorstore.Record {
	return vectorstore.Record{
		ID:       c.ChunkID,
		Document: c.Content,
		Vector:   deserializeVector(c.Vector),
		Metadata: types.ChunkMetadata{
			ChunkID:    c.ChunkID,
			SourceFile: c.SourceFile,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			ModifiedAt: c.ModifiedAt,
		},
	}
}
