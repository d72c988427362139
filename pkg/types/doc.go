// Package types provides shared type definitions for semindex.
//
// This package defines the domain types passed between the filter, chunker,
// indexer, watcher, searcher and the MCP surface.
//
// # Core Types
//
// Project is a registered workspace. It is owned by the project registry and
// only read by the indexing pipeline:
//
//	project := &types.Project{
//	    ID:             "p1",
//	    Name:           "api",
//	    RootPath:       "/home/me/src/api",
//	    IgnorePatterns: []string{"build/", "*.gen.go"},
//	}
//
// Chunk is the atomic indexed unit. Its ID is derived from the relative file
// path and the chunk position inside the file:
//
//	chunk := types.Chunk{
//	    ID:         types.ChunkID("src/main.py", 0), // "src/main.py:0"
//	    Text:       body,
//	    StartLine:  1,
//	    EndLine:    42,
//	    SourceFile: "src/main.py",
//	}
//
// Re-upserting the same ID replaces the previous vector and metadata, which is
// how re-indexing a file overwrites its earlier chunks.
//
// # Index Status
//
// IndexStatus tracks the lifecycle of a full index run:
//
//	uninitialized -> indexing -> indexed
//	                          -> error
//
// Incremental updates from the change watcher never modify it.
//
// # Search Results
//
// SearchHit carries the stored chunk text and its source metadata. Hits are
// returned closest first, in the order produced by the vector store.
package types
