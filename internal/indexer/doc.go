// Package indexer coordinates the indexing pipeline for registered projects.
//
// A full index walks the project root, prunes ignored directories, reads and
// chunks every eligible file, embeds all chunk texts in one batch and upserts
// the results into the project's collection:
//
//	idx := indexer.New(store, vectors, emb, indexer.Config{
//	    DefaultIgnore: config.DefaultIgnore,
//	})
//	defer idx.Shutdown()
//
//	result, err := idx.IndexProject(ctx, project)
//	fmt.Printf("Indexed %d chunks\n", result.ChunksIndexed)
//
// # Status
//
// Each project has an in-memory status record. A full index moves it to
// indexing and then to indexed ("Indexed N chunks") or error (the failure
// message). Projects never indexed in this process report uninitialized.
// Starting a second full index of a project while one is running fails with
// ErrIndexInProgress and leaves the status alone.
//
// # Stale Chunks
//
// Chunk ids are derived from the relative path and position in the file, so
// re-indexing overwrites earlier chunks in place. After the upsert, ids the
// pass did not produce are pruned, which removes chunks of deleted files and
// the tail of files that shrank.
//
// # Change Watching
//
// After the first full index, successful or not, the project gets one change
// watcher. A created or modified eligible file is re-chunked, re-embedded and
// swapped into the collection; a removed file has its chunks deleted.
// Watcher failures are logged and never change the index status. The watcher
// keeps the ignore rules the project had when it was started.
package indexer
