// Package storage provides SQLite-based persistence for registered projects
// and their chunk vectors.
//
// # Database Schema
//
// Tables:
//   - projects: registered workspaces (id, name, root path, ignore patterns)
//   - collections: one vector collection per project, with its dimension
//   - chunks: chunk text, source location and the serialized embedding
//
// Schema changes are applied by ApplyMigrations, ordered by semantic version.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage(filepath.Join(dataDir, "semindex.db"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	store := storage.NewVectorStore(db)
//	coll, err := store.GetOrCreateCollection(ctx, project.ID, map[string]string{"project": project.Name})
//	err = coll.Upsert(ctx, records)
//	matches, err := coll.Query(ctx, queryVector, 12)
//
// # Transactions
//
// BeginTx returns a Tx implementing the full Storage interface, so a
// sequence of calls can be made atomic:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	if _, err := tx.DeleteChunksBySource(ctx, collID, "src/main.py"); err != nil {
//	    _ = tx.Rollback()
//	    return err
//	}
//	if err := tx.UpsertChunks(ctx, collID, records); err != nil {
//	    _ = tx.Rollback()
//	    return err
//	}
//	return tx.Commit()
//
// # Vector Search
//
// Vectors are stored as little-endian float32 blobs. Builds with the
// sqlite_vec tag rank in SQL with vec_distance_cosine; the default pure Go
// build ranks in Go. Either way scores are cosine similarities, highest first.
//
// # Build Modes
//
//	CGO_ENABLED=1 go build -tags sqlite_vec ./...   # mattn/go-sqlite3
//	CGO_ENABLED=0 go build ./...                    # modernc.org/sqlite
package storage
