package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/semindex/internal/vectorstore"
	"github.com/dshills/semindex/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// deleteBatchSize bounds the number of placeholders in one DELETE ... IN statement
const deleteBatchSize = 500

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Project operations

// createProjectWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createProjectWithQuerier(ctx context.Context, q querier, project *types.Project) error {
	if err := project.Validate(); err != nil {
		return err
	}
	patterns, err := encodePatterns(project.IgnorePatterns)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO projects (id, name, root_path, ignore_patterns, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		project.ID, project.Name, project.RootPath, patterns, now, now)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("project %s: %w", project.ID, ErrAlreadyExists)
	}
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateProject(ctx context.Context, project *types.Project) error {
	return s.createProjectWithQuerier(ctx, s.querier(), project)
}

const selectProject = `
	SELECT id, name, root_path, ignore_patterns, created_at, updated_at
	FROM projects
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*types.Project, error) {
	var project types.Project
	var patterns string
	err := row.Scan(&project.ID, &project.Name, &project.RootPath, &patterns,
		&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(patterns), &project.IgnorePatterns); err != nil {
		return nil, fmt.Errorf("invalid ignore patterns for project %s: %w", project.ID, err)
	}
	return &project, nil
}

// getProjectWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getProjectWithQuerier(ctx context.Context, q querier, id string) (*types.Project, error) {
	project, err := scanProject(q.QueryRowContext(ctx, selectProject+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

// GetProject returns the project with the given id or ErrNotFound
func (s *SQLiteStorage) GetProject(ctx context.Context, id string) (*types.Project, error) {
	return s.getProjectWithQuerier(ctx, s.querier(), id)
}

// updateProjectWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) updateProjectWithQuerier(ctx context.Context, q querier, project *types.Project) error {
	if err := project.Validate(); err != nil {
		return err
	}
	patterns, err := encodePatterns(project.IgnorePatterns)
	if err != nil {
		return err
	}

	query := `
		UPDATE projects
		SET name = ?, root_path = ?, ignore_patterns = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		project.Name, project.RootPath, patterns, now, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateProject(ctx context.Context, project *types.Project) error {
	return s.updateProjectWithQuerier(ctx, s.querier(), project)
}

func (s *SQLiteStorage) listProjectsWithQuerier(ctx context.Context, q querier) ([]*types.Project, error) {
	rows, err := q.QueryContext(ctx, selectProject+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	projects := make([]*types.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// ListProjects returns all registered projects in registration order
func (s *SQLiteStorage) ListProjects(ctx context.Context) ([]*types.Project, error) {
	return s.listProjectsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) deleteProjectWithQuerier(ctx context.Context, q querier, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	return err
}

// DeleteProject removes a project record. Its collection is left to the vector store.
func (s *SQLiteStorage) DeleteProject(ctx context.Context, id string) error {
	return s.deleteProjectWithQuerier(ctx, s.querier(), id)
}

func encodePatterns(patterns []string) (string, error) {
	if patterns == nil {
		patterns = []string{}
	}
	b, err := json.Marshal(patterns)
	if err != nil {
		return "", fmt.Errorf("failed to encode ignore patterns: %w", err)
	}
	return string(b), nil
}

// Collection operations

func (s *SQLiteStorage) createCollectionWithQuerier(ctx context.Context, q querier, collection *Collection) error {
	metadata := collection.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode collection metadata: %w", err)
	}

	query := `
		INSERT INTO collections (name, metadata, dimension, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query, collection.Name, string(encoded), collection.Dimension, now)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("collection %s: %w", collection.Name, ErrAlreadyExists)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	collection.ID = id
	collection.Metadata = metadata
	collection.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateCollection(ctx context.Context, collection *Collection) error {
	return s.createCollectionWithQuerier(ctx, s.querier(), collection)
}

const selectCollection = `
	SELECT id, name, metadata, dimension, created_at
	FROM collections
`

func scanCollection(row rowScanner) (*Collection, error) {
	var collection Collection
	var metadata string
	err := row.Scan(&collection.ID, &collection.Name, &metadata, &collection.Dimension, &collection.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadata), &collection.Metadata); err != nil {
		return nil, fmt.Errorf("invalid metadata for collection %s: %w", collection.Name, err)
	}
	return &collection, nil
}

func (s *SQLiteStorage) getCollectionByNameWithQuerier(ctx context.Context, q querier, name string) (*Collection, error) {
	collection, err := scanCollection(q.QueryRowContext(ctx, selectCollection+" WHERE name = ?", name))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return collection, nil
}

// GetCollectionByName returns the named collection or ErrNotFound
func (s *SQLiteStorage) GetCollectionByName(ctx context.Context, name string) (*Collection, error) {
	return s.getCollectionByNameWithQuerier(ctx, s.querier(), name)
}

func (s *SQLiteStorage) listCollectionsWithQuerier(ctx context.Context, q querier) ([]*Collection, error) {
	rows, err := q.QueryContext(ctx, selectCollection+" ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	collections := make([]*Collection, 0)
	for rows.Next() {
		collection, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, collection)
	}
	return collections, rows.Err()
}

func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]*Collection, error) {
	return s.listCollectionsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) deleteCollectionByNameWithQuerier(ctx context.Context, q querier, name string) error {
	// Chunks cascade through the foreign key.
	_, err := q.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	return err
}

func (s *SQLiteStorage) DeleteCollectionByName(ctx context.Context, name string) error {
	return s.deleteCollectionByNameWithQuerier(ctx, s.querier(), name)
}

// Chunk operations

// checkDimension fixes a collection's dimension on first write and rejects
// vectors of any other length afterwards
func (s *SQLiteStorage) checkDimension(ctx context.Context, q querier, collectionID int64, records []vectorstore.Record) (int, error) {
	var current int
	err := q.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE id = ?`, collectionID).Scan(&current)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	dim := current
	for _, rec := range records {
		if len(rec.Vector) == 0 {
			return 0, fmt.Errorf("record %s: %w: empty vector", rec.ID, vectorstore.ErrDimensionMismatch)
		}
		if dim == 0 {
			dim = len(rec.Vector)
		}
		if len(rec.Vector) != dim {
			return 0, fmt.Errorf("record %s: %w: got %d, want %d", rec.ID, vectorstore.ErrDimensionMismatch, len(rec.Vector), dim)
		}
	}

	if current == 0 && dim != 0 {
		if _, err := q.ExecContext(ctx, `UPDATE collections SET dimension = ? WHERE id = ?`, dim, collectionID); err != nil {
			return 0, fmt.Errorf("failed to set collection dimension: %w", err)
		}
	}
	return dim, nil
}

// upsertChunksWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertChunksWithQuerier(ctx context.Context, q querier, collectionID int64, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	if _, err := s.checkDimension(ctx, q, collectionID, records); err != nil {
		return err
	}

	// Use atomic INSERT ... ON CONFLICT so each id holds exactly one row
	query := `
		INSERT INTO chunks (
			collection_id, chunk_id, content, source_file, start_line, end_line,
			modified_at, vector, dimension, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, chunk_id)
		DO UPDATE SET
			content = excluded.content,
			source_file = excluded.source_file,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			modified_at = excluded.modified_at,
			vector = excluded.vector,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	for _, rec := range records {
		if rec.ID == "" {
			return errors.New("failed to upsert chunk: empty chunk id")
		}
		_, err := q.ExecContext(ctx, query,
			collectionID, rec.ID, rec.Document, rec.Metadata.SourceFile,
			rec.Metadata.StartLine, rec.Metadata.EndLine, rec.Metadata.ModifiedAt,
			serializeVector(rec.Vector), len(rec.Vector), now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", rec.ID, err)
		}
	}
	return nil
}

// UpsertChunks writes records in one transaction
func (s *SQLiteStorage) UpsertChunks(ctx context.Context, collectionID int64, records []vectorstore.Record) error {
	return s.withTx(ctx, func(q querier) error {
		return s.upsertChunksWithQuerier(ctx, q, collectionID, records)
	})
}

func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, collectionID int64, chunkID string) (*Chunk, error) {
	query := `
		SELECT id, collection_id, chunk_id, content, source_file, start_line, end_line,
		       modified_at, vector, dimension, created_at, updated_at
		FROM chunks
		WHERE collection_id = ? AND chunk_id = ?
	`
	var chunk Chunk
	var modifiedAt sql.NullTime
	err := q.QueryRowContext(ctx, query, collectionID, chunkID).Scan(
		&chunk.ID, &chunk.CollectionID, &chunk.ChunkID, &chunk.Content, &chunk.SourceFile,
		&chunk.StartLine, &chunk.EndLine, &modifiedAt, &chunk.Vector, &chunk.Dimension,
		&chunk.CreatedAt, &chunk.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if modifiedAt.Valid {
		chunk.ModifiedAt = modifiedAt.Time
	}
	return &chunk, nil
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, collectionID int64, chunkID string) (*Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), collectionID, chunkID)
}

func (s *SQLiteStorage) listChunkIDsWithQuerier(ctx context.Context, q querier, collectionID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT chunk_id FROM chunks WHERE collection_id = ? ORDER BY chunk_id`, collectionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStorage) ListChunkIDs(ctx context.Context, collectionID int64) ([]string, error) {
	return s.listChunkIDsWithQuerier(ctx, s.querier(), collectionID)
}

func (s *SQLiteStorage) deleteChunksBySourceWithQuerier(ctx context.Context, q querier, collectionID int64, sourceFile string) (int, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM chunks WHERE collection_id = ? AND source_file = ?`, collectionID, sourceFile)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

// DeleteChunksBySource removes every chunk of one source file
func (s *SQLiteStorage) DeleteChunksBySource(ctx context.Context, collectionID int64, sourceFile string) (int, error) {
	return s.deleteChunksBySourceWithQuerier(ctx, s.querier(), collectionID, sourceFile)
}

// deleteChunksBatchWithQuerier deletes chunks by id, deleteBatchSize ids per statement
func (s *SQLiteStorage) deleteChunksBatchWithQuerier(ctx context.Context, q querier, collectionID int64, chunkIDs []string) (int, error) {
	deleted := 0
	for start := 0; start < len(chunkIDs); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(chunkIDs) {
			end = len(chunkIDs)
		}
		batch := chunkIDs[start:end]

		// Build parameterized IN clause
		placeholders := make([]string, len(batch))
		args := make([]interface{}, 0, len(batch)+1)
		args = append(args, collectionID)
		for i, id := range batch {
			placeholders[i] = "?"
			args = append(args, id)
		}

		query := `DELETE FROM chunks WHERE collection_id = ? AND chunk_id IN (` + strings.Join(placeholders, ",") + `)`
		result, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return deleted, err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return deleted, err
		}
		deleted += int(rowsAffected)
	}
	return deleted, nil
}

// DeleteChunksBatch deletes multiple chunks by chunk id
func (s *SQLiteStorage) DeleteChunksBatch(ctx context.Context, collectionID int64, chunkIDs []string) (int, error) {
	var deleted int
	err := s.withTx(ctx, func(q querier) error {
		var err error
		deleted, err = s.deleteChunksBatchWithQuerier(ctx, q, collectionID, chunkIDs)
		return err
	})
	return deleted, err
}

func (s *SQLiteStorage) countChunksWithQuerier(ctx context.Context, q querier, collectionID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE collection_id = ?`, collectionID).Scan(&count)
	return count, err
}

func (s *SQLiteStorage) CountChunks(ctx context.Context, collectionID int64) (int, error) {
	return s.countChunksWithQuerier(ctx, s.querier(), collectionID)
}

// Search operations

// SearchVector returns the limit chunks closest to vector, most similar first
func (s *SQLiteStorage) SearchVector(ctx context.Context, collectionID int64, vector []float32, limit int) ([]vectorstore.Match, error) {
	return searchVector(ctx, s.querier(), collectionID, vector, limit)
}

// withTx runs fn in a transaction, rolling back on error
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Transaction implementations route every call through the transaction querier

func (t *sqliteTx) CreateProject(ctx context.Context, project *types.Project) error {
	return t.storage.createProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) GetProject(ctx context.Context, id string) (*types.Project, error) {
	return t.storage.getProjectWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) UpdateProject(ctx context.Context, project *types.Project) error {
	return t.storage.updateProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) ListProjects(ctx context.Context) ([]*types.Project, error) {
	return t.storage.listProjectsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) DeleteProject(ctx context.Context, id string) error {
	return t.storage.deleteProjectWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) CreateCollection(ctx context.Context, collection *Collection) error {
	return t.storage.createCollectionWithQuerier(ctx, t.querier(), collection)
}

func (t *sqliteTx) GetCollectionByName(ctx context.Context, name string) (*Collection, error) {
	return t.storage.getCollectionByNameWithQuerier(ctx, t.querier(), name)
}

func (t *sqliteTx) ListCollections(ctx context.Context) ([]*Collection, error) {
	return t.storage.listCollectionsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) DeleteCollectionByName(ctx context.Context, name string) error {
	return t.storage.deleteCollectionByNameWithQuerier(ctx, t.querier(), name)
}

func (t *sqliteTx) UpsertChunks(ctx context.Context, collectionID int64, records []vectorstore.Record) error {
	return t.storage.upsertChunksWithQuerier(ctx, t.querier(), collectionID, records)
}

func (t *sqliteTx) GetChunk(ctx context.Context, collectionID int64, chunkID string) (*Chunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.querier(), collectionID, chunkID)
}

func (t *sqliteTx) ListChunkIDs(ctx context.Context, collectionID int64) ([]string, error) {
	return t.storage.listChunkIDsWithQuerier(ctx, t.querier(), collectionID)
}

func (t *sqliteTx) DeleteChunksBySource(ctx context.Context, collectionID int64, sourceFile string) (int, error) {
	return t.storage.deleteChunksBySourceWithQuerier(ctx, t.querier(), collectionID, sourceFile)
}

func (t *sqliteTx) DeleteChunksBatch(ctx context.Context, collectionID int64, chunkIDs []string) (int, error) {
	return t.storage.deleteChunksBatchWithQuerier(ctx, t.querier(), collectionID, chunkIDs)
}

func (t *sqliteTx) CountChunks(ctx context.Context, collectionID int64) (int, error) {
	return t.storage.countChunksWithQuerier(ctx, t.querier(), collectionID)
}

func (t *sqliteTx) SearchVector(ctx context.Context, collectionID int64, vector []float32, limit int) ([]vectorstore.Match, error) {
	return searchVector(ctx, t.querier(), collectionID, vector, limit)
}

// Close is a no-op for transactions
func (t *sqliteTx) Close() error {
	return nil
}

// BeginTx is not supported on a transaction
func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions not supported")
}
