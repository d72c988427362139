package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/semindex/internal/vectorstore"
)

// VectorStore exposes a Storage as a vectorstore.Store
type VectorStore struct {
	storage Storage
}

// NewVectorStore wraps storage. Closing the VectorStore does not close storage;
// its owner does that.
func NewVectorStore(storage Storage) *VectorStore {
	return &VectorStore{storage: storage}
}

// GetOrCreateCollection returns the named collection, creating it if needed
func (v *VectorStore) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]string) (vectorstore.Collection, error) {
	info, err := v.storage.GetCollectionByName(ctx, name)
	if err == nil {
		return &sqliteCollection{storage: v.storage, info: info}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get collection %s: %w", name, err)
	}

	info = &Collection{Name: name, Metadata: metadata}
	if err := v.storage.CreateCollection(ctx, info); err != nil {
		if !errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}
		// Created concurrently; use the winner.
		if info, err = v.storage.GetCollectionByName(ctx, name); err != nil {
			return nil, fmt.Errorf("failed to get collection %s: %w", name, err)
		}
	}
	return &sqliteCollection{storage: v.storage, info: info}, nil
}

// GetCollection returns vectorstore.ErrCollectionNotFound for unknown names
func (v *VectorStore) GetCollection(ctx context.Context, name string) (vectorstore.Collection, error) {
	info, err := v.storage.GetCollectionByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", name, vectorstore.ErrCollectionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", name, err)
	}
	return &sqliteCollection{storage: v.storage, info: info}, nil
}

// DeleteCollection removes a collection and its chunks
func (v *VectorStore) DeleteCollection(ctx context.Context, name string) error {
	return v.storage.DeleteCollectionByName(ctx, name)
}

// Close is a no-op; see NewVectorStore
func (v *VectorStore) Close() error {
	return nil
}

type sqliteCollection struct {
	storage Storage
	info    *Collection
}

func (c *sqliteCollection) Name() string {
	return c.info.Name
}

func (c *sqliteCollection) Upsert(ctx context.Context, records []vectorstore.Record) error {
	return c.storage.UpsertChunks(ctx, c.info.ID, records)
}

func (c *sqliteCollection) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error) {
	return c.storage.SearchVector(ctx, c.info.ID, vector, k)
}

func (c *sqliteCollection) DeleteBySource(ctx context.Context, sourceFile string) error {
	_, err := c.storage.DeleteChunksBySource(ctx, c.info.ID, sourceFile)
	return err
}

func (c *sqliteCollection) ReplaceSource(ctx context.Context, sourceFile string, records []vectorstore.Record) error {
	for _, rec := range records {
		if rec.Metadata.SourceFile != sourceFile {
			return fmt.Errorf("record %s belongs to %s, not %s", rec.ID, rec.Metadata.SourceFile, sourceFile)
		}
	}

	tx, err := c.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.DeleteChunksBySource(ctx, c.info.ID, sourceFile); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete chunks of %s: %w", sourceFile, err)
	}
	if err := tx.UpsertChunks(ctx, c.info.ID, records); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (c *sqliteCollection) Prune(ctx context.Context, keep vectorstore.KeepFunc) (int, error) {
	ids, err := c.storage.ListChunkIDs(ctx, c.info.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list chunk ids: %w", err)
	}

	var stale []string
	for _, id := range ids {
		if !keep(id) {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	return c.storage.DeleteChunksBatch(ctx, c.info.ID, stale)
}

func (c *sqliteCollection) Count(ctx context.Context) (int, error) {
	return c.storage.CountChunks(ctx, c.info.ID)
}

var _ vectorstore.Store = (*VectorStore)(nil)
var _ vectorstore.Collection = (*sqliteCollection)(nil)
