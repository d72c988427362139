package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/semindex/internal/filter"
	"github.com/dshills/semindex/internal/vectorstore"
	"github.com/dshills/semindex/pkg/types"
)

// fileHandler applies watcher events to one project's collection.
// It never touches the project's index status.
type fileHandler struct {
	idx     *Indexer
	project *types.Project
}

// Changed re-chunks and re-embeds one file and swaps its chunks in the store
func (h *fileHandler) Changed(ctx context.Context, path string) error {
	rel, ok := filter.RelPath(h.project.RootPath, path)
	if !ok {
		return nil
	}

	chunks, err := h.idx.chunkFile(h.project.RootPath, rel)
	if err != nil {
		return err
	}

	var records []vectorstore.Record
	if len(chunks) > 0 {
		records, err = h.idx.embedChunks(ctx, chunks)
		if err != nil {
			return err
		}
	}

	collection, err := h.idx.collection(ctx, h.project)
	if err != nil {
		return err
	}
	if err := collection.ReplaceSource(ctx, rel, records); err != nil {
		return fmt.Errorf("failed to replace chunks of %s: %w", rel, err)
	}
	return nil
}

// Removed drops every chunk of a deleted or renamed file
func (h *fileHandler) Removed(ctx context.Context, path string) error {
	rel, ok := filter.RelPath(h.project.RootPath, path)
	if !ok {
		return nil
	}

	collection, err := h.idx.collection(ctx, h.project)
	if err != nil {
		return err
	}
	if err := collection.DeleteBySource(ctx, rel); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", rel, err)
	}
	return nil
}

// RemovedDir drops every chunk stored for files below a deleted or renamed directory
func (h *fileHandler) RemovedDir(ctx context.Context, path string) error {
	rel, ok := filter.RelPath(h.project.RootPath, path)
	if !ok {
		return nil
	}
	prefix := rel + "/"

	collection, err := h.idx.collection(ctx, h.project)
	if err != nil {
		return err
	}
	removed, err := collection.Prune(ctx, func(id string) bool {
		source, _, ok := types.ParseChunkID(id)
		return !ok || !strings.HasPrefix(source, prefix)
	})
	if err != nil {
		return fmt.Errorf("failed to delete chunks under %s: %w", rel, err)
	}
	h.idx.logger.Debug("dropped chunks of removed directory", "project", h.project.ID, "dir", rel, "chunks", removed)
	return nil
}
