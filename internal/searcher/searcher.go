package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/semindex/internal/embedder"
	"github.com/dshills/semindex/internal/indexer"
	"github.com/dshills/semindex/internal/vectorstore"
	"github.com/dshills/semindex/pkg/types"
)

// DefaultLimit is the number of hits returned when the caller asks for none
const DefaultLimit = 12

// ErrEmptyQuery is returned for blank queries
var ErrEmptyQuery = errors.New("query cannot be empty")

// Searcher runs similarity queries against project collections
type Searcher struct {
	store    vectorstore.Store
	embedder embedder.Embedder
	logger   *slog.Logger
}

// NewSearcher creates a new Searcher instance
func NewSearcher(store vectorstore.Store, emb embedder.Embedder, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		store:    store,
		embedder: emb,
		logger:   logger,
	}
}

// Search embeds query and returns up to k hits from the project's
// collection, closest first. k <= 0 means DefaultLimit. A project that was
// never indexed has no collection and yields no hits.
func (s *Searcher) Search(ctx context.Context, projectID, query string, k int) ([]types.SearchHit, error) {
	startTime := time.Now()

	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultLimit
	}

	collection, err := s.store.GetCollection(ctx, indexer.CollectionName(projectID))
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return []types.SearchHit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	matches, err := collection.Query(ctx, embedding.Vector, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	hits := make([]types.SearchHit, len(matches))
	for i, m := range matches {
		hits[i] = m.Hit()
	}

	s.logger.Debug("search finished",
		"project", projectID,
		"limit", k,
		"hits", len(hits),
		"duration", time.Since(startTime))

	return hits, nil
}
