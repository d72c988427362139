package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/dshills/semindex/internal/chunker"
	"github.com/dshills/semindex/internal/embedder"
	"github.com/dshills/semindex/internal/filter"
	"github.com/dshills/semindex/internal/storage"
	"github.com/dshills/semindex/internal/vectorstore"
	"github.com/dshills/semindex/internal/watcher"
	"github.com/dshills/semindex/pkg/types"
)

var (
	// ErrIndexInProgress is returned when a full index of the same project is already running
	ErrIndexInProgress = errors.New("indexing already in progress")

	// ErrProjectNotFound is returned when a project id is not registered
	ErrProjectNotFound = errors.New("project not found")
)

// ProjectSource looks up registered projects
type ProjectSource interface {
	GetProject(ctx context.Context, id string) (*types.Project, error)
	ListProjects(ctx context.Context) ([]*types.Project, error)
}

// Indexer coordinates the indexing pipeline: walk -> filter -> chunk -> embed -> store.
// It owns the per-project status records and change watchers.
type Indexer struct {
	projects ProjectSource
	store    vectorstore.Store
	embedder embedder.Embedder
	chunker  *chunker.Chunker
	defaults []string
	workers  int
	watch    bool
	logger   *slog.Logger

	status *statusMap

	// watchCtx outlives individual index calls; Shutdown cancels it
	watchCtx    context.Context
	watchCancel context.CancelFunc

	mu       sync.Mutex
	locks    map[string]*IndexLock
	watchers map[string]*watcher.Watcher
}

// Config contains configuration for the indexer
type Config struct {
	Workers        int      // Concurrent file readers (default: runtime.NumCPU())
	DefaultIgnore  []string // Patterns ignored in every project
	MaxChars       int      // Chunk budget (default: chunker.DefaultMaxChars)
	OverlapChars   int      // Chunk overlap budget (default: chunker.DefaultOverlapChars)
	DisableWatcher bool     // Do not start change watchers after a full index
	Logger         *slog.Logger
}

// New creates a new Indexer instance
func New(projects ProjectSource, store vectorstore.Store, emb embedder.Embedder, cfg Config) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = chunker.DefaultMaxChars
	}
	if cfg.OverlapChars <= 0 {
		cfg.OverlapChars = chunker.DefaultOverlapChars
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())

	return &Indexer{
		projects:    projects,
		store:       store,
		embedder:    emb,
		chunker:     chunker.NewWithBudget(cfg.MaxChars, cfg.OverlapChars),
		defaults:    cfg.DefaultIgnore,
		workers:     cfg.Workers,
		watch:       !cfg.DisableWatcher,
		logger:      cfg.Logger,
		status:      newStatusMap(),
		watchCtx:    watchCtx,
		watchCancel: watchCancel,
		locks:       make(map[string]*IndexLock),
		watchers:    make(map[string]*watcher.Watcher),
	}
}

// CollectionName returns the vector store collection that holds a project's chunks
func CollectionName(projectID string) string {
	return projectID
}

// IndexProjectByID looks up a registered project and indexes it
func (idx *Indexer) IndexProjectByID(ctx context.Context, projectID string) (*types.IndexResult, error) {
	if idx.projects == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	project, err := idx.projects.GetProject(ctx, projectID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	return idx.IndexProject(ctx, project)
}

// IndexProject runs a full index of a project. The status moves to indexing,
// then to indexed or error. Chunks left over from earlier passes that this
// pass did not produce are removed. Whatever the outcome, the project ends up
// with exactly one change watcher.
func (idx *Indexer) IndexProject(ctx context.Context, project *types.Project) (*types.IndexResult, error) {
	if err := project.Validate(); err != nil {
		return nil, err
	}

	lock := idx.lockFor(project.ID)
	if !lock.TryAcquire() {
		return nil, fmt.Errorf("%w: %s", ErrIndexInProgress, project.ID)
	}
	defer lock.Release()
	defer idx.ensureWatcher(project)

	logger := idx.logger.With("project", project.ID)
	idx.status.set(project.ID, types.StateIndexing, "Indexing started")
	logger.Info("indexing started", "root", project.RootPath)

	result, err := idx.indexProject(ctx, project)
	if err != nil {
		idx.status.set(project.ID, types.StateError, err.Error())
		logger.Error("indexing failed", "error", err)
		return nil, err
	}

	idx.status.set(project.ID, types.StateIndexed, fmt.Sprintf("Indexed %d chunks", result.ChunksIndexed))
	logger.Info("indexing finished",
		"chunks", result.ChunksIndexed,
		"files", result.FilesIndexed,
		"pruned", result.ChunksPruned)

	return result, nil
}

func (idx *Indexer) indexProject(ctx context.Context, project *types.Project) (*types.IndexResult, error) {
	// One rule set for the whole pass
	rules := filter.ForProject(idx.defaults, project)

	files, err := idx.discoverFiles(project.RootPath, rules)
	if err != nil {
		return nil, err
	}

	chunks, filesIndexed, err := idx.chunkFiles(ctx, project.RootPath, files)
	if err != nil {
		return nil, err
	}

	collection, err := idx.collection(ctx, project)
	if err != nil {
		return nil, err
	}

	if len(chunks) > 0 {
		records, err := idx.embedChunks(ctx, chunks)
		if err != nil {
			return nil, err
		}
		if err := collection.Upsert(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to store chunks: %w", err)
		}
	}

	pruned, err := collection.Prune(ctx, keepAfterPass(project.RootPath, rules, files, chunks))
	if err != nil {
		return nil, fmt.Errorf("failed to prune stale chunks: %w", err)
	}

	return &types.IndexResult{
		ProjectID:     project.ID,
		ChunksIndexed: len(chunks),
		FilesIndexed:  filesIndexed,
		ChunksPruned:  pruned,
	}, nil
}

func (idx *Indexer) collection(ctx context.Context, project *types.Project) (vectorstore.Collection, error) {
	collection, err := idx.store.GetOrCreateCollection(ctx, CollectionName(project.ID), map[string]string{
		"project": project.DisplayName(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}
	return collection, nil
}

// embedChunks embeds every chunk text in one batch request
func (idx *Indexer) embedChunks(ctx context.Context, chunks []types.Chunk) ([]vectorstore.Record, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(resp.Embeddings) != len(chunks) {
		return nil, fmt.Errorf("failed to embed chunks: %w: got %d embeddings for %d chunks",
			embedder.ErrProviderFailed, len(resp.Embeddings), len(chunks))
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, vec := range resp.Vectors() {
		if err := chunks[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid chunk %s: %w", chunks[i].ID, err)
		}
		records[i] = vectorstore.RecordFromChunk(chunks[i], vec)
	}
	return records, nil
}

// keepAfterPass decides which stored chunks survive a full pass. Chunks the
// pass produced stay; other chunks of walked files are leftovers of a longer
// version and go. A file the walk did not see keeps its chunks only while it
// is still on disk and eligible, since the change watcher may have stored them
// after the walk.
func keepAfterPass(root string, rules filter.RuleSet, files []string, chunks []types.Chunk) vectorstore.KeepFunc {
	produced := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		produced[c.ID] = true
	}
	walked := make(map[string]bool, len(files))
	for _, f := range files {
		walked[f] = true
	}
	present := make(map[string]bool)

	return func(id string) bool {
		if produced[id] {
			return true
		}
		source, _, ok := types.ParseChunkID(id)
		if !ok || walked[source] {
			return false
		}
		exists, checked := present[source]
		if !checked {
			exists = rules.Eligible(source, false) && isRegularFile(filepath.Join(root, filepath.FromSlash(source)))
			present[source] = exists
		}
		return exists
	}
}

// ensureWatcher starts the project's change watcher unless one is running.
// Failing to start one is logged; the index result is unaffected.
func (idx *Indexer) ensureWatcher(project *types.Project) {
	if !idx.watch {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.watchers[project.ID]; ok {
		return
	}
	if idx.watchCtx.Err() != nil {
		return
	}

	rules := filter.ForProject(idx.defaults, project)
	w, err := watcher.New(watcher.Config{
		Root: project.RootPath,
		Eligible: func(path string, isDir bool) bool {
			return filter.IsEligible(path, isDir, project, rules)
		},
		Handler: &fileHandler{idx: idx, project: project},
		Logger:  idx.logger.With("project", project.ID),
	})
	if err == nil {
		err = w.Start(idx.watchCtx)
	}
	if err != nil {
		idx.logger.Warn("failed to start change watcher", "project", project.ID, "error", err)
		return
	}

	idx.watchers[project.ID] = w
}

// Watching reports whether a change watcher is running for the project
func (idx *Indexer) Watching(projectID string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, ok := idx.watchers[projectID]
	return ok
}

// StopWatching stops the project's change watcher, if any
func (idx *Indexer) StopWatching(projectID string) error {
	idx.mu.Lock()
	w, ok := idx.watchers[projectID]
	delete(idx.watchers, projectID)
	idx.mu.Unlock()

	if !ok {
		return nil
	}
	return w.Stop()
}

// Shutdown stops every change watcher. The indexer starts no new watchers afterwards.
func (idx *Indexer) Shutdown() error {
	idx.watchCancel()

	idx.mu.Lock()
	watchers := idx.watchers
	idx.watchers = make(map[string]*watcher.Watcher)
	idx.mu.Unlock()

	var errs []error
	for id, w := range watchers {
		if err := w.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping watcher for %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
