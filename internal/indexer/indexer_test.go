package indexer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semindex/internal/config"
	"github.com/dshills/semindex/internal/embedder"
	"github.com/dshills/semindex/internal/filter"
	"github.com/dshills/semindex/internal/storage"
	"github.com/dshills/semindex/internal/vectorstore"
	"github.com/dshills/semindex/pkg/types"
)

const mockDimension = 8

// mockEmbedder implements embedder.Embedder for testing.
// Vectors depend only on the text.
type mockEmbedder struct {
	mu         sync.Mutex
	batchErr   error
	batchCalls int
	lastBatch  []string

	entered chan struct{} // signalled when GenerateBatch starts
	block   chan struct{} // GenerateBatch waits on it when set
	hook    func()        // runs once, at the start of the next GenerateBatch
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{}
}

func mockVector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float32, mockDimension)
	for i := range vec {
		vec[i] = float32((seed>>(i*8))&0xff) + 1
	}
	return embedder.NormalizeVector(vec)
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	return &embedder.Embedding{Vector: mockVector(req.Text), Dimension: mockDimension, Provider: "mock", Model: "test-v1"}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	if m.entered != nil {
		select {
		case m.entered <- struct{}{}:
		default:
		}
	}
	if m.block != nil {
		<-m.block
	}

	m.mu.Lock()
	hook := m.hook
	m.hook = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	m.lastBatch = append([]string(nil), req.Texts...)
	if m.batchErr != nil {
		return nil, m.batchErr
	}

	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		embeddings[i] = &embedder.Embedding{Vector: mockVector(text), Dimension: mockDimension, Provider: "mock", Model: "test-v1"}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: embeddings, Provider: "mock", Model: "test-v1"}, nil
}

func (m *mockEmbedder) Dimension() int   { return mockDimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "test-v1" }
func (m *mockEmbedder) Close() error     { return nil }

func (m *mockEmbedder) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchErr = err
}

func (m *mockEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}

type fixture struct {
	idx     *Indexer
	db      *storage.SQLiteStorage
	store   *storage.VectorStore
	emb     *mockEmbedder
	project *types.Project
}

func newFixture(t *testing.T, watch bool) *fixture {
	t.Helper()

	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	project := &types.Project{ID: "p1", Name: "Demo", RootPath: t.TempDir()}
	require.NoError(t, db.CreateProject(context.Background(), project))

	emb := newMockEmbedder()
	store := storage.NewVectorStore(db)
	idx := New(db, store, emb, Config{
		Workers:        4,
		DefaultIgnore:  config.DefaultIgnore,
		DisableWatcher: !watch,
	})
	t.Cleanup(func() { _ = idx.Shutdown() })

	return &fixture{idx: idx, db: db, store: store, emb: emb, project: project}
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.project.RootPath, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// records returns every stored record of the project keyed by chunk id
func (f *fixture) records(t *testing.T) map[string]vectorstore.Match {
	t.Helper()
	out, err := f.tryRecords()
	require.NoError(t, err)
	return out
}

// tryRecords is safe to call from assert.Eventually conditions
func (f *fixture) tryRecords() (map[string]vectorstore.Match, error) {
	ctx := context.Background()
	coll, err := f.store.GetCollection(ctx, CollectionName(f.project.ID))
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return map[string]vectorstore.Match{}, nil
	}
	if err != nil {
		return nil, err
	}

	matches, err := coll.Query(ctx, mockVector("any"), 10000)
	if err != nil {
		return nil, err
	}
	out := make(map[string]vectorstore.Match, len(matches))
	for _, m := range matches {
		out[m.ID] = m
	}
	return out, nil
}

func longFile(lines int) string {
	var b strings.Builder
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "value_%03d = %q\n", i, strings.Repeat("x", 80))
	}
	return b.String()
}

func TestIndexProject_EndToEnd(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "src/main.py", "def hello():\n    return 'hi'\n")
	f.write(t, "node_modules/lib.js", "module.exports = 1;\n")
	f.write(t, "notes.txt", "not indexed\n")

	result, err := f.idx.IndexProject(context.Background(), f.project)
	require.NoError(t, err)

	assert.Equal(t, "p1", result.ProjectID)
	assert.Equal(t, 1, result.ChunksIndexed)
	assert.Equal(t, 1, result.FilesIndexed)

	status := f.idx.Status("p1")
	assert.Equal(t, types.StateIndexed, status.State)
	assert.Equal(t, "Indexed 1 chunks", status.Note)
	assert.False(t, status.UpdatedAt.IsZero())

	records := f.records(t)
	require.Len(t, records, 1)
	rec, ok := records["src/main.py:0"]
	require.True(t, ok)
	assert.Equal(t, "def hello():\n    return 'hi'", rec.Document)
	assert.Equal(t, "src/main.py", rec.Metadata.SourceFile)
	assert.Equal(t, 1, rec.Metadata.StartLine)
	assert.Equal(t, 2, rec.Metadata.EndLine)
	assert.False(t, rec.Metadata.ModifiedAt.IsZero())
	for id := range records {
		assert.NotContains(t, id, "node_modules")
	}
}

func TestIndexProject_CollectionMetadata(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "main.go", "package main\n")

	_, err := f.idx.IndexProject(context.Background(), f.project)
	require.NoError(t, err)

	coll, err := f.db.GetCollectionByName(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"project": "Demo"}, coll.Metadata)
	assert.Equal(t, mockDimension, coll.Dimension)
}

func TestIndexProject_Idempotent(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "src/app.py", longFile(40))
	f.write(t, "README.md", "# Demo\n\nSome docs.\n")
	ctx := context.Background()

	first, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)
	before := f.records(t)

	second, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)
	after := f.records(t)

	assert.Equal(t, first.ChunksIndexed, second.ChunksIndexed)
	assert.Equal(t, 0, second.ChunksPruned)
	assert.Len(t, after, len(before))
	for id, rec := range before {
		assert.Equal(t, rec.Document, after[id].Document, id)
	}
}

func TestIndexProject_PrunesStaleChunks(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.write(t, "src/app.py", longFile(40))
	gone := f.write(t, "src/old.py", "old = True\n")

	first, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)
	require.Greater(t, first.ChunksIndexed, 2)

	f.write(t, "src/app.py", "small = 1\n")
	require.NoError(t, os.Remove(gone))

	second, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)
	assert.Equal(t, 1, second.ChunksIndexed)
	// every chunk but src/app.py:0, which was overwritten in place
	assert.Equal(t, first.ChunksIndexed-1, second.ChunksPruned)

	records := f.records(t)
	require.Len(t, records, 1)
	assert.Equal(t, "small = 1", records["src/app.py:0"].Document)
}

func TestIndexProject_OverwritesChangedChunks(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.write(t, "src/app.py", longFile(40))

	first, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)
	require.Greater(t, first.ChunksIndexed, 1)
	before := f.records(t)

	// Same line lengths, so the chunk boundaries do not move
	f.write(t, "src/app.py", strings.ReplaceAll(longFile(40), "x", "y"))

	second, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)
	assert.Equal(t, first.ChunksIndexed, second.ChunksIndexed)
	assert.Equal(t, 0, second.ChunksPruned)

	after := f.records(t)
	require.Len(t, after, len(before))
	for id, rec := range after {
		require.Contains(t, before, id)
		assert.Contains(t, rec.Document, strings.Repeat("y", 80), id)
		assert.NotContains(t, rec.Document, strings.Repeat("x", 80), id)
		assert.Equal(t, before[id].Metadata.StartLine, rec.Metadata.StartLine, id)
	}
}

func TestIndexProject_KeepsChunksStoredDuringPass(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.write(t, "src/a.py", "a = 1\n")
	h := &fileHandler{idx: f.idx, project: f.project}

	// The walk is over by the time the pass embeds; a file created now is
	// picked up by the change watcher, not by the pass.
	f.emb.hook = func() {
		path := f.write(t, "src/new.py", "fresh = True\n")
		require.NoError(t, h.Changed(ctx, path))
	}

	result, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksIndexed)
	assert.Equal(t, 0, result.ChunksPruned)

	records := f.records(t)
	assert.Len(t, records, 2)
	assert.Equal(t, "fresh = True", records["src/new.py:0"].Document)
	assert.Contains(t, records, "src/a.py:0")
}

func TestIndexProject_PrunesNewlyIgnoredFiles(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.write(t, "src/app.py", "app = 1\n")
	f.write(t, "gen/api.py", "api = 1\n")

	_, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)
	require.Len(t, f.records(t), 2)

	f.project.IgnorePatterns = []string{"gen"}
	result, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksPruned)
	assert.NotContains(t, f.records(t), "gen/api.py:0")
}

func TestKeepAfterPass(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "late.py"), []byte("late = 1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "notes.txt"), []byte("notes\n"), 0644))

	rules := filter.ForProject(config.DefaultIgnore, &types.Project{ID: "p1", RootPath: root})
	keep := keepAfterPass(root, rules, []string{"src/app.py"}, []types.Chunk{{ID: "src/app.py:0"}})

	tests := []struct {
		id   string
		want bool
	}{
		{"src/app.py:0", true},   // produced by the pass
		{"src/app.py:1", false},  // walked file got shorter
		{"src/late.py:0", true},  // not walked, still on disk
		{"src/gone.py:0", false}, // not walked, deleted
		{"src/notes.txt:0", false},
		{"malformed", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, keep(tt.id))
		})
	}
}

func TestEmbedChunks_RejectsMalformedChunks(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.idx.embedChunks(ctx, []types.Chunk{
		{ID: "a.py:0", SourceFile: "a.py", Text: "a = 1", StartLine: 1, EndLine: 1},
		{ID: "a.py:1", SourceFile: "a.py", Text: "b = 2", StartLine: 4, EndLine: 2},
	})
	assert.ErrorIs(t, err, types.ErrInvalidLineRange)

	_, err = f.idx.embedChunks(ctx, []types.Chunk{{ID: ":0", Text: "x", StartLine: 1, EndLine: 1}})
	assert.ErrorIs(t, err, types.ErrMissingSourceFile)

	records, err := f.idx.embedChunks(ctx, []types.Chunk{{ID: "a.py:0", SourceFile: "a.py", Text: "a = 1", StartLine: 1, EndLine: 1}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, records[0].Vector, mockDimension)
}

func TestIndexProject_EmptyProject(t *testing.T) {
	f := newFixture(t, false)

	result, err := f.idx.IndexProject(context.Background(), f.project)
	require.NoError(t, err)

	assert.Equal(t, 0, result.ChunksIndexed)
	assert.Equal(t, 0, f.emb.calls())
	assert.Equal(t, "Indexed 0 chunks", f.idx.Status("p1").Note)
}

func TestIndexProject_OneBatchPerPass(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "a.py", "a = 1\n")
	f.write(t, "b/c.ts", "const c = 2;\n")
	f.write(t, "b/d.go", "package d\n")

	result, err := f.idx.IndexProject(context.Background(), f.project)
	require.NoError(t, err)

	assert.Equal(t, 3, result.ChunksIndexed)
	assert.Equal(t, 1, f.emb.calls())
	// Lexical walk order
	assert.Equal(t, []string{"a = 1", "const c = 2;", "package d"}, f.emb.lastBatch)
}

func TestIndexProject_ProjectIgnorePatterns(t *testing.T) {
	f := newFixture(t, false)
	f.project.IgnorePatterns = []string{"generated/", "*_pb2.py"}
	f.write(t, "src/app.py", "app = 1\n")
	f.write(t, "generated/api.go", "package api\n")
	f.write(t, "proto/svc_pb2.py", "svc = 1\n")

	result, err := f.idx.IndexProject(context.Background(), f.project)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ChunksIndexed)
	assert.Contains(t, f.records(t), "src/app.py:0")
}

func TestIndexProject_SkipsWhitespaceOnlyFiles(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "blank.py", "\n   \n\t\n")
	f.write(t, "real.py", "x = 1\n")

	result, err := f.idx.IndexProject(context.Background(), f.project)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ChunksIndexed)
	assert.Equal(t, 1, result.FilesIndexed)
}

func TestIndexProject_Decoding(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "bom.py", "\xef\xbb\xbfname = 'bom'\n")
	f.write(t, "bad.py", "x = '\xff\xfe\xfd'\n")

	_, err := f.idx.IndexProject(context.Background(), f.project)
	require.NoError(t, err)

	records := f.records(t)
	assert.Equal(t, "name = 'bom'", records["bom.py:0"].Document)
	assert.Contains(t, records["bad.py:0"].Document, "\uFFFD")
}

func TestIndexProject_EmbedderError(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "main.py", "print('hi')\n")
	f.emb.setErr(fmt.Errorf("%w: quota exceeded", embedder.ErrProviderFailed))

	_, err := f.idx.IndexProject(context.Background(), f.project)
	require.Error(t, err)
	assert.ErrorIs(t, err, embedder.ErrProviderFailed)

	status := f.idx.Status("p1")
	assert.Equal(t, types.StateError, status.State)
	assert.Contains(t, status.Note, "quota exceeded")

	// A later pass recovers
	f.emb.setErr(nil)
	_, err = f.idx.IndexProject(context.Background(), f.project)
	require.NoError(t, err)
	assert.Equal(t, types.StateIndexed, f.idx.Status("p1").State)
}

func TestIndexProject_MissingRoot(t *testing.T) {
	f := newFixture(t, false)
	f.project.RootPath = filepath.Join(f.project.RootPath, "missing")

	_, err := f.idx.IndexProject(context.Background(), f.project)
	require.Error(t, err)
	assert.Equal(t, types.StateError, f.idx.Status("p1").State)
}

func TestIndexProject_InvalidProject(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.idx.IndexProject(context.Background(), &types.Project{ID: "rel", RootPath: "relative/path"})
	assert.ErrorIs(t, err, types.ErrRootPathNotAbsolute)
	assert.Equal(t, types.StateUninitialized, f.idx.Status("rel").State)
}

func TestIndexProject_InProgress(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "main.py", "print('hi')\n")
	f.emb.entered = make(chan struct{}, 1)
	f.emb.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.idx.IndexProject(context.Background(), f.project)
		done <- err
	}()

	select {
	case <-f.emb.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first index never reached the embedder")
	}

	_, err := f.idx.IndexProject(context.Background(), f.project)
	assert.ErrorIs(t, err, ErrIndexInProgress)
	assert.Equal(t, types.StateIndexing, f.idx.Status("p1").State)

	close(f.emb.block)
	require.NoError(t, <-done)
	assert.Equal(t, types.StateIndexed, f.idx.Status("p1").State)
}

func TestIndexProjectByID(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "main.py", "print('hi')\n")

	_, err := f.idx.IndexProjectByID(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrProjectNotFound)

	result, err := f.idx.IndexProjectByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksIndexed)
}

func TestStatuses(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "main.py", "print('hi')\n")
	_, err := f.idx.IndexProject(context.Background(), f.project)
	require.NoError(t, err)

	statuses := f.idx.Statuses([]string{"p1", "other"})
	assert.Equal(t, types.StateIndexed, statuses["p1"].State)
	assert.Equal(t, types.StateUninitialized, statuses["other"].State)
	assert.Empty(t, f.idx.Statuses(nil))
}

func TestIndexLock(t *testing.T) {
	var lock IndexLock
	assert.True(t, lock.TryAcquire())
	assert.False(t, lock.TryAcquire())
	lock.Release()
	assert.True(t, lock.TryAcquire())
}

func TestEnsureWatcher_OnePerProject(t *testing.T) {
	f := newFixture(t, true)
	f.write(t, "main.py", "print('hi')\n")
	ctx := context.Background()

	_, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)
	require.True(t, f.idx.Watching("p1"))

	f.idx.mu.Lock()
	first := f.idx.watchers["p1"]
	f.idx.mu.Unlock()

	_, err = f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)

	f.idx.mu.Lock()
	assert.Same(t, first, f.idx.watchers["p1"])
	assert.Len(t, f.idx.watchers, 1)
	f.idx.mu.Unlock()

	require.NoError(t, f.idx.StopWatching("p1"))
	assert.False(t, f.idx.Watching("p1"))
	assert.NoError(t, f.idx.StopWatching("p1"))
}

func TestEnsureWatcher_AfterFailedIndex(t *testing.T) {
	f := newFixture(t, true)
	f.write(t, "main.py", "print('hi')\n")
	f.emb.setErr(errors.New("provider down"))

	_, err := f.idx.IndexProject(context.Background(), f.project)
	require.Error(t, err)
	assert.True(t, f.idx.Watching("p1"))
}

func TestShutdown_StopsWatchers(t *testing.T) {
	f := newFixture(t, true)
	f.write(t, "main.py", "print('hi')\n")

	_, err := f.idx.IndexProject(context.Background(), f.project)
	require.NoError(t, err)
	require.True(t, f.idx.Watching("p1"))

	require.NoError(t, f.idx.Shutdown())
	assert.False(t, f.idx.Watching("p1"))

	// No watcher is started after shutdown
	_, err = f.idx.IndexProject(context.Background(), f.project)
	require.NoError(t, err)
	assert.False(t, f.idx.Watching("p1"))
}

func TestFileHandler(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	path := f.write(t, "src/app.py", longFile(40))
	f.write(t, "src/keep.py", "keep = 1\n")

	_, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)
	before := len(f.records(t))

	h := &fileHandler{idx: f.idx, project: f.project}

	// Shrinking a file drops its trailing chunks
	f.write(t, "src/app.py", "app = 'short'\n")
	require.NoError(t, h.Changed(ctx, path))
	records := f.records(t)
	assert.Less(t, len(records), before)
	assert.Len(t, records, 2)
	assert.Equal(t, "app = 'short'", records["src/app.py:0"].Document)

	// The index status is not touched
	assert.Equal(t, "Indexed "+fmt.Sprint(before)+" chunks", f.idx.Status("p1").Note)

	require.NoError(t, os.Remove(path))
	require.NoError(t, h.Removed(ctx, path))
	records = f.records(t)
	assert.Len(t, records, 1)
	assert.Contains(t, records, "src/keep.py:0")

	// Paths outside the root are ignored
	assert.NoError(t, h.Changed(ctx, filepath.Join(t.TempDir(), "x.py")))
}

func TestFileHandler_EmbedderError(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	path := f.write(t, "main.py", "v = 1\n")
	_, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)

	f.emb.setErr(errors.New("provider down"))
	f.write(t, "main.py", "v = 2\n")

	h := &fileHandler{idx: f.idx, project: f.project}
	assert.Error(t, h.Changed(ctx, path))
	// The old chunk survives a failed update
	assert.Equal(t, "v = 1", f.records(t)["main.py:0"].Document)
	assert.Equal(t, types.StateIndexed, f.idx.Status("p1").State)
}

func TestFileHandler_RemovedDir(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.write(t, "src/a.py", "a = 1\n")
	f.write(t, "src/pkg/b.py", "b = 2\n")
	f.write(t, "srcgen/c.py", "c = 3\n")

	_, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)
	require.Len(t, f.records(t), 3)

	h := &fileHandler{idx: f.idx, project: f.project}
	require.NoError(t, h.RemovedDir(ctx, filepath.Join(f.project.RootPath, "src")))

	records := f.records(t)
	assert.Len(t, records, 1)
	assert.Contains(t, records, "srcgen/c.py:0")

	// The root itself is never a removal target
	require.NoError(t, h.RemovedDir(ctx, f.project.RootPath))
	assert.Len(t, f.records(t), 1)
}

func TestWatcher_ReindexesChangedFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping filesystem event test in short mode")
	}

	f := newFixture(t, true)
	ctx := context.Background()
	path := f.write(t, "src/main.py", "version = 1\n")

	_, err := f.idx.IndexProject(ctx, f.project)
	require.NoError(t, err)
	require.True(t, f.idx.Watching("p1"))

	f.write(t, "src/main.py", "version = 2\n")
	assert.Eventually(t, func() bool {
		records, err := f.tryRecords()
		return err == nil && records["src/main.py:0"].Document == "version = 2"
	}, 5*time.Second, 50*time.Millisecond)

	f.write(t, "src/extra.py", "extra = True\n")
	assert.Eventually(t, func() bool {
		records, err := f.tryRecords()
		_, ok := records["src/extra.py:0"]
		return err == nil && ok
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		records, err := f.tryRecords()
		_, ok := records["src/main.py:0"]
		return err == nil && !ok
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, "Indexed 1 chunks", f.idx.Status("p1").Note)
}
