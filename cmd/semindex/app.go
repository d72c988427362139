package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/dshills/semindex/internal/config"
	"github.com/dshills/semindex/internal/embedder"
	"github.com/dshills/semindex/internal/indexer"
	"github.com/dshills/semindex/internal/searcher"
	"github.com/dshills/semindex/internal/storage"
	"github.com/dshills/semindex/internal/vectorstore"
	"github.com/dshills/semindex/internal/vectorstore/qdrant"
)

// lockTimeout bounds how long a writer waits for another process to release the data directory
const lockTimeout = 5 * time.Second

// app holds the wired components for one command invocation
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *storage.SQLiteStorage
	vectors  vectorstore.Store
	embedder embedder.Embedder
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	lock     *flock.Flock
}

type appOptions struct {
	configPath string
	exclusive  bool // hold the data directory lock for the app's lifetime
	watch      bool // start change watchers after full indexes
}

func newLogger(level slog.Level) *slog.Logger {
	// stdout is reserved for MCP and command output
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openApp(ctx context.Context, opts appOptions) (_ *app, err error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: newLogger(cfg.Log.SlogLevel())}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if opts.exclusive {
		if a.lock, err = acquireLock(cfg.LockPath(), lockTimeout); err != nil {
			return nil, err
		}
	}

	if a.db, err = storage.NewSQLiteStorage(cfg.DBPath()); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(embedder.Config{
		Provider:    cfg.Embedding.Provider,
		APIKey:      cfg.Embedding.APIKey,
		CacheSize:   cfg.Embedding.CacheSize,
		MaxAttempts: cfg.Embedding.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	a.embedder = emb

	switch cfg.Vector.Backend {
	case config.BackendQdrant:
		store, err := qdrant.New(ctx, cfg.Vector.Qdrant.Host, cfg.Vector.Qdrant.Port, a.embedder.Dimension())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		a.vectors = store
	default:
		a.vectors = storage.NewVectorStore(a.db)
	}

	a.indexer = indexer.New(a.db, a.vectors, a.embedder, indexer.Config{
		Workers:        cfg.Indexer.Workers,
		DefaultIgnore:  cfg.Ignore.Defaults,
		MaxChars:       cfg.Chunker.MaxChars,
		OverlapChars:   cfg.Chunker.OverlapChars,
		DisableWatcher: !opts.watch,
		Logger:         a.logger,
	})
	a.searcher = searcher.NewSearcher(a.vectors, a.embedder, a.logger)

	a.logger.Debug("components ready",
		"data_dir", cfg.DataDir,
		"backend", cfg.Vector.Backend,
		"embedder", a.embedder.Provider(),
		"model", a.embedder.Model(),
		"driver", storage.DriverName)

	return a, nil
}

// close releases everything in reverse order of acquisition
func (a *app) close() error {
	var errs []error
	if a.indexer != nil {
		errs = append(errs, a.indexer.Shutdown())
	}
	if a.vectors != nil {
		errs = append(errs, a.vectors.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.lock != nil {
		errs = append(errs, a.lock.Unlock())
	}
	return errors.Join(errs...)
}

// acquireLock takes the data directory lock, retrying until timeout
func acquireLock(path string, timeout time.Duration) (*flock.Flock, error) {
	l := flock.New(path)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return nil, fmt.Errorf("cannot acquire data directory lock: %w", err)
		}
		if locked {
			return l, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("data directory is in use by another semindex process (lock: %s)", path)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
