package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/dshills/semindex/internal/filter"
	"github.com/dshills/semindex/pkg/types"
)

// discoverFiles walks root and returns the slash-separated relative paths of
// eligible regular files in lexical order. Ignored directories are pruned and
// never descended into.
func (idx *Indexer) discoverFiles(root string, rules filter.RuleSet) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			idx.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if path == root {
			return nil
		}

		rel, ok := filter.RelPath(root, path)
		if !ok {
			return nil
		}

		if d.IsDir() {
			if !rules.Eligible(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !rules.Eligible(rel, false) {
			return nil
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return files, nil
}

// chunkFiles reads and chunks files concurrently. Chunks keep the order of
// files, so a pass over an unchanged tree always produces the same sequence.
// It also returns how many files contributed at least one chunk.
func (idx *Indexer) chunkFiles(ctx context.Context, root string, files []string) ([]types.Chunk, int, error) {
	perFile := make([][]types.Chunk, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunks, err := idx.chunkFile(root, rel)
			if err != nil {
				return err
			}
			perFile[i] = chunks
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var all []types.Chunk
	filesIndexed := 0
	for _, chunks := range perFile {
		if len(chunks) > 0 {
			filesIndexed++
		}
		all = append(all, chunks...)
	}
	return all, filesIndexed, nil
}

// chunkFile reads one file and splits it. A file that disappeared since it
// was listed yields no chunks.
func (idx *Indexer) chunkFile(root, rel string) ([]types.Chunk, error) {
	path := filepath.Join(root, filepath.FromSlash(rel))

	text, modTime, err := readSource(path)
	if errors.Is(err, fs.ErrNotExist) {
		idx.logger.Debug("file vanished before it was read", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}

	return idx.chunker.ChunkFile(rel, text, modTime), nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// readSource reads a file as text. A byte order mark selects the encoding
// (UTF-8 otherwise) and invalid sequences become U+FFFD instead of failing
// the read.
func readSource(path string) (string, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", time.Time{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", time.Time{}, err
	}

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(f, decoder))
	if err != nil {
		return "", time.Time{}, err
	}

	return string(data), info.ModTime(), nil
}
