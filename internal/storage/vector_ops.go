package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/dshills/semindex/internal/vectorstore"
)

// searchVector performs vector similarity search using cosine similarity
func searchVector(ctx context.Context, q querier, collectionID int64, queryVector []float32, limit int) ([]vectorstore.Match, error) {
	if limit <= 0 || len(queryVector) == 0 {
		return []vectorstore.Match{}, nil
	}

	var dim int
	err := q.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE id = ?`, collectionID).Scan(&dim)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []vectorstore.Match{}, nil
	}
	if dim != len(queryVector) {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d", vectorstore.ErrDimensionMismatch, len(queryVector), dim)
	}

	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, q, collectionID, queryVector, limit)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, q, collectionID, queryVector, limit)
}

const matchColumns = `c.chunk_id, c.content, c.source_file, c.start_line, c.end_line, c.modified_at`

// searchVectorOptimized uses sqlite-vec extension for SQL-based vector similarity search
func searchVectorOptimized(ctx context.Context, q querier, collectionID int64, queryVector []float32, limit int) ([]vectorstore.Match, error) {
	queryVectorBlob := serializeVector(queryVector)

	// vec_distance_cosine returns a distance; convert to similarity so higher is closer
	query := `
		SELECT ` + matchColumns + `,
			1.0 - vec_distance_cosine(c.vector, ?) as similarity
		FROM chunks c
		WHERE c.collection_id = ?
		ORDER BY similarity DESC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, queryVectorBlob, collectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// Results are already sorted by SQL
	results := make([]vectorstore.Match, 0, limit)
	for rows.Next() {
		var m vectorstore.Match
		var modifiedAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.Document, &m.Metadata.SourceFile, &m.Metadata.StartLine,
			&m.Metadata.EndLine, &modifiedAt, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		finishMatch(&m, modifiedAt)
		results = append(results, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// searchVectorFallback ranks every vector of the collection in Go.
// This is used when the sqlite-vec extension is not available (purego builds).
func searchVectorFallback(ctx context.Context, q querier, collectionID int64, queryVector []float32, limit int) ([]vectorstore.Match, error) {
	query := `
		SELECT ` + matchColumns + `, c.vector
		FROM chunks c
		WHERE c.collection_id = ?
	`
	rows, err := q.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, queryVector)
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)

	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32) ([]vectorstore.Match, error) {
	candidates := make([]vectorstore.Match, 0, 256)

	for rows.Next() {
		var m vectorstore.Match
		var modifiedAt sql.NullTime
		var vectorBlob []byte
		if err := rows.Scan(&m.ID, &m.Document, &m.Metadata.SourceFile, &m.Metadata.StartLine,
			&m.Metadata.EndLine, &modifiedAt, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		m.Score = cosineSimilarity(queryVector, vector)
		finishMatch(&m, modifiedAt)
		candidates = append(candidates, m)
	}

	return candidates, rows.Err()
}

func finishMatch(m *vectorstore.Match, modifiedAt sql.NullTime) {
	m.Metadata.ChunkID = m.ID
	if modifiedAt.Valid {
		m.Metadata.ModifiedAt = modifiedAt.Time
	}
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortCandidates sorts by score, highest first. Ties keep chunk id order so
// results are deterministic.
func sortCandidates(candidates []vectorstore.Match) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
