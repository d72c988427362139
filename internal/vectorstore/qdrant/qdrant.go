// Package qdrant implements vectorstore.Store on a Qdrant server over gRPC.
//
// Each collection is a Qdrant collection with cosine distance. Point ids are
// UUIDs derived from chunk ids; the chunk id itself is kept in the payload.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dshills/semindex/internal/vectorstore"
	"github.com/dshills/semindex/pkg/types"
)

// Payload keys
const (
	keyChunkID  = "chunk_id"
	keyContent  = "content"
	keyFilePath = "file_path"
	keyStart    = "start"
	keyEnd      = "end"
	keyModified = "modified"
)

// scrollPageSize is the number of points fetched per Scroll call while pruning
const scrollPageSize = 256

// Store implements vectorstore.Store using Qdrant.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	dimension   int
}

// New connects to Qdrant. Collections are created with the given vector dimension.
func New(ctx context.Context, host string, port int, dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("qdrant: invalid vector dimension %d", dimension)
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		dimension:   dimension,
	}, nil
}

func newWithClients(points pb.PointsClient, collections pb.CollectionsClient, dimension int) *Store {
	return &Store{points: points, collections: collections, dimension: dimension}
}

func (s *Store) exists(ctx context.Context, name string) (bool, error) {
	resp, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: name})
	if err != nil {
		return false, fmt.Errorf("qdrant collection exists %s: %w", name, err)
	}
	return resp.GetResult().GetExists(), nil
}

// GetOrCreateCollection returns the named collection, creating it if needed.
// Qdrant has no free-form collection metadata, so metadata is not stored.
func (s *Store) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]string) (vectorstore.Collection, error) {
	ok, err := s.exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		_, err := s.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: name,
			VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
				Size:     uint64(s.dimension),
				Distance: pb.Distance_Cosine,
			}}},
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant create collection %s: %w", name, err)
		}
	}
	return &collection{store: s, name: name}, nil
}

// GetCollection returns vectorstore.ErrCollectionNotFound for unknown names
func (s *Store) GetCollection(ctx context.Context, name string) (vectorstore.Collection, error) {
	ok, err := s.exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, vectorstore.ErrCollectionNotFound)
	}
	return &collection{store: s, name: name}, nil
}

// DeleteCollection drops the Qdrant collection
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name})
	if err != nil {
		return fmt.Errorf("qdrant delete collection %s: %w", name, err)
	}
	return nil
}

// Close closes the gRPC connection
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

type collection struct {
	store *Store
	name  string
}

func (c *collection) Name() string {
	return c.name
}

func (c *collection) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(records))
	for i, rec := range records {
		if len(rec.Vector) != c.store.dimension {
			return fmt.Errorf("record %s: %w: got %d, want %d", rec.ID, vectorstore.ErrDimensionMismatch, len(rec.Vector), c.store.dimension)
		}
		points[i] = toPoint(rec)
	}

	wait := true
	_, err := c.store.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: c.name,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (c *collection) Query(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error) {
	if k <= 0 {
		return []vectorstore.Match{}, nil
	}
	if len(vector) != c.store.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d", vectorstore.ErrDimensionMismatch, len(vector), c.store.dimension)
	}

	resp, err := c.store.points.Search(ctx, &pb.SearchPoints{
		CollectionName: c.name,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	matches := make([]vectorstore.Match, len(resp.GetResult()))
	for i, pt := range resp.GetResult() {
		matches[i] = vectorstore.Match{
			Record: fromPayload(pt.GetPayload()),
			Score:  float64(pt.GetScore()),
		}
	}
	return matches, nil
}

func (c *collection) DeleteBySource(ctx context.Context, sourceFile string) error {
	return c.deleteWhere(ctx, &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: sourceFilter(sourceFile)}})
}

// ReplaceSource deletes then upserts. Qdrant has no multi-operation
// transaction; the two calls are ordered with wait=true.
func (c *collection) ReplaceSource(ctx context.Context, sourceFile string, records []vectorstore.Record) error {
	for _, rec := range records {
		if rec.Metadata.SourceFile != sourceFile {
			return fmt.Errorf("record %s belongs to %s, not %s", rec.ID, rec.Metadata.SourceFile, sourceFile)
		}
	}
	if err := c.DeleteBySource(ctx, sourceFile); err != nil {
		return err
	}
	return c.Upsert(ctx, records)
}

func (c *collection) Prune(ctx context.Context, keep vectorstore.KeepFunc) (int, error) {
	var stale []*pb.PointId
	var offset *pb.PointId
	limit := uint32(scrollPageSize)

	for {
		resp, err := c.store.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: c.name,
			Offset:         offset,
			Limit:          &limit,
			WithPayload: &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Include{
				Include: &pb.PayloadIncludeSelector{Fields: []string{keyChunkID}},
			}},
		})
		if err != nil {
			return 0, fmt.Errorf("qdrant scroll: %w", err)
		}
		for _, pt := range resp.GetResult() {
			if !keep(pt.GetPayload()[keyChunkID].GetStringValue()) {
				stale = append(stale, pt.GetId())
			}
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	if len(stale) == 0 {
		return 0, nil
	}
	err := c.deleteWhere(ctx, &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Points{
		Points: &pb.PointsIdsList{Ids: stale},
	}})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}

func (c *collection) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := c.store.points.Count(ctx, &pb.CountPoints{CollectionName: c.name, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func (c *collection) deleteWhere(ctx context.Context, selector *pb.PointsSelector) error {
	wait := true
	_, err := c.store.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: c.name,
		Wait:           &wait,
		Points:         selector,
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

// PointID maps a chunk id to the deterministic UUID used as its Qdrant point id
func PointID(chunkID string) string {
	return uuid.NewMD5(uuid.Nil, []byte(chunkID)).String()
}

func toPoint(rec vectorstore.Record) *pb.PointStruct {
	payload := map[string]*pb.Value{
		keyChunkID:  stringValue(rec.ID),
		keyContent:  stringValue(rec.Document),
		keyFilePath: stringValue(rec.Metadata.SourceFile),
		keyStart:    intValue(rec.Metadata.StartLine),
		keyEnd:      intValue(rec.Metadata.EndLine),
	}
	if !rec.Metadata.ModifiedAt.IsZero() {
		payload[keyModified] = stringValue(rec.Metadata.ModifiedAt.UTC().Format(time.RFC3339Nano))
	}
	return &pb.PointStruct{
		Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(rec.ID)}},
		Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: rec.Vector}}},
		Payload: payload,
	}
}

func fromPayload(payload map[string]*pb.Value) vectorstore.Record {
	id := payload[keyChunkID].GetStringValue()
	meta := types.ChunkMetadata{
		ChunkID:    id,
		SourceFile: payload[keyFilePath].GetStringValue(),
		StartLine:  int(payload[keyStart].GetIntegerValue()),
		EndLine:    int(payload[keyEnd].GetIntegerValue()),
	}
	if raw := payload[keyModified].GetStringValue(); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			meta.ModifiedAt = t
		}
	}
	return vectorstore.Record{
		ID:       id,
		Document: payload[keyContent].GetStringValue(),
		Metadata: meta,
	}
}

func sourceFilter(sourceFile string) *pb.Filter {
	return &pb.Filter{Must: []*pb.Condition{{
		ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
			Key:   keyFilePath,
			Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: sourceFile}},
		}},
	}}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(n int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(n)}}
}

var _ vectorstore.Store = (*Store)(nil)
var _ vectorstore.Collection = (*collection)(nil)
