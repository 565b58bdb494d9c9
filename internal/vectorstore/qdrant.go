package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/we0-dev/we0-index/internal/config"
	"github.com/we0-dev/we0-index/internal/embeddings"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("we0-index.vectorstore.qdrant")

// scrollLimit bounds a single metadata scroll.
const scrollLimit = 10000

// QdrantStore is a Store implementation using qdrant's native gRPC client.
//
// Only remote mode is supported: the Go client has no embedded engine, so
// the disk and memory modes of the original configuration schema are
// rejected at construction (the chroma platform covers embedded use).
type QdrantStore struct {
	base

	cfg    *config.QdrantConfig
	logger *zap.Logger

	client     *qdrant.Client
	collection string
}

func newQdrantStore(cfg *config.Config, embedder embeddings.Provider, logger *zap.Logger) (Store, error) {
	qc := cfg.Vector.Qdrant
	if qc == nil {
		return nil, fmt.Errorf("%w: qdrant configuration is missing", ErrInvalidConfig)
	}
	switch qc.Mode {
	case config.QdrantModeRemote:
		if qc.Remote == nil || qc.Remote.Host == "" {
			return nil, fmt.Errorf("%w: qdrant remote host is required", ErrInvalidConfig)
		}
	case config.QdrantModeDisk, config.QdrantModeMemory:
		return nil, fmt.Errorf("%w: qdrant %s mode needs an embedded engine; use remote mode or the chroma platform",
			ErrInvalidConfig, qc.Mode)
	default:
		return nil, fmt.Errorf("%w: unknown qdrant mode: %q", ErrInvalidConfig, qc.Mode)
	}

	return &QdrantStore{
		base:   newBase(embedder),
		cfg:    qc,
		logger: logger,
	}, nil
}

// IsTransientError reports whether a qdrant error reflects a temporary
// server condition. Invalid arguments, not-found and auth failures are
// permanent.
func IsTransientError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// qdrantErr wraps a client error. Transient server conditions carry
// ErrConnectionFailed so health reports and callers can tell a struggling
// server from a bad request.
func qdrantErr(op string, err error) error {
	if IsTransientError(err) {
		return fmt.Errorf("%w: %s: %v", ErrConnectionFailed, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Init connects to the qdrant server and ensures the model-specific
// collection exists, including the payload indexes used for filtering.
func (s *QdrantStore) Init(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Init")
	defer span.End()

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: s.cfg.Remote.Host,
		Port: s.cfg.Remote.Port,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	s.client = client

	dimension, err := s.Dimension(ctx)
	if err != nil {
		return err
	}
	s.collection = s.collectionName(dimension)
	span.SetAttributes(
		attribute.String("collection", s.collection),
		attribute.Int("dimension", dimension),
	)

	names, err := client.ListCollections(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return qdrantErr("listing collections", err)
	}
	for _, name := range names {
		if name == s.collection {
			span.SetStatus(codes.Ok, "collection exists")
			return nil
		}
	}

	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
		// Payload-only HNSW: global graph off (m=0), per-payload graphs on.
		HnswConfig: &qdrant.HnswConfigDiff{
			M:                  qdrant.PtrOf(uint64(0)),
			PayloadM:           qdrant.PtrOf(uint64(16)),
			EfConstruct:        qdrant.PtrOf(uint64(100)),
			FullScanThreshold:  qdrant.PtrOf(uint64(10000)),
			MaxIndexingThreads: qdrant.PtrOf(uint64(0)),
			OnDisk:             qdrant.PtrOf(false),
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return qdrantErr("creating collection "+s.collection, err)
	}

	for _, field := range []string{"repo_id", "file_id"} {
		_, err := client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			span.RecordError(err)
			return qdrantErr("creating payload index "+field, err)
		}
	}

	s.logger.Info("qdrant collection created",
		zap.String("collection", s.collection),
		zap.Int("dimension", dimension))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Upsert inserts or replaces documents, keyed by document ID.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.Int("document_count", len(docs)),
		attribute.String("collection", s.collection),
	)

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content":       doc.Content,
				"repo_id":       doc.Meta.RepoID,
				"file_id":       doc.Meta.FileID,
				"relative_path": doc.Meta.RelativePath,
			}),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return qdrantErr("upserting points to "+s.collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Meta returns the metadata of all files indexed for a repository.
func (s *QdrantStore) Meta(ctx context.Context, repoID string) ([]DocumentMeta, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Meta")
	defer span.End()

	span.SetAttributes(attribute.String("repo_id", repoID))

	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("repo_id", repoID)},
		},
		Limit:       qdrant.PtrOf(uint32(scrollLimit)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, qdrantErr("scrolling repo "+repoID, err)
	}

	seen := make(map[string]struct{}, len(points))
	metas := make([]DocumentMeta, 0, len(points))
	for _, point := range points {
		meta := metaFromPayload(point.Payload)
		if _, ok := seen[meta.FileID]; ok {
			continue
		}
		seen[meta.FileID] = struct{}{}
		metas = append(metas, meta)
	}

	span.SetAttributes(attribute.Int("file_count", len(metas)))
	span.SetStatus(codes.Ok, "success")
	return metas, nil
}

// Drop removes everything indexed for a repository.
func (s *QdrantStore) Drop(ctx context.Context, repoID string) error {
	return s.deleteByFilter(ctx, "QdrantStore.Drop", &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("repo_id", repoID)},
	})
}

// Delete removes the documents of the given files from a repository.
func (s *QdrantStore) Delete(ctx context.Context, repoID string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return s.deleteByFilter(ctx, "QdrantStore.Delete", &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("repo_id", repoID),
			qdrant.NewMatchKeywords("file_id", fileIDs...),
		},
	})
}

func (s *QdrantStore) deleteByFilter(ctx context.Context, op string, filter *qdrant.Filter) error {
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return qdrantErr("deleting points from "+s.collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// SearchByVector performs similarity search within a repository.
func (s *QdrantStore) SearchByVector(ctx context.Context, repoID string, fileIDs []string, vector []float32, topK int) ([]Document, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.SearchByVector")
	defer span.End()

	span.SetAttributes(
		attribute.String("repo_id", repoID),
		attribute.Int("top_k", topK),
	)

	conditions := []*qdrant.Condition{qdrant.NewMatch("repo_id", repoID)}
	if len(fileIDs) > 0 {
		conditions = append(conditions, qdrant.NewMatchKeywords("file_id", fileIDs...))
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         &qdrant.Filter{Must: conditions},
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, qdrantErr("searching "+s.collection, err)
	}

	docs := make([]Document, len(points))
	for i, point := range points {
		docs[i] = Document{
			ID:      point.Id.GetUuid(),
			Content: payloadString(point.Payload, "content"),
			Score:   point.Score,
			Meta:    metaFromPayload(point.Payload),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(docs)))
	span.SetStatus(codes.Ok, "success")
	return docs, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func metaFromPayload(payload map[string]*qdrant.Value) DocumentMeta {
	return DocumentMeta{
		RepoID:       payloadString(payload, "repo_id"),
		FileID:       payloadString(payload, "file_id"),
		RelativePath: payloadString(payload, "relative_path"),
	}
}

// Ensure QdrantStore implements Store.
var _ Store = (*QdrantStore)(nil)
