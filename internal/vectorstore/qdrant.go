// Package vectorstore provides vector index implementations.
package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// qdrantTracer for OpenTelemetry instrumentation.
var qdrantTracer = otel.Tracer("docchat.vectorstore.qdrant")

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name.
// Rejects uppercase, special characters, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (6334), not the HTTP REST port (6333).
	Port int

	// Collection is the collection name for all operations.
	Collection string

	// VectorSize is the dimensionality of embeddings.
	// Must match the embedder's output dimension.
	VectorSize uint64

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB, to accommodate large ingest batches.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "docchat_docs"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// QdrantIndex implements the Index interface against an external Qdrant
// server over gRPC.
//
// Qdrant's native upsert overwrites on id collision, so Add fetches the
// candidate points first and fails with ErrDuplicateID before writing.
// Point ids are UUIDv5 hashes of the entry id; the original id is kept in
// the payload, which makes the duplicate lookup deterministic.
type QdrantIndex struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
}

// NewQdrantIndex connects to Qdrant and ensures the collection exists
// with a cosine distance metric.
func NewQdrantIndex(config QdrantConfig, logger *zap.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	x := &QdrantIndex{
		client: client,
		config: config,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrUnavailable, err)
	}

	if err := x.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant index connected",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
		zap.Uint64("vector_size", config.VectorSize),
	)

	return x, nil
}

// ensureCollection creates the collection if it does not exist yet.
func (x *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx, x.config.Collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %v", ErrUnavailable, err)
	}
	if exists {
		return nil
	}

	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: x.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     x.config.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: creating collection %s: %v", ErrUnavailable, x.config.Collection, err)
	}
	return nil
}

// pointID derives a deterministic Qdrant point id from an entry id.
func pointID(entryID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(entryID)).String())
}

// Add writes entries to the collection, failing with ErrDuplicateID if
// any entry id is already present.
func (x *QdrantIndex) Add(ctx context.Context, entries []Entry) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Add")
	defer span.End()

	span.SetAttributes(
		attribute.Int("entry_count", len(entries)),
		attribute.String("collection", x.config.Collection),
	)

	if len(entries) == 0 {
		return ErrEmptyEntries
	}

	ids := make([]*qdrant.PointId, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("entry at index %d has empty id", i)
		}
		if uint64(len(e.Vector)) != x.config.VectorSize {
			return fmt.Errorf("entry %s has vector size %d, index expects %d", e.ID, len(e.Vector), x.config.VectorSize)
		}
		ids[i] = pointID(e.ID)
	}

	// Point ids are content-derived, so an existing point means the same
	// entry id was written before.
	existing, err := x.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: x.config.Collection,
		Ids:            ids,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: checking existing points: %v", ErrUnavailable, err)
	}
	if len(existing) > 0 {
		span.SetStatus(codes.Error, "duplicate id")
		return fmt.Errorf("%w: %d of %d entries already indexed", ErrDuplicateID, len(existing), len(entries))
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		payload := map[string]*qdrant.Value{
			"id":   qdrant.NewValueString(e.ID),
			"text": qdrant.NewValueString(e.Text),
		}
		for k, v := range e.Metadata {
			payload[k] = qdrant.NewValueString(v)
		}
		points[i] = &qdrant.PointStruct{
			Id:      ids[i],
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: payload,
		}
	}

	_, err = x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.config.Collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: upserting points: %v", ErrUnavailable, err)
	}

	span.SetAttributes(attribute.Int("entries_added", len(entries)))
	span.SetStatus(codes.Ok, "success")

	x.logger.Debug("added entries to qdrant",
		zap.String("collection", x.config.Collection),
		zap.Int("count", len(entries)),
	)

	return nil
}

// Query returns the topK nearest entries to the given vector.
func (x *QdrantIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantIndex.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", x.config.Collection),
		attribute.Int("top_k", topK),
	)

	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if uint64(len(vector)) != x.config.VectorSize {
		return nil, fmt.Errorf("query vector size %d, index expects %d", len(vector), x.config.VectorSize)
	}

	results, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying collection: %v", ErrUnavailable, err)
	}

	matches := make([]Match, len(results))
	for i, point := range results {
		m := Match{Score: point.Score, Metadata: map[string]string{}}
		for k, v := range point.Payload {
			s := v.GetStringValue()
			switch k {
			case "id":
				m.ID = s
			case "text":
				m.Text = s
			default:
				m.Metadata[k] = s
			}
		}
		matches[i] = m
	}

	span.SetAttributes(attribute.Int("result_count", len(matches)))
	span.SetStatus(codes.Ok, "success")

	return matches, nil
}

// Count returns the number of stored entries.
func (x *QdrantIndex) Count(ctx context.Context) (int, error) {
	count, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: x.config.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting points: %v", ErrUnavailable, err)
	}
	if count > uint64(maxInt) {
		return maxInt, nil
	}
	return int(count), nil
}

const maxInt = int(^uint(0) >> 1)

// Close closes the gRPC connection.
func (x *QdrantIndex) Close() error {
	if x.client != nil {
		return x.client.Close()
	}
	return nil
}

// Ensure QdrantIndex implements Index.
var _ Index = (*QdrantIndex)(nil)
