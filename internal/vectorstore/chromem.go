// Package vectorstore provides vector index implementations.
package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("docchat.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go index.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/docchat/vectorstore"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the collection name.
	// Default: "docchat_docs"
	Collection string

	// VectorSize is the expected embedding dimension.
	// Must match the embedder's output dimension.
	// Default: 384 (bge-small-en-v1.5)
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/docchat/vectorstore"
	}
	if c.Collection == "" {
		c.Collection = "docchat_docs"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemIndex implements the Index interface using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies: pure Go, no external service, automatic persistence to
// gob files, exact cosine similarity search.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     ChromemConfig
	logger     *zap.Logger
}

// NewChromemIndex opens (or creates) the persistent index at the
// configured path.
func NewChromemIndex(config ChromemConfig, logger *zap.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandChromemPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	if err := os.MkdirAll(expandedPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating directory %s: %v", ErrUnavailable, expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: opening chromem DB: %v", ErrUnavailable, err)
	}

	// Entries arrive with precomputed vectors and queries go through
	// QueryEmbedding, so the embedding func must never run. Passing nil
	// would make chromem fall back to its OpenAI default.
	collection, err := db.GetOrCreateCollection(config.Collection, nil, rejectEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: opening collection %s: %v", ErrUnavailable, config.Collection, err)
	}

	logger.Info("chromem index opened",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
		zap.String("collection", config.Collection),
		zap.Int("count", collection.Count()),
	)

	return &ChromemIndex{
		db:         db,
		collection: collection,
		config:     config,
		logger:     logger,
	}, nil
}

// rejectEmbeddingFunc guards against accidental text-based operations.
func rejectEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("index operates on precomputed vectors only")
}

// expandChromemPath expands ~ to the home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Add writes entries to the collection. Any id already present fails the
// whole batch with ErrDuplicateID before anything is written.
func (x *ChromemIndex) Add(ctx context.Context, entries []Entry) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Add")
	defer span.End()

	span.SetAttributes(
		attribute.Int("entry_count", len(entries)),
		attribute.String("collection", x.config.Collection),
	)

	if len(entries) == 0 {
		return ErrEmptyEntries
	}

	for i, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("entry at index %d has empty id", i)
		}
		if len(e.Vector) != x.config.VectorSize {
			return fmt.Errorf("entry %s has vector size %d, index expects %d", e.ID, len(e.Vector), x.config.VectorSize)
		}
	}

	// Duplicate check before any write so a conflicting batch is a no-op.
	for _, e := range entries {
		if _, err := x.collection.GetByID(ctx, e.ID); err == nil {
			span.SetStatus(codes.Error, "duplicate id")
			return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   e.Text,
			Metadata:  e.Metadata,
			Embedding: e.Vector,
		}
	}

	// Concurrency of 1 since the embeddings are already computed.
	if err := x.collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	span.SetAttributes(attribute.Int("entries_added", len(entries)))
	span.SetStatus(codes.Ok, "success")

	x.logger.Debug("added entries to chromem",
		zap.String("collection", x.config.Collection),
		zap.Int("count", len(entries)),
	)

	return nil
}

// Query returns the topK nearest entries to the given vector.
func (x *ChromemIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemIndex.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", x.config.Collection),
		attribute.Int("top_k", topK),
	)

	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if len(vector) != x.config.VectorSize {
		return nil, fmt.Errorf("query vector size %d, index expects %d", len(vector), x.config.VectorSize)
	}

	// chromem requires nResults <= stored count.
	count := x.collection.Count()
	if count == 0 {
		return []Match{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := x.collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", x.config.Collection, err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			ID:       r.ID,
			Text:     r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(matches)))
	span.SetStatus(codes.Ok, "success")

	return matches, nil
}

// Count returns the number of stored entries.
func (x *ChromemIndex) Count(ctx context.Context) (int, error) {
	return x.collection.Count(), nil
}

// Close closes the index.
// chromem-go persists on every write, no explicit flush is needed.
func (x *ChromemIndex) Close() error {
	x.logger.Info("chromem index closed")
	return nil
}

// Ensure ChromemIndex implements Index.
var _ Index = (*ChromemIndex)(nil)
