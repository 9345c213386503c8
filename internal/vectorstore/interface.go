// Package vectorstore defines the interface for vector index operations.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector index operations.
var (
	// ErrDuplicateID is returned when an Add call contains an id that is
	// already present in the index. The index never overwrites silently.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrUnavailable indicates the storage backend is unreachable.
	ErrUnavailable = errors.New("vector index unavailable")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyEntries indicates an Add call with no entries.
	ErrEmptyEntries = errors.New("empty or nil entries")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Entry is one (id, vector, text, metadata) triple written to the index.
type Entry struct {
	// ID is the globally unique identifier for this entry. Callers mint
	// ids that never collide across ingests; a collision is a write error.
	ID string

	// Vector is the embedding for Text. Its length must match the index's
	// configured vector size.
	Vector []float32

	// Text is the chunk content stored alongside the vector.
	Text string

	// Metadata carries the source name and chunk ordinal.
	Metadata map[string]string
}

// Match is one nearest-neighbor result.
type Match struct {
	// ID is the entry identifier.
	ID string

	// Text is the stored chunk content.
	Text string

	// Score is the similarity to the query vector (higher = nearer).
	Score float32

	// Metadata is the stored entry metadata.
	Metadata map[string]string
}

// Index is the interface for a persisted vector collection.
//
// Implementations persist entries across process restarts. All entries
// written by one Add call become visible together for subsequent queries;
// atomicity across Add calls is not guaranteed.
//
// The distance metric is fixed at construction time (cosine) and shared
// between writes and queries.
//
// Implementations:
//   - ChromemIndex: embedded chromem-go (default, no external service)
//   - QdrantIndex: external Qdrant over gRPC
type Index interface {
	// Add writes entries to the index.
	//
	// Add fails with ErrDuplicateID if any entry id already exists; the
	// duplicate check runs before any write, so a conflicting batch
	// writes nothing. Callers should not retry with the same ids.
	Add(ctx context.Context, entries []Entry) error

	// Query returns up to topK entries nearest to the given vector,
	// nearest first. When topK exceeds the number of stored entries, all
	// stored entries are returned. Querying an empty index returns an
	// empty slice, not an error.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
