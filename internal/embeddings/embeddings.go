// Package embeddings provides embedding generation via multiple providers.
package embeddings

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Embedder generates fixed-dimension vector embeddings from text.
//
// Both methods are order-preserving and deterministic for a fixed model
// version. Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one vector
	// per input, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// prefix queries differently from documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Config selects and configures an embedding provider.
type Config struct {
	// Provider selects the backend: "fastembed" (default, local ONNX) or
	// "openai" (remote OpenAI-compatible API).
	Provider string `koanf:"provider"`

	// Model is the embedding model identifier.
	Model string `koanf:"model"`

	// BaseURL is the API base URL for the openai provider.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates the openai provider.
	APIKey string `koanf:"api_key"`

	// CacheDir caches downloaded model files for the fastembed provider.
	CacheDir string `koanf:"cache_dir"`
}
