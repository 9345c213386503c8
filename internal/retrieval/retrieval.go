// Package retrieval answers similarity queries against the vector index and
// assembles the context block handed to the chat model.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docchat/internal/embeddings"
	"github.com/fyrsmithlabs/docchat/internal/vectorstore"
)

const (
	// DefaultTopK is the number of chunks retrieved when the caller does not
	// specify one.
	DefaultTopK = 5
)

var (
	// ErrNilDependency indicates the service was constructed without an
	// embedder or index.
	ErrNilDependency = errors.New("retrieval: nil dependency")

	// ErrInvalidTopK indicates a non-positive topK.
	ErrInvalidTopK = errors.New("retrieval: topK must be positive")
)

// Service embeds queries and looks up the nearest chunks.
type Service struct {
	embedder embeddings.Embedder
	index    vectorstore.Index
	logger   *zap.Logger
}

// NewService wires the retrieval stages together.
func NewService(embedder embeddings.Embedder, index vectorstore.Index, logger *zap.Logger) (*Service, error) {
	if embedder == nil || index == nil {
		return nil, ErrNilDependency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embedder: embedder, index: index, logger: logger}, nil
}

// Retrieve returns the texts of the topK chunks nearest to query, joined with
// newlines, nearest first. An empty index yields an empty string.
func (s *Service) Retrieve(ctx context.Context, query string, topK int) (string, error) {
	matches, err := s.Search(ctx, query, topK)
	if err != nil {
		return "", err
	}
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	return strings.Join(texts, "\n"), nil
}

// Search returns the topK nearest matches with their scores and metadata,
// nearest first.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]vectorstore.Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopK, topK)
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.index.Query(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	s.logger.Debug("retrieval complete",
		zap.Int("top_k", topK),
		zap.Int("matches", len(matches)))
	return matches, nil
}
