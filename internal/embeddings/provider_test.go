package embeddings_test

import (
	"testing"

	"github.com/fyrsmithlabs/docchat/internal/embeddings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProvider_UnsupportedProvider(t *testing.T) {
	_, err := embeddings.NewProvider(embeddings.Config{Provider: "cohere"}, zap.NewNop())
	assert.ErrorIs(t, err, embeddings.ErrInvalidConfig)
}

func TestNewOpenAIProvider_RequiresAPIKey(t *testing.T) {
	_, err := embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{})
	assert.ErrorIs(t, err, embeddings.ErrInvalidConfig)
}

func TestNewOpenAIProvider_Defaults(t *testing.T) {
	p, err := embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, 1536, p.Dimension())

	large, err := embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{
		APIKey: "test-key",
		Model:  "text-embedding-3-large",
	})
	require.NoError(t, err)
	assert.Equal(t, 3072, large.Dimension())
}

func TestNewFastEmbedProvider_UnknownModel(t *testing.T) {
	_, err := embeddings.NewFastEmbedProvider(embeddings.FastEmbedConfig{Model: "made/up-model"})
	assert.ErrorIs(t, err, embeddings.ErrInvalidConfig)
}
