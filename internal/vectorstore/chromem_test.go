package vectorstore_test

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/docchat/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChromemIndex(t *testing.T) *vectorstore.ChromemIndex {
	t.Helper()

	config := vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		Compress:   false, // faster for tests
		Collection: "test_docs",
		VectorSize: 4,
	}

	index, err := vectorstore.NewChromemIndex(config, zap.NewNop())
	require.NoError(t, err)

	return index
}

// unit4 returns a normalized 4-dimensional vector.
func unit4(a, b, c, d float32) []float32 {
	v := []float32{a, b, c, d}
	var sumSq float32
	for _, x := range v {
		sumSq += x * x
	}
	norm := sqrt32(sumSq)
	for i := range v {
		v[i] /= norm
	}
	return v
}

func sqrt32(x float32) float32 {
	if x <= 0 {
		return 0
	}
	z := x / 2
	for i := 0; i < 20; i++ {
		z = (z + x/z) / 2
	}
	return z
}

func TestChromemConfig_ApplyDefaults(t *testing.T) {
	config := vectorstore.ChromemConfig{}
	config.ApplyDefaults()

	assert.Equal(t, "~/.config/docchat/vectorstore", config.Path)
	assert.Equal(t, "docchat_docs", config.Collection)
	assert.Equal(t, 384, config.VectorSize)
}

func TestChromemConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    vectorstore.ChromemConfig
		wantError bool
	}{
		{
			name:      "valid config",
			config:    vectorstore.ChromemConfig{Path: "/tmp/test", Collection: "test", VectorSize: 384},
			wantError: false,
		},
		{
			name:      "negative vector size",
			config:    vectorstore.ChromemConfig{Path: "/tmp/test", Collection: "test", VectorSize: -1},
			wantError: true,
		},
		{
			name:      "uppercase collection name",
			config:    vectorstore.ChromemConfig{Path: "/tmp/test", Collection: "Test", VectorSize: 384},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChromemIndex_AddAndQuery(t *testing.T) {
	index := newTestChromemIndex(t)
	ctx := context.Background()

	entries := []vectorstore.Entry{
		{ID: "a_0", Vector: unit4(1, 0, 0, 0), Text: "alpha", Metadata: map[string]string{"source": "a.txt", "chunk": "0"}},
		{ID: "a_1", Vector: unit4(0, 1, 0, 0), Text: "beta", Metadata: map[string]string{"source": "a.txt", "chunk": "1"}},
		{ID: "a_2", Vector: unit4(1, 1, 0, 0), Text: "gamma", Metadata: map[string]string{"source": "a.txt", "chunk": "2"}},
	}
	require.NoError(t, index.Add(ctx, entries))

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	matches, err := index.Query(ctx, unit4(1, 0, 0, 0), 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// Nearest first: exact match, then the diagonal, then the orthogonal.
	assert.Equal(t, "alpha", matches[0].Text)
	assert.Equal(t, "gamma", matches[1].Text)
	assert.Equal(t, "beta", matches[2].Text)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.GreaterOrEqual(t, matches[1].Score, matches[2].Score)
	assert.Equal(t, "a.txt", matches[0].Metadata["source"])
	assert.Equal(t, "0", matches[0].Metadata["chunk"])
}

func TestChromemIndex_DuplicateID(t *testing.T) {
	index := newTestChromemIndex(t)
	ctx := context.Background()

	first := []vectorstore.Entry{
		{ID: "dup", Vector: unit4(1, 0, 0, 0), Text: "original"},
	}
	require.NoError(t, index.Add(ctx, first))

	second := []vectorstore.Entry{
		{ID: "fresh", Vector: unit4(0, 1, 0, 0), Text: "fresh"},
		{ID: "dup", Vector: unit4(0, 0, 1, 0), Text: "overwrite attempt"},
	}
	err := index.Add(ctx, second)
	require.ErrorIs(t, err, vectorstore.ErrDuplicateID)

	// The conflicting batch must not have written anything.
	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := index.Query(ctx, unit4(1, 0, 0, 0), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "original", matches[0].Text)
}

func TestChromemIndex_QueryMoreThanStored(t *testing.T) {
	index := newTestChromemIndex(t)
	ctx := context.Background()

	entries := []vectorstore.Entry{
		{ID: "e0", Vector: unit4(1, 0, 0, 0), Text: "zero"},
		{ID: "e1", Vector: unit4(0, 1, 0, 0), Text: "one"},
		{ID: "e2", Vector: unit4(0, 0, 1, 0), Text: "two"},
	}
	require.NoError(t, index.Add(ctx, entries))

	matches, err := index.Query(ctx, unit4(1, 0, 0, 0), 20)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestChromemIndex_QueryEmpty(t *testing.T) {
	index := newTestChromemIndex(t)

	matches, err := index.Query(context.Background(), unit4(1, 0, 0, 0), 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChromemIndex_AddValidation(t *testing.T) {
	index := newTestChromemIndex(t)
	ctx := context.Background()

	err := index.Add(ctx, nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyEntries)

	err = index.Add(ctx, []vectorstore.Entry{{ID: "", Vector: unit4(1, 0, 0, 0)}})
	assert.Error(t, err)

	err = index.Add(ctx, []vectorstore.Entry{{ID: "short", Vector: []float32{1, 0}}})
	assert.Error(t, err)
}

func TestChromemIndex_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	config := vectorstore.ChromemConfig{
		Path:       dir,
		Collection: "test_docs",
		VectorSize: 4,
	}
	ctx := context.Background()

	index, err := vectorstore.NewChromemIndex(config, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, index.Add(ctx, []vectorstore.Entry{
		{ID: "persisted", Vector: unit4(1, 0, 0, 0), Text: "survives restarts"},
	}))
	require.NoError(t, index.Close())

	reopened, err := vectorstore.NewChromemIndex(config, zap.NewNop())
	require.NoError(t, err)

	matches, err := reopened.Query(ctx, unit4(1, 0, 0, 0), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "survives restarts", matches[0].Text)
}

func TestNewIndex_UnsupportedProvider(t *testing.T) {
	_, err := vectorstore.NewIndex(vectorstore.Config{Provider: "pinecone"}, zap.NewNop())
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}
