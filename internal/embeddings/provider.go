package embeddings

import (
	"fmt"

	"go.uber.org/zap"
)

// NewProvider creates an Embedder based on the configured provider.
//
//   - "fastembed" (default): local ONNX models, no network calls
//   - "openai": remote OpenAI-compatible API
//
// Construction loads or validates the model; failures here are
// configuration errors the caller should treat as fatal at startup.
func NewProvider(cfg Config, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "fastembed", "":
		if cfg.Model == "" {
			cfg.Model = "BAAI/bge-small-en-v1.5"
		}
		provider, err := NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("fastembed provider initialized",
			zap.String("model", cfg.Model),
			zap.Int("dimension", provider.Dimension()),
		)
		return provider, nil

	case "openai":
		provider, err := NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("openai embedding provider initialized",
			zap.String("model", provider.model),
			zap.String("base_url", cfg.BaseURL),
			zap.Int("dimension", provider.Dimension()),
		)
		return provider, nil

	default:
		return nil, fmt.Errorf("%w: unsupported embeddings provider: %s (supported: fastembed, openai)", ErrInvalidConfig, cfg.Provider)
	}
}
