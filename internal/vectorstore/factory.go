// Package vectorstore provides vector index implementations.
package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Config selects and configures an Index backend.
type Config struct {
	// Provider selects the backend: "chromem" (default) or "qdrant".
	Provider string `koanf:"provider"`

	// VectorSize is the embedding dimension shared by both backends.
	VectorSize int `koanf:"vector_size"`

	Chromem ChromemSection `koanf:"chromem"`
	Qdrant  QdrantSection  `koanf:"qdrant"`
}

// ChromemSection holds chromem-specific settings.
type ChromemSection struct {
	Path       string `koanf:"path"`
	Compress   bool   `koanf:"compress"`
	Collection string `koanf:"collection"`
}

// QdrantSection holds qdrant-specific settings.
type QdrantSection struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	UseTLS     bool   `koanf:"use_tls"`
}

// NewIndex creates an Index based on the configured provider.
//
//   - "chromem" (default): embedded ChromemIndex, no external service
//   - "qdrant": external Qdrant server over gRPC
func NewIndex(cfg Config, logger *zap.Logger) (Index, error) {
	switch cfg.Provider {
	case "chromem", "":
		return NewChromemIndex(ChromemConfig{
			Path:       cfg.Chromem.Path,
			Compress:   cfg.Chromem.Compress,
			Collection: cfg.Chromem.Collection,
			VectorSize: cfg.VectorSize,
		}, logger)

	case "qdrant":
		return NewQdrantIndex(QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			Collection: cfg.Qdrant.Collection,
			VectorSize: uint64(cfg.VectorSize),
			UseTLS:     cfg.Qdrant.UseTLS,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider: %s (supported: chromem, qdrant)", ErrInvalidConfig, cfg.Provider)
	}
}
