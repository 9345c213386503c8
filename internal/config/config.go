// Package config provides configuration loading for docchat.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/docchat/internal/chat"
	"github.com/fyrsmithlabs/docchat/internal/chunker"
	"github.com/fyrsmithlabs/docchat/internal/embeddings"
	"github.com/fyrsmithlabs/docchat/internal/logging"
	"github.com/fyrsmithlabs/docchat/internal/server"
	"github.com/fyrsmithlabs/docchat/internal/store"
	"github.com/fyrsmithlabs/docchat/internal/vectorstore"
)

// Config is the full runtime configuration.
type Config struct {
	Server       server.Config        `koanf:"server"`
	Logging      logging.Config       `koanf:"logging"`
	Store        store.Config         `koanf:"store"`
	VectorStore  vectorstore.Config   `koanf:"vectorstore"`
	Embeddings   embeddings.Config    `koanf:"embeddings"`
	Chat         chat.CompleterConfig `koanf:"chat"`
	Conversation chat.ServiceConfig   `koanf:"conversation"`
	Chunker      ChunkerConfig        `koanf:"chunker"`
	OCR          OCRConfig            `koanf:"ocr"`
}

// ChunkerConfig tunes document splitting.
type ChunkerConfig struct {
	ChunkSize int `koanf:"chunk_size"`
	Overlap   int `koanf:"overlap"`
}

// OCRConfig controls image text recognition.
type OCRConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Load reads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, CHAT_API_KEY, VECTORSTORE_PROVIDER, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// The configPath parameter specifies the YAML file to load. If empty, the
// DOCCHAT_CONFIG environment variable is consulted, then
// ~/.config/docchat/config.yaml. A missing file is not an error; defaults
// and environment variables still apply.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		configPath = os.Getenv("DOCCHAT_CONFIG")
	}
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "docchat", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// Environment variables use underscore separator and are uppercased.
	// The transformer splits on the first underscore into section.field:
	//
	//	SERVER_PORT       -> server.port
	//	CHAT_API_KEY      -> chat.api_key
	//	VECTORSTORE_PROVIDER -> vectorstore.provider
	if err := k.Load(env.Provider("", ".", func(s string) string {
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	cfg.Server.ApplyDefaults()
	cfg.Logging.ApplyDefaults()
	cfg.Store.ApplyDefaults()
	cfg.Chat.ApplyDefaults()
	cfg.Conversation.ApplyDefaults()

	// Conventional key variables used by the upstream providers.
	if cfg.Chat.APIKey == "" {
		cfg.Chat.APIKey = os.Getenv("GROQ_API_KEY")
	}
	if cfg.Embeddings.APIKey == "" {
		cfg.Embeddings.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = chunker.DefaultChunkSize
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = chunker.DefaultOverlap
	}
}

// Validate checks the assembled configuration. Provider-specific settings
// are validated again by their constructors; this catches the cross-field
// mistakes early.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("chunker: chunk_size must be positive")
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunker: overlap must be in [0, chunk_size)")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port must be in [0, 65535]")
	}
	if c.Conversation.MaxHistory < 0 {
		return fmt.Errorf("conversation: max_history must be non-negative")
	}
	if c.Conversation.TopK <= 0 {
		return fmt.Errorf("conversation: top_k must be positive")
	}
	return nil
}
