// Package config loads engine configuration from a TOML file, with
// secrets taken from the environment so API keys never land in the
// config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config is the full engine configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Ingestion IngestionConfig `toml:"ingestion"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Qdrant    QdrantConfig    `toml:"qdrant"`
	Blob      BlobConfig      `toml:"blob"`
	LLM       LLMConfig       `toml:"llm"`
	Watcher   WatcherConfig   `toml:"watcher"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `toml:"addr"`
}

// StorageConfig holds relational store settings.
type StorageConfig struct {
	// DataDir is the SQLite data directory. Empty means
	// ~/.carevault/data.
	DataDir string `toml:"data_dir"`
}

// IngestionConfig holds upload and chunking settings.
type IngestionConfig struct {
	// MaxUploadBytes is the upload size ceiling.
	MaxUploadBytes int64 `toml:"max_upload_bytes"`

	// ChunkSize is the target chunk length in characters.
	ChunkSize int `toml:"chunk_size"`

	// ChunkOverlap is the overlap between adjacent chunks.
	ChunkOverlap int `toml:"chunk_overlap"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is "openai" or "ollama".
	Provider string `toml:"provider"`

	// Model is the embedding model name. Empty means the provider
	// default.
	Model string `toml:"model"`

	// Dimensions overrides the model's vector size when non-zero.
	Dimensions int `toml:"dimensions"`

	// BaseURL overrides the provider endpoint when non-empty.
	BaseURL string `toml:"base_url"`

	// APIKey is filled from the environment, never from the file.
	APIKey string `toml:"-"`
}

// QdrantConfig holds vector store settings. An empty URL selects the
// in-memory vector store.
type QdrantConfig struct {
	// URL is the Qdrant base URL.
	URL string `toml:"url"`

	// Collection is the collection name.
	Collection string `toml:"collection"`

	// APIKey is filled from the environment, never from the file.
	APIKey string `toml:"-"`
}

// BlobConfig selects where original upload bytes are retained.
type BlobConfig struct {
	// Backend is "filesystem", "gridfs" or "none".
	Backend string `toml:"backend"`

	// Dir is the filesystem blob directory. Empty means
	// ~/.carevault/blobs.
	Dir string `toml:"dir"`

	// MongoURI is filled from the environment, never from the file.
	MongoURI string `toml:"-"`

	// MongoDatabase is the GridFS database name.
	MongoDatabase string `toml:"mongo_database"`
}

// LLMConfig selects and tunes the answer synthesis provider.
type LLMConfig struct {
	// Provider is "openai", "anthropic", "ollama" or "" (synthesis
	// disabled).
	Provider string `toml:"provider"`

	// Model is the completion model name. Empty means the provider
	// default.
	Model string `toml:"model"`

	// BaseURL overrides the provider endpoint when non-empty.
	BaseURL string `toml:"base_url"`

	// APIKey is filled from the environment, never from the file.
	APIKey string `toml:"-"`
}

// WatcherConfig holds inbox auto-ingestion settings.
type WatcherConfig struct {
	// Enabled turns the inbox watcher on.
	Enabled bool `toml:"enabled"`

	// Dir is the inbox root; each user gets a subdirectory named by
	// user id. Empty means ~/.carevault/inbox.
	Dir string `toml:"dir"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Ingestion: IngestionConfig{
			MaxUploadBytes: 16 << 20,
			ChunkSize:      1000,
			ChunkOverlap:   200,
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
		},
		Qdrant: QdrantConfig{
			Collection: "carevault",
		},
		Blob: BlobConfig{
			Backend: "filesystem",
		},
	}
}

// Load reads the config file, applying defaults for anything unset and
// pulling secrets from the environment. If path is empty, defaults to
// ~/.carevault/config.toml. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".carevault", "config.toml")
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.loadSecrets()
	return cfg, nil
}

// Save writes the configuration to the given path with restricted
// permissions. Secrets are excluded by their toml:"-" tags.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// loadSecrets fills API keys from the environment. A .env file in the
// working directory is honoured when present.
func (c *Config) loadSecrets() {
	_ = godotenv.Load()

	c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	c.Qdrant.APIKey = os.Getenv("QDRANT_API_KEY")
	c.Blob.MongoURI = os.Getenv("MONGODB_URI")

	switch c.LLM.Provider {
	case "anthropic":
		c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	default:
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}
