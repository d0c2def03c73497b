package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, int64(16<<20), cfg.Ingestion.MaxUploadBytes)
	assert.Equal(t, 1000, cfg.Ingestion.ChunkSize)
	assert.Equal(t, 200, cfg.Ingestion.ChunkOverlap)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "carevault", cfg.Qdrant.Collection)
	assert.Equal(t, "filesystem", cfg.Blob.Backend)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = "0.0.0.0:9000"

[ingestion]
chunk_size = 500

[embedding]
provider = "openai"
model = "text-embedding-3-large"

[qdrant]
url = "http://qdrant:6333"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, 500, cfg.Ingestion.ChunkSize)
	// Unset keys keep their defaults
	assert.Equal(t, 200, cfg.Ingestion.ChunkOverlap)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, "http://qdrant:6333", cfg.Qdrant.URL)
}

func TestLoad_SecretsComeFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QDRANT_API_KEY", "qd-test")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "qd-test", cfg.Qdrant.APIKey)
}

func TestLoad_AnthropicKeySelectedByProvider(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "ant-test")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[llm]\nprovider = \"anthropic\"\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ant-test", cfg.LLM.APIKey)
}

func TestSave_ExcludesSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Embedding.APIKey = "sk-secret"
	cfg.Qdrant.APIKey = "qd-secret"
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-secret")
	assert.NotContains(t, string(data), "qd-secret")

	// Round-trips
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Server.Addr, loaded.Server.Addr)
	assert.Equal(t, cfg.Ingestion.MaxUploadBytes, loaded.Ingestion.MaxUploadBytes)
}
