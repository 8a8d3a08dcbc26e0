package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1000, cfg.Chunking.WindowSize)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 1500, cfg.Prompt.SampleLimit)
	assert.Equal(t, "replace", cfg.Index.Mode)
	require.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	t.Setenv("LLM_MODEL", "")
	t.Setenv("LECTERN_INDEX_DIR", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "lectern.toml")
	content := `
[chunking]
window_size = 500
overlap = 50

[index]
backend = "milvus"
mode = "append"

[retrieval]
top_k = 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, resolved, exists, err := Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, path, resolved)
	assert.Equal(t, 500, cfg.Chunking.WindowSize)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, "milvus", cfg.Index.Backend)
	assert.Equal(t, "append", cfg.Index.Mode)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	// untouched sections keep defaults
	assert.Equal(t, 1500, cfg.Prompt.SampleLimit)
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, _, exists, err := Load(path)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 1000, cfg.Chunking.WindowSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LLM_MODEL", "gemini-2.5-pro")
	t.Setenv("LLM_BASE_URL", "https://example.test/v1")
	t.Setenv("LECTERN_INDEX_DIR", "/tmp/lectern-index")

	cfg, _, _, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, "https://example.test/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "/tmp/lectern-index", cfg.Paths.IndexDir)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LLM_MODEL=from-dotenv\nLLM_BASE_URL=https://dotenv.test/v1\n"), 0o644))
	t.Chdir(dir)

	// unset, so the .env value applies
	t.Setenv("LLM_MODEL", "")
	require.NoError(t, os.Unsetenv("LLM_MODEL"))
	// already set, so the .env value is ignored
	t.Setenv("LLM_BASE_URL", "https://env.test/v1")

	cfg, _, _, err := Load(filepath.Join(dir, "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.LLM.Model)
	assert.Equal(t, "https://env.test/v1", cfg.LLM.BaseURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equals window", func(c *Config) { c.Chunking.Overlap = c.Chunking.WindowSize }},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }},
		{"negative top k", func(c *Config) { c.Retrieval.TopK = -1 }},
		{"unknown embedding backend", func(c *Config) { c.Embedding.Backend = "word2vec" }},
		{"unknown index backend", func(c *Config) { c.Index.Backend = "chroma" }},
		{"unknown mode", func(c *Config) { c.Index.Mode = "merge" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestJudgeLLM(t *testing.T) {
	cfg := Default()
	cfg.LLM.Model = "gpt-4o"
	assert.Equal(t, "gpt-4o", cfg.JudgeLLM().Model)

	cfg.Evaluator.JudgeModel = "gpt-4o-mini"
	assert.Equal(t, "gpt-4o-mini", cfg.JudgeLLM().Model)
	assert.Equal(t, cfg.LLM.TimeoutSeconds, cfg.JudgeLLM().TimeoutSeconds)
}
