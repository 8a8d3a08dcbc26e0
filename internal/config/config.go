// Package config loads lectern configuration from a TOML file, a .env file and
// environment overrides. Every component receives the values it needs through an
// explicit struct; nothing in the module reads configuration from globals.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Common configuration errors
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Paths contains input and output locations.
type Paths struct {
	TranscriptsDir string `toml:"transcripts_dir"`
	CombinedFile   string `toml:"combined_file"`
	StyleFile      string `toml:"style_file"`
	IndexDir       string `toml:"index_dir"`
	ResultsDir     string `toml:"results_dir"`
	AudioDir       string `toml:"audio_dir"`
}

// Chunking controls the sliding-window chunker.
type Chunking struct {
	WindowSize int `toml:"window_size"`
	Overlap    int `toml:"overlap"`
}

// Embedding selects the embedding backend.
type Embedding struct {
	Backend   string `toml:"backend"` // "hugot" or "openai"
	Model     string `toml:"model"`
	Dimension int    `toml:"dimension"`
	BatchSize int    `toml:"batch_size"`
	ModelDir  string `toml:"model_dir"` // hugot model cache
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
}

// Milvus holds connection settings for the Milvus index backend.
type Milvus struct {
	Address        string `toml:"address"`
	CollectionName string `toml:"collection"`
	M              int    `toml:"m"`
	EfConstruction int    `toml:"ef_construction"`
	Ef             int    `toml:"ef"`
}

// PGVector holds connection settings for the Postgres index backend.
type PGVector struct {
	URL   string `toml:"url"`
	Table string `toml:"table"`
}

// Index selects the index backend and the build mode.
type Index struct {
	Backend  string   `toml:"backend"` // "sqlite", "milvus" or "pgvector"
	Mode     string   `toml:"mode"`    // "replace" or "append"
	Milvus   Milvus   `toml:"milvus"`
	PGVector PGVector `toml:"pgvector"`
}

// Retrieval controls query-time retrieval.
type Retrieval struct {
	TopK int `toml:"top_k"`
}

// Prompt controls prompt assembly bounds. Limits are counted in runes.
type Prompt struct {
	Persona      string `toml:"persona"`
	SampleLimit  int    `toml:"sample_limit"`
	ContextLimit int    `toml:"context_limit"`
	// Traits replaces the default personality bullets when set.
	Traits []string `toml:"traits"`
}

// LLM contains connection settings for the generative model.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float32 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Evaluator contains settings for evaluation runs.
type Evaluator struct {
	// JudgeModel is the model used for rubric scoring. Falls back to [llm] model.
	JudgeModel string `toml:"judge_model"`
	Workers    int    `toml:"workers"`
}

// Server contains settings for the HTTP boundary.
type Server struct {
	Bind                  string `toml:"bind"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for lectern.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Chunking  Chunking  `toml:"chunking"`
	Embedding Embedding `toml:"embedding"`
	Index     Index     `toml:"index"`
	Retrieval Retrieval `toml:"retrieval"`
	Prompt    Prompt    `toml:"prompt"`
	LLM       LLM       `toml:"llm"`
	Evaluator Evaluator `toml:"evaluator"`
	Server    Server    `toml:"server"`
	Logging   Logging   `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Paths: Paths{
			TranscriptsDir: "transcripts",
			CombinedFile:   "transcripts/combined.json",
			StyleFile:      "models/teaching_style.json",
			IndexDir:       "index",
			ResultsDir:     "results",
			AudioDir:       "static",
		},
		Chunking: Chunking{
			WindowSize: 1000,
			Overlap:    200,
		},
		Embedding: Embedding{
			Backend:   "hugot",
			Model:     "sentence-transformers/all-MiniLM-L6-v2",
			Dimension: 384,
			BatchSize: 32,
			ModelDir:  "models",
		},
		Index: Index{
			Backend: "sqlite",
			Mode:    "replace",
			Milvus: Milvus{
				Address:        "localhost:19530",
				CollectionName: "lectern_chunks",
				M:              16,
				EfConstruction: 256,
				Ef:             64,
			},
			PGVector: PGVector{
				Table: "lectern_chunks",
			},
		},
		Retrieval: Retrieval{TopK: 3},
		Prompt: Prompt{
			Persona:      "the lecturer",
			SampleLimit:  1500,
			ContextLimit: 6000,
		},
		LLM: LLM{
			Model:          "gpt-4o",
			MaxTokens:      2000,
			TimeoutSeconds: 60,
		},
		Evaluator: Evaluator{Workers: 1},
		Server: Server{
			Bind:                  "127.0.0.1:5000",
			RequestTimeoutSeconds: 120,
		},
		Logging: Logging{Level: "info", Format: "console"},
	}
}

// Load locates, parses, and validates a configuration file. A missing file is not
// an error; defaults and environment overrides still apply. The returned string is
// the resolved path and the bool reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	// .env values never override variables already set in the environment
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/lectern/config.toml")
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("lectern.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// applyEnv overlays environment variables on top of file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = v
		}
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("EMBEDDING_BACKEND"); v != "" {
		c.Embedding.Backend = v
	}
	if v := os.Getenv("MILVUS_ADDRESS"); v != "" {
		c.Index.Milvus.Address = v
	}
	if v := os.Getenv("MILVUS_COLLECTION"); v != "" {
		c.Index.Milvus.CollectionName = v
	}
	if v := os.Getenv("PGVECTOR_URL"); v != "" {
		c.Index.PGVector.URL = v
	}
	if v := os.Getenv("LECTERN_INDEX_DIR"); v != "" {
		c.Paths.IndexDir = v
	}
	if v := os.Getenv("LECTERN_EVAL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Evaluator.Workers = n
		}
	}
}

// Validate checks invariants that components rely on.
func (c *Config) Validate() error {
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("%w: chunking.overlap must be >= 0, got %d", ErrInvalidConfig, c.Chunking.Overlap)
	}
	if c.Chunking.WindowSize <= c.Chunking.Overlap {
		return fmt.Errorf("%w: chunking.window_size (%d) must exceed overlap (%d)",
			ErrInvalidConfig, c.Chunking.WindowSize, c.Chunking.Overlap)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("%w: embedding.dimension must be positive", ErrInvalidConfig)
	}
	if c.Retrieval.TopK < 0 {
		return fmt.Errorf("%w: retrieval.top_k must be >= 0", ErrInvalidConfig)
	}
	if c.Prompt.SampleLimit < 0 || c.Prompt.ContextLimit < 0 {
		return fmt.Errorf("%w: prompt limits must be >= 0", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Embedding.Backend) {
	case "hugot", "openai":
	default:
		return fmt.Errorf("%w: unsupported embedding backend %q", ErrInvalidConfig, c.Embedding.Backend)
	}
	switch strings.ToLower(c.Index.Backend) {
	case "sqlite", "milvus", "pgvector":
	default:
		return fmt.Errorf("%w: unsupported index backend %q", ErrInvalidConfig, c.Index.Backend)
	}
	switch strings.ToLower(c.Index.Mode) {
	case "replace", "append":
	default:
		return fmt.Errorf("%w: unsupported index mode %q (use replace or append)", ErrInvalidConfig, c.Index.Mode)
	}
	if c.Evaluator.Workers < 1 {
		c.Evaluator.Workers = 1
	}
	return nil
}

// JudgeLLM returns the LLM settings for evaluation scoring.
// Falls back to [llm] settings when no judge model is configured.
func (c *Config) JudgeLLM() LLM {
	judge := c.LLM
	if m := strings.TrimSpace(c.Evaluator.JudgeModel); m != "" {
		judge.Model = m
	}
	return judge
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
