package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"document-chat/internal/errs"
)

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LLMConfig describes one external model endpoint (embedding or inference).
type LLMConfig struct {
	Provider       string `yaml:"provider"` // "openai" or "ollama"
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Key            string `yaml:"key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type RAGConfig struct {
	ChunkSize     int     `yaml:"chunk_size"`
	ChunkOverlap  int     `yaml:"chunk_overlap"`
	TopK          int     `yaml:"top_k"`
	MMRLambda     float64 `yaml:"mmr_lambda"`
	HistoryWindow int     `yaml:"history_window"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
}

type Config struct {
	Server   ServerConfig `yaml:"server"`
	EmbedLLM LLMConfig    `yaml:"embedding"`
	ChatLLM  LLMConfig    `yaml:"inference"`
	RAG      RAGConfig    `yaml:"rag"`
}

// Default returns the built-in configuration. Every value can be
// overridden by the yaml file or, for credentials, the environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		EmbedLLM: LLMConfig{
			Provider:       "ollama",
			BaseURL:        "http://localhost:11434",
			Model:          "nomic-embed-text",
			TimeoutSeconds: 60,
		},
		ChatLLM: LLMConfig{
			Provider:       "openai",
			BaseURL:        "https://openrouter.ai/api",
			Model:          "HuggingFaceTB/SmolLM3-3B",
			TimeoutSeconds: 60,
		},
		RAG: RAGConfig{
			ChunkSize:     1024,
			ChunkOverlap:  64,
			TopK:          6,
			MMRLambda:     0.25,
			HistoryWindow: 5,
			Temperature:   0.1,
			MaxTokens:     1000,
		},
	}
}

// LoadConfig reads the yaml file at path over the defaults. A missing file
// is not an error; the defaults plus environment overrides apply.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if key := os.Getenv("EMBEDDING_API_KEY"); key != "" {
		cfg.EmbedLLM.Key = key
	}
	if key := os.Getenv("INFERENCE_API_KEY"); key != "" {
		cfg.ChatLLM.Key = key
	}

	return cfg, nil
}

// Validate checks credentials and parameter ranges. A ConfigError here is
// fatal: the process must not serve requests without working credentials.
func (c *Config) Validate() error {
	if c.ChatLLM.Key == "" {
		return &errs.ConfigError{Field: "inference.key", Reason: "missing credential (set INFERENCE_API_KEY)"}
	}
	if c.EmbedLLM.Provider == "openai" && c.EmbedLLM.Key == "" {
		return &errs.ConfigError{Field: "embedding.key", Reason: "missing credential (set EMBEDDING_API_KEY)"}
	}
	if c.RAG.ChunkSize <= 0 {
		return &errs.ConfigError{Field: "rag.chunk_size", Reason: "must be positive"}
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return &errs.ConfigError{Field: "rag.chunk_overlap", Reason: "must be in [0, chunk_size)"}
	}
	if c.RAG.MMRLambda < 0 || c.RAG.MMRLambda > 1 {
		return &errs.ConfigError{Field: "rag.mmr_lambda", Reason: "must be in [0, 1]"}
	}
	if c.RAG.TopK <= 0 {
		return &errs.ConfigError{Field: "rag.top_k", Reason: "must be positive"}
	}
	if c.RAG.HistoryWindow < 0 {
		return &errs.ConfigError{Field: "rag.history_window", Reason: "must not be negative"}
	}
	return nil
}
