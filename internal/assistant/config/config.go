package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ChunkingConfig configures how documents are split into chunks.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	Overlap      int `yaml:"overlap"`
	MinChunkSize int `yaml:"min_chunk_size"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

// GeneratorConfig configures the generative model.
type GeneratorConfig struct {
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
}

// StoreConfig names one index store and its directory.
type StoreConfig struct {
	Name string `yaml:"name"`
	Dir  string `yaml:"dir"`
}

// RetrievalConfig configures query-time behavior.
type RetrievalConfig struct {
	K                int  `yaml:"k"`
	WebSearchEnabled bool `yaml:"web_search_enabled"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Generator GeneratorConfig `yaml:"generator"`
	Stores    []StoreConfig   `yaml:"stores"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./assistant.yaml first, then
// ~/.config/assistant/config.yaml; with neither present it returns defaults.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "assistant.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	return defaultConfig(), "", nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "assistant", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Chunking: ChunkingConfig{ChunkSize: 1000, Overlap: 100, MinChunkSize: 150},
		Embedder: EmbedderConfig{Provider: "openai", Model: "text-embedding-3-small", BatchSize: 64},
		Generator: GeneratorConfig{
			Model: "gemini-2.0-flash-exp",
		},
		Stores: []StoreConfig{
			{Name: "scraped", Dir: "data/scraped"},
			{Name: "uploads", Dir: "data/uploads"},
		},
		Retrieval: RetrievalConfig{K: 5, WebSearchEnabled: true},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	defaults := defaultConfig()

	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = defaults.Chunking.ChunkSize
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = defaults.Chunking.Overlap
	}
	if cfg.Chunking.MinChunkSize == 0 {
		cfg.Chunking.MinChunkSize = defaults.Chunking.MinChunkSize
	}
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = defaults.Embedder.Provider
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = defaults.Embedder.Model
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = defaults.Embedder.BatchSize
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = defaults.Generator.Model
	}
	if len(cfg.Stores) == 0 {
		cfg.Stores = defaults.Stores
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = defaults.Retrieval.K
	}
}
