package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Chunking.ChunkSize != 1000 || cfg.Chunking.Overlap != 100 || cfg.Chunking.MinChunkSize != 150 {
		t.Errorf("unexpected chunking defaults: %+v", cfg.Chunking)
	}
	if cfg.Embedder.BatchSize != 64 {
		t.Errorf("unexpected embedder batch size: %d", cfg.Embedder.BatchSize)
	}
	if len(cfg.Stores) != 2 {
		t.Errorf("expected 2 default stores, got %v", cfg.Stores)
	}
	if cfg.Retrieval.K != 5 || !cfg.Retrieval.WebSearchEnabled {
		t.Errorf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
}

func TestLoad_PartialFileGetsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	content := `
chunking:
  chunk_size: 500
embedder:
  provider: togetherai
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Chunking.ChunkSize != 500 {
		t.Errorf("explicit value lost: %d", cfg.Chunking.ChunkSize)
	}
	if cfg.Chunking.Overlap != 100 {
		t.Errorf("missing value not defaulted: %d", cfg.Chunking.Overlap)
	}
	if cfg.Embedder.Provider != "togetherai" {
		t.Errorf("explicit provider lost: %q", cfg.Embedder.Provider)
	}
	if cfg.Embedder.Model == "" {
		t.Error("missing model not defaulted")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("chunking: ["), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := &AppConfig{
		Chunking:  ChunkingConfig{ChunkSize: 800, Overlap: 50, MinChunkSize: 100},
		Embedder:  EmbedderConfig{Provider: "openai", Model: "text-embedding-3-large", BatchSize: 32},
		Generator: GeneratorConfig{Model: "gemini-2.0-flash-exp", SystemPrompt: "Tu es un assistant."},
		Stores:    []StoreConfig{{Name: "scraped", Dir: "/tmp/scraped"}},
		Retrieval: RetrievalConfig{K: 3, WebSearchEnabled: false},
	}

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Chunking != original.Chunking {
		t.Errorf("chunking changed on round trip: %+v", loaded.Chunking)
	}
	if loaded.Embedder != original.Embedder {
		t.Errorf("embedder changed on round trip: %+v", loaded.Embedder)
	}
	if loaded.Generator.SystemPrompt != original.Generator.SystemPrompt {
		t.Errorf("system prompt changed on round trip: %q", loaded.Generator.SystemPrompt)
	}
	if len(loaded.Stores) != 1 || loaded.Stores[0] != original.Stores[0] {
		t.Errorf("stores changed on round trip: %+v", loaded.Stores)
	}
}
