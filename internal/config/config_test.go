package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
index:
  name: "test_docs"
embedding:
  provider: "mock"
  dimensions: 8
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Index.Name != "test_docs" {
		t.Errorf("index name = %q", cfg.Index.Name)
	}
	if cfg.Embedding.Provider != "mock" || cfg.Embedding.Dimensions != 8 {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
	if cfg.Index.Name != DefaultIndexName {
		t.Errorf("index name default = %q", cfg.Index.Name)
	}
	if cfg.Index.BatchLimit != 32 {
		t.Errorf("batch limit default = %d", cfg.Index.BatchLimit)
	}
	if cfg.Chunking.MaxWordsFullText != 1000 || cfg.Chunking.MaxWordsSection != 500 {
		t.Errorf("chunking defaults = %+v", cfg.Chunking)
	}
	if cfg.Query.DefaultK != 5 {
		t.Errorf("default k = %d", cfg.Query.DefaultK)
	}
	if cfg.Embedding.Timeout() != 30*time.Second {
		t.Errorf("embedding timeout = %v", cfg.Embedding.Timeout())
	}
}

func TestLoadExpandPathRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
index:
  dir: "./data/vector_store"
ingest:
  directory: "./docs"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantIndex := filepath.Join(dir, "data", "vector_store")
	if cfg.Index.Dir != wantIndex {
		t.Errorf("index dir = %q, want %q", cfg.Index.Dir, wantIndex)
	}
	wantIngest := filepath.Join(dir, "docs")
	if cfg.Ingest.Directory != wantIngest {
		t.Errorf("ingest directory = %q, want %q", cfg.Ingest.Directory, wantIngest)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
