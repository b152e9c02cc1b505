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
storage:
  database_path: "test.db"
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
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./data/db/studybuddy.db"
watch:
  directories: ["./dev/sample"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "studybuddy.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	wantWatch := filepath.Join(dir, "dev", "sample")
	if cfg.Watch.Directories[0] != wantWatch {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], wantWatch)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.RAG.ChunkSize != 1000 || cfg.RAG.ChunkOverlap != 200 {
		t.Errorf("chunking defaults: got %d/%d", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.AnswerTopK != 4 || cfg.RAG.EvidenceCount != 3 || cfg.RAG.PreviewLength != 200 {
		t.Errorf("answer defaults: got %+v", cfg.RAG)
	}
	if cfg.Quiz.RetrieveK != 15 || cfg.Quiz.ContextChunks != 10 || cfg.Quiz.ContextChars != 8000 {
		t.Errorf("quiz defaults: got %+v", cfg.Quiz)
	}
	if cfg.Progress.RecentActivityLimit != 20 || cfg.Progress.WeakThreshold != 70 || cfg.Progress.WeakLimit != 10 {
		t.Errorf("progress defaults: got %+v", cfg.Progress)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("llm defaults: got provider=%s base_url=%s", cfg.LLM.Provider, cfg.LLM.BaseURL)
	}
	if cfg.LLM.Timeout != 60*time.Second || cfg.LLM.MaxAttempts != 3 {
		t.Errorf("llm guard defaults: got %s/%d", cfg.LLM.Timeout, cfg.LLM.MaxAttempts)
	}
	if cfg.Embedding.Provider != "hash" || cfg.Embedding.Dimensions != 384 {
		t.Errorf("embedding defaults: got %s/%d", cfg.Embedding.Provider, cfg.Embedding.Dimensions)
	}
	if len(cfg.Watch.Extensions) != 3 || cfg.Watch.Extensions[0] != ".pdf" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
}

func TestApplyDefaults_modelFollowsProvider(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{Provider: "anthropic"}}
	ApplyDefaults(cfg)
	if cfg.LLM.Model != "claude-3-5-haiku-latest" {
		t.Errorf("model: got %s", cfg.LLM.Model)
	}
	if cfg.LLM.BaseURL != "" {
		t.Errorf("base_url should stay empty for anthropic, got %s", cfg.LLM.BaseURL)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("STUDYBUDDY_LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  timeout: 5s\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("llm: got %s/%s", cfg.LLM.Provider, cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key: got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Timeout != 5*time.Second {
		t.Errorf("timeout: got %s", cfg.LLM.Timeout)
	}
}

func TestLoad_dotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STUDYBUDDY_TEST_DOTENV", "")
	os.Unsetenv("STUDYBUDDY_TEST_DOTENV")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("STUDYBUDDY_TEST_DOTENV=loaded\n"), 0600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: false\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("STUDYBUDDY_TEST_DOTENV"); got != "loaded" {
		t.Errorf("dotenv value: got %q", got)
	}
}

func TestDefault_pathsAreAbsolute(t *testing.T) {
	cfg := Default()
	for _, p := range []string{cfg.Storage.DatabasePath, cfg.Storage.VectorIndexPath, cfg.Storage.KeywordIndexPath, cfg.Storage.UploadDir} {
		if !filepath.IsAbs(p) {
			t.Errorf("path %q should be absolute", p)
		}
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("true_returns_true", func(t *testing.T) {
		v := true
		w := &WatchConfig{Recursive: &v}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
