// Package config provides configuration loading and structs for the StudyBuddy server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug        bool               `yaml:"debug"`
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	LLM          LLMConfig          `yaml:"llm"`
	RAG          RAGConfig          `yaml:"rag"`
	Quiz         QuizConfig         `yaml:"quiz"`
	Progress     ProgressConfig     `yaml:"progress"`
	Conversation ConversationConfig `yaml:"conversation"`
	Watch        WatchConfig        `yaml:"watch"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, indices and raw uploads.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	VectorIndexPath  string `yaml:"vector_index_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
	UploadDir        string `yaml:"upload_dir"`
}

// EmbeddingConfig selects and tunes the embedding model.
// Provider is one of hash, onnx, openai, gemini.
type EmbeddingConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	ModelPath   string        `yaml:"model_path"`
	VocabPath   string        `yaml:"vocab_path"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Dimensions  int           `yaml:"dimensions"`
	MaxTokens   int           `yaml:"max_tokens"`
	CacheSize   int           `yaml:"cache_size"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// LLMConfig selects and tunes the generative model.
// Provider is one of mock, openai, ollama, anthropic, gemini.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// RAGConfig holds chunking and answering settings.
type RAGConfig struct {
	ChunkSize     int `yaml:"chunk_size"`
	ChunkOverlap  int `yaml:"chunk_overlap"`
	AnswerTopK    int `yaml:"answer_top_k"`
	EvidenceCount int `yaml:"evidence_count"`
	PreviewLength int `yaml:"preview_length"`
	// SourceBoost > 1 ranks keyword matches in the document filename higher.
	SourceBoost float64 `yaml:"source_boost"`
	// Fuzziness > 0 lets keyword search match terms within that edit distance.
	Fuzziness int `yaml:"fuzziness"`
}

// QuizConfig holds quiz generation settings.
type QuizConfig struct {
	RetrieveK        int     `yaml:"retrieve_k"`
	ContextChunks    int     `yaml:"context_chunks"`
	ContextChars     int     `yaml:"context_chars"`
	DefaultQuestions int     `yaml:"default_questions"`
	DedupSimilarity  float64 `yaml:"dedup_similarity"`
}

// ProgressConfig holds progress aggregation settings.
type ProgressConfig struct {
	RecentActivityLimit int     `yaml:"recent_activity_limit"`
	WeakThreshold       float64 `yaml:"weak_threshold"`
	WeakLimit           int     `yaml:"weak_limit"`
	SummaryActivity     int     `yaml:"summary_activity"`
}

// ConversationConfig bounds the in-memory conversation store.
type ConversationConfig struct {
	MaxConversations int           `yaml:"max_conversations"`
	MaxMessages      int           `yaml:"max_messages"`
	TTL              time.Duration `yaml:"ttl"`
	HistoryTurns     int           `yaml:"history_turns"`
}

// Default returns a config with every default applied, for running without a config file.
func Default() *Config {
	LoadEnv()
	cfg := &Config{}
	ApplyEnv(cfg)
	ApplyDefaults(cfg)
	ResolveAPIKeys(cfg)
	dir, _ := os.Getwd()
	expandPaths(cfg, dir)
	return cfg
}

// Load reads and parses the config file at path, expands paths, and applies defaults
// and environment overrides. A .env file next to the config or in the working directory
// is loaded first when present.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	LoadEnv(filepath.Join(configDir, ".env"))

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)
	ResolveAPIKeys(&cfg)

	expandPaths(&cfg, configDir)
	return &cfg, nil
}

func expandPaths(cfg *Config, configDir string) {
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
}

// LoadEnv loads KEY=VALUE pairs from the given .env files (and ./.env when none is given)
// into the process environment. Missing files are ignored and existing variables win.
func LoadEnv(paths ...string) {
	if len(paths) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
	_ = godotenv.Load()
}

// ApplyEnv overrides model selection from STUDYBUDDY_* variables and OLLAMA_BASE_URL.
// It runs before ApplyDefaults so per-provider defaults follow the chosen provider.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("STUDYBUDDY_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("STUDYBUDDY_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("STUDYBUDDY_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	isOllama := cfg.LLM.Provider == "" || cfg.LLM.Provider == "ollama"
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" && isOllama && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = strings.TrimSuffix(v, "/") + "/v1"
	}
}

// ResolveAPIKeys fills empty API keys from the provider's conventional environment variable.
func ResolveAPIKeys(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = apiKeyFromEnv(cfg.LLM.Provider)
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = apiKeyFromEnv(cfg.Embedding.Provider)
	}
}

func apiKeyFromEnv(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "gemini":
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			return v
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
