package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".local/share/studybuddy/studybuddy.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = ".local/share/studybuddy/indices/vectors.bin"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = ".local/share/studybuddy/indices/bleve"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = ".local/share/studybuddy/uploads"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hash"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaultEmbeddingModel(cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.MaxAttempts == 0 {
		cfg.Embedding.MaxAttempts = 3
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel(cfg.LLM.Provider)
	}
	if cfg.LLM.Provider == "ollama" && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.MaxAttempts == 0 {
		cfg.LLM.MaxAttempts = 3
	}

	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.AnswerTopK == 0 {
		cfg.RAG.AnswerTopK = 4
	}
	if cfg.RAG.EvidenceCount == 0 {
		cfg.RAG.EvidenceCount = 3
	}
	if cfg.RAG.PreviewLength == 0 {
		cfg.RAG.PreviewLength = 200
	}

	if cfg.Quiz.RetrieveK == 0 {
		cfg.Quiz.RetrieveK = 15
	}
	if cfg.Quiz.ContextChunks == 0 {
		cfg.Quiz.ContextChunks = 10
	}
	if cfg.Quiz.ContextChars == 0 {
		cfg.Quiz.ContextChars = 8000
	}
	if cfg.Quiz.DefaultQuestions == 0 {
		cfg.Quiz.DefaultQuestions = 5
	}
	if cfg.Quiz.DedupSimilarity == 0 {
		cfg.Quiz.DedupSimilarity = 0.9
	}

	if cfg.Progress.RecentActivityLimit == 0 {
		cfg.Progress.RecentActivityLimit = 20
	}
	if cfg.Progress.WeakThreshold == 0 {
		cfg.Progress.WeakThreshold = 70
	}
	if cfg.Progress.WeakLimit == 0 {
		cfg.Progress.WeakLimit = 10
	}
	if cfg.Progress.SummaryActivity == 0 {
		cfg.Progress.SummaryActivity = 10
	}

	if cfg.Conversation.MaxConversations == 0 {
		cfg.Conversation.MaxConversations = 1000
	}
	if cfg.Conversation.MaxMessages == 0 {
		cfg.Conversation.MaxMessages = 50
	}
	if cfg.Conversation.TTL == 0 {
		cfg.Conversation.TTL = 24 * time.Hour
	}
	if cfg.Conversation.HistoryTurns == 0 {
		cfg.Conversation.HistoryTurns = 6
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".docx", ".txt"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "anthropic":
		return "claude-3-5-haiku-latest"
	case "gemini":
		return "gemini-2.0-flash"
	case "mock":
		return "mock"
	default:
		return "llama3.2:latest"
	}
}

func defaultEmbeddingModel(provider string) string {
	switch provider {
	case "openai":
		return "text-embedding-3-small"
	case "gemini":
		return "text-embedding-004"
	case "onnx":
		return "all-MiniLM-L6-v2"
	default:
		return "hash"
	}
}
