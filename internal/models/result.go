package models

// SearchResult is a single ranked chunk hit.
type SearchResult struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Rank     int               `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query     string          `json:"query"`
	Mode      SearchMode      `json:"mode"`
	Results   []*SearchResult `json:"results"`
	QueryTime int64           `json:"query_time_ms"`
}

// UploadResult is returned for an ingested document.
type UploadResult struct {
	Message       string `json:"message"`
	FileID        string `json:"file_id"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
}

// Status describes the indexed material and the configured models.
type Status struct {
	Chunks              int    `json:"chunks"`
	VectorIndexSize     int    `json:"vector_index_size"`
	LLMModel            string `json:"llm_model"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	DiskUsageBytes      int64  `json:"disk_usage_bytes"`
}
