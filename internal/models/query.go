package models

import "fmt"

// SearchMode selects how the retriever ranks chunks for a search request.
type SearchMode string

const (
	SearchSemantic SearchMode = "semantic"
	SearchKeyword  SearchMode = "keyword"
	SearchHybrid   SearchMode = "hybrid"
)

// SearchQuery represents a chunk search request.
type SearchQuery struct {
	Query string     `json:"query"`
	Limit int        `json:"limit,omitempty"`
	Mode  SearchMode `json:"mode,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns an error if the query is empty or the mode is unknown.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	switch q.Mode {
	case "":
		q.Mode = SearchHybrid
	case SearchSemantic, SearchKeyword, SearchHybrid:
	default:
		return fmt.Errorf("unknown search mode %q (supported: semantic, keyword, hybrid)", q.Mode)
	}
	return nil
}
