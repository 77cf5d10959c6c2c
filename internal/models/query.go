package models

import "fmt"

// QueryRequest is the body of a direct retrieval request.
type QueryRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

// Validate rejects an empty query and normalizes MaxResults into [1, maxResults].
func (q *QueryRequest) Validate(defaultResults, maxResults int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	q.MaxResults = ClampResults(q.MaxResults, defaultResults, maxResults)
	return nil
}

// ClampResults maps a requested result count to the default when unset and caps it at max.
func ClampResults(requested, defaultResults, maxResults int) int {
	if requested <= 0 {
		requested = defaultResults
	}
	if maxResults > 0 && requested > maxResults {
		requested = maxResults
	}
	return requested
}

// QueryResponse is the result of a retrieval request.
type QueryResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}
