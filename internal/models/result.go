package models

// SearchResult is the projection of an indexed document returned for a query.
// Score is only meaningful for ordering within one query's results.
type SearchResult struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Filename    string  `json:"filename"`
	DownloadURL string  `json:"download_url"`
	Score       float64 `json:"score"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	// Cached is true when the results were served from the cache without an engine query.
	Cached    bool   `json:"cached"`
	QueryTime int64  `json:"query_time_ms"`
	Message   string `json:"message,omitempty"`
}

// ProjectResult builds the search projection of record with the engine-assigned score.
func ProjectResult(record IndexRecord, score float64) SearchResult {
	return SearchResult{
		Title:       record.Title,
		Description: record.Description,
		Category:    record.Category,
		Filename:    record.Filename,
		DownloadURL: record.DownloadURL,
		Score:       score,
	}
}
