package models

// SearchResult is one retrieved chunk. Results are ordered by descending Score.
type SearchResult struct {
	Text        string  `json:"text"`
	FilePath    string  `json:"file_path"`
	ChunkIndex  int     `json:"chunk_index"`
	TotalChunks int     `json:"total_chunks"`
	Score       float64 `json:"score"`
}

// NewSearchResult maps a stored chunk and its similarity into the public result shape.
func NewSearchResult(c Chunk, score float64) SearchResult {
	return SearchResult{
		Text:        c.Text,
		FilePath:    c.SourceID,
		ChunkIndex:  c.ChunkIndex,
		TotalChunks: c.TotalChunks,
		Score:       score,
	}
}
