// Package models defines core data structures for notes, chunks, retrieval results, and chat.
package models

// Document is one source note. ID is the stable path-derived identifier reported
// back to callers as file_path.
type Document struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Chunk is a contiguous rune span [Start, End) of one Document.
type Chunk struct {
	SourceID    string `json:"file_path"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Text        string `json:"text"`
}

// IndexEntry pairs an embedding with the chunk it was computed from. Its position
// in the slice handed to the index is its ordinal.
type IndexEntry struct {
	Embedding []float32
	Chunk     Chunk
}

// Health reports whether an index is attached to the query path.
type Health struct {
	Loaded     bool   `json:"index_loaded"`
	Entries    int    `json:"index_size"`
	Dimensions int    `json:"dimensions,omitempty"`
	BuildID    string `json:"build_id,omitempty"`
}
