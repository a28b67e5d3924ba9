package model

// Chunk is a bounded slice of a source's text, the unit of embedding and
// retrieval. Chunks are owned by the vector store and recomputed whenever
// the source hash changes; they are never persisted as first-class rows
// outside of it.
type Chunk struct {
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
	CharStart  int    `json:"char_start"`
	CharEnd    int    `json:"char_end"`
}

// RetrievalResult is a scored chunk produced per query. RelevanceScore is
// normalized into [0,1] regardless of the provider's distance metric.
type RetrievalResult struct {
	SourceID       string  `json:"source_id"`
	SourceName     string  `json:"source_name"`
	ChunkIndex     int     `json:"chunk_index"`
	Text           string  `json:"text"`
	Distance       float64 `json:"distance"`
	RelevanceScore float64 `json:"relevance_score"`
}

type IndexReport struct {
	ChunksIndexed  int `json:"chunks_indexed"`
	SourcesSkipped int `json:"sources_skipped"`
}
