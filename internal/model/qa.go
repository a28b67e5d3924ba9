package model

type QaSourceItem struct {
	Text           string  `json:"text"`
	SourceID       string  `json:"source_id"`
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// QaAnswer is transient; callers may persist it as an Output but the Q&A
// path itself does not.
type QaAnswer struct {
	Question         string         `json:"question"`
	Answer           string         `json:"answer"`
	Sources          []QaSourceItem `json:"sources"`
	ConfidenceScore  *float64       `json:"confidence_score,omitempty"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
}
