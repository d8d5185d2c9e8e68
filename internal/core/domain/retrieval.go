package domain

// RetrievedChunk is a document segment selected as context for the extraction query.
type RetrievedChunk struct {
	Position int     `json:"position"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}
