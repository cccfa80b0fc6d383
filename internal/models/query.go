package models

// QuerySettings carries per-request retrieval and model parameters. All fields
// are optional; zero values fall back to config defaults.
type QuerySettings struct {
	ModelName  string          `json:"model_name,omitempty"`
	Parameters QueryParameters `json:"parameters"`
}

// QueryParameters holds retrieval knobs. Pointers distinguish "unset" from
// explicit zero (a threshold of 0 is a valid "keep everything").
type QueryParameters struct {
	TopK                *int     `json:"topK,omitempty"`
	SimilarityThreshold *float64 `json:"similarityThreshold,omitempty"`
}

// QueryResult is the answer to a knowledge-base query plus the chunks that
// survived similarity filtering (in retrieval order).
type QueryResult struct {
	Answer         string         `json:"answer"`
	RelevantChunks []*ScoredChunk `json:"relevant_chunks"`
}
