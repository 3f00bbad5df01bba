package models

// Chunk is a bounded, overlapping text segment of a source document.
// PageNumber refers to the page, sheet or slide the chunk came from;
// ChunkID is 1-based within that unit.
type Chunk struct {
	Content    string
	Source     string
	PageNumber int
	ChunkID    int
}

// Exchange is one immutable user/assistant pair in conversation history.
type Exchange struct {
	UserMessage      string
	AssistantMessage string
}
