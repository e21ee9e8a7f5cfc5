package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is a contiguous text segment of a source document together with its
// embedding. Document identity is the Source path; there is no document table.
type Chunk struct {
	ID             int64     `json:"id"`
	RID            uuid.UUID `json:"rid"`
	Collection     string    `json:"collection,omitempty"`
	Source         string    `json:"source"`
	Position       int       `json:"position"`
	Content        string    `json:"content"`
	Embedding      []float32 `json:"embedding,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	Metadata       Metadata  `json:"metadata,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	// Results
	Similarity float64 `json:"similarity,omitempty"`
	Distance   float64 `json:"distance,omitempty"`
}

// NewChunk creates a chunk for source at the given position with the
// standard {source, page} metadata.
func NewChunk(source string, position int, content string) *Chunk {
	return &Chunk{
		RID:      uuid.New(),
		Source:   source,
		Position: position,
		Content:  content,
		Metadata: Metadata{
			MetadataSource: source,
			MetadataPage:   position,
		},
	}
}

// SourceCount is the number of indexed chunks of one source document.
type SourceCount struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}
