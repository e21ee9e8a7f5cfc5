package model

// MaxResultContent is the number of characters of a chunk returned by a search.
const MaxResultContent = 500

// SearchResult is a ranked chunk returned by a search.
type SearchResult struct {
	Rank            int      `json:"rank"`
	Content         string   `json:"content"`
	Metadata        Metadata `json:"metadata"`
	SimilarityScore float64  `json:"similarity_score"`
	Distance        float64  `json:"distance"`
}

// NewSearchResult builds the result for chunk at rank, truncating its content.
func NewSearchResult(rank int, chunk *Chunk) *SearchResult {
	content := []rune(chunk.Content)
	if len(content) > MaxResultContent {
		content = content[:MaxResultContent]
	}
	return &SearchResult{
		Rank:            rank,
		Content:         string(content),
		Metadata:        chunk.Metadata,
		SimilarityScore: Round(chunk.Similarity, 2),
		Distance:        Round(chunk.Distance, 2),
	}
}
