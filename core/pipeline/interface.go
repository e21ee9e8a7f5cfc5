package pipeline

import (
	"context"

	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
)

// DefaultEmbedBatchSize is the number of chunks embedded and indexed per step.
const DefaultEmbedBatchSize = 32

// ExtractFunc reads the plain text of the document at path.
type ExtractFunc func(path string) (*ExtractedDocument, error)

// ChunkFunc splits text into chunk contents.
type ChunkFunc func(text string) ([]string, error)

// ChunkerFactory builds a chunker for a chunking config.
type ChunkerFactory func(cfg model.ChunkingConfig) (ChunkFunc, error)

// Embedder generates embeddings. It returns the model name with the vectors
// so chunks can be tagged with the model that produced them.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, string, error)
	Dimension(ctx context.Context) (int, error)
	Model() string
	Loaded() bool
}

// VectorStore persists embedded chunks and answers similarity queries.
type VectorStore interface {
	Add(ctx context.Context, chunks []*model.Chunk) (int, error)
	DeleteBySource(ctx context.Context, source string) (int, error)
	CountBySource(ctx context.Context, source string) (int, error)
	SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]*model.Chunk, error)
	Count(ctx context.Context) (int, error)
	ModelCounts(ctx context.Context) (map[string]int, error)
	Sources(ctx context.Context) ([]model.SourceCount, error)
	Clear(ctx context.Context, dimension int) (int, error)
	StorageSize(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// Pipeline combines chunking, embedding and indexing of one document text.
type Pipeline struct {
	Chunker   ChunkFunc
	Embedder  Embedder
	Store     VectorStore
	BatchSize int
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker ChunkFunc, embedder Embedder, store VectorStore) *Pipeline {
	return &Pipeline{
		Chunker:   chunker,
		Embedder:  embedder,
		Store:     store,
		BatchSize: DefaultEmbedBatchSize,
	}
}

// ProcessingResult counts what one Process call achieved, also when it failed
// half way.
type ProcessingResult struct {
	ChunksCreated       int
	EmbeddingsGenerated int
	ChunksIndexed       int
	EmbeddingDimension  int
	EmbeddingModel      string
}

// Partial reports whether fewer chunks were indexed than created.
func (r *ProcessingResult) Partial() bool {
	return r.ChunksIndexed < r.ChunksCreated
}

// Process chunks text, embeds the chunks in batches and adds every batch to
// the store as soon as it is embedded. On error the returned result holds the
// counts reached so far.
func (p *Pipeline) Process(ctx context.Context, source string, text string) (*ProcessingResult, error) {
	result := &ProcessingResult{}

	contents, err := p.Chunker(text)
	if err != nil {
		return result, helper.NewError("chunk", err)
	}
	result.ChunksCreated = len(contents)

	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}

	for start := 0; start < len(contents); start += batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := min(start+batchSize, len(contents))
		vectors, modelName, err := p.Embedder.Embed(ctx, contents[start:end])
		if err != nil {
			return result, helper.NewError("embed batch", err)
		}
		result.EmbeddingsGenerated += len(vectors)
		result.EmbeddingModel = modelName
		if len(vectors) > 0 {
			result.EmbeddingDimension = len(vectors[0])
		}

		chunks := make([]*model.Chunk, 0, end-start)
		for i, content := range contents[start:end] {
			chunk := model.NewChunk(source, start+i, content)
			chunk.Embedding = vectors[i]
			chunk.EmbeddingModel = modelName
			chunks = append(chunks, chunk)
		}

		indexed, err := p.Store.Add(ctx, chunks)
		result.ChunksIndexed += indexed
		if err != nil {
			return result, helper.NewError("index batch", err)
		}
	}

	return result, nil
}
