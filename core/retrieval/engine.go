package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/legalrag/core/pipeline"
	"github.com/siherrmann/legalrag/core/settings"
	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
)

const (
	// MMRLambda weighs relevance against diversity in MMR reranking.
	MMRLambda = 0.5
	// MMRMinFetch is the minimal number of candidates fetched for MMR.
	MMRMinFetch = 20
)

// Engine answers similarity queries against the vector store with the
// active embedding model.
type Engine struct {
	store    pipeline.VectorStore
	embedder pipeline.Embedder
	settings *settings.Store
	logger   *slog.Logger
}

// NewEngine creates a new retrieval engine
func NewEngine(store pipeline.VectorStore, embedder pipeline.Embedder, settingsStore *settings.Store, logger *slog.Logger) (*Engine, error) {
	if store == nil || embedder == nil || settingsStore == nil {
		return nil, helper.NewError("retrieval engine", fmt.Errorf("%w: store, embedder and settings are required", model.ErrServiceUnavailable))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		settings: settingsStore,
		logger:   logger,
	}, nil
}

// Search returns the k chunks most similar to query. The threshold is
// applied after the top k were selected, so filtered chunks still count
// against k. Ranks start at 1.
func (e *Engine) Search(ctx context.Context, query string, k int, threshold *float64) ([]*model.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", model.ErrInvalidRequest)
	}
	if k < 1 || k > model.MaxRetrievalK {
		return nil, fmt.Errorf("%w: k must be between 1 and %d, got %d", model.ErrInvalidRequest, model.MaxRetrievalK, k)
	}
	if threshold != nil && (*threshold < 0 || *threshold > 1) {
		return nil, fmt.Errorf("%w: score_threshold must be between 0 and 1, got %v", model.ErrInvalidRequest, *threshold)
	}

	vector, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	chunks, err := e.store.SimilaritySearch(ctx, vector, k)
	if err != nil {
		return nil, helper.NewError("search", err)
	}

	results := []*model.SearchResult{}
	for i, chunk := range chunks {
		if threshold != nil && chunk.Similarity < *threshold {
			continue
		}
		results = append(results, model.NewSearchResult(i+1, chunk))
	}

	return results, nil
}

// Retrieve returns the chunks handed to the generator for question, using
// the current retrieval settings.
func (e *Engine) Retrieve(ctx context.Context, question string) ([]*model.Chunk, error) {
	if question == "" {
		return nil, fmt.Errorf("%w: message is required", model.ErrInvalidRequest)
	}
	cfg := e.settings.Retrieval()

	vector, err := e.embedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	fetch := cfg.K
	if cfg.SearchType == model.SearchTypeMMR {
		fetch = max(MMRMinFetch, 4*cfg.K)
	}

	candidates, err := e.store.SimilaritySearch(ctx, vector, fetch)
	if err != nil {
		return nil, helper.NewError("retrieve", err)
	}
	if cfg.SearchType == model.SearchTypeMMR {
		candidates = MaximalMarginalRelevance(vector, candidates, cfg.K, MMRLambda)
	}

	chunks := make([]*model.Chunk, 0, len(candidates))
	for _, chunk := range candidates {
		if cfg.ScoreThreshold != nil && chunk.Similarity < *cfg.ScoreThreshold {
			continue
		}
		chunks = append(chunks, chunk)
	}

	e.logger.Debug("Retrieved chunks", slog.String("search_type", string(cfg.SearchType)), slog.Int("candidates", len(candidates)), slog.Int("chunks", len(chunks)))
	return chunks, nil
}

// embedQuery embeds text after making sure the index only holds vectors of
// the active model.
func (e *Engine) embedQuery(ctx context.Context, text string) ([]float32, error) {
	counts, err := e.store.ModelCounts(ctx)
	if err != nil {
		return nil, helper.NewError("model counts", err)
	}
	if pipeline.HasForeignModel(counts, e.embedder.Model()) {
		return nil, fmt.Errorf("%w: active model is %s", model.ErrEmbeddingModelMismatch, e.embedder.Model())
	}

	vectors, _, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}
	return vectors[0], nil
}
