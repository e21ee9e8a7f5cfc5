package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/siherrmann/legalrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	t.Run("Reject missing collaborators", func(t *testing.T) {
		_, err := NewEngine(nil, nil, nil, nil)
		assert.ErrorIs(t, err, model.ErrServiceUnavailable)
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Run("Rank by similarity", func(t *testing.T) {
				env := newTestEnv(t, newStore(t))
				env.indexCorpus(t)

				results, err := env.engine.Search(ctx, "What is the punishment for murder?", 3, nil)
				require.NoError(t, err, "Expected Search to not return an error")
				require.Len(t, results, 3)

				assert.Equal(t, 1, results[0].Rank)
				assert.Equal(t, "Section 101. Murder.", results[0].Content)
				assert.Equal(t, 2, results[1].Rank)
				assert.Equal(t, "Section 103. Punishment for murder.", results[1].Content)
				assert.Equal(t, 3, results[2].Rank)
				assert.Equal(t, "Section 105. Culpable homicide.", results[2].Content)
				assert.Equal(t, 1.0, results[0].SimilarityScore)
				assert.Equal(t, 0.0, results[0].Distance)
				assert.Equal(t, 0.89, results[2].SimilarityScore)
				assert.Equal(t, 0.11, results[2].Distance)
				assert.Equal(t, "data/bns_data/bns.pdf", results[0].Metadata.Source())
			})

			t.Run("Threshold after top k", func(t *testing.T) {
				env := newTestEnv(t, newStore(t))
				env.indexCorpus(t)
				threshold := 0.9

				results, err := env.engine.Search(ctx, "What is the punishment for murder?", 4, &threshold)
				require.NoError(t, err)
				require.Len(t, results, 2)
				assert.Equal(t, 1, results[0].Rank)
				assert.Equal(t, 2, results[1].Rank)
			})

			t.Run("No match above threshold", func(t *testing.T) {
				env := newTestEnv(t, newStore(t))
				env.indexCorpus(t)
				threshold := 0.9

				results, err := env.engine.Search(ctx, "test", 5, &threshold)
				require.NoError(t, err)
				assert.NotNil(t, results)
				assert.Empty(t, results)
			})

			t.Run("Refuse index of another model", func(t *testing.T) {
				env := newTestEnv(t, newStore(t))
				env.indexCorpus(t)
				env.index(t, "data/ipc.pdf", "old-model", "Section 303. Theft.")

				_, err := env.engine.Search(ctx, "What is the punishment for murder?", 5, nil)
				assert.ErrorIs(t, err, model.ErrEmbeddingModelMismatch)
			})
		})
	}

	t.Run("Truncate long content", func(t *testing.T) {
		env := newTestEnv(t, storeFactories()["memory"](t))
		long := strings.Repeat("धारा ", 200)
		corpus[long] = []float32{1, 0.3, 0, 0}
		t.Cleanup(func() { delete(corpus, long) })
		env.index(t, "data/bns.pdf", "test-model", long)

		results, err := env.engine.Search(ctx, "What is the punishment for murder?", 1, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, model.MaxResultContent, len([]rune(results[0].Content)))
	})

	t.Run("Reject invalid requests", func(t *testing.T) {
		env := newTestEnv(t, storeFactories()["memory"](t))
		tooHigh := 1.5

		_, err := env.engine.Search(ctx, "", 5, nil)
		assert.ErrorIs(t, err, model.ErrInvalidRequest)
		_, err = env.engine.Search(ctx, "murder", 0, nil)
		assert.ErrorIs(t, err, model.ErrInvalidRequest)
		_, err = env.engine.Search(ctx, "murder", model.MaxRetrievalK+1, nil)
		assert.ErrorIs(t, err, model.ErrInvalidRequest)
		_, err = env.engine.Search(ctx, "murder", 5, &tooHigh)
		assert.ErrorIs(t, err, model.ErrInvalidRequest)
	})
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("Similarity uses configured k", func(t *testing.T) {
		env := newTestEnv(t, storeFactories()["memory"](t))
		env.indexCorpus(t)
		_, _, err := env.settings.UpdateRetrieval(model.RetrievalConfig{K: 2, SearchType: model.SearchTypeSimilarity})
		require.NoError(t, err)

		chunks, err := env.engine.Retrieve(ctx, "What is the punishment for murder?")
		require.NoError(t, err, "Expected Retrieve to not return an error")
		require.Len(t, chunks, 2)
		assert.Equal(t, "Section 101. Murder.", chunks[0].Content)
		assert.Equal(t, "Section 103. Punishment for murder.", chunks[1].Content)
	})

	t.Run("MMR prefers diverse chunks", func(t *testing.T) {
		env := newTestEnv(t, storeFactories()["memory"](t))
		env.indexCorpus(t)
		_, _, err := env.settings.UpdateRetrieval(model.RetrievalConfig{K: 2, SearchType: model.SearchTypeMMR})
		require.NoError(t, err)

		chunks, err := env.engine.Retrieve(ctx, "What is the punishment for murder?")
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "Section 101. Murder.", chunks[0].Content)
		assert.Equal(t, "Section 105. Culpable homicide.", chunks[1].Content)
	})

	t.Run("Configured threshold filters chunks", func(t *testing.T) {
		env := newTestEnv(t, storeFactories()["memory"](t))
		env.indexCorpus(t)
		threshold := 0.95
		_, _, err := env.settings.UpdateRetrieval(model.RetrievalConfig{K: 5, SearchType: model.SearchTypeSimilarity, ScoreThreshold: &threshold})
		require.NoError(t, err)

		chunks, err := env.engine.Retrieve(ctx, "What is the punishment for murder?")
		require.NoError(t, err)
		assert.Len(t, chunks, 2)
	})

	t.Run("Empty question", func(t *testing.T) {
		env := newTestEnv(t, storeFactories()["memory"](t))

		_, err := env.engine.Retrieve(ctx, "")
		assert.ErrorIs(t, err, model.ErrInvalidRequest)
	})
}
