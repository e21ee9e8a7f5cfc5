package retrieval

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	requests []GenerationRequest
	answer   string
	err      error
}

func (g *fakeGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	g.requests = append(g.requests, req)
	return g.answer, g.err
}

func TestAnswer(t *testing.T) {
	ctx := context.Background()
	logger := helper.NewLogger(io.Discard, 0)

	t.Run("Answer with references", func(t *testing.T) {
		env := newTestEnv(t, storeFactories()["memory"](t))
		env.indexCorpus(t)
		_, _, err := env.settings.UpdateRetrieval(model.RetrievalConfig{K: 2, SearchType: model.SearchTypeSimilarity})
		require.NoError(t, err)
		generator := &fakeGenerator{answer: "Section 103 BNS punishes murder with death or imprisonment for life."}
		answerer := NewAnswerer(env.engine, generator, logger)

		resp, err := answerer.Answer(ctx, model.ChatRequest{
			Message: "What is the punishment for murder?",
			ChatHistory: []model.ChatMessage{
				{Role: "user", Content: "Hello"},
				{Role: "assistant", Content: "How can I help?"},
			},
		})
		require.NoError(t, err, "Expected Answer to not return an error")
		assert.Equal(t, generator.answer, resp.Answer)
		require.Len(t, resp.References, 2, "Expected one reference per retrieved chunk")
		assert.Equal(t, "bns.pdf", resp.References[0].Document)
		assert.Equal(t, "Section 101. Murder.", resp.References[0].Content)

		require.Len(t, generator.requests, 1)
		req := generator.requests[0]
		assert.Equal(t, model.DefaultLanguage, req.Language)
		assert.Equal(t, "Human: Hello\n\nAssistant: How can I help?\n\n", req.History)
		assert.Equal(t, []string{"Section 101. Murder.", "Section 103. Punishment for murder."}, req.Context)
	})

	t.Run("Requested language", func(t *testing.T) {
		env := newTestEnv(t, storeFactories()["memory"](t))
		env.indexCorpus(t)
		generator := &fakeGenerator{answer: "अनुच्छेद 21"}
		answerer := NewAnswerer(env.engine, generator, logger)

		_, err := answerer.Answer(ctx, model.ChatRequest{Message: "Which article protects personal life?", Language: "Hindi"})
		require.NoError(t, err)
		assert.Equal(t, "Hindi", generator.requests[0].Language)
	})

	t.Run("Empty index gives no references", func(t *testing.T) {
		env := newTestEnv(t, storeFactories()["memory"](t))
		answerer := NewAnswerer(env.engine, &fakeGenerator{answer: "I could not find it in the documents."}, logger)

		resp, err := answerer.Answer(ctx, model.ChatRequest{Message: "What is the punishment for murder?"})
		require.NoError(t, err)
		assert.Empty(t, resp.References)
	})

	t.Run("Unavailable without engine or generator", func(t *testing.T) {
		env := newTestEnv(t, storeFactories()["memory"](t))

		_, err := NewAnswerer(nil, &fakeGenerator{}, logger).Answer(ctx, model.ChatRequest{Message: "murder"})
		assert.ErrorIs(t, err, model.ErrServiceUnavailable)
		_, err = NewAnswerer(env.engine, nil, logger).Answer(ctx, model.ChatRequest{Message: "murder"})
		assert.ErrorIs(t, err, model.ErrServiceUnavailable)
	})

	t.Run("Reject empty message", func(t *testing.T) {
		env := newTestEnv(t, storeFactories()["memory"](t))
		answerer := NewAnswerer(env.engine, &fakeGenerator{}, logger)

		_, err := answerer.Answer(ctx, model.ChatRequest{Message: "  "})
		assert.ErrorIs(t, err, model.ErrInvalidRequest)
	})

	t.Run("Generator failure", func(t *testing.T) {
		env := newTestEnv(t, storeFactories()["memory"](t))
		generatorErr := errors.New("upstream unavailable")
		answerer := NewAnswerer(env.engine, &fakeGenerator{err: generatorErr}, logger)

		_, err := answerer.Answer(ctx, model.ChatRequest{Message: "murder"})
		assert.ErrorIs(t, err, generatorErr)
	})
}

func TestBuildPrompt(t *testing.T) {
	system, user := BuildPrompt(GenerationRequest{
		Question: "What is the punishment for murder?",
		History:  "Human: Hello\n\n",
		Context:  []string{"Section 101. Murder.", "Section 103. Punishment for murder."},
		Language: "Tamil",
	})

	assert.Contains(t, system, "Answer in Tamil.")
	assert.Contains(t, user, "[1] Section 101. Murder.")
	assert.Contains(t, user, "[2] Section 103. Punishment for murder.")
	assert.Contains(t, user, "Conversation so far:\nHuman: Hello")
	assert.True(t, strings.HasSuffix(user, "Question: What is the punishment for murder?\n\nAnswer:"))
}
