package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
)

// GenerationRequest is everything the generator needs to phrase an answer.
type GenerationRequest struct {
	Question string
	History  string
	Context  []string
	Language string
}

// Generator writes the answer to a question from retrieved context.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Answerer combines retrieval and generation for the chat.
type Answerer struct {
	engine    *Engine
	generator Generator
	logger    *slog.Logger
}

// NewAnswerer creates an answerer. A nil engine or generator is allowed and
// makes Answer report the service as unavailable.
func NewAnswerer(engine *Engine, generator Generator, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		engine:    engine,
		generator: generator,
		logger:    logger,
	}
}

// Answer retrieves the chunks for the question and has the generator answer
// it in the requested language. Every retrieved chunk becomes a reference.
func (a *Answerer) Answer(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	if a == nil || a.engine == nil {
		return nil, fmt.Errorf("%w: vector store not available", model.ErrServiceUnavailable)
	}
	if a.generator == nil {
		return nil, fmt.Errorf("%w: answer generation not configured", model.ErrServiceUnavailable)
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", model.ErrInvalidRequest)
	}
	language := req.Language
	if language == "" {
		language = model.DefaultLanguage
	}

	chunks, err := a.engine.Retrieve(ctx, req.Message)
	if err != nil {
		return nil, err
	}

	contents := make([]string, len(chunks))
	references := make([]model.Reference, len(chunks))
	for i, chunk := range chunks {
		contents[i] = chunk.Content
		references[i] = model.Reference{
			Document: filepath.Base(chunk.Source),
			Content:  chunk.Content,
		}
	}

	answer, err := a.generator.Generate(ctx, GenerationRequest{
		Question: req.Message,
		History:  model.FormatHistory(req.ChatHistory),
		Context:  contents,
		Language: language,
	})
	if err != nil {
		return nil, helper.NewError("generate answer", err)
	}

	a.logger.Info("Answered question", slog.String("language", language), slog.Int("references", len(references)))
	return &model.ChatResponse{
		Answer:     answer,
		References: references,
	}, nil
}

// BuildPrompt returns the system and user message for req.
func BuildPrompt(req GenerationRequest) (string, string) {
	system := fmt.Sprintf(`You are an assistant for Indian law. You answer questions about the Bharatiya Nyaya Sanhita (BNS), the Bharatiya Nagarik Suraksha Sanhita (BNSS), the Bharatiya Sakshya Adhiniyam (BSA), the Constitution of India, the IPC, the CrPC and court judgments.

Instructions:
1. Answer only from the provided legal context.
2. Cite the sections or articles the answer relies on.
3. If the context does not contain the answer, say that you could not find it in the documents.
4. Answer in %s.`, req.Language)

	var b strings.Builder
	b.WriteString("Legal context:\n")
	for i, content := range req.Context {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, content)
	}
	if req.History != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(req.History)
	}
	fmt.Fprintf(&b, "Question: %s\n\nAnswer:", req.Question)

	return system, b.String()
}
