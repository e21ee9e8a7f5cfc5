package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/sashabaranov/go-openai"
	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
)

// EmbeddingBackend turns texts into vectors with one loaded model.
type EmbeddingBackend interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// BackendFactory loads the backend for an embedding config.
type BackendFactory func(ctx context.Context, cfg model.EmbeddingConfig) (EmbeddingBackend, error)

// Embeddings is the process wide embedding provider. The backend is loaded
// lazily on first use and dropped again when the config changes.
type Embeddings struct {
	mu        sync.RWMutex
	config    model.EmbeddingConfig
	factory   BackendFactory
	backend   EmbeddingBackend
	dimension int
	logger    *slog.Logger
}

// NewEmbeddings creates an unloaded provider for cfg.
func NewEmbeddings(cfg model.EmbeddingConfig, factory BackendFactory, logger *slog.Logger) (*Embeddings, error) {
	if factory == nil {
		return nil, helper.NewError("embeddings", fmt.Errorf("backend factory is nil"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, helper.NewError("embeddings", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Embeddings{
		config:  cfg,
		factory: factory,
		logger:  logger,
	}, nil
}

// Embed returns one vector per text and the name of the model that made them.
func (e *Embeddings) Embed(ctx context.Context, texts []string) ([][]float32, string, error) {
	if len(texts) == 0 {
		return [][]float32{}, e.Model(), nil
	}

	// Reconfigure may unload the backend between loading and the read lock.
	for {
		e.mu.RLock()
		if e.backend != nil {
			break
		}
		e.mu.RUnlock()
		if err := e.ensureLoaded(ctx); err != nil {
			return nil, "", err
		}
	}
	defer e.mu.RUnlock()

	vectors, err := e.backend.Embed(ctx, texts)
	if err != nil {
		return nil, "", helper.NewError("embed", err)
	}
	if len(vectors) != len(texts) {
		return nil, "", helper.NewError("embed", fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(vectors), len(texts)))
	}
	for i, vector := range vectors {
		if len(vector) == 0 {
			return nil, "", helper.NewError("embed", fmt.Errorf("empty embedding for text %d", i))
		}
	}

	if e.config.NormalizeEmbeddings {
		for _, vector := range vectors {
			normalize(vector)
		}
	}

	return vectors, e.config.ModelName, nil
}

// EmbedQuery embeds a single text.
func (e *Embeddings) EmbedQuery(ctx context.Context, text string) ([]float32, string, error) {
	vectors, modelName, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, "", err
	}
	return vectors[0], modelName, nil
}

// Dimension loads the model if needed and returns its vector length.
func (e *Embeddings) Dimension(ctx context.Context) (int, error) {
	if err := e.ensureLoaded(ctx); err != nil {
		return 0, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension, nil
}

// Model returns the configured model name.
func (e *Embeddings) Model() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config.ModelName
}

// Config returns the active embedding config.
func (e *Embeddings) Config() model.EmbeddingConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

// Loaded reports whether a backend is currently loaded.
func (e *Embeddings) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.backend != nil
}

// Preload loads the backend eagerly.
func (e *Embeddings) Preload(ctx context.Context) error {
	return e.ensureLoaded(ctx)
}

// Reconfigure switches to cfg. A loaded backend of another config is closed,
// the next call loads the new one.
func (e *Embeddings) Reconfigure(cfg model.EmbeddingConfig) error {
	if err := cfg.Validate(); err != nil {
		return helper.NewError("reconfigure embeddings", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if cfg == e.config {
		return nil
	}

	e.logger.Info("Embedding model changed", slog.String("from", e.config.ModelName), slog.String("to", cfg.ModelName))
	e.config = cfg
	return e.unload()
}

// Close releases the loaded backend.
func (e *Embeddings) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unload()
}

func (e *Embeddings) unload() error {
	if e.backend == nil {
		return nil
	}
	err := e.backend.Close()
	e.backend = nil
	e.dimension = 0
	if err != nil {
		return helper.NewError("close embedding backend", err)
	}
	return nil
}

func (e *Embeddings) ensureLoaded(ctx context.Context) error {
	e.mu.RLock()
	loaded := e.backend != nil
	e.mu.RUnlock()
	if loaded {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backend != nil {
		return nil
	}

	e.logger.Info("Loading embedding model", slog.String("provider", e.config.Provider), slog.String("model", e.config.ModelName))

	backend, err := e.factory(ctx, e.config)
	if err != nil {
		return helper.NewError("load embedding model", err)
	}

	sample, err := backend.Embed(ctx, []string{"dimension sample"})
	if err != nil || len(sample) != 1 || len(sample[0]) == 0 {
		_ = backend.Close()
		if err == nil {
			err = fmt.Errorf("model %s returned no embedding", e.config.ModelName)
		}
		return helper.NewError("load embedding model", err)
	}

	e.backend = backend
	e.dimension = len(sample[0])
	e.logger.Info("Embedding model loaded", slog.String("model", e.config.ModelName), slog.Int("dimension", e.dimension))

	return nil
}

func normalize(vector []float32) {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vector {
		vector[i] /= norm
	}
}

// NewBackendFactory returns the factory used in production. Hugot models are
// stored below modelDir; the openai provider talks to baseURL when set.
func NewBackendFactory(modelDir string, openAIKey string, openAIBaseURL string) BackendFactory {
	return func(ctx context.Context, cfg model.EmbeddingConfig) (EmbeddingBackend, error) {
		switch cfg.Provider {
		case model.ProviderHugot:
			return NewHugotBackend(modelDir, cfg.ModelName)
		case model.ProviderOpenAI:
			return NewOpenAIBackend(openAIKey, openAIBaseURL, cfg.ModelName)
		default:
			return nil, fmt.Errorf("%w: unknown embedding provider %q", model.ErrInvalidSettings, cfg.Provider)
		}
	}
}

type hugotBackend struct {
	session *hugot.Session
	run     func(texts []string) ([][]float32, error)
}

// NewHugotBackend loads a sentence transformer with the pure Go hugot session.
func NewHugotBackend(modelDir string, modelName string) (EmbeddingBackend, error) {
	modelPath, err := helper.PrepareModel(modelDir, modelName, "")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "legalrag-embeddings",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return &hugotBackend{
		session: session,
		run: func(texts []string) ([][]float32, error) {
			result, err := sentencePipeline.RunPipeline(texts)
			if err != nil {
				return nil, fmt.Errorf("failed to generate embeddings: %w", err)
			}
			return result.Embeddings, nil
		},
	}, nil
}

func (b *hugotBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.run(texts)
}

func (b *hugotBackend) Close() error {
	return b.session.Destroy()
}

type openAIBackend struct {
	client    *openai.Client
	modelName string
}

// NewOpenAIBackend embeds through an OpenAI compatible embeddings endpoint.
func NewOpenAIBackend(apiKey string, baseURL string, modelName string) (EmbeddingBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is required for provider %s", model.ErrInvalidSettings, model.ProviderOpenAI)
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &openAIBackend{
		client:    openai.NewClientWithConfig(config),
		modelName: modelName,
	}, nil
}

func (b *openAIBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(b.modelName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	for i, vector := range vectors {
		if len(vector) == 0 {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}
	return vectors, nil
}

func (b *openAIBackend) Close() error {
	return nil
}
