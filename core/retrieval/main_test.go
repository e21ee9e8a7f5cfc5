package retrieval

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/siherrmann/legalrag/core/pipeline"
	"github.com/siherrmann/legalrag/core/settings"
	"github.com/siherrmann/legalrag/database"
	"github.com/siherrmann/legalrag/database/memory"
	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

const testDimension = 4

var dbPort string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	m.Run()

	if teardown != nil && teardown(context.Background()) != nil {
		log.Fatalf("error tearing down postgres container: %v", err)
	}
}

// storeFactories returns a memory and a postgres store per test.
func storeFactories() map[string]func(t *testing.T) pipeline.VectorStore {
	return map[string]func(t *testing.T) pipeline.VectorStore{
		"memory": func(t *testing.T) pipeline.VectorStore {
			return memory.NewStore("default", testDimension)
		},
		"postgres": func(t *testing.T) pipeline.VectorStore {
			helper.SetTestDatabaseConfigEnvs(t, dbPort)
			dbConfig, err := helper.NewDatabaseConfiguration()
			require.NoError(t, err, "failed to create database configuration")
			db := helper.NewTestDatabase(dbConfig)
			t.Cleanup(func() { db.Close() })

			collection := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
			store, err := database.NewChunksDBHandler(db, collection, testDimension, false)
			require.NoError(t, err, "Expected NewChunksDBHandler to not return an error")
			return store
		},
	}
}

// vectorEmbedder returns fixed vectors for known texts.
type vectorEmbedder struct {
	mu      sync.Mutex
	model   string
	vectors map[string][]float32
}

func (e *vectorEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vector, ok := e.vectors[text]
		if !ok {
			vector = []float32{0, 0, 0, 1}
		}
		out[i] = vector
	}
	return out, e.model, nil
}

func (e *vectorEmbedder) Dimension(ctx context.Context) (int, error) { return testDimension, nil }
func (e *vectorEmbedder) Model() string                              { return e.model }
func (e *vectorEmbedder) Loaded() bool                               { return true }

var corpus = map[string][]float32{
	"Section 101. Murder.":                  {1, 0.25, 0, 0},
	"Section 103. Punishment for murder.":   {1, 0.2, 0, 0},
	"Section 105. Culpable homicide.":       {1, 0.6, 0.5, 0},
	"Section 303. Theft.":                   {0, 1, 0, 0},
	"Article 21. Protection of life.":       {0, 0, 1, 0},
	"What is the punishment for murder?":    {1, 0.3, 0, 0},
	"Which article protects personal life?": {0, 0.1, 1, 0},
}

type testEnv struct {
	store    pipeline.VectorStore
	embedder *vectorEmbedder
	settings *settings.Store
	engine   *Engine
}

func newTestEnv(t *testing.T, store pipeline.VectorStore) *testEnv {
	t.Helper()
	logger := helper.NewLogger(io.Discard, 0)

	embedder := &vectorEmbedder{model: "test-model", vectors: corpus}
	settingsStore, err := settings.NewStore(model.DefaultSettings(), logger)
	require.NoError(t, err)
	engine, err := NewEngine(store, embedder, settingsStore, logger)
	require.NoError(t, err, "Expected NewEngine to not return an error")

	return &testEnv{
		store:    store,
		embedder: embedder,
		settings: settingsStore,
		engine:   engine,
	}
}

func (e *testEnv) index(t *testing.T, source string, embeddingModel string, contents ...string) {
	t.Helper()
	chunks := make([]*model.Chunk, len(contents))
	for i, content := range contents {
		chunks[i] = model.NewChunk(source, i, content)
		chunks[i].Embedding = corpus[content]
		chunks[i].EmbeddingModel = embeddingModel
	}
	n, err := e.store.Add(context.Background(), chunks)
	require.NoError(t, err)
	require.Equal(t, len(contents), n)
}

func (e *testEnv) indexCorpus(t *testing.T) {
	t.Helper()
	e.index(t, "data/bns_data/bns.pdf", "test-model",
		"Section 101. Murder.",
		"Section 103. Punishment for murder.",
		"Section 105. Culpable homicide.",
		"Section 303. Theft.",
	)
	e.index(t, "data/constitution.pdf", "test-model", "Article 21. Protection of life.")
}
