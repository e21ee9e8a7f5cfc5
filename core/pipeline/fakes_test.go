package pipeline

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/siherrmann/legalrag/core/jobs"
	"github.com/siherrmann/legalrag/core/library"
	"github.com/siherrmann/legalrag/core/settings"
	"github.com/siherrmann/legalrag/database/memory"
	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

// fakeEmbedder hashes texts into deterministic vectors.
type fakeEmbedder struct {
	mu        sync.Mutex
	model     string
	calls     int
	failAfter int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{model: "fake-model"}
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failAfter > 0 && f.calls > f.failAfter {
		return nil, "", errors.New("embedding service unavailable")
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = fakeVector(text)
	}
	return vectors, f.model, nil
}

func (f *fakeEmbedder) Dimension(ctx context.Context) (int, error) {
	return testDimension, nil
}

func (f *fakeEmbedder) Model() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

func (f *fakeEmbedder) Loaded() bool {
	return true
}

func (f *fakeEmbedder) setModel(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = name
}

func fakeVector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum64()

	vector := make([]float32, testDimension)
	for i := range vector {
		vector[i] = float32((sum>>(8*i))&0xff) + 1
	}
	return vector
}

// fakeExtract treats the file content as its text. Files starting with
// BROKEN fail extraction.
func fakeExtract(path string) (*ExtractedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ExtractionError{Path: path, Reason: "unreadable pdf", Err: err}
	}
	text := string(data)
	if strings.HasPrefix(text, "BROKEN") {
		return nil, &model.ExtractionError{Path: path, Reason: "no extractable text"}
	}
	return &ExtractedDocument{Text: text, Pages: 3}, nil
}

type testEnv struct {
	indexer  *Indexer
	store    *memory.Store
	embedder *fakeEmbedder
	settings *settings.Store
	library  *library.Library
	root     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := helper.NewLogger(io.Discard, 0)
	root := t.TempDir()
	lib, err := library.New(root)
	require.NoError(t, err)
	settingsStore, err := settings.NewStore(model.DefaultSettings(), logger)
	require.NoError(t, err)

	store := memory.NewStore("default", testDimension)
	embedder := newFakeEmbedder()
	indexer, err := NewIndexer(store, embedder, lib, settingsStore, jobs.NewTracker(0, 0), logger)
	require.NoError(t, err, "Expected NewIndexer to not return an error")
	indexer.SetExtractor(fakeExtract)
	t.Cleanup(indexer.Wait)

	return &testEnv{
		indexer:  indexer,
		store:    store,
		embedder: embedder,
		settings: settingsStore,
		library:  lib,
		root:     root,
	}
}

func (e *testEnv) upload(t *testing.T, documentType string, filename string, text string, cfg *model.ChunkingConfig) *model.IngestionReport {
	t.Helper()
	report, err := e.indexer.Ingest(context.Background(), UploadRequest{
		Filename:     filename,
		DocumentType: documentType,
		Content:      strings.NewReader(text),
		ChunkConfig:  cfg,
	})
	require.NoError(t, err, "Expected Ingest to not return an error")
	return report
}

func (e *testEnv) count(t *testing.T) int {
	t.Helper()
	count, err := e.store.Count(context.Background())
	require.NoError(t, err)
	return count
}

func (e *testEnv) countSource(t *testing.T, source string) int {
	t.Helper()
	count, err := e.store.CountBySource(context.Background(), source)
	require.NoError(t, err)
	return count
}
