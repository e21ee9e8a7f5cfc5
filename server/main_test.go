package server

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/siherrmann/legalrag/core/jobs"
	"github.com/siherrmann/legalrag/core/library"
	"github.com/siherrmann/legalrag/core/pipeline"
	"github.com/siherrmann/legalrag/core/retrieval"
	"github.com/siherrmann/legalrag/core/settings"
	"github.com/siherrmann/legalrag/database/memory"
	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
	"github.com/stretchr/testify/require"
)

const testDimension = 8

// hashEmbedder maps every text to a fixed vector derived from its hash.
type hashEmbedder struct {
	mu    sync.RWMutex
	model string
}

func (e *hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, string, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(text))
		sum := h.Sum64()
		vector := make([]float32, testDimension)
		for j := range vector {
			vector[j] = float32((sum>>(8*j))&0xff) + 1
		}
		vectors[i] = vector
	}
	return vectors, e.Model(), nil
}

func (e *hashEmbedder) Dimension(ctx context.Context) (int, error) { return testDimension, nil }
func (e *hashEmbedder) Loaded() bool                               { return true }

func (e *hashEmbedder) Model() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

func (e *hashEmbedder) setModel(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.model = name
}

// textExtract reads the uploaded bytes as the document text.
func textExtract(path string) (*pipeline.ExtractedDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(content, []byte("BROKEN")) {
		return nil, &model.ExtractionError{Path: path, Reason: "no extractable text"}
	}
	return &pipeline.ExtractedDocument{Text: string(content), Pages: 1}, nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, req retrieval.GenerationRequest) (string, error) {
	return "Answer in " + req.Language + " from " + strings.Repeat("*", len(req.Context)), nil
}

type testEnv struct {
	server   *Server
	app      *fiber.App
	store    *memory.Store
	embedder *hashEmbedder
	indexer  *pipeline.Indexer
	settings *settings.Store
}

func openConfig() *helper.ServerConfiguration {
	return &helper.ServerConfiguration{Port: "0", ChatRPS: 1}
}

func authConfig() *helper.ServerConfiguration {
	return &helper.ServerConfiguration{
		Port:          "0",
		AdminUsername: "admin",
		AdminPassword: "s3cret",
		JWTSecret:     "test-signing-key",
		ChatRPS:       1,
	}
}

func newTestEnv(t *testing.T, config *helper.ServerConfiguration) *testEnv {
	t.Helper()
	logger := helper.NewLogger(io.Discard, 0)

	lib, err := library.New(t.TempDir())
	require.NoError(t, err)
	settingsStore, err := settings.NewStore(model.DefaultSettings(), logger)
	require.NoError(t, err)
	store := memory.NewStore("default", testDimension)
	embedder := &hashEmbedder{model: model.DefaultEmbeddingModel}
	settingsStore.OnEmbeddingChange(func(cfg model.EmbeddingConfig) error {
		embedder.setModel(cfg.ModelName)
		return nil
	})

	indexer, err := pipeline.NewIndexer(store, embedder, lib, settingsStore, jobs.NewTracker(0, 0), logger)
	require.NoError(t, err)
	indexer.SetExtractor(textExtract)
	t.Cleanup(indexer.Wait)

	engine, err := retrieval.NewEngine(store, embedder, settingsStore, logger)
	require.NoError(t, err)

	server, err := NewServer(config, Services{
		Indexer:  indexer,
		Engine:   engine,
		Answerer: retrieval.NewAnswerer(engine, echoGenerator{}, logger),
		Settings: settingsStore,
		Embedder: embedder,
	}, io.Discard, logger)
	require.NoError(t, err, "Expected NewServer to not return an error")

	return &testEnv{
		server:   server,
		app:      server.App(),
		store:    store,
		embedder: embedder,
		indexer:  indexer,
		settings: settingsStore,
	}
}

// do sends a JSON request and decodes the JSON response.
func (e *testEnv) do(t *testing.T, method string, path string, body interface{}, token string) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	return e.send(t, req)
}

// upload posts a multipart upload of content as filename.
func (e *testEnv) upload(t *testing.T, filename string, content string, fields map[string]string, token string) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err, "Expected the request to be served")
	defer resp.Body.Close()

	body := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), "Expected a JSON body, got %s", raw)
	}
	return resp.StatusCode, body
}

func (e *testEnv) count(t *testing.T) int {
	t.Helper()
	n, err := e.store.Count(context.Background())
	require.NoError(t, err)
	return n
}

// statute is a document long enough for several default sized chunks.
func statute(sections int) string {
	var b strings.Builder
	for i := 1; i <= sections; i++ {
		b.WriteString("Section ")
		b.WriteString(strings.Repeat("I", i%7+1))
		b.WriteString(". Whoever commits the offence described here shall be punished with imprisonment of either description for a term which may extend to seven years, and shall also be liable to fine.\n\n")
	}
	return b.String()
}
