package database

import (
	"context"
	"fmt"
	"log"
	"testing"

	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

const testDimension = 3

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

func initDB(t *testing.T) *helper.Database {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	return helper.NewTestDatabase(dbConfig)
}

func initHandler(t *testing.T, collection string) *ChunksDBHandler {
	database := initDB(t)
	t.Cleanup(func() { database.Close() })

	handler, err := NewChunksDBHandler(database, collection, testDimension, false)
	require.NoError(t, err, "Expected NewChunksDBHandler to not return an error")
	return handler
}

func testChunk(source string, position int, embedding []float32, embeddingModel string) *model.Chunk {
	chunk := model.NewChunk(source, position, fmt.Sprintf("%s chunk %d", source, position))
	chunk.Embedding = embedding
	chunk.EmbeddingModel = embeddingModel
	return chunk
}
