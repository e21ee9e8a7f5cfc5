package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/siherrmann/legalrag"
	"github.com/siherrmann/legalrag/core/pipeline"
	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
)

// Indexes one PDF into a throwaway pgvector container, runs a search and,
// with OPENAI_API_KEY set, asks a question about it.
//
//	go run ./example/basic path/to/bns.pdf
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <file.pdf>", os.Args[0])
	}
	path := os.Args[1]
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	dataDir, err := os.MkdirTemp("", "legalrag-example")
	if err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	defer os.RemoveAll(dataDir)

	assistant, err := legalrag.NewAssistant(ctx, legalrag.Options{
		Config: &helper.ServerConfiguration{
			Port:          "8000",
			DataDir:       dataDir,
			ModelDir:      helper.DefaultModelDir,
			OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
			ChatModel:     "gpt-4o-mini",
			ChatRPS:       2,
		},
		Database: dbConfig,
	})
	if err != nil {
		log.Fatalf("Failed to create assistant: %v", err)
	}
	defer assistant.Close()

	f, err := os.Open(path) // #nosec G304 -- example input
	if err != nil {
		log.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	fmt.Println("Ingesting document...")
	report, err := assistant.Indexer.Ingest(ctx, pipeline.UploadRequest{
		Filename:     filepath.Base(path),
		DocumentType: "bns",
		Content:      f,
	})
	if err != nil {
		log.Fatalf("Failed to ingest document: %v", err)
	}
	fmt.Printf("Extracted %d pages, indexed %d chunks in %.2fs\n",
		report.Stats.PagesExtracted, report.Stats.ChunksIndexed, report.ProcessingSeconds)

	query := "What is the punishment for murder?"
	fmt.Printf("\nSearching: %s\n", query)
	results, err := assistant.Engine.Search(ctx, query, 3, nil)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}
	for _, result := range results {
		fmt.Printf("  %d. [%.2f] %.100s\n", result.Rank, result.SimilarityScore, result.Content)
	}

	if os.Getenv("OPENAI_API_KEY") == "" {
		fmt.Println("\nSet OPENAI_API_KEY to generate an answer.")
		return
	}

	response, err := assistant.Answerer.Answer(ctx, model.ChatRequest{Message: query})
	if err != nil {
		log.Fatalf("Failed to answer: %v", err)
	}
	fmt.Printf("\nAnswer:\n%s\n\nReferences:\n", response.Answer)
	for _, ref := range response.References {
		fmt.Printf("  - %s\n", ref.Document)
	}
}
