package main

import (
	"context"
	"fmt"
	"os"

	"github.com/siherrmann/legalrag"
	"github.com/siherrmann/legalrag/helper"
	"github.com/siherrmann/legalrag/model"
	"github.com/spf13/cobra"
)

var (
	flagMemory       bool
	flagCollection   string
	flagChunkSize    int
	flagChunkOverlap int
)

var rootCmd = &cobra.Command{
	Use:          "legalrag",
	Short:        "Question answering over Indian legal documents",
	SilenceUsage: true,
	Long: `legalrag indexes PDFs of Indian statutes and judgments into a vector
store and answers questions about them. Configuration is read from the
environment and an optional .env file.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagMemory, "memory", false, "Keep the vector store in memory instead of PostgreSQL")
	rootCmd.PersistentFlags().StringVar(&flagCollection, "collection", "", "Chunk collection name")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openAssistant builds the assistant from the environment.
func openAssistant(ctx context.Context) (*legalrag.Assistant, error) {
	config, err := helper.NewServerConfiguration()
	if err != nil {
		return nil, err
	}

	opts := legalrag.Options{
		Config:     config,
		Collection: flagCollection,
		AccessLog:  os.Stdout,
	}
	if !flagMemory {
		opts.Database, err = helper.NewDatabaseConfiguration()
		if err != nil {
			return nil, fmt.Errorf("%w\nUse --memory to run without PostgreSQL.", err)
		}
	}

	return legalrag.NewAssistant(ctx, opts)
}

// chunkFlags returns base with the chunk flags applied, or nil when none was set.
func chunkFlags(cmd *cobra.Command, base model.ChunkingConfig) *model.ChunkingConfig {
	sizeSet := cmd.Flags().Changed("chunk-size")
	overlapSet := cmd.Flags().Changed("chunk-overlap")
	if !sizeSet && !overlapSet {
		return nil
	}
	if sizeSet {
		base.ChunkSize = flagChunkSize
	}
	if overlapSet {
		base.ChunkOverlap = flagChunkOverlap
	}
	return &base
}

func addChunkFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&flagChunkSize, "chunk-size", model.DefaultChunkSize, "Maximum characters per chunk")
	cmd.Flags().IntVar(&flagChunkOverlap, "chunk-overlap", model.DefaultChunkOverlap, "Characters shared by adjacent chunks")
}
