package main

import (
	"fmt"

	"github.com/siherrmann/legalrag/database"
	"github.com/spf13/cobra"
)

var (
	flagIndexType     string
	flagIndexM        int
	flagIndexEfConstr int
	flagIndexIVFLists int
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Recreate the pgvector index of the chunks table",
	Args:  cobra.NoArgs,
	RunE:  runReindex,
}

func init() {
	reindexCmd.Flags().StringVar(&flagIndexType, "type", database.IndexTypeHNSW, "Index type (hnsw or ivfflat)")
	reindexCmd.Flags().IntVar(&flagIndexM, "m", 16, "HNSW connections per layer")
	reindexCmd.Flags().IntVar(&flagIndexEfConstr, "ef-construction", 64, "HNSW candidate list size while building")
	reindexCmd.Flags().IntVar(&flagIndexIVFLists, "lists", 100, "IVFFlat list count")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	if flagMemory {
		return fmt.Errorf("reindex needs the PostgreSQL store")
	}

	ctx := cmd.Context()
	assistant, err := openAssistant(ctx)
	if err != nil {
		return err
	}
	defer assistant.Close()

	chunks, ok := assistant.Store.(*database.ChunksDBHandler)
	if !ok {
		return fmt.Errorf("reindex needs the PostgreSQL store")
	}

	params := indexParams(flagIndexType)
	if err := chunks.ChangeIndexType(ctx, flagIndexType, params); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s index with %v\n", flagIndexType, params)
	return nil
}

func indexParams(indexType string) map[string]interface{} {
	if indexType == database.IndexTypeIVFFlat {
		return map[string]interface{}{"lists": flagIndexIVFLists}
	}
	return map[string]interface{}{"m": flagIndexM, "ef_construction": flagIndexEfConstr}
}
