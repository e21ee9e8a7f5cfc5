package main

import (
	"fmt"

	"github.com/siherrmann/legalrag/core/pipeline"
	"github.com/siherrmann/legalrag/model"
	"github.com/spf13/cobra"
)

var flagRebuildYes bool

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Clear the vector store and index every PDF of the data directory again",
	Args:  cobra.NoArgs,
	RunE:  runRebuild,
}

func init() {
	rebuildCmd.Flags().BoolVar(&flagRebuildYes, "yes", false, "Confirm that all embeddings are deleted first")
	addChunkFlags(rebuildCmd)
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	if !flagRebuildYes {
		return fmt.Errorf("rebuild deletes all embeddings, confirm with --yes")
	}

	ctx := cmd.Context()
	assistant, err := openAssistant(ctx)
	if err != nil {
		return err
	}
	defer assistant.Close()

	job, err := assistant.Indexer.Rebuild(ctx, pipeline.RebuildRequest{
		Confirm:     true,
		ChunkConfig: chunkFlags(cmd, assistant.Settings.Chunking()),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:          %s\n", job.ID)
	fmt.Fprintf(out, "Status:       %s\n", job.Status)
	fmt.Fprintf(out, "Files:        %d (%d failed)\n", job.TotalFiles, job.FailedFiles)
	fmt.Fprintf(out, "Chunks:       %d\n", job.TotalChunks)
	fmt.Fprintf(out, "Duration:     %.2f min\n", job.Elapsed().Minutes())
	if job.Status == model.JobStatusFailed {
		return fmt.Errorf("rebuild failed: %s", job.Error)
	}
	return nil
}
