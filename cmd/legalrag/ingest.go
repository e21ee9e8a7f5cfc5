package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/siherrmann/legalrag/core/pipeline"
	"github.com/spf13/cobra"
)

var flagIngestType string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>...",
	Short: "Copy PDFs into the data directory and index them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&flagIngestType, "type", "other", "Document type (bns, bnss, bsa, constitution, ipc, crpc, supreme_court, high_court, other)")
	addChunkFlags(ingestCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	assistant, err := openAssistant(ctx)
	if err != nil {
		return err
	}
	defer assistant.Close()

	override := chunkFlags(cmd, assistant.Settings.Chunking())

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tPAGES\tCHUNKS\tSECONDS\tSTATUS")
	failed := 0
	for _, path := range args {
		status, pages, chunks, seconds := "ok", 0, 0, 0.0

		f, err := os.Open(path) // #nosec G304 -- operator supplied document
		if err == nil {
			report, ingestErr := assistant.Indexer.Ingest(ctx, pipeline.UploadRequest{
				Filename:     filepath.Base(path),
				DocumentType: flagIngestType,
				Content:      f,
				ChunkConfig:  override,
			})
			f.Close()
			err = ingestErr
			if report != nil {
				pages, chunks, seconds = report.Stats.PagesExtracted, report.Stats.ChunksIndexed, report.ProcessingSeconds
				if report.Stats.Partial {
					status = "partial: " + report.Error
				}
			}
		}
		if err != nil {
			status = "error: " + err.Error()
			failed++
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%s\n", filepath.Base(path), pages, chunks, seconds, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}
