package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/siherrmann/legalrag/model"
	"github.com/spf13/cobra"
)

var (
	flagSearchK        int
	flagSearchMinScore float64
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the chunks most similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&flagSearchK, "k", model.DefaultRetrievalK, "Number of results to show")
	searchCmd.Flags().Float64Var(&flagSearchMinScore, "min-score", 0, "Minimum cosine similarity score to include")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	assistant, err := openAssistant(ctx)
	if err != nil {
		return err
	}
	defer assistant.Close()

	var threshold *float64
	if cmd.Flags().Changed("min-score") {
		threshold = &flagSearchMinScore
	}

	results, err := assistant.Engine.Search(ctx, strings.Join(args, " "), flagSearchK, threshold)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSCORE\tDOCUMENT\tCONTENT")
	for _, result := range results {
		fmt.Fprintf(w, "%d\t%.2f\t%s\t%s\n", result.Rank, result.SimilarityScore, filepath.Base(result.Metadata.Source()), preview(result.Content, 80))
	}
	return w.Flush()
}

// preview returns the first n runes of s on a single line.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
