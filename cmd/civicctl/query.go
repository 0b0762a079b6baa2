package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/civicpulse/civicsearch/internal/searcher/retriever"
)

var (
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text...]",
	Short: "Answer a query from the artifacts on disk",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := retriever.New(cfg.Indexer.ArtifactDir, cfg.Search)
		if _, err := r.Reload(); err != nil {
			return err
		}
		topK := queryTopK
		if !cmd.Flags().Changed("top-k") {
			topK = cfg.Search.DefaultTopK
		}
		result, err := r.Answer(cmd.Context(), strings.Join(args, " "), topK)
		if err != nil {
			return err
		}

		if queryJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), retriever.Format(result))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (config default when unset)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the full result as JSON")
}
