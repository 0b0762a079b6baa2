package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/civicpulse/civicsearch/internal/indexer"
	"github.com/civicpulse/civicsearch/internal/ingestion"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Load every collection and rewrite the index artifacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		loader, closeSource, err := ingestion.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSource()

		builder := indexer.NewBuilder(loader, cfg.Indexer.CollectionNames(), cfg.Indexer.ArtifactDir,
			indexer.WithWorkers(cfg.Indexer.Workers))
		status, err := builder.Build(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "generation %d written to %s in %s\n", status.Generation, status.Dir, status.Duration.Round(time.Millisecond))
		for _, c := range status.Collections {
			marker := ""
			if status.Failed(c.Name) {
				marker = " (load failed, indexed empty)"
			}
			fmt.Fprintf(out, "  %-16s %6d records%s\n", c.Name, c.Records, marker)
		}
		fmt.Fprintf(out, "%d documents, %d terms\n", status.Documents, status.Terms)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
