package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civicpulse/civicsearch/internal/indexer/artifact"
)

var inspectTerms []string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the manifest and term postings of the current artifacts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := artifact.Load(cfg.Indexer.ArtifactDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if b.Manifest == nil {
			fmt.Fprintln(out, "no manifest (legacy artifacts)")
		} else {
			m := b.Manifest
			fmt.Fprintf(out, "generation %d built %s (build %s)\n", m.Generation, m.BuiltAt.Format("2006-01-02 15:04:05 MST"), b.Identity())
			for _, f := range m.Failures {
				fmt.Fprintf(out, "  failed: %s: %s\n", f.Collection, f.Error)
			}
		}
		for _, name := range b.Corpus.Names() {
			fmt.Fprintf(out, "  %-16s %6d records\n", name, b.Corpus.Count(name))
		}
		fmt.Fprintf(out, "%d documents, %d terms, %d postings\n", b.Corpus.Documents(), b.Index.Len(), b.Index.PostingCount())

		for _, term := range inspectTerms {
			postings := b.Index.Lookup(term)
			fmt.Fprintf(out, "%s: %d postings\n", term, len(postings))
			for _, ref := range postings {
				fmt.Fprintf(out, "  %s\n", ref)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringSliceVarP(&inspectTerms, "term", "t", nil, "terms whose postings to list")
}
