package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/civicpulse/civicsearch/pkg/config"
	"github.com/civicpulse/civicsearch/pkg/logger"
)

var (
	configPath  string
	artifactDir string
	verbose     bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "civicctl",
	Short: "Build and query the local civic record index",
	Long: `civicctl builds the keyword index over the civic record collections
and answers queries against it without running the search service.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if artifactDir != "" {
			loaded.Indexer.ArtifactDir = artifactDir
		}
		level := loaded.Logging.Level
		if verbose {
			level = "debug"
		}
		logger.SetupWriter(os.Stderr, level, "text")
		cfg = loaded
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&artifactDir, "artifacts", "", "artifact directory, overriding the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
