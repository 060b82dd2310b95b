package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kmctl",
	Short: "kmctl operates a KinderMiner/SKiM literature-mining corpus",
	Long: `kmctl manages a document corpus, its on-disk search index, and the
relationship store behind it, and runs KinderMiner (KM) and
Serial-KinderMiner (SKiM) co-occurrence searches against them.

Get started:
  kmctl ingest   Load PubMed XML and citation overlays into the corpus
  kmctl reindex  Rebuild the on-disk index from every document in the corpus
  kmctl km       Run a KM search from a JSON params file
  kmctl skim     Run a SKiM search from a JSON params file
  kmctl kg       Load or query curated relationship triples`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config YAML (defaults built in if omitted)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
