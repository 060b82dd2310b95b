package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/citations"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/pubmedxml"
)

var (
	ingestXMLPath       string
	ingestCitationsPath string
	ingestOrigin        string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load PubMed XML and/or citation-count NDJSON into the document store",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestXMLPath, "xml", "", "gzip-compressed PubMed MEDLINE XML file")
	ingestCmd.Flags().StringVar(&ingestCitationsPath, "citations", "", "citation-count NDJSON file")
	ingestCmd.Flags().StringVar(&ingestOrigin, "origin", "", "origin tag recorded against every ingested PMID (defaults to the input filename)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if ingestXMLPath == "" && ingestCitationsPath == "" {
		return fmt.Errorf("at least one of --xml or --citations is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if ingestXMLPath != "" {
		origin := ingestOrigin
		if origin == "" {
			origin = ingestXMLPath
		}
		f, err := os.Open(ingestXMLPath)
		if err != nil {
			return fmt.Errorf("open %s: %w", ingestXMLPath, err)
		}
		updates, err := pubmedxml.Parse(f, origin)
		f.Close()
		if err != nil {
			return fmt.Errorf("parse %s: %w", ingestXMLPath, err)
		}
		if err := store.UpsertMany(ctx, updates); err != nil {
			return fmt.Errorf("upsert xml documents: %w", err)
		}
		printOK("ingested %d documents from %s", len(updates), ingestXMLPath)
	}

	if ingestCitationsPath != "" {
		origin := ingestOrigin
		if origin == "" {
			origin = ingestCitationsPath
		}
		f, err := os.Open(ingestCitationsPath)
		if err != nil {
			return fmt.Errorf("open %s: %w", ingestCitationsPath, err)
		}
		updates, err := citations.LoadFromNDJSON(f, origin)
		f.Close()
		if err != nil {
			return fmt.Errorf("parse %s: %w", ingestCitationsPath, err)
		}
		if err := store.UpsertMany(ctx, updates); err != nil {
			return fmt.Errorf("upsert citation counts: %w", err)
		}
		printOK("applied %d citation-count updates from %s", len(updates), ingestCitationsPath)
	}

	return nil
}
