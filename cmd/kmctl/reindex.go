package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/corpus"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/diskindex"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/posting"
)

var reindexFlushEvery int

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the on-disk positional index from the document store",
	RunE:  runReindex,
}

func init() {
	reindexCmd.Flags().IntVar(&reindexFlushEvery, "flush-every", 250000, "distinct tokens held in memory before the builder spills to a cold file")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
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

	tmpDir := filepath.Join(cfg.DataDir, cfg.Index.Dir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return fmt.Errorf("create index temp dir: %w", err)
	}

	builder := posting.NewBuilder(tmpDir, reindexFlushEvery)
	builder.SetUnigramPositions(cfg.Index.UnigramPosition)

	var count int
	err = store.All(ctx, func(d corpus.Document) error {
		count++
		return builder.AddDocument(d.PMID, d.PubYear, d.Title, d.Abstract)
	})
	if err != nil {
		return fmt.Errorf("scan documents: %w", err)
	}
	printInfo("indexed %d documents, consolidating...", count)

	data, err := builder.Finish(progressLine("consolidate"))
	if err != nil {
		return fmt.Errorf("consolidate index: %w", err)
	}

	path := indexPath(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := diskindex.Write(path, data); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	dirty, err := store.DirtyPMIDs(ctx, 0)
	if err != nil {
		return fmt.Errorf("list dirty pmids: %w", err)
	}
	if err := store.ClearDirty(ctx, dirty); err != nil {
		return fmt.Errorf("clear dirty pmids: %w", err)
	}

	idx, err := diskindex.Open(path)
	if err != nil {
		return fmt.Errorf("reopen written index: %w", err)
	}
	defer idx.Close()
	printOK("wrote index to %s (%d terms, generation %s)", path, idx.VocabSize(), idx.GenerationID())
	return nil
}
