package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/diskindex"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/kgstore"
)

var (
	kgLoadPath       string
	kgLookupA        string
	kgLookupB        string
	kgCensorLower    int
	kgCensorUpper    int
)

var kgCmd = &cobra.Command{
	Use:   "kg",
	Short: "Load curated relationship triples or look up the relation(s) between two terms",
	RunE:  runKG,
}

func init() {
	kgCmd.Flags().StringVar(&kgLoadPath, "load", "", "JSON file containing a []kgstore.Relationship array to load")
	kgCmd.Flags().StringVar(&kgLookupA, "a", "", "first term of a lookup")
	kgCmd.Flags().StringVar(&kgLookupB, "b", "", "second term of a lookup")
	kgCmd.Flags().IntVar(&kgCensorLower, "censor-year-lower", 0, "drop evidence PMIDs published before this year")
	kgCmd.Flags().IntVar(&kgCensorUpper, "censor-year-upper", 0, "drop evidence PMIDs published after this year")
	rootCmd.AddCommand(kgCmd)
}

func runKG(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	kgPath := cfg.DataDir + "/kg.db"
	store, err := kgstore.Open(ctx, kgPath)
	if err != nil {
		return fmt.Errorf("open relationship store: %w", err)
	}
	defer store.Close()

	if kgLoadPath != "" {
		raw, err := os.ReadFile(kgLoadPath)
		if err != nil {
			return fmt.Errorf("read %s: %w", kgLoadPath, err)
		}
		var rels []kgstore.Relationship
		if err := json.Unmarshal(raw, &rels); err != nil {
			return fmt.Errorf("parse %s: %w", kgLoadPath, err)
		}
		if err := store.AddRelationships(ctx, rels); err != nil {
			return fmt.Errorf("load relationships: %w", err)
		}
		printOK("loaded %d relationships from %s", len(rels), kgLoadPath)
	}

	if kgLookupA != "" && kgLookupB != "" {
		var lookup kgstore.YearLookup
		if kgCensorLower != 0 || kgCensorUpper != 0 {
			idx, err := diskindex.Open(indexPath(cfg))
			if err != nil {
				return fmt.Errorf("open index for year-censoring: %w", err)
			}
			defer idx.Close()
			lookup = idx
		}

		matches, err := store.Lookup(ctx, kgLookupA, kgLookupB, kgCensorLower, kgCensorUpper, lookup)
		if err != nil {
			return fmt.Errorf("lookup %q/%q: %w", kgLookupA, kgLookupB, err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	if kgLoadPath == "" {
		return fmt.Errorf("nothing to do: pass --load or both --a and --b")
	}
	return nil
}
