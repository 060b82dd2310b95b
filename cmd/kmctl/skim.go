package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/km"
)

var skimParamsPath string

var skimCmd = &cobra.Command{
	Use:   "skim",
	Short: "Run a Serial-KinderMiner (A-B-C) search from a JSON params file",
	RunE:  runSKiM,
}

func init() {
	skimCmd.Flags().StringVar(&skimParamsPath, "params", "", "JSON-encoded km.SKiMParams file (required)")
	skimCmd.MarkFlagRequired("params")
	rootCmd.AddCommand(skimCmd)
}

func runSKiM(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(skimParamsPath)
	if err != nil {
		return fmt.Errorf("read params file %s: %w", skimParamsPath, err)
	}
	var params km.SKiMParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("parse params file %s: %w", skimParamsPath, err)
	}
	if err := params.Validate(cfg.Jobs); err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	eng, idx, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	printInfo("running SKiM search (%d A terms, %d B terms, %d C terms)", len(params.ATerms), len(params.BTerms), len(params.CTerms))
	result, err := km.RunSKiM(ctx, eng, store, params, progressLine("skim"))
	if err != nil {
		return fmt.Errorf("run skim: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
