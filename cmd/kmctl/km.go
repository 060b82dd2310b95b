package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/km"
)

var kmParamsPath string

var kmCmd = &cobra.Command{
	Use:   "km",
	Short: "Run a KinderMiner (A-B) search from a JSON params file",
	RunE:  runKM,
}

func init() {
	kmCmd.Flags().StringVar(&kmParamsPath, "params", "", "JSON-encoded km.Params file (required)")
	kmCmd.MarkFlagRequired("params")
	rootCmd.AddCommand(kmCmd)
}

func runKM(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(kmParamsPath)
	if err != nil {
		return fmt.Errorf("read params file %s: %w", kmParamsPath, err)
	}
	var params km.Params
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("parse params file %s: %w", kmParamsPath, err)
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

	printInfo("running KM search %s", params.String())
	result, err := km.RunKM(ctx, eng, store, params, progressLine("km"))
	if err != nil {
		return fmt.Errorf("run km: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
