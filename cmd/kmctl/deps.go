package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cognicore/kmcorpus/pkg/kmcorpus/config"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/corpus"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/corpus/memory"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/corpus/sqlite"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/diskindex"
	"github.com/cognicore/kmcorpus/pkg/kmcorpus/query"
)

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func openStore(ctx context.Context, cfg config.Config) (corpus.Store, error) {
	switch cfg.Corpus.Driver {
	case "", "sqlite":
		path := cfg.Corpus.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.DataDir, path)
		}
		return sqlite.Open(ctx, path)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown corpus driver %q", cfg.Corpus.Driver)
	}
}

func indexPath(cfg config.Config) string {
	return filepath.Join(cfg.DataDir, cfg.Index.Dir, "current.kmidx")
}

func openEngine(cfg config.Config) (*query.Engine, *diskindex.Index, error) {
	idx, err := diskindex.Open(indexPath(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("open index: %w", err)
	}

	opts := []query.Option{query.WithTokenCacheBytes(cfg.Cache.TokenPostingCacheBytes)}
	if cfg.Cache.SharedCacheDir != "" {
		shared, err := query.OpenBadgerSharedCache(cfg.Cache.SharedCacheDir)
		if err != nil {
			idx.Close()
			return nil, nil, fmt.Errorf("open shared cache: %w", err)
		}
		opts = append(opts, query.WithSharedCache(shared))
	}

	return query.NewEngine(idx, opts...), idx, nil
}
