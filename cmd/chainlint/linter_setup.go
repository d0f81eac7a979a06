// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/chainlint/services/lint/cache"
	"github.com/AleutianAI/chainlint/services/lint/config"
	"github.com/AleutianAI/chainlint/services/lint/engine"
)

// defaultConfigFile is picked up from the working directory when --config
// is not given.
const defaultConfigFile = ".chainlint.yaml"

// linterFlags are shared by check, watch and serve.
type linterFlags struct {
	configPath   string
	concurrency  int
	cacheDir     string
	reportUnused bool
}

func (f *linterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Config file (default ./"+defaultConfigFile+" when present)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "Files linted in parallel (default GOMAXPROCS)")
	cmd.Flags().StringVar(&f.cacheDir, "cache-dir", "", "BadgerDB directory for cached results (disabled when empty)")
	cmd.Flags().BoolVar(&f.reportUnused, "report-unused-directives", false, "Warn about suppression comments that suppress nothing")
}

// linterBundle is a linter plus the resources it owns.
type linterBundle struct {
	linter *engine.Linter
	cache  *cache.BadgerResultCache
	db     *badger.DB
}

// Close releases the cache database.
func (b *linterBundle) Close() {
	if b.db == nil {
		return
	}
	if err := b.db.Close(); err != nil {
		slog.Warn("Failed to close result cache", slog.String("error", err.Error()))
	}
}

// build loads the configuration and constructs the linter.
func (f *linterFlags) build(ctx context.Context) (*linterBundle, error) {
	cfg, err := loadConfig(ctx, f.configPath)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithLogger(slog.Default()),
		engine.WithConcurrency(f.concurrency),
		engine.WithUnusedDirectives(f.reportUnused),
	}

	bundle := &linterBundle{}
	if f.cacheDir != "" {
		db, err := cache.OpenDB(f.cacheDir)
		if err != nil {
			return nil, err
		}
		bundle.db = db
		bundle.cache = cache.NewBadgerResultCache(db, cache.DefaultTTL, slog.Default())
		opts = append(opts, engine.WithCache(bundle.cache))
	}

	linter, err := engine.NewLinter(cfg, opts...)
	if err != nil {
		bundle.Close()
		return nil, err
	}
	bundle.linter = linter
	return bundle, nil
}

// loadConfig reads path, or ./.chainlint.yaml when path is empty and the
// file exists, or falls back to the embedded defaults.
func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfigFile(ctx, path)
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		slog.Debug("Using config from working directory", slog.String("path", defaultConfigFile))
		return config.LoadConfigFile(ctx, defaultConfigFile)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", defaultConfigFile, err)
	}
	return config.DefaultConfig(ctx)
}
