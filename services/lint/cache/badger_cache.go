// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache persists lint results in BadgerDB.
//
// Storage layout:
//
//	lint/result/v1/{fingerprint}/{language}/{contentHash}  ->  JSON engine.CachedResult
//	                                                           TTL: 7 days by default
//
// The fingerprint covers the configuration, so editing the config makes old
// entries unreachable; they expire through Badger's TTL GC.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/chainlint/services/lint/engine"
)

// DefaultTTL is the lifetime of a cached lint result.
const DefaultTTL = 7 * 24 * time.Hour

const keyPrefix = "lint/result/v1/"

// OpenDB opens (or creates) an on-disk Badger database at dir.
func OpenDB(dir string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open result cache %s: %w", dir, err)
	}
	return db, nil
}

// OpenInMemoryDB opens a Badger database that lives only in memory.
func OpenInMemoryDB() (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory result cache: %w", err)
	}
	return db, nil
}

// BadgerResultCache implements engine.ResultCache on a Badger database.
//
// The caller owns the DB and must keep it open while the cache is in use.
//
// Thread Safety: Safe for concurrent use.
type BadgerResultCache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

var _ engine.ResultCache = (*BadgerResultCache)(nil)

// NewBadgerResultCache wraps db. A ttl of zero or less uses DefaultTTL.
func NewBadgerResultCache(db *badger.DB, ttl time.Duration, logger *slog.Logger) *BadgerResultCache {
	if db == nil {
		panic("NewBadgerResultCache: db must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerResultCache{db: db, ttl: ttl, logger: logger}
}

func resultKey(key engine.CacheKey) []byte {
	return []byte(keyPrefix + key.Fingerprint + "/" + key.Language + "/" + key.ContentHash)
}

// Load returns the cached result for key. A missing or expired entry is a
// miss: (nil, false, nil).
func (c *BadgerResultCache) Load(ctx context.Context, key engine.CacheKey) (*engine.CachedResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(resultKey(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("result cache load: %w", err)
	}

	var result engine.CachedResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("result cache decode: %w", err)
	}
	return &result, true, nil
}

// Save stores result under key with the cache TTL.
func (c *BadgerResultCache) Save(ctx context.Context, key engine.CacheKey, result *engine.CachedResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("result cache save: nil result")
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("result cache encode: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(resultKey(key), raw).WithTTL(c.ttl))
	})
	if err != nil {
		return fmt.Errorf("result cache save: %w", err)
	}
	c.logger.Debug("result cache: saved",
		slog.String("content_hash", shortHash(key.ContentHash)),
		slog.Int("diagnostics", len(result.Diagnostics)),
	)
	return nil
}

// Purge deletes every cached result.
func (c *BadgerResultCache) Purge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return fmt.Errorf("result cache purge: %w", err)
	}
	c.logger.Info("result cache purged")
	return nil
}

// Len counts the live cached results.
func (c *BadgerResultCache) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("result cache len: %w", err)
	}
	return n, nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
