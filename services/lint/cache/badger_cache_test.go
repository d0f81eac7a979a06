// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/chainlint/services/lint/config"
	"github.com/AleutianAI/chainlint/services/lint/diag"
	"github.com/AleutianAI/chainlint/services/lint/engine"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := OpenInMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleResult() *engine.CachedResult {
	return &engine.CachedResult{
		Diagnostics: []diag.Diagnostic{{
			RuleID:    "mongoose-exec",
			MessageID: "expected",
			Message:   "Expected exec(), cursor() or stream() to finalize the query.",
			Severity:  diag.SeverityError,
			FilePath:  "a.js",
			Location:  diag.Location{StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 15},
		}},
		SyntaxErrors: true,
	}
}

func TestBadgerResultCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewBadgerResultCache(newTestDB(t), 0, nil)
	key := engine.NewCacheKey("fp", "javascript", []byte("Model.find({});"))

	got, ok, err := c.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	want := sampleResult()
	require.NoError(t, c.Save(ctx, key, want))

	got, ok, err = c.Load(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	other := engine.NewCacheKey("other-fp", "javascript", []byte("Model.find({});"))
	_, ok, err = c.Load(ctx, other)
	require.NoError(t, err)
	assert.False(t, ok, "fingerprint is part of the key")

	ts := engine.NewCacheKey("fp", "typescript", []byte("Model.find({});"))
	_, ok, err = c.Load(ctx, ts)
	require.NoError(t, err)
	assert.False(t, ok, "language is part of the key")
}

func TestBadgerResultCache_TTL(t *testing.T) {
	ctx := context.Background()
	c := NewBadgerResultCache(newTestDB(t), time.Second, nil)
	key := engine.NewCacheKey("fp", "javascript", []byte("x"))

	require.NoError(t, c.Save(ctx, key, sampleResult()))
	_, ok, err := c.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	// Badger TTLs have one-second resolution.
	time.Sleep(2100 * time.Millisecond)
	_, ok, err = c.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBadgerResultCache_PurgeAndLen(t *testing.T) {
	ctx := context.Background()
	c := NewBadgerResultCache(newTestDB(t), 0, nil)

	for _, src := range []string{"a", "b", "c"} {
		require.NoError(t, c.Save(ctx, engine.NewCacheKey("fp", "javascript", []byte(src)), sampleResult()))
	}
	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, c.Purge(ctx))
	n, err = c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBadgerResultCache_Errors(t *testing.T) {
	c := NewBadgerResultCache(newTestDB(t), 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.Load(ctx, engine.CacheKey{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, c.Save(ctx, engine.CacheKey{}, sampleResult()), context.Canceled)

	assert.Error(t, c.Save(context.Background(), engine.CacheKey{}, nil))
	assert.Panics(t, func() { NewBadgerResultCache(nil, 0, nil) })
}

func TestBadgerResultCache_WithLinter(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.LoadConfig(ctx, nil)
	require.NoError(t, err)

	c := NewBadgerResultCache(newTestDB(t), 0, nil)
	l, err := engine.NewLinter(cfg, engine.WithCache(c))
	require.NoError(t, err)

	src := []byte("Model.find({});\nModel.remove({}).exec();\n")
	first, err := l.LintSource(ctx, "a.js", src)
	require.NoError(t, err)
	second, err := l.LintSource(ctx, "b.js", src)
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	require.Len(t, second.Diagnostics, len(first.Diagnostics))
	for i := range first.Diagnostics {
		want := first.Diagnostics[i]
		want.FilePath = "b.js"
		assert.Equal(t, want, second.Diagnostics[i])
	}
}

func TestOpenDB(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenDB(dir)
	require.NoError(t, err)
	c := NewBadgerResultCache(db, 0, nil)
	key := engine.NewCacheKey("fp", "javascript", []byte("x"))
	require.NoError(t, c.Save(context.Background(), key, sampleResult()))
	require.NoError(t, db.Close())

	db, err = OpenDB(dir)
	require.NoError(t, err)
	defer db.Close()
	_, ok, err := NewBadgerResultCache(db, 0, nil).Load(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok, "results survive reopen")
}
