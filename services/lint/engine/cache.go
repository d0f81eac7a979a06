// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/AleutianAI/chainlint/services/lint/diag"
)

// CacheKey identifies a lint result: the same content parsed with the same
// grammar under the same configuration always yields the same diagnostics.
type CacheKey struct {
	Fingerprint string
	Language    string
	ContentHash string
}

// NewCacheKey hashes content under a configuration fingerprint and the
// language its path resolves to.
func NewCacheKey(fingerprint, language string, content []byte) CacheKey {
	sum := sha256.Sum256(content)
	return CacheKey{Fingerprint: fingerprint, Language: language, ContentHash: hex.EncodeToString(sum[:])}
}

// CachedResult is the path-independent part of a FileResult.
type CachedResult struct {
	Diagnostics  []diag.Diagnostic `json:"diagnostics"`
	SyntaxErrors bool              `json:"syntax_errors"`
	Errors       []string          `json:"errors,omitempty"`
}

// ResultCache stores lint results across runs.
//
// Load returns (nil, false, nil) on a miss.
type ResultCache interface {
	Load(ctx context.Context, key CacheKey) (*CachedResult, bool, error)
	Save(ctx context.Context, key CacheKey, result *CachedResult) error
}
