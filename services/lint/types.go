// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"github.com/AleutianAI/chainlint/services/lint/diag"
	"github.com/AleutianAI/chainlint/services/lint/engine"
)

// CheckRequest is the body of POST /v1/lint/check.
type CheckRequest struct {
	// FilePath selects the grammar by extension and is echoed in diagnostics.
	FilePath string `json:"file_path" binding:"required"`

	// Source is the file content.
	Source string `json:"source"`
}

// CheckResponse is the result of POST /v1/lint/check.
type CheckResponse struct {
	FilePath     string            `json:"file_path"`
	Diagnostics  []diag.Diagnostic `json:"diagnostics"`
	SyntaxErrors bool              `json:"syntax_errors"`
	Errors       []string          `json:"errors"`
	Counts       diag.Counts       `json:"counts"`
	Cached       bool              `json:"cached"`
}

// RulesResponse is the result of GET /v1/lint/rules.
type RulesResponse struct {
	Rules       []engine.RuleInfo `json:"rules"`
	Fingerprint string            `json:"fingerprint"`
}

// HealthResponse is the result of GET /v1/lint/health.
type HealthResponse struct {
	Status       string `json:"status"`
	EnabledRules int    `json:"enabled_rules"`
}

// ErrorResponse is returned for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error codes.
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeUnsupportedLanguage = "UNSUPPORTED_LANGUAGE"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeInvalidContent      = "INVALID_CONTENT"
	CodeRequestTooLarge     = "REQUEST_TOO_LARGE"
	CodeRateLimited         = "RATE_LIMITED"
	CodeCanceled            = "CANCELED"
	CodeInternal            = "INTERNAL_ERROR"
)

func newCheckResponse(r *engine.FileResult) CheckResponse {
	resp := CheckResponse{
		FilePath:     r.FilePath,
		Diagnostics:  r.Diagnostics,
		SyntaxErrors: r.SyntaxErrors,
		Errors:       r.Errors,
		Counts:       r.Counts,
		Cached:       r.Cached,
	}
	if resp.Diagnostics == nil {
		resp.Diagnostics = []diag.Diagnostic{}
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	return resp
}
