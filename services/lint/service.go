// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lint exposes the chainlint engine over HTTP.
//
// The service wraps an engine.Linter and serves it through gin. Routes are
// registered under /v1/lint; Prometheus metrics are served at /metrics.
package lint

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/chainlint/services/lint/engine"
)

// =============================================================================
// Service Configuration
// =============================================================================

// ServiceConfig bounds what one process accepts over HTTP.
type ServiceConfig struct {
	// ServiceName is reported by otelgin spans.
	ServiceName string

	// MaxRequestBytes caps the request body. The source inside it is still
	// subject to the configured files.max_file_size.
	MaxRequestBytes int64

	// RequestsPerSecond is the steady-state rate of the token bucket.
	// Zero or negative disables rate limiting.
	RequestsPerSecond float64

	// Burst is the token bucket size.
	Burst int
}

// DefaultServiceConfig returns production defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ServiceName:       "chainlint",
		MaxRequestBytes:   12 << 20,
		RequestsPerSecond: 50,
		Burst:             100,
	}
}

// =============================================================================
// Service
// =============================================================================

// Service lints single sources on behalf of HTTP clients.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	linter  *engine.Linter
	config  ServiceConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewService creates a service around linter.
//
// Inputs:
//
//	linter - Configured linter. Must not be nil.
//	config - Request limits.
//
// Outputs:
//
//	*Service - Ready to serve.
func NewService(linter *engine.Linter, config ServiceConfig) *Service {
	if linter == nil {
		panic("lint: NewService requires a non-nil linter")
	}
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceConfig().ServiceName
	}
	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	return &Service{
		linter:  linter,
		config:  config,
		limiter: limiter,
		logger:  slog.Default().With(slog.String("component", "lint.service")),
	}
}

// Linter returns the wrapped linter.
func (s *Service) Linter() *engine.Linter {
	return s.linter
}

// Config returns the service configuration.
func (s *Service) Config() ServiceConfig {
	return s.config
}

// Check lints one in-memory source.
func (s *Service) Check(ctx context.Context, filePath string, source []byte) (*engine.FileResult, error) {
	result, err := s.linter.LintSource(ctx, filePath, source)
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}
	return result, nil
}

// Rules describes the registered rules under the service's configuration.
func (s *Service) Rules() []engine.RuleInfo {
	return s.linter.Rules()
}
