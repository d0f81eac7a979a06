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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for the Lint Engine
// =============================================================================

const (
	fileStatusOK     = "ok"
	fileStatusCached = "cached"
	fileStatusError  = "error"

	cacheResultHit   = "hit"
	cacheResultMiss  = "miss"
	cacheResultError = "error"
)

var (
	// filesTotal counts linted files by outcome.
	// Labels: status (ok, cached, error)
	filesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainlint",
		Subsystem: "engine",
		Name:      "files_total",
		Help:      "Total files linted by outcome",
	}, []string{"status"})

	// diagnosticsTotal counts reported diagnostics.
	// Labels: rule, message_id
	diagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainlint",
		Subsystem: "engine",
		Name:      "diagnostics_total",
		Help:      "Total diagnostics reported by rule and message ID",
	}, []string{"rule", "message_id"})

	// fileDurationSeconds measures LintSource latency, cache hits included.
	fileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chainlint",
		Subsystem: "engine",
		Name:      "file_duration_seconds",
		Help:      "Time to lint a single file",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// cacheLookupsTotal counts result cache lookups.
	// Labels: result (hit, miss, error)
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainlint",
		Subsystem: "engine",
		Name:      "cache_lookups_total",
		Help:      "Total result cache lookups by result",
	}, []string{"result"})
)

func recordFile(status string, started time.Time) {
	filesTotal.WithLabelValues(status).Inc()
	fileDurationSeconds.Observe(time.Since(started).Seconds())
}

func recordCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}
