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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers the lint endpoints under rg.
//
// Endpoints:
//
//	POST /v1/lint/check  - Lint one source
//	GET  /v1/lint/rules  - Registered rules and configured severities
//	GET  /v1/lint/health - Health check
//
// Example:
//
//	svc := lint.NewService(linter, lint.DefaultServiceConfig())
//	v1 := router.Group("/v1")
//	lint.RegisterRoutes(v1, lint.NewHandlers(svc))
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	lint := rg.Group("/lint")
	{
		lint.POST("/check",
			RateLimitMiddleware(handlers.svc.limiter),
			BodyLimitMiddleware(handlers.svc.config.MaxRequestBytes),
			handlers.HandleCheck,
		)
		lint.GET("/rules", handlers.HandleRules)
		lint.GET("/health", handlers.HandleHealth)
	}
}

// NewRouter builds the full HTTP router: recovery, otelgin tracing, the
// lint routes under /v1 and Prometheus metrics at /metrics.
func NewRouter(svc *Service) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(svc.config.ServiceName))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(svc))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}
