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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/chainlint/services/lint/ast"
)

// requestIDHeader carries the caller's correlation ID.
const requestIDHeader = "X-Request-ID"

// Handlers serves the lint HTTP API.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleCheck handles POST /v1/lint/check.
//
// Description:
//
//	Lints the submitted source with the service's configuration and returns
//	its diagnostics. Syntax errors do not fail the request; the parser
//	recovers and syntax_errors is set.
//
// Request Body:
//
//	CheckRequest
//
// Response:
//
//	200 OK: CheckResponse
//	400 Bad Request: Malformed body, missing file_path, unsupported extension
//	413 Request Entity Too Large: Body or source over the limit
//	499: Client went away before linting finished
//	500 Internal Server Error: Unexpected failure
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleCheck(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.svc.logger.With("request_id", requestID, "handler", "HandleCheck")

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: "request body too large",
				Code:  CodeRequestTooLarge,
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request: " + err.Error(),
			Code:  CodeInvalidRequest,
		})
		return
	}

	result, err := h.svc.Check(c.Request.Context(), req.FilePath, []byte(req.Source))
	if err != nil {
		status, code := classifyCheckError(err)
		if status >= http.StatusInternalServerError {
			logger.Error("check failed", slog.String("file_path", req.FilePath), slog.String("error", err.Error()))
		} else {
			logger.Debug("check rejected", slog.String("file_path", req.FilePath), slog.String("code", code))
		}
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.Debug("check complete",
		slog.String("file_path", req.FilePath),
		slog.Int("diagnostics", len(result.Diagnostics)),
		slog.Bool("cached", result.Cached),
	)
	c.JSON(http.StatusOK, newCheckResponse(result))
}

// HandleRules handles GET /v1/lint/rules.
func (h *Handlers) HandleRules(c *gin.Context) {
	c.JSON(http.StatusOK, RulesResponse{
		Rules:       h.svc.Rules(),
		Fingerprint: h.svc.linter.Fingerprint(),
	})
}

// HandleHealth handles GET /v1/lint/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		EnabledRules: len(h.svc.linter.Config().EnabledRules()),
	})
}

// classifyCheckError maps engine errors onto HTTP statuses and codes.
func classifyCheckError(err error) (int, string) {
	switch {
	case errors.Is(err, ast.ErrUnsupportedLanguage):
		return http.StatusBadRequest, CodeUnsupportedLanguage
	case errors.Is(err, ast.ErrInvalidContent):
		return http.StatusBadRequest, CodeInvalidContent
	case errors.Is(err, ast.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, CodeFileTooLarge
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return 499, CodeCanceled
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// getOrCreateRequestID returns the caller's request ID or mints one, and
// echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(requestIDHeader, id)
	return id
}
