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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/chainlint/services/lint"
)

type serveOptions struct {
	linterFlags
	port            int
	requestsPerSec  float64
	burst           int
	maxRequestBytes int64
}

func newServeCommand() *cobra.Command {
	defaults := lint.DefaultServiceConfig()
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lint HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().IntVarP(&opts.port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().Float64Var(&opts.requestsPerSec, "rate", defaults.RequestsPerSecond, "Check requests per second (0 disables limiting)")
	cmd.Flags().IntVar(&opts.burst, "burst", defaults.Burst, "Rate limiter burst")
	cmd.Flags().Int64Var(&opts.maxRequestBytes, "max-request-bytes", defaults.MaxRequestBytes, "Maximum request body size")
	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	bundle, err := opts.build(ctx)
	if err != nil {
		return runtimeFailure(err)
	}
	defer bundle.Close()

	svcCfg := lint.DefaultServiceConfig()
	svcCfg.RequestsPerSecond = opts.requestsPerSec
	svcCfg.Burst = opts.burst
	svcCfg.MaxRequestBytes = opts.maxRequestBytes

	gin.SetMode(gin.ReleaseMode)
	router := lint.NewRouter(lint.NewService(bundle.linter, svcCfg))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting chainlint server",
			slog.String("address", srv.Addr),
			slog.String("fingerprint", bundle.linter.Fingerprint()),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return runtimeFailure(fmt.Errorf("serve: %w", err))
	case <-ctx.Done():
	}

	slog.Info("Shutting down chainlint server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return runtimeFailure(fmt.Errorf("shutdown: %w", err))
	}
	return nil
}
