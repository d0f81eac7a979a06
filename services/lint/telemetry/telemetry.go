// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry installs the process-wide OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	// ExporterNone leaves the global no-op tracer provider in place.
	ExporterNone = "none"

	// ExporterStdout writes spans as JSON.
	ExporterStdout = "stdout"

	// ExporterOTLP sends spans over OTLP/gRPC.
	ExporterOTLP = "otlp"
)

// DefaultServiceName is the service.name resource attribute.
const DefaultServiceName = "chainlint"

// Config selects and configures the span exporter.
type Config struct {
	// Exporter is one of ExporterNone, ExporterStdout or ExporterOTLP.
	Exporter string

	// ServiceName defaults to DefaultServiceName.
	ServiceName string

	// Endpoint is the OTLP collector address. When empty the exporter
	// reads OTEL_EXPORTER_OTLP_ENDPOINT, falling back to localhost:4317.
	Endpoint string

	// Insecure disables TLS for OTLP.
	Insecure bool

	// Writer receives stdout spans. Defaults to os.Stderr so that spans
	// never mix with report output.
	Writer io.Writer
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Setup builds a tracer provider for cfg and installs it globally.
//
// Outputs:
//
//	ShutdownFunc - Must be called before exit to flush spans. Never nil.
//	error        - Unknown exporter or exporter construction failure.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }

	var exporter sdktrace.SpanExporter
	switch strings.ToLower(cfg.Exporter) {
	case "", ExporterNone:
		return noop, nil
	case ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return noop, fmt.Errorf("stdout trace exporter: %w", err)
		}
		exporter = exp
	case ExporterOTLP:
		var opts []otlptracegrpc.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return noop, fmt.Errorf("otlp trace exporter: %w", err)
		}
		exporter = exp
	default:
		return noop, fmt.Errorf("unknown trace exporter %q (want none, stdout or otlp)", cfg.Exporter)
	}

	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
