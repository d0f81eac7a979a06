// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine runs the lint rules over source files.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/chainlint/services/lint/ast"
	"github.com/AleutianAI/chainlint/services/lint/config"
	"github.com/AleutianAI/chainlint/services/lint/diag"
	"github.com/AleutianAI/chainlint/services/lint/directive"
	"github.com/AleutianAI/chainlint/services/lint/rules"
)

var tracer = otel.Tracer("chainlint.engine")

const (
	// UnusedDirectiveRuleID is the rule ID of unused-directive diagnostics.
	UnusedDirectiveRuleID = "chainlint/unused-directive"

	// MessageUnusedDirective is the message ID of unused-directive diagnostics.
	MessageUnusedDirective = "unused_directive"
)

// =============================================================================
// Results
// =============================================================================

// FileResult is the outcome of linting one file.
type FileResult struct {
	FilePath    string            `json:"file_path"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`

	// SyntaxErrors is true when the parser recovered from syntax errors.
	// Diagnostics are still reported for the recovered tree.
	SyntaxErrors bool `json:"syntax_errors"`

	// Errors holds failures that did not abort the file: per-node rule
	// failures, or the read/parse failure of a file in a multi-file run.
	Errors []string `json:"errors,omitempty"`

	Counts diag.Counts `json:"counts"`
	Cached bool        `json:"cached"`
}

// Failed reports whether the file could not be linted at all.
func (r *FileResult) Failed() bool {
	return len(r.Errors) > 0 && r.Diagnostics == nil && !r.Cached
}

// =============================================================================
// Linter
// =============================================================================

type boundRule struct {
	rule     rules.Rule
	severity diag.Severity
	messages map[rules.MessageID]string
}

// Linter applies the configured rules to source files.
//
// Thread Safety: Safe for concurrent use. Each call builds its own tree and
// suppression map; rules are immutable.
type Linter struct {
	cfg          *config.Config
	registry     *rules.Registry
	parser       *ast.JavaScriptParser
	rules        []boundRule
	logger       *slog.Logger
	cache        ResultCache
	concurrency  int
	reportUnused bool
	fingerprint  string
}

// Option configures a Linter.
type Option func(*Linter)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Linter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithCache enables a result cache.
func WithCache(cache ResultCache) Option {
	return func(l *Linter) { l.cache = cache }
}

// WithConcurrency bounds the number of files linted in parallel.
// Values below 1 use GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(l *Linter) { l.concurrency = n }
}

// WithUnusedDirectives reports suppression comments that suppressed nothing.
func WithUnusedDirectives(report bool) Option {
	return func(l *Linter) { l.reportUnused = report }
}

// WithRegistry replaces the default rule registry.
func WithRegistry(registry *rules.Registry) Option {
	return func(l *Linter) {
		if registry != nil {
			l.registry = registry
		}
	}
}

// NewLinter builds a Linter from cfg.
//
// Description:
//
//	Builds the method policy from the configuration and instantiates every
//	rule whose severity is not off. A nil cfg uses config.DefaultConfig.
//
// Outputs:
//
//	*Linter - Ready for use.
//	error   - Non-nil for an invalid policy, unknown rule or invalid options.
func NewLinter(cfg *config.Config, opts ...Option) (*Linter, error) {
	if cfg == nil {
		def, err := config.DefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("NewLinter: %w", err)
		}
		cfg = def
	}

	l := &Linter{
		cfg:      cfg,
		registry: rules.DefaultRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.concurrency < 1 {
		l.concurrency = runtime.GOMAXPROCS(0)
	}

	maxSize := ast.DefaultJavaScriptParserOptions().MaxFileSize
	if cfg.Files.MaxFileSize > 0 {
		maxSize = int(cfg.Files.MaxFileSize)
	}
	l.parser = ast.NewJavaScriptParser(ast.WithMaxFileSize(maxSize))

	policy, err := rules.NewPolicy(cfg.PolicySpec())
	if err != nil {
		return nil, fmt.Errorf("NewLinter: policy: %w", err)
	}
	for _, name := range cfg.EnabledRules() {
		rc := cfg.Rules[name]
		rule, err := l.registry.Build(name, policy, rc.Options)
		if err != nil {
			return nil, fmt.Errorf("NewLinter: %w", err)
		}
		l.rules = append(l.rules, boundRule{
			rule:     rule,
			severity: rc.Severity,
			messages: rule.Meta().Messages,
		})
	}

	fp := sha256.Sum256([]byte(fmt.Sprintf("%s|unused=%t", cfg.Fingerprint(), l.reportUnused)))
	l.fingerprint = hex.EncodeToString(fp[:])

	l.logger.Debug("linter ready",
		slog.Any("rules", cfg.EnabledRules()),
		slog.Int("concurrency", l.concurrency),
		slog.Bool("cache", l.cache != nil),
		slog.String("fingerprint", l.fingerprint[:12]),
	)
	return l, nil
}

// Config returns the configuration the linter was built from.
func (l *Linter) Config() *config.Config {
	return l.cfg
}

// Fingerprint identifies the linter's configuration in cache keys.
func (l *Linter) Fingerprint() string {
	return l.fingerprint
}

// LintSource lints one file's content.
//
// Description:
//
//	Parses the content, visits every call in pre-order and runs each
//	enabled rule on it. Findings on lines covered by a suppression comment
//	are dropped. A rule failure on one node is recorded in
//	FileResult.Errors and the walk continues with the next node.
//
// Inputs:
//
//	ctx      - Context for cancellation and tracing.
//	filePath - Path used for language detection and in diagnostics.
//	content  - Source bytes.
//
// Outputs:
//
//	*FileResult - Diagnostics sorted by position.
//	error       - Parse failures: ast.ErrUnsupportedLanguage,
//	              ast.ErrFileTooLarge, ast.ErrInvalidContent, or ctx.Err().
func (l *Linter) LintSource(ctx context.Context, filePath string, content []byte) (*FileResult, error) {
	ctx, span := tracer.Start(ctx, "Linter.LintSource",
		trace.WithAttributes(
			attribute.String("file.path", filePath),
			attribute.Int("file.size", len(content)),
		),
	)
	defer span.End()
	started := time.Now()

	lang, ok := ast.LanguageForPath(filePath)
	if !ok {
		err := fmt.Errorf("%w: %s", ast.ErrUnsupportedLanguage, filepath.Ext(filePath))
		span.RecordError(err)
		span.SetStatus(codes.Error, "unsupported language")
		recordFile(fileStatusError, started)
		return nil, fmt.Errorf("lint %s: %w", filePath, err)
	}
	span.SetAttributes(attribute.String("file.language", lang))

	key := NewCacheKey(l.fingerprint, lang, content)
	if cached := l.loadCached(ctx, key, filePath); cached != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true), attribute.Int("diagnostics", len(cached.Diagnostics)))
		recordFile(fileStatusCached, started)
		return cached, nil
	}

	tree, err := l.parser.Parse(ctx, content, filePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		recordFile(fileStatusError, started)
		return nil, fmt.Errorf("lint %s: %w", filePath, err)
	}

	result := l.lintTree(tree)

	span.SetAttributes(
		attribute.Bool("cache.hit", false),
		attribute.Int("calls", len(tree.Calls())),
		attribute.Int("diagnostics", len(result.Diagnostics)),
		attribute.Bool("syntax_errors", result.SyntaxErrors),
		attribute.Int("rule_errors", len(result.Errors)),
	)
	if len(result.Errors) > 0 {
		span.SetStatus(codes.Error, "rule errors")
	}
	recordFile(fileStatusOK, started)

	l.saveCached(ctx, key, result)
	return result, nil
}

func (l *Linter) lintTree(tree *ast.Tree) *FileResult {
	result := &FileResult{
		FilePath:     tree.FilePath,
		Diagnostics:  []diag.Diagnostic{},
		SyntaxErrors: tree.HasSyntaxErrors,
	}
	if tree.HasSyntaxErrors {
		l.logger.Debug("linting recovered tree", slog.String("file", tree.FilePath))
	}

	ignore := directive.BuildIgnoreMap(tree)

	for _, call := range tree.Calls() {
		for _, br := range l.rules {
			finding, err := br.rule.Check(tree, call)
			if err != nil {
				loc := tree.Node(call).Loc
				result.Errors = append(result.Errors, fmt.Sprintf("%d:%d: %v", loc.StartLine, loc.StartCol, err))
				l.logger.Warn("rule failed on node",
					slog.String("file", tree.FilePath),
					slog.String("rule", br.rule.Name()),
					slog.Int("line", loc.StartLine),
					slog.String("error", err.Error()),
				)
				continue
			}
			if finding == nil {
				continue
			}
			node := tree.Node(finding.Node)
			if node == nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: finding on unknown node %d", br.rule.Name(), finding.Node))
				continue
			}
			if ignore.ShouldIgnore(finding.RuleID, node.Loc.StartLine) {
				continue
			}
			result.Diagnostics = append(result.Diagnostics, diag.Diagnostic{
				RuleID:    finding.RuleID,
				MessageID: string(finding.MessageID),
				Message:   br.messages[finding.MessageID],
				Severity:  br.severity,
				FilePath:  tree.FilePath,
				Location:  node.Loc,
			})
			diagnosticsTotal.WithLabelValues(finding.RuleID, string(finding.MessageID)).Inc()
		}
	}

	if l.reportUnused {
		for _, d := range ignore.Unused() {
			result.Diagnostics = append(result.Diagnostics, unusedDirectiveDiagnostic(tree.FilePath, d))
			diagnosticsTotal.WithLabelValues(UnusedDirectiveRuleID, MessageUnusedDirective).Inc()
		}
	}

	diag.Sort(result.Diagnostics)
	result.Counts = diag.Count(result.Diagnostics)
	return result
}

func unusedDirectiveDiagnostic(filePath string, d directive.Directive) diag.Diagnostic {
	msg := fmt.Sprintf("Unused %s directive (no problems were reported).", d.Kind)
	if len(d.Rules) > 0 {
		msg = fmt.Sprintf("Unused %s directive (no problems were reported from '%s').",
			d.Kind, strings.Join(d.Rules, "', '"))
	}
	return diag.Diagnostic{
		RuleID:    UnusedDirectiveRuleID,
		MessageID: MessageUnusedDirective,
		Message:   msg,
		Severity:  diag.SeverityWarn,
		FilePath:  filePath,
		Location:  d.Loc,
	}
}

func (l *Linter) loadCached(ctx context.Context, key CacheKey, filePath string) *FileResult {
	if l.cache == nil {
		return nil
	}
	cached, ok, err := l.cache.Load(ctx, key)
	switch {
	case err != nil:
		recordCacheLookup(cacheResultError)
		l.logger.Warn("result cache load failed",
			slog.String("file", filePath),
			slog.String("error", err.Error()),
		)
		return nil
	case !ok || cached == nil:
		recordCacheLookup(cacheResultMiss)
		return nil
	}
	recordCacheLookup(cacheResultHit)

	ds := make([]diag.Diagnostic, len(cached.Diagnostics))
	for i, d := range cached.Diagnostics {
		d.FilePath = filePath
		ds[i] = d
	}
	return &FileResult{
		FilePath:     filePath,
		Diagnostics:  ds,
		SyntaxErrors: cached.SyntaxErrors,
		Errors:       cached.Errors,
		Counts:       diag.Count(ds),
		Cached:       true,
	}
}

func (l *Linter) saveCached(ctx context.Context, key CacheKey, result *FileResult) {
	if l.cache == nil {
		return
	}
	err := l.cache.Save(ctx, key, &CachedResult{
		Diagnostics:  result.Diagnostics,
		SyntaxErrors: result.SyntaxErrors,
		Errors:       result.Errors,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		l.logger.Warn("result cache save failed",
			slog.String("file", result.FilePath),
			slog.String("error", err.Error()),
		)
	}
}

// =============================================================================
// Rule Metadata
// =============================================================================

// RuleInfo describes a registered rule and its configured severity.
type RuleInfo struct {
	Name        string            `json:"name"`
	Severity    diag.Severity     `json:"severity"`
	Description string            `json:"description"`
	DocsURL     string            `json:"docs_url"`
	Messages    map[string]string `json:"messages"`
	Options     rules.Options     `json:"options"`
}

// Rules describes every registered rule, enabled or not, sorted by name.
func (l *Linter) Rules() []RuleInfo {
	policy, err := rules.NewPolicy(l.cfg.PolicySpec())
	if err != nil {
		policy = rules.DefaultPolicy()
	}
	var out []RuleInfo
	for _, name := range l.registry.Names() {
		rc, ok := l.cfg.Rules[name]
		if !ok {
			rc = config.RuleConfig{Options: rules.DefaultOptions()}
		}
		rule, err := l.registry.Build(name, policy, rc.Options)
		if err != nil {
			continue
		}
		meta := rule.Meta()
		messages := make(map[string]string, len(meta.Messages))
		for id, text := range meta.Messages {
			messages[string(id)] = text
		}
		out = append(out, RuleInfo{
			Name:        name,
			Severity:    rc.Severity,
			Description: meta.Description,
			DocsURL:     meta.DocsURL,
			Messages:    messages,
			Options:     rc.Options,
		})
	}
	return out
}
