// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads chainlint's YAML configuration.
package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/chainlint/services/lint/diag"
	"github.com/AleutianAI/chainlint/services/lint/rules"
)

var tracer = otel.Tracer("chainlint.config")

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed default_config.yaml
var defaultConfigYAML []byte

// MaxConfigFileSize bounds the size of a configuration file.
const MaxConfigFileSize = 1 << 20

// ErrInvalidConfig indicates configuration that fails to parse or validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// Configuration Types
// =============================================================================

// Config is a resolved chainlint configuration.
//
// Description:
//
//	Every known rule has an entry in Rules, with options decoded and
//	validated. Policy lists are sorted and deduplicated so that equal
//	configurations share a Fingerprint.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	Rules  map[string]RuleConfig `json:"rules"`
	Policy PolicyConfig          `json:"policy"`
	Files  FilesConfig           `json:"files"`
}

// RuleConfig is the resolved configuration of one rule.
type RuleConfig struct {
	Severity diag.Severity `json:"severity"`
	Options  rules.Options `json:"options"`
}

// PolicyConfig lists the method names of each policy set.
type PolicyConfig struct {
	MustTerminate    []string `yaml:"must_terminate" json:"must_terminate" validate:"dive,required"`
	MustNotTerminate []string `yaml:"must_not_terminate" json:"must_not_terminate" validate:"dive,required"`
	CursorEligible   []string `yaml:"cursor_eligible" json:"cursor_eligible" validate:"dive,required"`
	Deprecated       []string `yaml:"deprecated" json:"deprecated" validate:"dive,required"`
}

// FilesConfig controls file discovery.
type FilesConfig struct {
	// Extensions are the file suffixes linted during path discovery.
	Extensions []string `yaml:"extensions" json:"extensions" validate:"required,dive,startswith=."`

	// ExcludeDirs are directory base names skipped during discovery.
	ExcludeDirs []string `yaml:"exclude_dirs" json:"exclude_dirs" validate:"dive,required,excludesall=/"`

	// MaxFileSize is the largest file, in bytes, that will be parsed.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size" validate:"gt=0"`
}

// fileConfig is the on-disk shape. Absent fields stay zero so they can be
// filled from the defaults.
type fileConfig struct {
	Rules  map[string]fileRule `yaml:"rules"`
	Policy PolicyConfig        `yaml:"policy"`
	Files  FilesConfig         `yaml:"files"`
}

type fileRule struct {
	Severity string    `yaml:"severity"`
	Options  yaml.Node `yaml:"options"`
}

// =============================================================================
// Singleton Default Config
// =============================================================================

var (
	defaultConfigMu      sync.RWMutex
	defaultConfigOnce    sync.Once
	cachedDefaultConfig  *Config
	defaultConfigLoadErr error
)

// DefaultConfig returns the cached configuration built from the embedded
// defaults.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func DefaultConfig(ctx context.Context) (*Config, error) {
	if ctx == nil {
		return nil, fmt.Errorf("DefaultConfig: ctx must not be nil")
	}

	defaultConfigMu.RLock()
	if cachedDefaultConfig != nil || defaultConfigLoadErr != nil {
		cfg, err := cachedDefaultConfig, defaultConfigLoadErr
		defaultConfigMu.RUnlock()
		return cfg, err
	}
	defaultConfigMu.RUnlock()

	defaultConfigMu.Lock()
	defer defaultConfigMu.Unlock()

	defaultConfigOnce.Do(func() {
		cachedDefaultConfig, defaultConfigLoadErr = LoadConfig(ctx, nil)
	})
	return cachedDefaultConfig, defaultConfigLoadErr
}

// ResetDefaultConfig clears the cached default config for testing.
func ResetDefaultConfig() {
	defaultConfigMu.Lock()
	defer defaultConfigMu.Unlock()
	cachedDefaultConfig = nil
	defaultConfigLoadErr = nil
	defaultConfigOnce = sync.Once{}
}

// =============================================================================
// Loading
// =============================================================================

// LoadConfigFile reads path and merges it over the embedded defaults.
func LoadConfigFile(ctx context.Context, path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("LoadConfigFile: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("LoadConfigFile: %w: %s exceeds maximum size (%d > %d)",
			ErrInvalidConfig, path, info.Size(), MaxConfigFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadConfigFile: %w", err)
	}
	cfg, err := LoadConfig(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Clean(path), err)
	}
	return cfg, nil
}

// LoadConfig merges YAML data over the embedded defaults and validates it.
//
// Description:
//
//	Maps merge by key and lists replace. A rule entry that omits severity
//	or options inherits the default entry's value. Unknown keys, unknown
//	rule IDs, invalid severities and invalid options are rejected with an
//	error naming the offending key.
//
// Inputs:
//
//	ctx  - Context for tracing.
//	data - Raw YAML. Empty data yields the defaults.
//
// Outputs:
//
//	*Config - The resolved configuration.
//	error   - Wraps ErrInvalidConfig, rules.ErrUnknownRule or
//	          rules.ErrInvalidOptions.
func LoadConfig(ctx context.Context, data []byte) (*Config, error) {
	_, span := tracer.Start(ctx, "config.LoadConfig")
	defer span.End()

	if len(data) > MaxConfigFileSize {
		return nil, fmt.Errorf("LoadConfig: %w: YAML data exceeds maximum size (%d > %d)",
			ErrInvalidConfig, len(data), MaxConfigFileSize)
	}

	base, err := parseFileConfig(defaultConfigYAML)
	if err != nil {
		return nil, fmt.Errorf("LoadConfig: embedded defaults: %w", err)
	}
	override, err := parseFileConfig(data)
	if err != nil {
		return nil, fmt.Errorf("LoadConfig: %w", err)
	}

	cfg, err := resolve(mergeFileConfig(base, override))
	if err != nil {
		return nil, fmt.Errorf("LoadConfig: %w", err)
	}

	span.SetAttributes(
		attribute.Int("rules", len(cfg.Rules)),
		attribute.StringSlice("enabled_rules", cfg.EnabledRules()),
		attribute.Int("must_terminate", len(cfg.Policy.MustTerminate)),
		attribute.Int("extensions", len(cfg.Files.Extensions)),
	)
	slog.Debug("lint config loaded",
		slog.Any("enabled_rules", cfg.EnabledRules()),
		slog.Int("must_terminate", len(cfg.Policy.MustTerminate)),
		slog.Int("must_not_terminate", len(cfg.Policy.MustNotTerminate)),
	)

	return cfg, nil
}

func parseFileConfig(data []byte) (*fileConfig, error) {
	var fc fileConfig
	if len(bytes.TrimSpace(data)) == 0 {
		return &fc, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parsing YAML: %v", ErrInvalidConfig, err)
	}
	return &fc, nil
}

func mergeFileConfig(base, override *fileConfig) *fileConfig {
	out := &fileConfig{
		Rules:  make(map[string]fileRule, len(base.Rules)+len(override.Rules)),
		Policy: base.Policy,
		Files:  base.Files,
	}
	for name, rule := range base.Rules {
		out.Rules[name] = rule
	}
	for name, rule := range override.Rules {
		merged := out.Rules[name]
		if rule.Severity != "" {
			merged.Severity = rule.Severity
		}
		if rule.Options.Kind != 0 {
			merged.Options = rule.Options
		}
		out.Rules[name] = merged
	}

	if override.Policy.MustTerminate != nil {
		out.Policy.MustTerminate = override.Policy.MustTerminate
	}
	if override.Policy.MustNotTerminate != nil {
		out.Policy.MustNotTerminate = override.Policy.MustNotTerminate
	}
	if override.Policy.CursorEligible != nil {
		out.Policy.CursorEligible = override.Policy.CursorEligible
	}
	if override.Policy.Deprecated != nil {
		out.Policy.Deprecated = override.Policy.Deprecated
	}

	if override.Files.Extensions != nil {
		out.Files.Extensions = override.Files.Extensions
	}
	if override.Files.ExcludeDirs != nil {
		out.Files.ExcludeDirs = override.Files.ExcludeDirs
	}
	if override.Files.MaxFileSize != 0 {
		out.Files.MaxFileSize = override.Files.MaxFileSize
	}
	return out
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

func resolve(fc *fileConfig) (*Config, error) {
	registry := rules.DefaultRegistry()
	cfg := &Config{
		Rules: make(map[string]RuleConfig, len(fc.Rules)),
		Policy: PolicyConfig{
			MustTerminate:    normalizeList(fc.Policy.MustTerminate),
			MustNotTerminate: normalizeList(fc.Policy.MustNotTerminate),
			CursorEligible:   normalizeList(fc.Policy.CursorEligible),
			Deprecated:       normalizeList(fc.Policy.Deprecated),
		},
		Files: FilesConfig{
			Extensions:  normalizeExtensions(fc.Files.Extensions),
			ExcludeDirs: normalizeList(fc.Files.ExcludeDirs),
			MaxFileSize: fc.Files.MaxFileSize,
		},
	}

	for name, fr := range fc.Rules {
		if !registry.Has(name) {
			return nil, fmt.Errorf("rules.%s: %w", name, rules.ErrUnknownRule)
		}
		severity := diag.SeverityOff
		if fr.Severity != "" {
			s, err := diag.ParseSeverity(fr.Severity)
			if err != nil {
				return nil, fmt.Errorf("rules.%s.severity: %w: %v", name, ErrInvalidConfig, err)
			}
			severity = s
		}
		options, err := rules.DecodeOptions(&fr.Options)
		if err != nil {
			return nil, fmt.Errorf("rules.%s.options: %w", name, err)
		}
		cfg.Rules[name] = RuleConfig{Severity: severity, Options: options}
	}
	for _, name := range registry.Names() {
		if _, ok := cfg.Rules[name]; !ok {
			cfg.Rules[name] = RuleConfig{Severity: diag.SeverityOff, Options: rules.DefaultOptions()}
		}
	}

	if err := configValidator.Struct(cfg.Policy); err != nil {
		return nil, fmt.Errorf("policy: %w: %v", ErrInvalidConfig, err)
	}
	if err := configValidator.Struct(cfg.Files); err != nil {
		return nil, fmt.Errorf("files: %w: %v", ErrInvalidConfig, err)
	}
	if _, err := rules.NewPolicy(cfg.PolicySpec()); err != nil {
		return nil, fmt.Errorf("policy: %w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func normalizeList(in []string) []string {
	if in == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func normalizeExtensions(in []string) []string {
	if in == nil {
		return nil
	}
	lower := make([]string, len(in))
	for i, ext := range in {
		lower[i] = strings.ToLower(ext)
	}
	return normalizeList(lower)
}

// =============================================================================
// Accessors
// =============================================================================

// PolicySpec converts the policy lists for rules.NewPolicy.
func (c *Config) PolicySpec() rules.PolicySpec {
	return rules.PolicySpec{
		MustTerminate:    c.Policy.MustTerminate,
		MustNotTerminate: c.Policy.MustNotTerminate,
		CursorEligible:   c.Policy.CursorEligible,
		Deprecated:       c.Policy.Deprecated,
	}
}

// Severity returns the configured severity of a rule. Unknown rules are off.
func (c *Config) Severity(rule string) diag.Severity {
	return c.Rules[rule].Severity
}

// EnabledRules returns the sorted IDs of rules whose severity is not off.
func (c *Config) EnabledRules() []string {
	out := make([]string, 0, len(c.Rules))
	for name, rc := range c.Rules {
		if rc.Severity != diag.SeverityOff {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// WithSeverity returns a copy of c with one rule's severity replaced.
func (c *Config) WithSeverity(rule string, severity diag.Severity) *Config {
	out := *c
	out.Rules = make(map[string]RuleConfig, len(c.Rules))
	for name, rc := range c.Rules {
		out.Rules[name] = rc
	}
	rc := out.Rules[rule]
	rc.Severity = severity
	if rc.Options == (rules.Options{}) {
		rc.Options = rules.DefaultOptions()
	}
	out.Rules[rule] = rc
	return &out
}

// Fingerprint is a SHA256 over the normalized configuration.
func (c *Config) Fingerprint() string {
	data, err := json.Marshal(c)
	if err != nil {
		// Only reachable with an out-of-range Severity.
		data = []byte(fmt.Sprintf("%#v", c))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MatchesExtension reports whether path has a configured extension.
func (f FilesConfig) MatchesExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	i := sort.SearchStrings(f.Extensions, ext)
	return i < len(f.Extensions) && f.Extensions[i] == ext
}

// IsExcludedDir reports whether a directory base name is excluded.
func (f FilesConfig) IsExcludedDir(name string) bool {
	i := sort.SearchStrings(f.ExcludeDirs, name)
	return i < len(f.ExcludeDirs) && f.ExcludeDirs[i] == name
}
