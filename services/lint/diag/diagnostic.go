// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diag holds the value types reported by the lint engine.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/chainlint/services/lint/ast"
)

// =============================================================================
// Severity
// =============================================================================

// Severity is how a rule's findings are reported.
type Severity uint8

const (
	// SeverityOff disables a rule.
	SeverityOff Severity = iota

	// SeverityWarn reports findings without failing a run.
	SeverityWarn

	// SeverityError reports findings and fails a run.
	SeverityError
)

var severityNames = [...]string{"off", "warn", "error"}

// String returns the configuration spelling of the severity.
func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("Severity(%d)", uint8(s))
}

// ParseSeverity accepts off/warn/error, the numeric forms 0/1/2 and "warning".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "0":
		return SeverityOff, nil
	case "warn", "warning", "1":
		return SeverityWarn, nil
	case "error", "2":
		return SeverityError, nil
	}
	return SeverityOff, fmt.Errorf("invalid severity %q: want off, warn or error", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if int(s) >= len(severityNames) {
		return nil, fmt.Errorf("invalid severity %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// =============================================================================
// Diagnostic
// =============================================================================

// Location is a 1-based source span.
type Location = ast.Location

// Diagnostic is one reported rule violation.
type Diagnostic struct {
	RuleID    string   `json:"rule_id"`
	MessageID string   `json:"message_id"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	FilePath  string   `json:"file_path"`
	Location  Location `json:"location"`
}

// String renders the diagnostic as file:line:col: severity message (rule).
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s %s (%s)",
		d.FilePath, d.Location.StartLine, d.Location.StartCol, d.Severity, d.Message, d.RuleID)
}

// Sort orders diagnostics by file, position, rule and message ID.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Location.StartLine != b.Location.StartLine {
			return a.Location.StartLine < b.Location.StartLine
		}
		if a.Location.StartCol != b.Location.StartCol {
			return a.Location.StartCol < b.Location.StartCol
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.MessageID < b.MessageID
	})
}

// Counts tallies diagnostics by severity.
type Counts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.Errors += other.Errors
	c.Warnings += other.Warnings
}

// Count tallies ds.
func Count(ds []Diagnostic) Counts {
	var c Counts
	for _, d := range ds {
		switch d.Severity {
		case SeverityError:
			c.Errors++
		case SeverityWarn:
			c.Warnings++
		}
	}
	return c
}
