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
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/chainlint/services/lint/engine"
)

func newRulesCommand() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List rules with their configured severity and messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Context(), configPath)
			if err != nil {
				return runtimeFailure(err)
			}
			linter, err := engine.NewLinter(cfg)
			if err != nil {
				return runtimeFailure(err)
			}
			infos := linter.Rules()

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			_, err = fmt.Fprintln(out, renderRulesTable(infos))
			return err
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default ./"+defaultConfigFile+" when present)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print rule metadata as JSON")
	return cmd
}

// renderRulesTable lays out one row per rule.
func renderRulesTable(infos []engine.RuleInfo) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("RULE", "SEVERITY", "DESCRIPTION", "MESSAGES")
	for _, info := range infos {
		ids := make([]string, 0, len(info.Messages))
		for id := range info.Messages {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		t.Row(info.Name, info.Severity.String(), info.Description, strings.Join(ids, "\n"))
	}
	return t.String()
}
