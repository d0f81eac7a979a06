// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/chainlint/services/lint/diag"
	"github.com/AleutianAI/chainlint/services/lint/engine"
)

func sampleRun() *engine.RunResult {
	app := []diag.Diagnostic{
		{RuleID: "mongoose-exec", MessageID: "expected", Message: "Expected exec(), cursor() or stream() to finalize the query.",
			Severity: diag.SeverityError, FilePath: "src/app.js", Location: diag.Location{StartLine: 1, StartCol: 1}},
		{RuleID: "mongoose-deprecated", MessageID: "deprecated", Message: "Method is deprecated.",
			Severity: diag.SeverityWarn, FilePath: "src/app.js", Location: diag.Location{StartLine: 12, StartCol: 3}},
	}
	return &engine.RunResult{
		RunID: "run-1",
		Files: []*engine.FileResult{
			{FilePath: "src/app.js", Diagnostics: app, Counts: diag.Count(app)},
			{FilePath: "src/clean.js", Diagnostics: []diag.Diagnostic{}},
			{FilePath: "src/bad.js", Errors: []string{"lint src/bad.js: invalid content"}},
		},
		Counts:      diag.Counts{Errors: 1, Warnings: 1},
		FailedFiles: 1,
	}
}

func TestNewFormatter(t *testing.T) {
	for _, name := range []string{"stylish", "STYLISH", "", "json"} {
		f, err := NewFormatter(name, Options{})
		require.NoError(t, err, name)
		assert.NotNil(t, f)
	}
	_, err := NewFormatter("junit", Options{})
	assert.ErrorContains(t, err, "junit")
}

func TestStylishFormatter(t *testing.T) {
	f, err := NewFormatter(FormatStylish, Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, sampleRun()))
	out := buf.String()

	want := `
src/app.js
   1:1  error    Expected exec(), cursor() or stream() to finalize the query.  mongoose-exec
  12:3  warning  Method is deprecated.                                         mongoose-deprecated

src/bad.js
  0:0  error  lint src/bad.js: invalid content

✖ 3 problems (2 errors, 1 warning)
`
	assert.Equal(t, want, out)
	assert.NotContains(t, out, "\x1b[", "no ANSI codes without color")
	assert.NotContains(t, out, "clean.js")
}

func TestStylishFormatter_Clean(t *testing.T) {
	f, err := NewFormatter(FormatStylish, Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	run := &engine.RunResult{Files: []*engine.FileResult{{FilePath: "a.js", Diagnostics: []diag.Diagnostic{}}}}
	require.NoError(t, f.Format(&buf, run))
	assert.Empty(t, buf.String())
}

func TestStylishFormatter_BaseDir(t *testing.T) {
	base := t.TempDir()
	abs := filepath.Join(base, "src", "app.js")
	run := &engine.RunResult{Files: []*engine.FileResult{{
		FilePath: abs,
		Diagnostics: []diag.Diagnostic{{RuleID: "r", Message: "m", Severity: diag.SeverityWarn,
			FilePath: abs, Location: diag.Location{StartLine: 1, StartCol: 1}}},
	}}}

	var buf bytes.Buffer
	require.NoError(t, (&StylishFormatter{opts: Options{BaseDir: base}}).Format(&buf, run))
	assert.True(t, strings.HasPrefix(buf.String(), "\nsrc/app.js\n"), buf.String())
	assert.Contains(t, buf.String(), "✖ 1 problem (0 errors, 1 warning)")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(&buf, sampleRun()))

	var decoded struct {
		RunID string `json:"run_id"`
		Files []struct {
			FilePath    string            `json:"file_path"`
			Diagnostics []diag.Diagnostic `json:"diagnostics"`
			Errors      []string          `json:"errors"`
		} `json:"files"`
		Counts      diag.Counts `json:"counts"`
		FailedFiles int         `json:"failed_files"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Files, 3)
	assert.Equal(t, diag.SeverityWarn, decoded.Files[0].Diagnostics[1].Severity)
	assert.Equal(t, diag.Counts{Errors: 1, Warnings: 1}, decoded.Counts)
	assert.Equal(t, 1, decoded.FailedFiles)
	assert.Contains(t, buf.String(), `"severity": "error"`)
}

const sampleDiff = `diff --git a/src/app.js b/src/app.js
index 83db48f..bf269f4 100644
--- a/src/app.js
+++ b/src/app.js
@@ -10,3 +10,4 @@ function load() {
 const a = 1;
-Model.find({}).exec();
+Model.find({});
+Model.remove({});
 return a;
diff --git a/old.js b/old.js
deleted file mode 100644
index 83db48f..0000000
--- a/old.js
+++ /dev/null
@@ -1,1 +0,0 @@
-Model.find({});
`

func TestParseDiff(t *testing.T) {
	f, err := ParseDiff([]byte(sampleDiff))
	require.NoError(t, err)
	assert.Equal(t, 1, f.Files())

	assert.False(t, f.Contains("src/app.js", 10))
	assert.True(t, f.Contains("src/app.js", 11))
	assert.True(t, f.Contains("src/app.js", 12))
	assert.False(t, f.Contains("src/app.js", 13))
	assert.True(t, f.Contains("/home/dev/repo/src/app.js", 12), "absolute paths match by suffix")
	assert.False(t, f.Contains("other/src/app.jsx", 12))
	assert.False(t, f.Contains("old.js", 1))
}

func TestDiffFilter_Apply(t *testing.T) {
	f, err := ParseDiff([]byte(sampleDiff))
	require.NoError(t, err)

	run := sampleRun()
	run.Files[0].Diagnostics[1].Location.StartLine = 12
	f.Apply(run)

	require.Len(t, run.Files[0].Diagnostics, 1)
	assert.Equal(t, "mongoose-deprecated", run.Files[0].Diagnostics[0].RuleID)
	assert.Equal(t, diag.Counts{Warnings: 1}, run.Counts)
	assert.Equal(t, []string{"lint src/bad.js: invalid content"}, run.Files[2].Errors)
}
