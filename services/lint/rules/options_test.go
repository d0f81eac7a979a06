// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func yamlNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		return doc.Content[0]
	}
	return &doc
}

func TestDecodeOptions(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    int
		wantErr bool
	}{
		{name: "explicit", src: "ignoreChainWithDepth: 5", want: 5},
		{name: "lower bound", src: "ignoreChainWithDepth: 1", want: 1},
		{name: "upper bound", src: "ignoreChainWithDepth: 10", want: 10},
		{name: "empty mapping", src: "{}", want: DefaultIgnoreChainWithDepth},
		{name: "zero", src: "ignoreChainWithDepth: 0", wantErr: true},
		{name: "too deep", src: "ignoreChainWithDepth: 11", wantErr: true},
		{name: "not a number", src: "ignoreChainWithDepth: deep", wantErr: true},
		{name: "unknown key", src: "ignoreChainWithDepth: 2\nstrict: true", wantErr: true},
		{name: "not a mapping", src: "- 1\n- 2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := DecodeOptions(yamlNode(t, tt.src))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOptions)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts.IgnoreChainWithDepth)
		})
	}
}

func TestDecodeOptions_Nil(t *testing.T) {
	opts, err := DecodeOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)

	opts, err = DecodeOptions(&yaml.Node{})
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)
}

func TestOptions_Validate_NamesField(t *testing.T) {
	err := Options{IgnoreChainWithDepth: 42}.Validate()
	require.ErrorIs(t, err, ErrInvalidOptions)
	assert.Contains(t, err.Error(), "ignoreChainWithDepth must be <= 10")
}
