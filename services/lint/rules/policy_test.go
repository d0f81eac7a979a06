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
)

func TestDefaultPolicy_Classify(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		method string
		want   MethodClass
	}{
		{"find", MethodClass{Category: CategoryMustTerminate, CursorEligible: true}},
		{"findOne", MethodClass{Category: CategoryMustTerminate}},
		{"update", MethodClass{Category: CategoryMustTerminate}},
		{"deleteMany", MethodClass{Category: CategoryMustTerminate}},
		{"geoSearch", MethodClass{Category: CategoryMustTerminate}},
		{"populate", MethodClass{Category: CategoryMustNotTerminate}},
		{"create", MethodClass{Category: CategoryMustNotTerminate}},
		{"aggregate", MethodClass{Category: CategoryIrrelevant}},
		{"exec", MethodClass{Category: CategoryIrrelevant}},
		{"", MethodClass{Category: CategoryIrrelevant}},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Classify(tt.method))
		})
	}
}

func TestDefaultPolicy_Sets(t *testing.T) {
	p := DefaultPolicy()

	mustTerminate := p.Methods(CategoryMustTerminate)
	mustNot := p.Methods(CategoryMustNotTerminate)
	assert.Len(t, mustTerminate, 18)
	assert.Equal(t, []string{"create", "populate"}, mustNot)
	assert.IsIncreasing(t, mustTerminate)

	for _, name := range mustNot {
		assert.NotContains(t, mustTerminate, name)
	}

	for _, name := range []string{"remove", "count", "update"} {
		assert.True(t, p.IsDeprecated(name), name)
	}
	assert.False(t, p.IsDeprecated("find"))
}

func TestNewPolicy_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		spec    PolicySpec
		wantErr string
	}{
		{
			name:    "overlap",
			spec:    PolicySpec{MustTerminate: []string{"find"}, MustNotTerminate: []string{"find"}},
			wantErr: "both must_terminate and must_not_terminate",
		},
		{
			name:    "cursor on unknown method",
			spec:    PolicySpec{MustTerminate: []string{"find"}, CursorEligible: []string{"aggregate"}},
			wantErr: `cursor_eligible method "aggregate"`,
		},
		{
			name:    "cursor on must-not-terminate",
			spec:    PolicySpec{MustNotTerminate: []string{"create"}, CursorEligible: []string{"create"}},
			wantErr: `cursor_eligible method "create"`,
		},
		{
			name:    "empty must_terminate name",
			spec:    PolicySpec{MustTerminate: []string{" "}},
			wantErr: "must_terminate: empty method name",
		},
		{
			name:    "empty deprecated name",
			spec:    PolicySpec{Deprecated: []string{""}},
			wantErr: "deprecated: empty method name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPolicy(tt.spec)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewPolicy_DeprecatedIndependent(t *testing.T) {
	p, err := NewPolicy(PolicySpec{Deprecated: []string{"insert"}})
	require.NoError(t, err)

	assert.True(t, p.IsDeprecated("insert"))
	assert.Equal(t, CategoryIrrelevant, p.Classify("insert").Category)
}

func TestCategory_String(t *testing.T) {
	assert.Equal(t, "irrelevant", CategoryIrrelevant.String())
	assert.Equal(t, "must_terminate", CategoryMustTerminate.String())
	assert.Equal(t, "must_not_terminate", CategoryMustNotTerminate.String())
	assert.Equal(t, "Category(9)", Category(9).String())
}
