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
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Method Categories
// =============================================================================

// Category is the terminator policy for a method name.
type Category uint8

const (
	// CategoryIrrelevant methods are never reported.
	CategoryIrrelevant Category = iota

	// CategoryMustTerminate methods build a query that needs exec() or a
	// cursor/stream terminator.
	CategoryMustTerminate

	// CategoryMustNotTerminate methods already return a final value; exec()
	// on them is redundant.
	CategoryMustNotTerminate
)

// String returns the configuration name of the category.
func (c Category) String() string {
	switch c {
	case CategoryIrrelevant:
		return "irrelevant"
	case CategoryMustTerminate:
		return "must_terminate"
	case CategoryMustNotTerminate:
		return "must_not_terminate"
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// MethodClass is a method's resolved policy.
type MethodClass struct {
	Category Category

	// CursorEligible is only ever true for CategoryMustTerminate methods.
	CursorEligible bool
}

// =============================================================================
// Policy
// =============================================================================

// PolicySpec lists the method names of each policy set.
type PolicySpec struct {
	MustTerminate    []string
	MustNotTerminate []string
	CursorEligible   []string
	Deprecated       []string
}

// DefaultPolicySpec returns the built-in Mongoose method sets.
func DefaultPolicySpec() PolicySpec {
	return PolicySpec{
		MustTerminate: []string{
			"update", "updateOne", "updateMany",
			"count", "countDocuments", "distinct",
			"find", "findById", "findByIdAndRemove", "findByIdAndUpdate",
			"findOne", "findOneAndRemove", "findOneAndUpdate",
			"geoNear", "geoSearch",
			"remove", "deleteOne", "deleteMany",
		},
		MustNotTerminate: []string{"populate", "create"},
		CursorEligible:   []string{"find"},
		Deprecated:       []string{"remove", "count", "update"},
	}
}

// Policy resolves method names to their MethodClass.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Policy struct {
	classes    map[string]MethodClass
	deprecated map[string]struct{}
}

// NewPolicy validates a PolicySpec and indexes it.
//
// Description:
//
//	The must-terminate and must-not-terminate sets must be disjoint and
//	every cursor-eligible method must be must-terminate. The deprecated set
//	is independent of the other three.
//
// Outputs:
//
//	*Policy - The indexed policy.
//	error   - Names the first conflicting or empty method name.
func NewPolicy(spec PolicySpec) (*Policy, error) {
	p := &Policy{
		classes:    make(map[string]MethodClass, len(spec.MustTerminate)+len(spec.MustNotTerminate)),
		deprecated: make(map[string]struct{}, len(spec.Deprecated)),
	}

	for _, name := range spec.MustTerminate {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("must_terminate: empty method name")
		}
		p.classes[name] = MethodClass{Category: CategoryMustTerminate}
	}
	for _, name := range spec.MustNotTerminate {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("must_not_terminate: empty method name")
		}
		if existing, ok := p.classes[name]; ok && existing.Category == CategoryMustTerminate {
			return nil, fmt.Errorf("method %q is both must_terminate and must_not_terminate", name)
		}
		p.classes[name] = MethodClass{Category: CategoryMustNotTerminate}
	}
	for _, name := range spec.CursorEligible {
		class, ok := p.classes[name]
		if !ok || class.Category != CategoryMustTerminate {
			return nil, fmt.Errorf("cursor_eligible method %q is not must_terminate", name)
		}
		class.CursorEligible = true
		p.classes[name] = class
	}
	for _, name := range spec.Deprecated {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("deprecated: empty method name")
		}
		p.deprecated[name] = struct{}{}
	}

	return p, nil
}

// DefaultPolicy returns the policy built from DefaultPolicySpec.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultPolicySpec())
	if err != nil {
		panic(fmt.Sprintf("default policy is invalid: %v", err))
	}
	return p
}

// Classify returns the MethodClass for a method name. Unknown names are
// CategoryIrrelevant.
func (p *Policy) Classify(method string) MethodClass {
	return p.classes[method]
}

// IsDeprecated reports whether a method name is in the deprecated set.
func (p *Policy) IsDeprecated(method string) bool {
	_, ok := p.deprecated[method]
	return ok
}

// Methods returns the sorted method names in a category.
func (p *Policy) Methods(c Category) []string {
	var out []string
	for name, class := range p.classes {
		if class.Category == c {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
