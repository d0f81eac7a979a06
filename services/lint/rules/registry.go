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
	"sync"
)

// Factory builds a rule from a policy and validated options.
type Factory func(policy *Policy, options Options) Rule

// Registry maps rule IDs to factories.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with mongoose-exec and mongoose-deprecated.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.mustRegister(ExecRuleName, func(p *Policy, o Options) Rule { return NewExecRule(p, o) })
	r.mustRegister(DeprecatedRuleName, func(p *Policy, o Options) Rule { return NewDeprecatedRule(p, o) })
	return r
}

// Register adds a factory under name. Names must be unique.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("rule %q: factory must not be nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("rule %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

func (r *Registry) mustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Names returns the registered rule IDs in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Build validates options and instantiates the named rule.
func (r *Registry) Build(name string, policy *Policy, options Options) (Rule, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRule, name)
	}
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("rule %s: %w", name, err)
	}
	return factory(policy, options), nil
}
