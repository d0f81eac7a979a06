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
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidOptions indicates rule options that fail the option schema.
var ErrInvalidOptions = errors.New("invalid rule options")

// DefaultIgnoreChainWithDepth is the schema default for IgnoreChainWithDepth.
const DefaultIgnoreChainWithDepth = 2

// Options is the option schema shared by the model rules.
//
// IgnoreChainWithDepth is accepted and validated for compatibility with
// existing configurations. No rule reads it.
type Options struct {
	IgnoreChainWithDepth int `yaml:"ignoreChainWithDepth" json:"ignoreChainWithDepth" validate:"min=1,max=10"`
}

// DefaultOptions returns the schema defaults.
func DefaultOptions() Options {
	return Options{IgnoreChainWithDepth: DefaultIgnoreChainWithDepth}
}

var optionsValidator = newOptionsValidator()

func newOptionsValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the options against the schema.
func (o Options) Validate() error {
	err := optionsValidator.Struct(o)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s, got %v", fe.Field(), fe.Param(), fe.Value()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be <= %s, got %v", fe.Field(), fe.Param(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(msgs, "; "))
}

// DecodeOptions decodes a YAML options mapping over the defaults.
//
// Description:
//
//	Unknown keys are rejected, matching a schema with additional properties
//	disallowed. A nil or empty node yields DefaultOptions.
//
// Outputs:
//
//	Options - The decoded, validated options.
//	error   - ErrInvalidOptions (wrapped) for unknown keys, wrong types or
//	          out-of-range values.
func DecodeOptions(node *yaml.Node) (Options, error) {
	opts := DefaultOptions()
	if node == nil || node.Kind == 0 {
		return opts, nil
	}
	if node.Kind != yaml.MappingNode {
		return opts, fmt.Errorf("%w: options must be a mapping", ErrInvalidOptions)
	}

	raw, err := yaml.Marshal(node)
	if err != nil {
		return opts, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}
