// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools defines tool (action) descriptors and the node registry the
// kelp engine decides over: per-node candidate sets, availability
// partitioning, input-schema validation, and structural lookahead.
//
// Tool definitions are loaded once at setup and are immutable for a run's
// duration; there is no hot-reload within a single run.
//
// Thread Safety:
//
//	The Registry is safe for concurrent read access after construction.
//	Definitions are treated as immutable.
package tools

import (
	"context"
	"fmt"

	"github.com/AleutianAI/kelp/decision"
)

// AvailabilityFunc reports whether a tool can be selected given the current
// environment. A nil AvailabilityFunc means always available.
//
// The predicate must not panic; panics are recovered by the caller and
// treated as "unavailable" with the panic text as the reason.
type AvailabilityFunc func(env *decision.Environment) (bool, error)

// ExecuteFunc runs the tool with validated inputs against the current
// environment and returns its output.
type ExecuteFunc func(ctx context.Context, inputs map[string]any, env *decision.Environment) (*Result, error)

// Result is a tool's output, merged into the Environment by the engine under
// the tool's name and the declared collection.
type Result struct {
	// Collection is the logical collection the output belongs to.
	// Defaults to "results" when empty.
	Collection string

	// Objects are the payload objects.
	Objects []map[string]any

	// Metadata carries tool-specific context about the objects.
	Metadata map[string]any

	// Text is an optional human-readable rendering of the output. The engine
	// reports the most recent non-empty Text as the run's final output.
	Text string
}

// Definition describes one executable tool: schema, availability check and
// execute function, selected by name at decision time.
type Definition struct {
	// Name is the tool's unique identifier within its node.
	Name string

	// Description explains the tool to the oracle.
	Description string

	// Parameters is the tool's input schema.
	Parameters []decision.ParameterSpec

	// Terminal indicates executing this tool ends the run.
	Terminal bool

	// Required indicates a failure of this tool aborts the run instead of
	// being folded into prior-error context.
	Required bool

	// Available gates selection per iteration. Nil means always available.
	Available AvailabilityFunc

	// Execute runs the tool.
	Execute ExecuteFunc
}

// Spec returns the oracle-facing view of the definition.
func (d *Definition) Spec() decision.ToolSpec {
	return decision.ToolSpec{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Parameters,
		Terminal:    d.Terminal,
	}
}

// NormalizeInputs fills parameter defaults and validates inputs against the
// definition's parameter specs.
//
// Description:
//
//	Produces a new input map: missing optional parameters receive their
//	declared defaults, then every field is checked. Unknown fields, missing
//	required fields, and type mismatches each fail with a field-specific
//	message suitable as retry feedback for the oracle.
//
// Inputs:
//
//	inputs - The raw inputs from a decision. May be nil.
//
// Outputs:
//
//	map[string]any - The normalized inputs. Nil on error.
//	error - Non-nil with a field-specific message if validation fails.
func (d *Definition) NormalizeInputs(inputs map[string]any) (map[string]any, error) {
	specs := make(map[string]decision.ParameterSpec, len(d.Parameters))
	for _, p := range d.Parameters {
		specs[p.Name] = p
	}

	normalized := make(map[string]any, len(d.Parameters))
	for name, value := range inputs {
		spec, ok := specs[name]
		if !ok {
			return nil, fmt.Errorf("tool %s: unknown field %q", d.Name, name)
		}
		if err := checkType(spec, value); err != nil {
			return nil, fmt.Errorf("tool %s: field %q: %w", d.Name, name, err)
		}
		normalized[name] = value
	}

	for _, p := range d.Parameters {
		if _, ok := normalized[p.Name]; ok {
			continue
		}
		if p.Default != nil {
			normalized[p.Name] = p.Default
			continue
		}
		if p.Required {
			return nil, fmt.Errorf("tool %s: missing required field %q", d.Name, p.Name)
		}
	}

	return normalized, nil
}

// checkType validates a single input value against its parameter spec.
//
// JSON decoding yields float64 for all numbers, so "int" accepts integral
// float64 values.
func checkType(spec decision.ParameterSpec, value any) error {
	if value == nil {
		if spec.Required {
			return fmt.Errorf("expected %s, got null", spec.Type)
		}
		return nil
	}

	switch spec.Type {
	case "", "any":
		return nil
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "bool":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
	case "int":
		switch v := value.(type) {
		case int, int32, int64:
		case float64:
			if v != float64(int64(v)) {
				return fmt.Errorf("expected int, got fractional number %v", v)
			}
		default:
			return fmt.Errorf("expected int, got %T", value)
		}
	case "float":
		switch value.(type) {
		case float32, float64, int, int32, int64:
		default:
			return fmt.Errorf("expected float, got %T", value)
		}
	case "list":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("expected list, got %T", value)
		}
	case "map":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("expected map, got %T", value)
		}
	default:
		return fmt.Errorf("unsupported parameter type %q", spec.Type)
	}
	return nil
}
