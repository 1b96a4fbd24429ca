// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/kelp/decision"
)

// CandidateSet partitions a node's tools into those selectable this
// iteration and those not, with reasons. Availability may depend on mutable
// environment state, so the set is recomputed every iteration.
type CandidateSet struct {
	// Available holds the selectable tools with full schemas.
	Available []*Definition

	// Unavailable holds the tools that cannot be selected, with reasons.
	Unavailable []decision.UnavailableTool
}

// AvailableSpecs returns oracle-facing specs for the available tools.
func (c *CandidateSet) AvailableSpecs() []decision.ToolSpec {
	specs := make([]decision.ToolSpec, 0, len(c.Available))
	for _, d := range c.Available {
		specs = append(specs, d.Spec())
	}
	return specs
}

// Partition evaluates every tool's availability predicate against the
// current environment.
//
// Description:
//
//	A nil predicate means always available. A predicate that returns an
//	error, or panics, marks the tool unavailable with the error text as the
//	reason, so a broken predicate can never make its tool selectable.
//
// Inputs:
//
//	node - The node whose tools are partitioned.
//	env - The current environment.
//
// Outputs:
//
//	CandidateSet - The partition, in registration order.
func Partition(node *Node, env *decision.Environment) CandidateSet {
	var set CandidateSet
	for _, d := range node.Tools {
		ok, reason := evaluateAvailability(d, env)
		if ok {
			set.Available = append(set.Available, d)
			continue
		}
		set.Unavailable = append(set.Unavailable, decision.UnavailableTool{
			Name:   d.Name,
			Reason: reason,
		})
	}
	return set
}

// evaluateAvailability runs one availability predicate, recovering panics.
func evaluateAvailability(d *Definition, env *decision.Environment) (available bool, reason string) {
	if d.Available == nil {
		return true, ""
	}

	defer func() {
		if r := recover(); r != nil {
			available = false
			reason = fmt.Sprintf("availability check panicked: %v", r)
			slog.Warn("Tool availability predicate panicked",
				slog.String("tool", d.Name),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	ok, err := d.Available(env)
	if err != nil {
		return false, fmt.Sprintf("availability check failed: %v", err)
	}
	if !ok {
		return false, "not available in current state"
	}
	return true, ""
}
