// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package feedback retrieves historical decision examples and compiles
// feedback-augmented oracle calls: it decides how to ask the oracle (few-shot
// conditioning, capability tier) before asking it.
//
// Store failures are modeled as explicit outcome states, not errors: the
// "degrade to a direct complex-tier call" path is a normal branch, never an
// error handler, and store unavailability is never fatal to a run.
//
// Thread Safety:
//
//	All types in this package are safe for concurrent use.
package feedback

import (
	"context"

	"github.com/AleutianAI/kelp/decision"
)

// OutcomeState classifies the result of an example-store query.
type OutcomeState int32

const (
	// OutcomeFound means at least one example passed the similarity floor.
	OutcomeFound OutcomeState = iota
	// OutcomeEmpty means the store answered but nothing qualified.
	OutcomeEmpty
	// OutcomeUnavailable means the store could not be reached. The compiler
	// degrades to a direct complex-tier oracle call.
	OutcomeUnavailable
)

// String returns the string representation of the outcome state.
func (s OutcomeState) String() string {
	switch s {
	case OutcomeFound:
		return "found"
	case OutcomeEmpty:
		return "empty"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Outcome is the explicit result of an example-store query.
type Outcome struct {
	// State classifies the result.
	State OutcomeState

	// Examples are the qualifying examples, best first. Empty unless State
	// is OutcomeFound.
	Examples []decision.FeedbackExample

	// Err carries the underlying failure when State is OutcomeUnavailable.
	// Informational only; it is logged, never propagated as a run error.
	Err error
}

// Query describes one example-store lookup.
type Query struct {
	// Text is the free-text description to match semantically.
	Text string

	// NodeTag scopes results to one decision node's logical name.
	NodeTag string

	// Limit caps the number of returned examples.
	Limit int

	// Floor excludes examples whose similarity score falls below it,
	// regardless of how few examples remain.
	Floor float64
}

// ExampleStore retrieves prior decision examples ranked by similarity.
//
// # Thread Safety
//
// Implementations must support concurrent read access: independent runs
// share one store instance.
type ExampleStore interface {
	// Search returns up to query.Limit examples similar to query.Text,
	// preferring superpositive-labeled examples and backfilling with
	// positive ones. Failures surface as OutcomeUnavailable, never as a
	// returned error.
	Search(ctx context.Context, query Query) Outcome
}

// selectExamples applies the quality preference, similarity floor and limit
// to a candidate pool.
//
// Description:
//
//	Superpositive examples are taken first in their given (ranked) order;
//	positive examples backfill only if the superpositive pool is smaller
//	than the limit. Candidates below the floor are excluded outright.
func selectExamples(candidates []decision.FeedbackExample, limit int, floor float64) []decision.FeedbackExample {
	var super, positive []decision.FeedbackExample
	for _, ex := range candidates {
		if ex.Similarity < floor {
			continue
		}
		if ex.Quality == decision.QualitySuperpositive {
			super = append(super, ex)
		} else {
			positive = append(positive, ex)
		}
	}

	selected := super
	if len(selected) < limit {
		selected = append(selected, positive...)
	}
	if len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}
