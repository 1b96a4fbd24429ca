// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package oracle adapts an external reasoning service to the kelp decision
// contract: submit a structured request, receive a structured decision.
//
// The oracle is a black box beyond this contract. Two capability tiers are
// exposed so the compiler can trade cost against raw reasoning strength:
// a cheaper base tier and a more capable complex tier.
//
// Thread Safety:
//
//	All implementations in this package are safe for concurrent use.
package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/kelp/decision"
)

var (
	// ErrMalformedResponse is returned when the oracle's output cannot be
	// parsed into a decision. Callers treat this as an assertion failure
	// (retry), never a run crash.
	ErrMalformedResponse = errors.New("oracle returned a malformed decision")

	// ErrEmptyResponse is returned when the oracle produced no output.
	ErrEmptyResponse = errors.New("oracle returned no output")
)

// Tier selects between oracle capability levels.
type Tier string

const (
	// TierBase is the cheaper, faster configuration. Sufficient few-shot
	// demonstrations substitute for raw capability.
	TierBase Tier = "base"

	// TierComplex is the more capable, slower configuration, used when
	// little or no guidance is available.
	TierComplex Tier = "complex"
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	return string(t)
}

// Oracle converts a decision request into a decision.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use: independent runs share
// one oracle instance.
type Oracle interface {
	// Decide submits a request at the given tier and returns the oracle's
	// decision.
	//
	// Inputs:
	//   - ctx: Context for cancellation/timeout. Must not be nil.
	//   - tier: The capability tier to use.
	//   - req: The decision request. Must not be nil.
	//
	// Outputs:
	//   - *decision.Decision: The parsed decision. Nil on error.
	//   - error: Non-nil on transport failure or malformed output. Both are
	//     recoverable from the caller's perspective.
	Decide(ctx context.Context, tier Tier, req *decision.Request) (*decision.Decision, error)
}

// Config configures the OpenAI-backed oracle.
type Config struct {
	// BaseModel is the model used for TierBase (e.g., "gpt-4o-mini").
	BaseModel string

	// ComplexModel is the model used for TierComplex (e.g., "gpt-4o").
	ComplexModel string

	// Timeout bounds each oracle call. A timeout is treated like any other
	// call failure and folded into prior-error context by the engine.
	// Default: 30s.
	Timeout time.Duration

	// Temperature controls randomness. Low values keep decisions
	// reproducible. Default: 0.1.
	Temperature float32

	// MaxTokens limits the response length. The decision payload is small
	// JSON, so this stays low. Default: 1024.
	MaxTokens int
}

// DefaultConfig returns sensible defaults for the oracle adapter.
func DefaultConfig() Config {
	return Config{
		BaseModel:    "gpt-4o-mini",
		ComplexModel: "gpt-4o",
		Timeout:      30 * time.Second,
		Temperature:  0.1,
		MaxTokens:    1024,
	}
}
