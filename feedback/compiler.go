// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package feedback

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/kelp/decision"
	"github.com/AleutianAI/kelp/oracle"
)

var compilerTracer = otel.Tracer("kelp.feedback.compiler")

// CompilerConfig tunes example retrieval and tier selection.
//
// The example count and tier threshold were fixed constants in earlier
// iterations of this design; they are deliberately tunable here.
type CompilerConfig struct {
	// ExampleCount is the maximum few-shot examples to retrieve.
	// Default: 10.
	ExampleCount int

	// TierThreshold is the minimum example count for the base tier. Fewer
	// examples than this force the complex tier: sparse evidence needs
	// stronger raw reasoning. Default: 3.
	TierThreshold int

	// SimilarityFloor excludes examples scoring below it, regardless of
	// count. Default: 0.5.
	SimilarityFloor float64
}

// DefaultCompilerConfig returns sensible defaults.
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		ExampleCount:    10,
		TierThreshold:   3,
		SimilarityFloor: 0.5,
	}
}

// Compiled is the result of one compiled oracle call.
type Compiled struct {
	// Decision is the oracle's output. Nil when Err is non-nil.
	Decision *decision.Decision

	// Tier is the tier the oracle was invoked at.
	Tier oracle.Tier

	// Examples is the number of few-shot examples attached.
	Examples int

	// StoreState is the example-store outcome that shaped the call.
	StoreState OutcomeState
}

// Compiler orchestrates example retrieval and tier selection, then asks the
// oracle.
//
// Thread Safety: Compiler is safe for concurrent use.
type Compiler struct {
	oracle oracle.Oracle
	store  ExampleStore
	config CompilerConfig
	logger *slog.Logger
}

// NewCompiler creates a feedback-augmented decision compiler.
//
// Inputs:
//
//	orc - The oracle adapter. Must not be nil.
//	store - The example store. May be nil: compilation then always degrades
//	  to direct complex-tier calls.
//	cfg - Compiler configuration. Zero fields take defaults.
//	logger - Logger instance. Uses slog.Default() if nil.
//
// Outputs:
//
//	*Compiler - The configured compiler.
//	error - Non-nil if orc is nil.
func NewCompiler(orc oracle.Oracle, store ExampleStore, cfg CompilerConfig, logger *slog.Logger) (*Compiler, error) {
	if orc == nil {
		return nil, errors.New("oracle must not be nil")
	}

	defaults := DefaultCompilerConfig()
	if cfg.ExampleCount <= 0 {
		cfg.ExampleCount = defaults.ExampleCount
	}
	if cfg.TierThreshold <= 0 {
		cfg.TierThreshold = defaults.TierThreshold
	}
	if cfg.SimilarityFloor <= 0 {
		cfg.SimilarityFloor = defaults.SimilarityFloor
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Compiler{
		oracle: orc,
		store:  store,
		config: cfg,
		logger: logger,
	}, nil
}

// Compile produces one decision for the given request.
//
// Description:
//
//	Queries the example store for decisions similar to the task, scoped to
//	the node tag. Store unavailability and empty results are normal
//	branches: the oracle is called directly at the complex tier with no
//	conditioning. When examples are found, they are attached as few-shot
//	demonstrations and the tier is chosen by example count: below the
//	threshold the complex tier compensates for sparse evidence, at or above
//	it the cheaper base tier suffices.
//
// Inputs:
//
//	ctx - Context for cancellation/timeout. Must not be nil.
//	nodeTag - The decision node's logical name, used to scope retrieval.
//	req - The decision request. Must not be nil.
//
// Outputs:
//
//	*Compiled - The decision with tier and conditioning metadata. The
//	  Compiled envelope is returned even when the oracle errored, so callers
//	  can attribute the failure to a tier.
//	error - Non-nil only for oracle failures (transport, timeout, malformed
//	  output). Store failures never surface here.
//
// Thread Safety: This method is safe for concurrent use.
func (c *Compiler) Compile(ctx context.Context, nodeTag string, req *decision.Request) (*Compiled, error) {
	ctx, span := compilerTracer.Start(ctx, "compiler.Compile")
	defer span.End()

	outcome := c.retrieve(ctx, nodeTag, req)
	storeOutcomes.WithLabelValues(outcome.State.String()).Inc()

	tier, reason := c.selectTier(outcome)
	tierSelections.WithLabelValues(tier.String(), reason).Inc()
	examplesRetrieved.Observe(float64(len(outcome.Examples)))

	span.SetAttributes(
		attribute.String("node_tag", nodeTag),
		attribute.String("store_state", outcome.State.String()),
		attribute.String("tier", tier.String()),
		attribute.Int("examples", len(outcome.Examples)),
	)

	conditioned := req
	if outcome.State == OutcomeFound {
		conditioned = req.WithExamples(outcome.Examples)
	}

	c.logger.Debug("Compiled oracle call",
		slog.String("node_tag", nodeTag),
		slog.String("tier", tier.String()),
		slog.String("tier_reason", reason),
		slog.Int("examples", len(outcome.Examples)),
	)

	dec, err := c.oracle.Decide(ctx, tier, conditioned)
	compiled := &Compiled{
		Decision:   dec,
		Tier:       tier,
		Examples:   len(outcome.Examples),
		StoreState: outcome.State,
	}
	if err != nil {
		span.RecordError(err)
		return compiled, err
	}
	return compiled, nil
}

// retrieve queries the example store, degrading to OutcomeUnavailable when
// no store is configured.
func (c *Compiler) retrieve(ctx context.Context, nodeTag string, req *decision.Request) Outcome {
	if c.store == nil {
		return Outcome{State: OutcomeUnavailable, Err: errors.New("no example store configured")}
	}
	return c.store.Search(ctx, Query{
		Text:    req.Task,
		NodeTag: nodeTag,
		Limit:   c.config.ExampleCount,
		Floor:   c.config.SimilarityFloor,
	})
}

// selectTier maps a store outcome to an oracle tier with a reason label.
func (c *Compiler) selectTier(outcome Outcome) (oracle.Tier, string) {
	switch outcome.State {
	case OutcomeUnavailable:
		return oracle.TierComplex, "store_unavailable"
	case OutcomeEmpty:
		return oracle.TierComplex, "no_examples"
	}
	if len(outcome.Examples) < c.config.TierThreshold {
		return oracle.TierComplex, "sparse_examples"
	}
	return oracle.TierBase, "conditioned"
}
