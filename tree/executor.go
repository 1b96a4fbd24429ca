// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/kelp/decision"
	"github.com/AleutianAI/kelp/feedback"
	"github.com/AleutianAI/kelp/oracle"
)

// Phase is one state of the validated executor's state machine:
//
//	Attempting → Validating → {Accepted | Retrying → Attempting | Exhausted}
type Phase int32

const (
	// PhaseAttempting means a compiler invocation is in flight.
	PhaseAttempting Phase = iota
	// PhaseValidating means the assertion function is evaluating a decision.
	PhaseValidating
	// PhaseAccepted means a decision passed validation.
	PhaseAccepted
	// PhaseRetrying means a decision failed validation with budget left.
	PhaseRetrying
	// PhaseExhausted means the retry budget ran out without a valid decision.
	PhaseExhausted
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseAttempting:
		return "attempting"
	case PhaseValidating:
		return "validating"
	case PhaseAccepted:
		return "accepted"
	case PhaseRetrying:
		return "retrying"
	case PhaseExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// AssertFunc validates a (request, decision) pair, returning pass/fail and a
// feedback message suitable for the oracle's next attempt.
type AssertFunc func(req *decision.Request, dec *decision.Decision) (bool, string)

// ExecutionResult is the outcome of one validated node visit.
type ExecutionResult struct {
	// Decision is the final decision. On PhaseExhausted it is the last
	// rejected decision with Unresolved set; it must not be executed.
	Decision *decision.Decision

	// Request is the request of the final attempt, retry history included.
	Request *decision.Request

	// Tier is the oracle tier that produced the final decision.
	Tier oracle.Tier

	// Phase is the terminal state machine phase: PhaseAccepted or
	// PhaseExhausted.
	Phase Phase

	// Invocations is the number of oracle calls made. Never exceeds
	// MaxRetries+1.
	Invocations int

	// Feedback is the last validation feedback. Empty on acceptance.
	Feedback string
}

// Executor wraps compiler invocations in a bounded assert-and-retry loop.
//
// The retry history is an explicit list passed by value into each new
// request, so retry depth and side effects stay fully inspectable. Retries
// are a loop, not recursion.
//
// Thread Safety: Executor is safe for concurrent use.
type Executor struct {
	compiler   *feedback.Compiler
	maxRetries int
	logger     *slog.Logger
}

// NewExecutor creates a validated decision executor.
//
// Inputs:
//
//	compiler - The feedback-augmented compiler. Must not be nil.
//	maxRetries - Validation retries after the first attempt. Negative
//	  values are treated as zero.
//	logger - Logger instance. Uses slog.Default() if nil.
func NewExecutor(compiler *feedback.Compiler, maxRetries int, logger *slog.Logger) (*Executor, error) {
	if compiler == nil {
		return nil, ErrNilCompiler
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		compiler:   compiler,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// Execute obtains one validated decision for the request.
//
// Description:
//
//	Each attempt compiles an oracle call with the accumulated
//	(decision, feedback) history attached, then validates the result with
//	the caller's assertion. A compiler error (oracle transport failure or
//	malformed output) counts as a failed attempt with the error text as
//	feedback. After MaxRetries+1 attempts without acceptance the last
//	decision is returned marked Unresolved; callers must treat that as
//	recoverable, not crash the run.
//
// Inputs:
//
//	ctx - Context for cancellation/timeout. Must not be nil.
//	nodeTag - The node's logical name, used for example retrieval.
//	req - The base decision request. Not modified; retry attempts extend a
//	  copy.
//	assert - The validation function. Must not be nil.
//
// Outputs:
//
//	*ExecutionResult - The terminal result (accepted or exhausted).
//	error - ErrNoDecision if the oracle never produced a parseable decision,
//	  or the context error on cancellation.
//
// Thread Safety: This method is safe for concurrent use.
func (e *Executor) Execute(ctx context.Context, nodeTag string, req *decision.Request, assert AssertFunc) (*ExecutionResult, error) {
	if assert == nil {
		return nil, errors.New("assert function must not be nil")
	}

	var (
		history      []decision.Attempt
		lastDecision *decision.Decision
		lastRequest  *decision.Request
		lastTier     oracle.Tier
		lastFeedback string
		invocations  int
	)

	maxAttempts := e.maxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptReq := req.WithAttempts(history)
		compiled, err := e.compiler.Compile(ctx, nodeTag, attemptReq)
		invocations++
		lastRequest = attemptReq
		lastTier = compiled.Tier

		if err != nil {
			lastFeedback = fmt.Sprintf("oracle attempt failed: %v", err)
			e.logger.Warn("Decision attempt failed",
				slog.String("node_tag", nodeTag),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			history = append(history, decision.Attempt{Feedback: lastFeedback})
			continue
		}

		passed, feedbackMsg := assert(attemptReq, compiled.Decision)
		if passed {
			decisionRetries.Observe(float64(invocations))
			return &ExecutionResult{
				Decision:    compiled.Decision,
				Request:     attemptReq,
				Tier:        compiled.Tier,
				Phase:       PhaseAccepted,
				Invocations: invocations,
			}, nil
		}

		lastDecision = compiled.Decision
		lastFeedback = feedbackMsg
		history = append(history, decision.Attempt{
			Decision: compiled.Decision,
			Feedback: feedbackMsg,
		})

		e.logger.Info("Decision rejected",
			slog.String("node_tag", nodeTag),
			slog.Int("attempt", attempt),
			slog.String("tool", compiled.Decision.ToolName),
			slog.String("feedback", feedbackMsg),
		)
	}

	decisionRetries.Observe(float64(invocations))

	if lastDecision == nil {
		return nil, fmt.Errorf("%w after %d attempts: %s", ErrNoDecision, invocations, lastFeedback)
	}

	unresolved := *lastDecision
	unresolved.Unresolved = true

	e.logger.Warn("Decision retries exhausted",
		slog.String("node_tag", nodeTag),
		slog.Int("invocations", invocations),
		slog.String("feedback", lastFeedback),
	)

	return &ExecutionResult{
		Decision:    &unresolved,
		Request:     lastRequest,
		Tier:        lastTier,
		Phase:       PhaseExhausted,
		Invocations: invocations,
		Feedback:    lastFeedback,
	}, nil
}
