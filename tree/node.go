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
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/kelp/decision"
	"github.com/AleutianAI/kelp/tools"
)

// DecisionNode asks the oracle which tool to run at one tree location.
//
// The node is stateless between calls: every visit rebuilds the request from
// the current run state, candidate partition and lookahead, so availability
// shifts and prior errors are always reflected.
type DecisionNode struct {
	node     *tools.Node
	executor *Executor
	logger   *slog.Logger
}

// NewDecisionNode wraps a registry node with a validated executor.
func NewDecisionNode(node *tools.Node, executor *Executor, logger *slog.Logger) *DecisionNode {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionNode{
		node:     node,
		executor: executor,
		logger:   logger,
	}
}

// Decide obtains one validated decision for the current iteration.
//
// Description:
//
//	Builds the oracle request from the run state, the availability partition
//	and the structural lookahead, then hands it to the executor. Validation
//	asserts the chosen tool is in the available set and that its inputs
//	normalize against the tool's parameter specs; normalized inputs replace
//	the raw ones on acceptance.
//
// Inputs:
//
//	ctx - Context for cancellation/timeout. Must not be nil.
//	st - The run state. Must not be nil.
//	candidates - The availability partition for this iteration.
//	lookahead - The structural preview for this node.
//
// Outputs:
//
//	*ExecutionResult - The validated decision (accepted or exhausted).
//	error - ErrNoAvailableTools when nothing is selectable, ErrNoDecision
//	  when the oracle never produced a parseable decision, or a context
//	  error.
func (n *DecisionNode) Decide(ctx context.Context, st *State, candidates tools.CandidateSet, lookahead decision.LookaheadMap) (*ExecutionResult, error) {
	if len(candidates.Available) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAvailableTools, n.node.ID)
	}

	req := n.buildRequest(st, candidates, lookahead)
	return n.executor.Execute(ctx, n.node.ID, req, n.assertDecision)
}

// buildRequest assembles the oracle request for one node visit.
func (n *DecisionNode) buildRequest(st *State, candidates tools.CandidateSet, lookahead decision.LookaheadMap) *decision.Request {
	return &decision.Request{
		Task:               st.Task,
		Instruction:        n.node.Instruction,
		TreeCount:          fmt.Sprintf("%d/%d", st.Iteration, st.MaxIterations),
		Available:          candidates.AvailableSpecs(),
		Unavailable:        candidates.Unavailable,
		Lookahead:          lookahead,
		PriorErrors:        st.PriorErrors(n.node.ID),
		EnvironmentSummary: st.Environment.Summary(),
	}
}

// assertDecision validates a decision against the request's available set and
// the chosen tool's parameter specs.
func (n *DecisionNode) assertDecision(req *decision.Request, dec *decision.Decision) (bool, string) {
	if dec.ToolName == "" {
		return false, fmt.Sprintf("no tool chosen; must choose from [%s]",
			strings.Join(req.AvailableNames(), ", "))
	}
	if _, ok := req.FindAvailable(dec.ToolName); !ok {
		return false, fmt.Sprintf("tool %q is not available; must choose from [%s]",
			dec.ToolName, strings.Join(req.AvailableNames(), ", "))
	}

	def, ok := n.node.Tool(dec.ToolName)
	if !ok {
		// Available set is derived from node.Tools, so this only fires if the
		// node mutated mid-visit.
		return false, fmt.Sprintf("tool %q is not registered at node %s", dec.ToolName, n.node.ID)
	}

	normalized, err := def.NormalizeInputs(dec.Inputs)
	if err != nil {
		return false, fmt.Sprintf("invalid inputs for %q: %v", dec.ToolName, err)
	}
	dec.Inputs = normalized
	return true, ""
}
