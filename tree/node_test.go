// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tree

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/kelp/decision"
	"github.com/AleutianAI/kelp/tools"
)

func searchNode() *tools.Node {
	return &tools.Node{
		ID:          "research",
		Instruction: "Gather material for the task.",
		Tools: []*tools.Definition{
			{
				Name:        "search",
				Description: "Semantic search",
				Parameters: []decision.ParameterSpec{
					{Name: "query", Type: "string", Required: true},
					{Name: "limit", Type: "int", Default: float64(10)},
				},
				Execute: func(ctx context.Context, inputs map[string]any, env *decision.Environment) (*tools.Result, error) {
					return &tools.Result{}, nil
				},
			},
			{
				Name:        "summarize",
				Description: "Summarize accumulated results",
				Execute: func(ctx context.Context, inputs map[string]any, env *decision.Environment) (*tools.Result, error) {
					return &tools.Result{}, nil
				},
			},
		},
	}
}

func TestDecideBuildsRequestFromState(t *testing.T) {
	node := searchNode()

	orc := &scriptedOracle{fn: func(call int, req *decision.Request) (*decision.Decision, error) {
		return &decision.Decision{ToolName: "search", Inputs: map[string]any{"query": "kelp"}}, nil
	}}
	ex, err := NewExecutor(testCompiler(t, orc), 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	dn := NewDecisionNode(node, ex, nil)

	st := NewState("run-1", "find kelp papers", "research", 5)
	st.Iteration = 3
	st.Environment.Append("search", "results", decision.Entry{Objects: []map[string]any{{}}})
	st.AddPriorError("research", "tool search failed: timeout")

	candidates := tools.Partition(node, st.Environment)
	res, err := dn.Decide(context.Background(), st, candidates, decision.LookaheadMap{"search": {}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Phase != PhaseAccepted {
		t.Fatalf("phase: got %s", res.Phase)
	}

	req := orc.request(0)
	if req.Task != "find kelp papers" {
		t.Errorf("task: got %q", req.Task)
	}
	if req.Instruction != "Gather material for the task." {
		t.Errorf("instruction: got %q", req.Instruction)
	}
	if req.TreeCount != "3/5" {
		t.Errorf("tree count: got %q", req.TreeCount)
	}
	if len(req.Available) != 2 {
		t.Errorf("available: got %d", len(req.Available))
	}
	if len(req.PriorErrors) != 1 || !strings.Contains(req.PriorErrors[0], "timeout") {
		t.Errorf("prior errors: got %v", req.PriorErrors)
	}
	if len(req.EnvironmentSummary) != 1 {
		t.Errorf("environment summary: got %v", req.EnvironmentSummary)
	}
	if len(req.Lookahead) != 1 {
		t.Errorf("lookahead: got %v", req.Lookahead)
	}
}

func TestDecideRejectsUnavailableTool(t *testing.T) {
	node := searchNode()

	orc := &scriptedOracle{fn: func(call int, req *decision.Request) (*decision.Decision, error) {
		if call == 0 {
			return &decision.Decision{ToolName: "fabricated"}, nil
		}
		return &decision.Decision{ToolName: "summarize"}, nil
	}}
	ex, err := NewExecutor(testCompiler(t, orc), 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	dn := NewDecisionNode(node, ex, nil)

	st := NewState("run-1", "task", "research", 5)
	candidates := tools.Partition(node, st.Environment)

	res, err := dn.Decide(context.Background(), st, candidates, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision.ToolName != "summarize" {
		t.Errorf("got %q", res.Decision.ToolName)
	}

	feedbackMsg := orc.request(1).Attempts[0].Feedback
	if !strings.Contains(feedbackMsg, `"fabricated"`) {
		t.Errorf("feedback should name the bad tool: %q", feedbackMsg)
	}
	if !strings.Contains(feedbackMsg, "must choose from [search, summarize]") {
		t.Errorf("feedback should list the available set: %q", feedbackMsg)
	}
}

func TestDecideRejectsInvalidInputs(t *testing.T) {
	node := searchNode()

	orc := &scriptedOracle{fn: func(call int, req *decision.Request) (*decision.Decision, error) {
		if call == 0 {
			return &decision.Decision{ToolName: "search", Inputs: map[string]any{"q": "kelp"}}, nil
		}
		return &decision.Decision{ToolName: "search", Inputs: map[string]any{"query": "kelp"}}, nil
	}}
	ex, err := NewExecutor(testCompiler(t, orc), 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	dn := NewDecisionNode(node, ex, nil)

	st := NewState("run-1", "task", "research", 5)
	candidates := tools.Partition(node, st.Environment)

	res, err := dn.Decide(context.Background(), st, candidates, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Invocations != 2 {
		t.Errorf("invocations: got %d", res.Invocations)
	}

	feedbackMsg := orc.request(1).Attempts[0].Feedback
	if !strings.Contains(feedbackMsg, `unknown field "q"`) {
		t.Errorf("feedback: got %q", feedbackMsg)
	}

	// Accepted inputs are normalized: the declared default is filled in.
	if res.Decision.Inputs["limit"] != float64(10) {
		t.Errorf("default not applied: %v", res.Decision.Inputs)
	}
}

func TestDecideNoAvailableTools(t *testing.T) {
	node := searchNode()
	for _, d := range node.Tools {
		d.Available = func(env *decision.Environment) (bool, error) {
			return false, nil
		}
	}

	orc := &scriptedOracle{fn: func(call int, req *decision.Request) (*decision.Decision, error) {
		t.Fatal("oracle must not be called with an empty available set")
		return nil, nil
	}}
	ex, err := NewExecutor(testCompiler(t, orc), 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	dn := NewDecisionNode(node, ex, nil)

	st := NewState("run-1", "task", "research", 5)
	candidates := tools.Partition(node, st.Environment)

	_, err = dn.Decide(context.Background(), st, candidates, nil)
	if !errors.Is(err, ErrNoAvailableTools) {
		t.Errorf("got %v", err)
	}
}

func TestDecideEmptyToolName(t *testing.T) {
	dn := NewDecisionNode(searchNode(), nil, nil)
	passed, msg := dn.assertDecision(
		&decision.Request{Available: []decision.ToolSpec{{Name: "search"}}},
		&decision.Decision{},
	)
	if passed {
		t.Fatal("empty tool name must fail validation")
	}
	if !strings.Contains(msg, "no tool chosen") {
		t.Errorf("got %q", msg)
	}
}
