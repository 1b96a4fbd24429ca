// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tree drives the iterate-decide-execute-accumulate loop: the engine
// owns the Environment and training-record log, the decision node builds
// oracle requests per location, and the validated executor wraps each
// compiled oracle call in a bounded assert-and-retry state machine.
//
// Within one run execution is strictly sequential; each decision depends on
// the environment mutated by the previous tool. Independent runs share no
// mutable state and may execute concurrently.
package tree

import (
	"errors"

	"github.com/AleutianAI/kelp/decision"
)

var (
	// ErrNilCompiler is returned when an engine is built without a compiler.
	ErrNilCompiler = errors.New("compiler must not be nil")

	// ErrNoDecision is returned when the oracle never produced a parseable
	// decision within the retry budget.
	ErrNoDecision = errors.New("oracle produced no decision")

	// ErrNoAvailableTools is returned when every tool at a node is
	// unavailable for the current iteration.
	ErrNoAvailableTools = errors.New("no tools available at node")

	// ErrRequiredToolFailed is returned when a tool flagged required or
	// terminal fails to execute; this aborts the run.
	ErrRequiredToolFailed = errors.New("required tool failed")
)

// TerminationReason explains why a run ended.
type TerminationReason string

const (
	// TerminationEndOfTask means the oracle signalled the goal was reached.
	TerminationEndOfTask TerminationReason = "end_of_task"

	// TerminationTerminalTool means a terminal-flagged tool executed.
	TerminationTerminalTool TerminationReason = "terminal_tool"

	// TerminationLimitReached means the recursion limit was hit. This is a
	// normal termination, not an error; the run still returns best-effort
	// output.
	TerminationLimitReached TerminationReason = "limit_reached"

	// TerminationCanceled means the context was cancelled mid-run.
	TerminationCanceled TerminationReason = "canceled"

	// TerminationError means an unrecoverable error (required tool failure)
	// stopped the run.
	TerminationError TerminationReason = "error"
)

// RunResult is the outcome of one engine run.
type RunResult struct {
	// RunID identifies the run.
	RunID string

	// Termination explains why the run ended.
	Termination TerminationReason

	// Output is the most recent human-readable tool output, best-effort.
	Output string

	// Iterations is the number of decisions made.
	Iterations int

	// Environment is the accumulated result state.
	Environment *decision.Environment

	// Records are the training records appended during the run.
	Records []decision.TrainingRecord
}

// State tracks one run's position in the tree. It is owned by the engine and
// mutated only between iterations; decision nodes read it.
type State struct {
	// RunID identifies the run.
	RunID string

	// Task is the user's overall goal.
	Task string

	// NodeID is the current decision node.
	NodeID string

	// Iteration is the 1-based decision counter.
	Iteration int

	// MaxIterations is the recursion limit for this run.
	MaxIterations int

	// Terminal is set once a stopping condition is met.
	Terminal bool

	// Environment is the run's accumulated result state.
	Environment *decision.Environment

	priorErrors map[string][]string
	records     []decision.TrainingRecord
}

// NewState creates run state positioned at the root node.
func NewState(runID, task, rootID string, maxIterations int) *State {
	return &State{
		RunID:         runID,
		Task:          task,
		NodeID:        rootID,
		Iteration:     1,
		MaxIterations: maxIterations,
		Environment:   decision.NewEnvironment(),
		priorErrors:   make(map[string][]string),
	}
}

// PriorErrors returns a copy of the accumulated error context for a node.
func (s *State) PriorErrors(nodeID string) []string {
	errs := s.priorErrors[nodeID]
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	copy(out, errs)
	return out
}

// AddPriorError records error context for subsequent decisions at a node.
func (s *State) AddPriorError(nodeID, msg string) {
	s.priorErrors[nodeID] = append(s.priorErrors[nodeID], msg)
}

// AddRecord appends a training record to the run log.
func (s *State) AddRecord(rec decision.TrainingRecord) {
	s.records = append(s.records, rec)
}

// Records returns a copy of the run's training records.
func (s *State) Records() []decision.TrainingRecord {
	out := make([]decision.TrainingRecord, len(s.records))
	copy(out, s.records)
	return out
}
