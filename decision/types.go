// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package decision defines the shared data model for the kelp decision engine:
// the request/decision pair exchanged with the reasoning oracle, few-shot
// feedback examples, training records, and the append-only Environment.
//
// All request/decision values are created fresh each iteration and are
// immutable once produced. The Environment is the only mutable structure and
// is owned exclusively by the tree engine.
//
// Thread Safety:
//
//	Request, Decision, FeedbackExample and TrainingRecord are plain data and
//	safe for concurrent read access. Environment is internally synchronized.
package decision

import "encoding/json"

// QualityLabel classifies a feedback example by the quality of the user
// feedback it was derived from.
type QualityLabel string

const (
	// QualitySuperpositive marks examples from strongly positive feedback.
	// These are preferred when assembling few-shot demonstrations.
	QualitySuperpositive QualityLabel = "superpositive"

	// QualityPositive marks examples from ordinary positive feedback.
	// Used to backfill when the superpositive pool is too small.
	QualityPositive QualityLabel = "positive"
)

// String returns the string representation of the quality label.
func (q QualityLabel) String() string {
	return string(q)
}

// ToolSpec describes one available tool to the oracle.
//
// This is the oracle-facing view of a tool: name, description and parameter
// schema, without the availability predicate or execute function.
type ToolSpec struct {
	// Name is the tool's unique identifier within its node.
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description"`

	// Parameters is the tool's input schema.
	Parameters []ParameterSpec `json:"parameters,omitempty"`

	// Terminal indicates executing this tool ends the run.
	Terminal bool `json:"terminal,omitempty"`
}

// ParameterSpec describes a single tool input parameter.
type ParameterSpec struct {
	// Name is the parameter name.
	Name string `json:"name"`

	// Type is one of "string", "int", "float", "bool", "list", "map", "any".
	Type string `json:"type"`

	// Description explains the parameter to the oracle.
	Description string `json:"description,omitempty"`

	// Required indicates the parameter must be present.
	Required bool `json:"required,omitempty"`

	// Default is applied when the oracle omits an optional parameter.
	Default any `json:"default,omitempty"`
}

// UnavailableTool names a tool that cannot be selected this iteration,
// with a human-readable reason.
type UnavailableTool struct {
	// Name is the tool name.
	Name string `json:"name"`

	// Reason explains why the tool is unavailable (predicate returned false,
	// or the predicate itself failed).
	Reason string `json:"reason"`
}

// LookaheadMap is a recursive, purely structural preview of the tools
// reachable after each candidate tool. It carries no scores and is given to
// the oracle as context only.
type LookaheadMap map[string]LookaheadMap

// Attempt records one rejected oracle decision and the validation feedback
// that rejected it. Attempts accumulate across retries within a single node
// visit and are passed back to the oracle as extra context.
type Attempt struct {
	// Decision is the rejected decision.
	Decision *Decision `json:"decision"`

	// Feedback is the validation failure message.
	Feedback string `json:"feedback"`
}

// Request is a structured decision request submitted to the oracle.
//
// A Request is assembled once per attempt by the decision node and is
// immutable after construction. Retries produce a new Request with the
// Attempts list extended.
type Request struct {
	// Task is the user's overall goal, free text.
	Task string `json:"task"`

	// Instruction is the static instruction for the current node.
	Instruction string `json:"instruction"`

	// TreeCount is the iteration counter formatted as "current/max".
	TreeCount string `json:"tree_count"`

	// Available lists tools the oracle may choose from.
	Available []ToolSpec `json:"available_tools"`

	// Unavailable lists tools that cannot be chosen, with reasons.
	Unavailable []UnavailableTool `json:"unavailable_tools,omitempty"`

	// Lookahead previews tools reachable after each available tool.
	Lookahead LookaheadMap `json:"lookahead,omitempty"`

	// PriorErrors carries errors from earlier iterations at this node so the
	// oracle can route around failures.
	PriorErrors []string `json:"prior_errors,omitempty"`

	// Examples holds few-shot demonstrations retrieved from the example
	// store. Nil when conditioning was skipped.
	Examples []FeedbackExample `json:"examples,omitempty"`

	// Attempts holds previously rejected decisions with their feedback.
	// Non-empty only on retry attempts.
	Attempts []Attempt `json:"previous_attempts,omitempty"`

	// EnvironmentSummary is an ordered listing of accumulated results,
	// one line per environment entry.
	EnvironmentSummary []string `json:"environment,omitempty"`
}

// AvailableNames returns the names of all available tools, in request order.
func (r *Request) AvailableNames() []string {
	names := make([]string, 0, len(r.Available))
	for _, t := range r.Available {
		names = append(names, t.Name)
	}
	return names
}

// FindAvailable returns the spec of an available tool by name.
//
// Outputs:
//
//	*ToolSpec - The spec, or nil if the name is not in the available set.
//	bool - True if found.
func (r *Request) FindAvailable(name string) (*ToolSpec, bool) {
	for i := range r.Available {
		if r.Available[i].Name == name {
			return &r.Available[i], true
		}
	}
	return nil, false
}

// WithAttempts returns a shallow copy of the request with the given attempt
// history. The original request is not modified.
func (r *Request) WithAttempts(attempts []Attempt) *Request {
	clone := *r
	clone.Attempts = attempts
	return &clone
}

// WithExamples returns a shallow copy of the request with few-shot examples
// attached. The original request is not modified.
func (r *Request) WithExamples(examples []FeedbackExample) *Request {
	clone := *r
	clone.Examples = examples
	return &clone
}

// Decision is the oracle's answer to a Request.
type Decision struct {
	// ToolName is the chosen tool. Must be a member of the available set;
	// the validated executor enforces this invariant.
	ToolName string `json:"tool"`

	// Inputs are the tool inputs. Must satisfy the tool's parameter specs.
	Inputs map[string]any `json:"inputs"`

	// EndOfTask indicates the oracle considers the user's goal satisfied
	// after this tool executes.
	EndOfTask bool `json:"end_of_task"`

	// Rationale is the oracle's free-text reasoning.
	Rationale string `json:"rationale,omitempty"`

	// Unresolved is set by the validated executor when the retry budget was
	// exhausted without producing a valid decision. Unresolved decisions are
	// never executed.
	Unresolved bool `json:"unresolved,omitempty"`
}

// FeedbackExample is a past request/decision pair used for few-shot
// conditioning of the oracle.
type FeedbackExample struct {
	// RequestSummary is a condensed rendering of the historical request.
	RequestSummary string `json:"request_summary"`

	// Decision is the historical decision.
	Decision *Decision `json:"decision"`

	// Quality is the feedback quality label of the example.
	Quality QualityLabel `json:"quality"`

	// Similarity is the retrieval similarity score in [0, 1].
	Similarity float64 `json:"similarity"`
}

// DecisionStatus classifies the outcome of one resolved decision for
// training records.
type DecisionStatus string

const (
	// StatusAccepted means the decision passed validation and its tool
	// executed successfully.
	StatusAccepted DecisionStatus = "accepted"

	// StatusUnresolved means the retry budget was exhausted without a valid
	// decision.
	StatusUnresolved DecisionStatus = "unresolved"

	// StatusExecFailed means the decision was valid but the tool execution
	// returned an error.
	StatusExecFailed DecisionStatus = "exec_failed"
)

// TrainingRecord is a durable log entry describing one resolved decision.
// Records are write-only from the engine's perspective; an external learning
// pipeline consumes them.
type TrainingRecord struct {
	// ID is a unique record identifier.
	ID string `json:"id"`

	// RunID identifies the run the record belongs to.
	RunID string `json:"run_id"`

	// NodeID is the decision node that produced the decision.
	NodeID string `json:"node_id"`

	// Iteration is the 1-based iteration counter at decision time.
	Iteration int `json:"iteration"`

	// Request is the decision request, including any few-shot examples and
	// retry history that conditioned the oracle.
	Request *Request `json:"request"`

	// Decision is the oracle's output. Nil when the oracle never produced a
	// parseable decision.
	Decision *Decision `json:"decision,omitempty"`

	// Status is the resulting status of the decision.
	Status DecisionStatus `json:"status"`

	// Tier names the oracle tier that produced the decision.
	Tier string `json:"tier"`

	// CreatedAt is the record creation time in Unix milliseconds UTC.
	CreatedAt int64 `json:"created_at"`
}

// MarshalInputs renders decision inputs as compact JSON for logging and
// storage. Returns "{}" when inputs are empty or unmarshalable.
func (d *Decision) MarshalInputs() string {
	if len(d.Inputs) == 0 {
		return "{}"
	}
	data, err := json.Marshal(d.Inputs)
	if err != nil {
		return "{}"
	}
	return string(data)
}
