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
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/kelp/decision"
	"github.com/AleutianAI/kelp/feedback"
	"github.com/AleutianAI/kelp/tools"
	"github.com/AleutianAI/kelp/training"
)

var engineTracer = otel.Tracer("kelp.tree.engine")

// Engine drives the decision loop over the registered node arena.
//
// Each iteration partitions the current node's tools by availability, builds
// the structural lookahead, obtains a validated decision, executes the chosen
// tool, and merges its output into the run's environment. The loop terminates
// on an end-of-task signal, a terminal tool, the iteration limit, context
// cancellation, or a required-tool failure.
//
// Thread Safety: Engine is safe for concurrent use; each Run owns its own
// state and environment.
type Engine struct {
	registry *tools.Registry
	compiler *feedback.Compiler
	executor *Executor
	sink     training.Sink
	config   Config
	rootID   string
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the node arena. Required.
func WithRegistry(reg *tools.Registry) Option {
	return func(e *Engine) { e.registry = reg }
}

// WithCompiler sets the decision compiler. Required.
func WithCompiler(c *feedback.Compiler) Option {
	return func(e *Engine) { e.compiler = c }
}

// WithSink sets the training-record sink. Defaults to a no-op sink.
func WithSink(s training.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithConfig sets engine limits. Zero fields take defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.config = cfg }
}

// WithRootNode sets the node runs start at. Default: "root".
func WithRootNode(id string) Option {
	return func(e *Engine) { e.rootID = id }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a tree engine.
//
// Outputs:
//
//	*Engine - The configured engine.
//	error - Non-nil if the registry or compiler is missing.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		sink:   training.NoopSink{},
		config: DefaultConfig(),
		rootID: "root",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.registry == nil {
		return nil, errors.New("registry must not be nil")
	}
	if e.compiler == nil {
		return nil, ErrNilCompiler
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.config = e.config.withDefaults()

	executor, err := NewExecutor(e.compiler, e.config.MaxRetries, e.logger)
	if err != nil {
		return nil, err
	}
	e.executor = executor
	return e, nil
}

// Run executes one task to termination.
//
// Description:
//
//	Validates the node arena, then iterates the decide-execute-merge loop
//	from the root node. Unresolved decisions and tool failures are
//	recoverable: they add prior-error context for the next visit and the
//	loop continues, except when the failed tool is flagged required or
//	terminal. The run makes at most MaxIterations+1 decisions.
//
// Inputs:
//
//	ctx - Context for cancellation/timeout. Must not be nil.
//	task - The user's goal, free text. Must be non-empty.
//
// Outputs:
//
//	*RunResult - The outcome, including best-effort output and the full
//	  environment. Non-nil whenever the loop started.
//	error - Non-nil for configuration errors (invalid arena, empty task) or
//	  unrecoverable run failures.
func (e *Engine) Run(ctx context.Context, task string) (*RunResult, error) {
	if task == "" {
		return nil, errors.New("task must not be empty")
	}
	if err := e.registry.Validate(e.rootID); err != nil {
		return nil, fmt.Errorf("invalid node arena: %w", err)
	}

	runID := uuid.NewString()
	ctx, span := engineTracer.Start(ctx, "engine.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.String("root_node", e.rootID),
	)

	st := NewState(runID, task, e.rootID, e.config.MaxIterations)
	e.logger.Info("Run started",
		slog.String("run_id", runID),
		slog.String("root_node", e.rootID),
		slog.Int("max_iterations", e.config.MaxIterations),
	)

	var lastOutput string
	decisions := 0
	termination := TerminationLimitReached

loop:
	for {
		if err := ctx.Err(); err != nil {
			termination = TerminationCanceled
			break
		}
		// The limit permits one final decision past MaxIterations so the
		// oracle can wrap up with the counter showing it exceeded.
		if st.Iteration > e.config.MaxIterations+1 {
			termination = TerminationLimitReached
			break
		}

		start := time.Now()
		output, stop, err := e.iterate(ctx, st)
		iterationDuration.Observe(time.Since(start).Seconds())
		decisions++

		if output != "" {
			lastOutput = output
		}
		if err != nil {
			termination = TerminationError
			runsTotal.WithLabelValues(string(termination)).Inc()
			result := e.buildResult(st, termination, lastOutput, decisions)
			return result, err
		}

		switch stop {
		case stopEndOfTask:
			termination = TerminationEndOfTask
			break loop
		case stopTerminalTool:
			termination = TerminationTerminalTool
			break loop
		}

		st.Iteration++
	}

	runsTotal.WithLabelValues(string(termination)).Inc()
	e.logger.Info("Run finished",
		slog.String("run_id", runID),
		slog.String("termination", string(termination)),
		slog.Int("iterations", decisions),
	)

	return e.buildResult(st, termination, lastOutput, decisions), nil
}

// stopSignal tells the run loop whether and why to stop after an iteration.
type stopSignal int

const (
	stopNone stopSignal = iota
	stopEndOfTask
	stopTerminalTool
)

// iterate runs one decide-execute-merge cycle at the current node.
//
// Outputs:
//
//	string - Human-readable output from the executed tool, if any.
//	stopSignal - Whether the run should stop after this iteration.
//	error - Non-nil only for unrecoverable failures.
func (e *Engine) iterate(ctx context.Context, st *State) (string, stopSignal, error) {
	node, ok := e.registry.Node(st.NodeID)
	if !ok {
		return "", stopNone, fmt.Errorf("%w: %s", tools.ErrUnknownNode, st.NodeID)
	}

	candidates := tools.Partition(node, st.Environment)
	lookahead := tools.Lookahead(e.registry, st.NodeID, e.config.LookaheadDepth)

	dn := NewDecisionNode(node, e.executor, e.logger)
	res, err := dn.Decide(ctx, st, candidates, lookahead)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", stopNone, nil
		}
		// No parseable decision, or nothing available. Both are recoverable:
		// record the context and move on to the next iteration.
		st.AddPriorError(st.NodeID, err.Error())
		e.record(ctx, st, nil, nil, "", decision.StatusUnresolved)
		decisionsTotal.WithLabelValues("none", string(decision.StatusUnresolved)).Inc()
		return "", stopNone, nil
	}

	if res.Phase == PhaseExhausted {
		st.AddPriorError(st.NodeID, fmt.Sprintf("decision unresolved: %s", res.Feedback))
		e.record(ctx, st, res.Request, res.Decision, res.Tier.String(), decision.StatusUnresolved)
		decisionsTotal.WithLabelValues(res.Tier.String(), string(decision.StatusUnresolved)).Inc()
		return "", stopNone, nil
	}

	def, _ := node.Tool(res.Decision.ToolName)
	result, execErr := e.safeExecute(ctx, def, res.Decision, st.Environment)
	if execErr != nil {
		st.AddPriorError(st.NodeID, fmt.Sprintf("tool %s failed: %v", def.Name, execErr))
		e.record(ctx, st, res.Request, res.Decision, res.Tier.String(), decision.StatusExecFailed)
		decisionsTotal.WithLabelValues(res.Tier.String(), string(decision.StatusExecFailed)).Inc()

		if def.Required || def.Terminal {
			return "", stopNone, fmt.Errorf("%w: %s: %v", ErrRequiredToolFailed, def.Name, execErr)
		}
		return "", stopNone, nil
	}

	var output string
	if result != nil {
		st.Environment.Append(def.Name, result.Collection, decision.Entry{
			Objects:   result.Objects,
			Metadata:  result.Metadata,
			Iteration: st.Iteration,
		})
		output = result.Text
	}

	e.record(ctx, st, res.Request, res.Decision, res.Tier.String(), decision.StatusAccepted)
	decisionsTotal.WithLabelValues(res.Tier.String(), string(decision.StatusAccepted)).Inc()

	e.logger.Info("Tool executed",
		slog.String("run_id", st.RunID),
		slog.String("node_id", st.NodeID),
		slog.Int("iteration", st.Iteration),
		slog.String("tool", def.Name),
		slog.String("inputs", res.Decision.MarshalInputs()),
		slog.Bool("end_of_task", res.Decision.EndOfTask),
	)

	switch {
	case def.Terminal:
		return output, stopTerminalTool, nil
	case res.Decision.EndOfTask:
		return output, stopEndOfTask, nil
	}

	if succ, ok := node.Successors[def.Name]; ok {
		st.NodeID = succ
	}
	return output, stopNone, nil
}

// safeExecute runs a tool, converting panics into errors so a broken tool
// cannot take down the run.
func (e *Engine) safeExecute(ctx context.Context, def *tools.Definition, dec *decision.Decision, env *decision.Environment) (result *tools.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("tool panicked: %v", r)
			e.logger.Error("Tool execution panicked",
				slog.String("tool", def.Name),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	return def.Execute(ctx, dec.Inputs, env)
}

// record appends one training record to the run log and the sink. Sink
// failures are logged, never propagated: training capture is best effort and
// must not disturb the run.
func (e *Engine) record(ctx context.Context, st *State, req *decision.Request, dec *decision.Decision, tier string, status decision.DecisionStatus) {
	rec := decision.TrainingRecord{
		ID:        uuid.NewString(),
		RunID:     st.RunID,
		NodeID:    st.NodeID,
		Iteration: st.Iteration,
		Request:   req,
		Decision:  dec,
		Status:    status,
		Tier:      tier,
		CreatedAt: time.Now().UnixMilli(),
	}
	st.AddRecord(rec)

	if err := e.sink.Append(ctx, &rec); err != nil {
		e.logger.Warn("Training record append failed",
			slog.String("run_id", st.RunID),
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

// buildResult assembles the RunResult from final state.
func (e *Engine) buildResult(st *State, termination TerminationReason, output string, iterations int) *RunResult {
	return &RunResult{
		RunID:       st.RunID,
		Termination: termination,
		Output:      output,
		Iterations:  iterations,
		Environment: st.Environment,
		Records:     st.Records(),
	}
}
