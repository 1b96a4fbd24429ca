// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kelp assembles a runnable decision engine from configuration: the
// oracle adapter, the example store, the decision compiler, the training sink
// and the tree engine, wired per config.Config, with tool registries built by
// binding executable functions to YAML-declared tool schemas.
package kelp

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/AleutianAI/kelp/config"
	"github.com/AleutianAI/kelp/decision"
	"github.com/AleutianAI/kelp/feedback"
	"github.com/AleutianAI/kelp/oracle"
	"github.com/AleutianAI/kelp/tools"
	"github.com/AleutianAI/kelp/training"
	"github.com/AleutianAI/kelp/tree"
)

// ToolBinding supplies the executable half of a declared tool. The schema
// (description, parameters, terminal/required flags) comes from the node
// wiring file; the code comes from here.
type ToolBinding struct {
	// Available gates selection per iteration. Nil means always available.
	Available tools.AvailabilityFunc

	// Execute runs the tool. Required.
	Execute tools.ExecuteFunc
}

// BuildRegistry combines a declared node graph with code bindings into a
// validated registry arena.
//
// Description:
//
//	Every declared tool must have a binding with an Execute function; a
//	missing binding is a configuration error and fails assembly. Bindings
//	for tools no node declares are ignored.
//
// Inputs:
//
//	nodes - The declared node graph, from config.LoadNodes.
//	bindings - Executable bindings keyed by tool name.
//
// Outputs:
//
//	*tools.Registry - The populated arena.
//	error - Non-nil on a missing binding or structural registration error.
func BuildRegistry(nodes *config.NodesFile, bindings map[string]ToolBinding) (*tools.Registry, error) {
	if nodes == nil {
		return nil, errors.New("node wiring must not be nil")
	}

	reg := tools.NewRegistry()
	for _, spec := range nodes.Nodes {
		defs := make([]*tools.Definition, 0, len(spec.Tools))
		for _, decl := range spec.Tools {
			binding, ok := bindings[decl.Name]
			if !ok || binding.Execute == nil {
				return nil, fmt.Errorf("node %s: tool %q has no execute binding", spec.ID, decl.Name)
			}

			params := make([]decision.ParameterSpec, 0, len(decl.Parameters))
			for _, p := range decl.Parameters {
				params = append(params, decision.ParameterSpec{
					Name:        p.Name,
					Type:        p.Type,
					Description: p.Description,
					Required:    p.Required,
					Default:     p.Default,
				})
			}

			defs = append(defs, &tools.Definition{
				Name:        decl.Name,
				Description: decl.Description,
				Parameters:  params,
				Terminal:    decl.Terminal,
				Required:    decl.Required,
				Available:   binding.Available,
				Execute:     binding.Execute,
			})
		}

		err := reg.AddNode(&tools.Node{
			ID:          spec.ID,
			Instruction: spec.Instruction,
			Tools:       defs,
			Successors:  spec.Successors,
		})
		if err != nil {
			return nil, fmt.Errorf("registering node %s: %w", spec.ID, err)
		}
	}
	return reg, nil
}

// System bundles an assembled engine with the resources it owns.
type System struct {
	// Engine is the ready-to-run tree engine.
	Engine *tree.Engine

	sink training.Sink
}

// Close releases the system's resources (the training sink).
func (s *System) Close() error {
	return s.sink.Close()
}

// New assembles a System from configuration.
//
// Description:
//
//	Builds the OpenAI oracle from cfg.Oracle, a Weaviate example store from
//	cfg.Store when a host is configured (the compiler degrades to direct
//	complex-tier calls otherwise), the compiler from cfg.Compiler, a
//	Badger training sink from cfg.Training when a path is configured (no-op
//	otherwise), and the engine from cfg.Engine with the given registry.
//
// Inputs:
//
//	cfg - The loaded configuration. Must not be nil.
//	reg - The tool registry arena, from BuildRegistry or hand assembly.
//	logger - Logger instance. Uses slog.Default() if nil.
//
// Outputs:
//
//	*System - The assembled system. Call Close when done.
//	error - Non-nil when any component fails to construct.
func New(cfg *config.Config, reg *tools.Registry, logger *slog.Logger) (*System, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	orc, err := oracle.NewOpenAIOracle(oracle.Config{
		BaseModel:    cfg.Oracle.BaseModel,
		ComplexModel: cfg.Oracle.ComplexModel,
		Timeout:      time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
		Temperature:  cfg.Oracle.Temperature,
		MaxTokens:    cfg.Oracle.MaxTokens,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("assembling oracle: %w", err)
	}

	store, err := buildStore(cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("assembling example store: %w", err)
	}

	compiler, err := feedback.NewCompiler(orc, store, feedback.CompilerConfig{
		ExampleCount:    cfg.Compiler.ExampleCount,
		TierThreshold:   cfg.Compiler.TierThreshold,
		SimilarityFloor: cfg.Compiler.SimilarityFloor,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("assembling compiler: %w", err)
	}

	sink, err := buildSink(cfg.Training, logger)
	if err != nil {
		return nil, fmt.Errorf("assembling training sink: %w", err)
	}

	engine, err := tree.NewEngine(
		tree.WithRegistry(reg),
		tree.WithCompiler(compiler),
		tree.WithSink(sink),
		tree.WithConfig(tree.Config{
			MaxIterations:  cfg.Engine.MaxIterations,
			MaxRetries:     cfg.Engine.MaxRetries,
			LookaheadDepth: cfg.Engine.LookaheadDepth,
		}),
		tree.WithRootNode(cfg.Engine.RootNode),
		tree.WithLogger(logger),
	)
	if err != nil {
		sink.Close()
		return nil, fmt.Errorf("assembling engine: %w", err)
	}

	return &System{Engine: engine, sink: sink}, nil
}

// buildStore constructs the Weaviate example store, or nil when no host is
// configured.
func buildStore(cfg config.StoreConfig, logger *slog.Logger) (feedback.ExampleStore, error) {
	if cfg.Host == "" {
		logger.Info("No example store configured; compiling without conditioning")
		return nil, nil
	}

	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "http"
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.Host,
		Scheme: scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	return feedback.NewWeaviateStore(client, feedback.WeaviateStoreConfig{
		ClassName: cfg.ClassName,
		Logger:    logger,
	})
}

// buildSink constructs the Badger training sink, or a no-op sink when no path
// is configured.
func buildSink(cfg config.TrainingConfig, logger *slog.Logger) (training.Sink, error) {
	if cfg.Path == "" {
		logger.Info("No training path configured; records are discarded")
		return training.NoopSink{}, nil
	}
	return training.NewBadgerSink(training.Config{
		Path:       cfg.Path,
		SyncWrites: cfg.SyncWrites,
		Logger:     logger,
	})
}
