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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/kelp/decision"
)

// DecisionExampleClassName is the Weaviate class holding decision examples.
const DecisionExampleClassName = "KelpDecisionExample"

// WeaviateStoreConfig configures the Weaviate-backed example store.
type WeaviateStoreConfig struct {
	// ClassName is the Weaviate class to query.
	// Default: DecisionExampleClassName.
	ClassName string

	// FetchMultiplier over-fetches before client-side filtering so the
	// similarity floor and quality partition still leave enough examples.
	// Default: 3.
	FetchMultiplier int

	// Logger for store operations. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultWeaviateStoreConfig returns sensible defaults.
func DefaultWeaviateStoreConfig() WeaviateStoreConfig {
	return WeaviateStoreConfig{
		ClassName:       DecisionExampleClassName,
		FetchMultiplier: 3,
	}
}

// WeaviateStore implements ExampleStore over a Weaviate nearText search.
//
// Thread Safety: WeaviateStore is safe for concurrent use.
type WeaviateStore struct {
	client *weaviate.Client
	config WeaviateStoreConfig
	logger *slog.Logger
}

// NewWeaviateStore creates an example store backed by Weaviate.
//
// Inputs:
//
//	client - Weaviate client. Must not be nil.
//	cfg - Store configuration. Zero fields take defaults.
//
// Outputs:
//
//	*WeaviateStore - The configured store.
//	error - Non-nil if client is nil.
func NewWeaviateStore(client *weaviate.Client, cfg WeaviateStoreConfig) (*WeaviateStore, error) {
	if client == nil {
		return nil, errors.New("client must not be nil")
	}

	defaults := DefaultWeaviateStoreConfig()
	if cfg.ClassName == "" {
		cfg.ClassName = defaults.ClassName
	}
	if cfg.FetchMultiplier < 1 {
		cfg.FetchMultiplier = defaults.FetchMultiplier
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &WeaviateStore{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// Search implements ExampleStore.
//
// Description:
//
//	Runs a nearText query scoped to the node tag, over-fetching so the
//	similarity floor and quality partition can be applied client-side, the
//	same fetch-then-rerank shape the rest of our Weaviate retrieval uses.
//	Any client or GraphQL error degrades to OutcomeUnavailable; the caller
//	falls back to an unconditioned complex-tier oracle call.
func (s *WeaviateStore) Search(ctx context.Context, query Query) Outcome {
	if query.Text == "" {
		return Outcome{State: OutcomeEmpty}
	}
	limit := query.Limit
	if limit <= 0 {
		return Outcome{State: OutcomeEmpty}
	}

	where := filters.Where().
		WithPath([]string{"nodeTag"}).
		WithOperator(filters.Equal).
		WithValueString(query.NodeTag)

	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query.Text})

	fields := []graphql.Field{
		{Name: "requestSummary"},
		{Name: "toolName"},
		{Name: "inputsJSON"},
		{Name: "endOfTask"},
		{Name: "rationale"},
		{Name: "quality"},
		{Name: "_additional { certainty }"},
	}

	fetchLimit := limit * s.config.FetchMultiplier

	result, err := s.client.GraphQL().Get().
		WithClassName(s.config.ClassName).
		WithFields(fields...).
		WithWhere(where).
		WithNearText(nearText).
		WithLimit(fetchLimit).
		Do(ctx)
	if err != nil {
		s.logger.Warn("Example store query failed",
			slog.String("node_tag", query.NodeTag),
			slog.String("error", err.Error()),
		)
		return Outcome{State: OutcomeUnavailable, Err: err}
	}
	if len(result.Errors) > 0 {
		err := fmt.Errorf("example search error: %s", result.Errors[0].Message)
		s.logger.Warn("Example store returned errors",
			slog.String("node_tag", query.NodeTag),
			slog.String("error", err.Error()),
		)
		return Outcome{State: OutcomeUnavailable, Err: err}
	}

	candidates := s.parseResults(result)
	examples := selectExamples(candidates, limit, query.Floor)
	if len(examples) == 0 {
		return Outcome{State: OutcomeEmpty}
	}

	s.logger.Debug("Retrieved decision examples",
		slog.String("node_tag", query.NodeTag),
		slog.Int("candidates", len(candidates)),
		slog.Int("selected", len(examples)),
	)

	return Outcome{State: OutcomeFound, Examples: examples}
}

// parseResults extracts ranked examples from a GraphQL response.
func (s *WeaviateStore) parseResults(result *models.GraphQLResponse) []decision.FeedbackExample {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := data[s.config.ClassName].([]interface{})
	if !ok {
		return nil
	}

	examples := make([]decision.FeedbackExample, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue // skip malformed objects
		}

		toolName := getString(m, "toolName")
		if toolName == "" {
			continue
		}

		var inputs map[string]any
		if raw := getString(m, "inputsJSON"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
				s.logger.Debug("Skipping example with unparseable inputs",
					slog.String("tool", toolName),
					slog.String("error", err.Error()),
				)
				continue
			}
		}

		similarity := 0.0
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				similarity = certainty
			}
		}

		examples = append(examples, decision.FeedbackExample{
			RequestSummary: getString(m, "requestSummary"),
			Decision: &decision.Decision{
				ToolName:  toolName,
				Inputs:    inputs,
				EndOfTask: getBool(m, "endOfTask"),
				Rationale: getString(m, "rationale"),
			},
			Quality:    decision.QualityLabel(getString(m, "quality")),
			Similarity: similarity,
		})
	}

	sort.SliceStable(examples, func(i, j int) bool {
		return examples[i].Similarity > examples[j].Similarity
	})
	return examples
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}
