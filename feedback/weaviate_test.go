// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feedback

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/kelp/decision"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func responseWith(objects []interface{}) *models.GraphQLResponse {
	return &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				DecisionExampleClassName: objects,
			},
		},
	}
}

func exampleObject(tool string, certainty float64) map[string]interface{} {
	return map[string]interface{}{
		"requestSummary": "searched for kelp papers",
		"toolName":       tool,
		"inputsJSON":     `{"query": "kelp"}`,
		"endOfTask":      false,
		"rationale":      "needed source material",
		"quality":        "superpositive",
		"_additional":    map[string]interface{}{"certainty": certainty},
	}
}

func TestParseResultsRanksBySimilarity(t *testing.T) {
	store := &WeaviateStore{config: DefaultWeaviateStoreConfig(), logger: discardLogger()}

	resp := responseWith([]interface{}{
		exampleObject("search", 0.6),
		exampleObject("summarize", 0.9),
		exampleObject("fetch", 0.7),
	})

	examples := store.parseResults(resp)
	require.Len(t, examples, 3)
	assert.Equal(t, "summarize", examples[0].Decision.ToolName)
	assert.Equal(t, 0.9, examples[0].Similarity)
	assert.Equal(t, "search", examples[2].Decision.ToolName)
}

func TestParseResultsDecodesFields(t *testing.T) {
	store := &WeaviateStore{config: DefaultWeaviateStoreConfig(), logger: discardLogger()}

	examples := store.parseResults(responseWith([]interface{}{exampleObject("search", 0.8)}))
	require.Len(t, examples, 1)

	ex := examples[0]
	assert.Equal(t, "searched for kelp papers", ex.RequestSummary)
	assert.Equal(t, decision.QualitySuperpositive, ex.Quality)
	require.NotNil(t, ex.Decision)
	assert.Equal(t, map[string]any{"query": "kelp"}, ex.Decision.Inputs)
	assert.False(t, ex.Decision.EndOfTask)
}

func TestParseResultsSkipsMalformedObjects(t *testing.T) {
	store := &WeaviateStore{config: DefaultWeaviateStoreConfig(), logger: discardLogger()}

	missingTool := exampleObject("", 0.9)
	badInputs := exampleObject("search", 0.9)
	badInputs["inputsJSON"] = "{not json"

	resp := responseWith([]interface{}{
		"not an object",
		missingTool,
		badInputs,
		exampleObject("summarize", 0.7),
	})

	examples := store.parseResults(resp)
	require.Len(t, examples, 1)
	assert.Equal(t, "summarize", examples[0].Decision.ToolName)
}

func TestParseResultsEmptyResponse(t *testing.T) {
	store := &WeaviateStore{config: DefaultWeaviateStoreConfig(), logger: discardLogger()}

	assert.Empty(t, store.parseResults(&models.GraphQLResponse{Data: map[string]models.JSONObject{}}))
	assert.Empty(t, store.parseResults(responseWith(nil)))
}

func TestNewWeaviateStoreRequiresClient(t *testing.T) {
	_, err := NewWeaviateStore(nil, WeaviateStoreConfig{})
	assert.Error(t, err)
}
