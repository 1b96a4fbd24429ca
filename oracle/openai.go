// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/kelp/decision"
)

// systemPrompt instructs the oracle on the decision contract. The request
// itself travels as structured JSON in the user message.
const systemPrompt = `You are the decision component of an autonomous task engine.
You receive one decision request as JSON. Choose exactly one tool from
"available_tools" (never from "unavailable_tools"), fill its parameters, and
decide whether the task is complete after that tool runs.

Respond with a single JSON object and nothing else:
{"tool": "<name>", "inputs": {...}, "end_of_task": <bool>, "rationale": "<why>"}`

// OpenAIOracle implements Oracle over the OpenAI chat completion API with
// two model tiers.
//
// Thread Safety: OpenAIOracle is safe for concurrent use.
type OpenAIOracle struct {
	client *openai.Client
	config Config
	logger *slog.Logger
}

// NewOpenAIOracle creates an oracle backed by the OpenAI API.
//
// Description:
//
//	Reads the API key from the OPENAI_API_KEY environment variable, falling
//	back to the /run/secrets/openai_api_key secret file. Model names come
//	from the config; empty fields take DefaultConfig values.
//
// Inputs:
//
//	cfg - Oracle configuration.
//	logger - Logger instance. Uses slog.Default() if nil.
//
// Outputs:
//
//	*OpenAIOracle - The configured oracle.
//	error - Non-nil if no API key is available.
func NewOpenAIOracle(cfg Config, logger *slog.Logger) (*OpenAIOracle, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		data, err := os.ReadFile(secretPath)
		if err != nil {
			return nil, fmt.Errorf("OPENAI_API_KEY not set and secret not found at %s", secretPath)
		}
		apiKey = strings.TrimSpace(string(data))
	}

	defaults := DefaultConfig()
	if cfg.BaseModel == "" {
		cfg.BaseModel = defaults.BaseModel
	}
	if cfg.ComplexModel == "" {
		cfg.ComplexModel = defaults.ComplexModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaults.Temperature
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Initializing oracle",
		slog.String("base_model", cfg.BaseModel),
		slog.String("complex_model", cfg.ComplexModel),
	)

	return &OpenAIOracle{
		client: openai.NewClient(apiKey),
		config: cfg,
		logger: logger,
	}, nil
}

// Decide implements Oracle.
//
// Description:
//
//	Serializes the request to JSON, submits it to the tier's model with a
//	per-call timeout, and parses the response fail-closed. A timeout or API
//	failure returns an error the caller folds into retry/prior-error
//	context; it is never fatal to the run.
//
// Thread Safety: This method is safe for concurrent use.
func (o *OpenAIOracle) Decide(ctx context.Context, tier Tier, req *decision.Request) (*decision.Decision, error) {
	if req == nil {
		return nil, fmt.Errorf("decide: request must not be nil")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding decision request: %w", err)
	}

	model := o.modelFor(tier)
	callCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	o.logger.Debug("Submitting decision request",
		slog.String("tier", tier.String()),
		slog.String("model", model),
		slog.Int("payload_bytes", len(payload)),
		slog.Int("examples", len(req.Examples)),
		slog.Int("attempts", len(req.Attempts)),
	)

	resp, err := o.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: o.config.Temperature,
		MaxTokens:   o.config.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("oracle call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	dec, err := ParseDecision(resp.Choices[0].Message.Content)
	if err != nil {
		o.logger.Warn("Oracle response did not parse",
			slog.String("tier", tier.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return dec, nil
}

// modelFor maps a tier to its configured model name.
func (o *OpenAIOracle) modelFor(tier Tier) string {
	if tier == TierComplex {
		return o.config.ComplexModel
	}
	return o.config.BaseModel
}
