// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/kelp/decision"
)

// codeFencePattern strips markdown code fences some models wrap JSON in.
var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// decisionWire is the raw JSON shape the oracle is asked to emit.
type decisionWire struct {
	Tool      string         `json:"tool"`
	Inputs    map[string]any `json:"inputs"`
	EndOfTask bool           `json:"end_of_task"`
	Rationale string         `json:"rationale"`
}

// ParseDecision extracts a decision from raw oracle output.
//
// Description:
//
//	Tolerant of surrounding prose and markdown fences, but fails closed: if
//	no JSON object with a non-empty tool name can be extracted, the result
//	is ErrMalformedResponse rather than a guessed decision. Malformed output
//	therefore surfaces as an assertion failure, never a run crash.
//
// Inputs:
//
//	text - The raw oracle output.
//
// Outputs:
//
//	*decision.Decision - The parsed decision. Nil on error.
//	error - ErrEmptyResponse or ErrMalformedResponse (wrapped with detail).
func ParseDecision(text string) (*decision.Decision, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyResponse
	}

	if matches := codeFencePattern.FindStringSubmatch(trimmed); len(matches) > 1 {
		trimmed = strings.TrimSpace(matches[1])
	}

	payload, ok := extractObject(trimmed)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var wire decisionWire
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if wire.Tool == "" {
		return nil, fmt.Errorf("%w: missing tool name", ErrMalformedResponse)
	}

	return &decision.Decision{
		ToolName:  wire.Tool,
		Inputs:    wire.Inputs,
		EndOfTask: wire.EndOfTask,
		Rationale: wire.Rationale,
	}, nil
}

// extractObject returns the first balanced top-level JSON object in text.
//
// Brace counting ignores braces inside JSON strings so that nested payloads
// like {"inputs": {"q": "a {weird} query"}} parse correctly.
func extractObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
