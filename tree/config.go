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

// Config tunes a tree engine instance. There is no ambient/global state: the
// config is passed at construction and threaded down to the decision nodes
// and executor.
type Config struct {
	// MaxIterations bounds the decision loop. The run makes at most
	// MaxIterations+1 decisions before terminating with
	// TerminationLimitReached. Default: 5.
	MaxIterations int

	// MaxRetries bounds validation retries per node visit. Total oracle
	// invocations per visit never exceed MaxRetries+1. Default: 2.
	MaxRetries int

	// LookaheadDepth caps the structural lookahead traversal. Default: 3.
	LookaheadDepth int
}

// DefaultConfig returns sensible defaults for the engine.
func DefaultConfig() Config {
	return Config{
		MaxIterations:  5,
		MaxRetries:     2,
		LookaheadDepth: 3,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = defaults.MaxIterations
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.LookaheadDepth <= 0 {
		c.LookaheadDepth = defaults.LookaheadDepth
	}
	return c
}
