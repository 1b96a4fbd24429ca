// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package training persists training records of resolved decisions for the
// offline learning pipeline.
//
// Appends are fire-and-forget from the engine's perspective: a sink failure
// is logged and never affects the run.
package training

import (
	"context"

	"github.com/AleutianAI/kelp/decision"
)

// Sink receives one training record per resolved decision.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Sink interface {
	// Append durably stores one record.
	Append(ctx context.Context, record *decision.TrainingRecord) error

	// Close releases sink resources.
	Close() error
}

// NoopSink discards all records. Used when training capture is disabled.
type NoopSink struct{}

// Append implements Sink.
func (NoopSink) Append(ctx context.Context, record *decision.TrainingRecord) error {
	return nil
}

// Close implements Sink.
func (NoopSink) Close() error {
	return nil
}
