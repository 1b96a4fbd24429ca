// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package training

import (
	"context"
	"fmt"
	"testing"

	"github.com/AleutianAI/kelp/decision"
)

func openTestSink(t *testing.T) *BadgerSink {
	t.Helper()
	sink, err := NewBadgerSink(InMemoryConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := sink.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return sink
}

func TestBadgerSinkAppendAndList(t *testing.T) {
	sink := openTestSink(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		rec := &decision.TrainingRecord{
			ID:        fmt.Sprintf("rec-%d", i),
			RunID:     "run-1",
			NodeID:    "root",
			Iteration: i,
			Status:    decision.StatusAccepted,
			Tier:      "base",
		}
		if err := sink.Append(ctx, rec); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	records, err := sink.ListRun("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records", len(records))
	}
	for i, rec := range records {
		if rec.Iteration != i+1 {
			t.Errorf("record %d out of append order: iteration %d", i, rec.Iteration)
		}
	}
}

func TestBadgerSinkIsolatesRuns(t *testing.T) {
	sink := openTestSink(t)
	ctx := context.Background()

	for _, runID := range []string{"run-a", "run-b", "run-a"} {
		rec := &decision.TrainingRecord{ID: "x", RunID: runID, Status: decision.StatusAccepted}
		if err := sink.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	a, err := sink.ListRun("run-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 2 {
		t.Errorf("run-a: got %d records", len(a))
	}

	b, err := sink.ListRun("run-b")
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 1 {
		t.Errorf("run-b: got %d records", len(b))
	}

	none, err := sink.ListRun("run-c")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("run-c: got %d records", len(none))
	}
}

func TestBadgerSinkRejectsNilRecord(t *testing.T) {
	sink := openTestSink(t)
	if err := sink.Append(context.Background(), nil); err == nil {
		t.Error("nil record should fail")
	}
}

func TestBadgerSinkRespectsCancellation(t *testing.T) {
	sink := openTestSink(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &decision.TrainingRecord{ID: "x", RunID: "run-1"}
	if err := sink.Append(ctx, rec); err == nil {
		t.Error("canceled context should fail the append")
	}
}

func TestNewBadgerSinkRequiresPath(t *testing.T) {
	if _, err := NewBadgerSink(Config{}); err == nil {
		t.Error("persistent sink without path should fail")
	}
}
