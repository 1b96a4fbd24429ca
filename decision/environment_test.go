// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package decision

import (
	"fmt"
	"sync"
	"testing"
)

func TestEnvironmentAppendAccumulates(t *testing.T) {
	env := NewEnvironment()

	env.Append("search", "results", Entry{Objects: []map[string]any{{"id": 1}}, Iteration: 1})
	env.Append("search", "results", Entry{Objects: []map[string]any{{"id": 2}}, Iteration: 2})

	entries := env.Get("search", "results")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Iteration != 1 || entries[1].Iteration != 2 {
		t.Errorf("entries out of append order: %+v", entries)
	}
}

func TestEnvironmentAppendNeverOverwrites(t *testing.T) {
	env := NewEnvironment()

	env.Append("search", "results", Entry{Objects: []map[string]any{{"v": "first"}}})
	before := env.Get("search", "results")

	env.Append("search", "results", Entry{Objects: []map[string]any{{"v": "second"}}})
	after := env.Get("search", "results")

	if len(after) != len(before)+1 {
		t.Fatalf("expected %d entries after second append, got %d", len(before)+1, len(after))
	}
	if got := after[0].Objects[0]["v"]; got != "first" {
		t.Errorf("first entry mutated: got %v", got)
	}
}

func TestEnvironmentDefaultCollection(t *testing.T) {
	env := NewEnvironment()
	env.Append("summarize", "", Entry{Objects: []map[string]any{{"text": "hi"}}})

	if got := env.Get("summarize", "results"); len(got) != 1 {
		t.Fatalf("expected entry under default collection, got %d", len(got))
	}
}

func TestEnvironmentIgnoresEmptyTool(t *testing.T) {
	env := NewEnvironment()
	env.Append("", "results", Entry{})
	if env.Len() != 0 {
		t.Errorf("expected empty environment, got %d entries", env.Len())
	}
}

func TestEnvironmentGetReturnsCopy(t *testing.T) {
	env := NewEnvironment()
	env.Append("search", "results", Entry{Iteration: 7})

	got := env.Get("search", "results")
	got[0].Iteration = 99

	if again := env.Get("search", "results"); again[0].Iteration != 7 {
		t.Errorf("internal entry mutated through returned slice: %d", again[0].Iteration)
	}
}

func TestEnvironmentGetCopiesMaps(t *testing.T) {
	env := NewEnvironment()
	env.Append("search", "results", Entry{
		Objects:  []map[string]any{{"id": "doc-1", "score": 0.9}},
		Metadata: map[string]any{"source": "index-a"},
	})

	got := env.Get("search", "results")
	got[0].Objects[0]["id"] = "tampered"
	got[0].Metadata["source"] = "tampered"

	again := env.Get("search", "results")
	if again[0].Objects[0]["id"] != "doc-1" {
		t.Errorf("stored object mutated through returned entry: %v", again[0].Objects[0])
	}
	if again[0].Metadata["source"] != "index-a" {
		t.Errorf("stored metadata mutated through returned entry: %v", again[0].Metadata)
	}
}

func TestEnvironmentSummaryOrder(t *testing.T) {
	env := NewEnvironment()
	env.Append("search", "results", Entry{Objects: []map[string]any{{}, {}}})
	env.Append("fetch", "pages", Entry{Objects: []map[string]any{{}}})
	env.Append("search", "results", Entry{Objects: []map[string]any{{}}})

	summary := env.Summary()
	want := []string{
		"search/results: 2 entries (3 objects)",
		"fetch/pages: 1 entries (1 objects)",
	}
	if len(summary) != len(want) {
		t.Fatalf("expected %d lines, got %d: %v", len(want), len(summary), summary)
	}
	for i := range want {
		if summary[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, summary[i], want[i])
		}
	}
}

func TestEnvironmentConcurrentAppend(t *testing.T) {
	env := NewEnvironment()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				env.Append(fmt.Sprintf("tool-%d", n%3), "results", Entry{Iteration: j})
			}
		}(i)
	}
	wg.Wait()

	if env.Len() != 200 {
		t.Errorf("expected 200 entries, got %d", env.Len())
	}
	if tools := env.Tools(); len(tools) != 3 {
		t.Errorf("expected 3 tools, got %v", tools)
	}
}

func TestDecisionMarshalInputs(t *testing.T) {
	d := &Decision{Inputs: map[string]any{"q": "kelp"}}
	if got := d.MarshalInputs(); got != `{"q":"kelp"}` {
		t.Errorf("got %q", got)
	}

	empty := &Decision{}
	if got := empty.MarshalInputs(); got != "{}" {
		t.Errorf("empty inputs: got %q", got)
	}
}

func TestRequestWithAttemptsDoesNotMutate(t *testing.T) {
	req := &Request{Task: "find docs"}
	clone := req.WithAttempts([]Attempt{{Feedback: "bad tool"}})

	if len(req.Attempts) != 0 {
		t.Errorf("original request mutated: %v", req.Attempts)
	}
	if len(clone.Attempts) != 1 {
		t.Errorf("clone missing attempts: %v", clone.Attempts)
	}
	if clone.Task != req.Task {
		t.Errorf("clone lost fields: %q", clone.Task)
	}
}

func TestRequestFindAvailable(t *testing.T) {
	req := &Request{Available: []ToolSpec{{Name: "search"}, {Name: "summarize"}}}

	if _, ok := req.FindAvailable("summarize"); !ok {
		t.Error("expected summarize to be available")
	}
	if _, ok := req.FindAvailable("delete"); ok {
		t.Error("expected delete to be missing")
	}

	names := req.AvailableNames()
	if len(names) != 2 || names[0] != "search" || names[1] != "summarize" {
		t.Errorf("unexpected names: %v", names)
	}
}
