// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package decision

import (
	"fmt"
	"maps"
	"sync"
	"time"
)

// Entry is one tool output merged into the Environment.
type Entry struct {
	// Objects are the payload objects produced by the tool.
	Objects []map[string]any `json:"objects"`

	// Metadata carries tool-specific context about the objects.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Iteration is the iteration that produced the entry.
	Iteration int `json:"iteration"`

	// AddedAt is the merge time in Unix milliseconds UTC.
	AddedAt int64 `json:"added_at"`
}

// envKey identifies one collection in insertion order.
type envKey struct {
	tool       string
	collection string
}

// Environment is the run's accumulated result state, keyed hierarchically by
// tool name and logical collection. It is append-only: entries are never
// overwritten or removed, so re-reading past entries is always idempotent.
//
// The Environment is created once per run and owned exclusively by the tree
// engine; decision nodes and oracle calls only read it.
//
// Thread Safety: Environment is safe for concurrent use.
type Environment struct {
	mu      sync.RWMutex
	entries map[string]map[string][]Entry
	order   []envKey
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{
		entries: make(map[string]map[string][]Entry),
	}
}

// Append merges one tool output into the environment under the given tool
// name and collection. Entries accumulate in call order; nothing is ever
// overwritten.
//
// Inputs:
//
//	tool - The tool name the output belongs to. Must be non-empty.
//	collection - The logical collection within the tool's results.
//	entry - The entry to append. AddedAt is filled if zero.
func (e *Environment) Append(tool, collection string, entry Entry) {
	if tool == "" {
		return
	}
	if collection == "" {
		collection = "results"
	}
	if entry.AddedAt == 0 {
		entry.AddedAt = time.Now().UnixMilli()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	byCollection, ok := e.entries[tool]
	if !ok {
		byCollection = make(map[string][]Entry)
		e.entries[tool] = byCollection
	}
	if _, ok := byCollection[collection]; !ok {
		e.order = append(e.order, envKey{tool: tool, collection: collection})
	}
	byCollection[collection] = append(byCollection[collection], entry)
}

// Get returns a deep copy of the entries for a tool/collection pair. Mutating
// the returned entries, including their object and metadata maps, never
// touches the stored state.
//
// Outputs:
//
//	[]Entry - The entries in append order. Empty if none exist.
func (e *Environment) Get(tool, collection string) []Entry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	byCollection, ok := e.entries[tool]
	if !ok {
		return nil
	}
	entries := byCollection[collection]
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	for i, entry := range entries {
		out[i] = cloneEntry(entry)
	}
	return out
}

// cloneEntry copies an entry one map level deep, which covers every write a
// reader can make through the Entry fields themselves.
func cloneEntry(entry Entry) Entry {
	cloned := entry
	if entry.Objects != nil {
		cloned.Objects = make([]map[string]any, len(entry.Objects))
		for i, obj := range entry.Objects {
			cloned.Objects[i] = maps.Clone(obj)
		}
	}
	cloned.Metadata = maps.Clone(entry.Metadata)
	return cloned
}

// Tools returns the tool names that have entries, in first-append order.
func (e *Environment) Tools() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := make(map[string]bool, len(e.entries))
	var tools []string
	for _, k := range e.order {
		if !seen[k.tool] {
			seen[k.tool] = true
			tools = append(tools, k.tool)
		}
	}
	return tools
}

// Len returns the total number of entries across all collections.
func (e *Environment) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	total := 0
	for _, byCollection := range e.entries {
		for _, entries := range byCollection {
			total += len(entries)
		}
	}
	return total
}

// Summary returns an ordered, human-readable listing of the environment,
// one line per collection, suitable as oracle context.
//
// Outputs:
//
//	[]string - Lines like "search/results: 3 entries (12 objects)".
func (e *Environment) Summary() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	lines := make([]string, 0, len(e.order))
	for _, k := range e.order {
		entries := e.entries[k.tool][k.collection]
		objects := 0
		for _, entry := range entries {
			objects += len(entry.Objects)
		}
		lines = append(lines, fmt.Sprintf("%s/%s: %d entries (%d objects)",
			k.tool, k.collection, len(entries), objects))
	}
	return lines
}
