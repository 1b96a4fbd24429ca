// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"errors"
	"testing"
)

func TestAddNodeValidation(t *testing.T) {
	reg := NewRegistry()

	if err := reg.AddNode(nil); err == nil {
		t.Error("nil node should fail")
	}
	if err := reg.AddNode(&Node{ID: "empty"}); !errors.Is(err, ErrNoTools) {
		t.Errorf("empty node: got %v", err)
	}

	dup := &Node{ID: "dup", Tools: []*Definition{
		{Name: "search", Execute: noopExecute},
		{Name: "search", Execute: noopExecute},
	}}
	if err := reg.AddNode(dup); !errors.Is(err, ErrDuplicateTool) {
		t.Errorf("duplicate tool: got %v", err)
	}

	noExec := &Node{ID: "noexec", Tools: []*Definition{{Name: "search"}}}
	if err := reg.AddNode(noExec); err == nil {
		t.Error("tool without execute should fail")
	}

	ok := &Node{ID: "root", Tools: []*Definition{{Name: "search", Execute: noopExecute}}}
	if err := reg.AddNode(ok); err != nil {
		t.Fatalf("valid node rejected: %v", err)
	}
	if err := reg.AddNode(ok); err == nil {
		t.Error("duplicate node ID should fail")
	}
}

func TestValidateArena(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Validate("root"); !errors.Is(err, ErrEmptyRegistry) {
		t.Errorf("empty registry: got %v", err)
	}

	root := &Node{
		ID:         "root",
		Tools:      []*Definition{{Name: "search", Execute: noopExecute}},
		Successors: map[string]string{"search": "review"},
	}
	if err := reg.AddNode(root); err != nil {
		t.Fatal(err)
	}

	if err := reg.Validate("missing"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("missing root: got %v", err)
	}
	if err := reg.Validate("root"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("dangling successor: got %v", err)
	}

	review := &Node{ID: "review", Tools: []*Definition{{Name: "summarize", Execute: noopExecute}}}
	if err := reg.AddNode(review); err != nil {
		t.Fatal(err)
	}
	if err := reg.Validate("root"); err != nil {
		t.Errorf("valid arena rejected: %v", err)
	}
}

func TestValidateSuccessorForUnregisteredTool(t *testing.T) {
	reg := NewRegistry()
	node := &Node{
		ID:         "root",
		Tools:      []*Definition{{Name: "search", Execute: noopExecute}},
		Successors: map[string]string{"ghost": "root"},
	}
	if err := reg.AddNode(node); err != nil {
		t.Fatal(err)
	}
	if err := reg.Validate("root"); err == nil {
		t.Error("successor for unregistered tool should fail validation")
	}
}

func TestNodeIDsSorted(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		node := &Node{ID: id, Tools: []*Definition{{Name: "t", Execute: noopExecute}}}
		if err := reg.AddNode(node); err != nil {
			t.Fatal(err)
		}
	}

	ids := reg.NodeIDs()
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
	if reg.Count() != 3 {
		t.Errorf("count: got %d", reg.Count())
	}
}
