// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeNodesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodes.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadNodesValidGraph(t *testing.T) {
	path := writeNodesFile(t, `
nodes:
  - id: root
    instruction: "Gather candidate documents."
    tools:
      - name: search
        description: "Full-text search."
        parameters:
          - name: query
            type: string
            required: true
          - name: limit
            type: int
            default: 10
      - name: summarize
        terminal: true
    successors:
      search: review
  - id: review
    tools:
      - name: summarize
        terminal: true
        required: true
`)

	file, err := LoadNodes(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(file.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(file.Nodes))
	}

	root := file.Nodes[0]
	if root.ID != "root" || len(root.Tools) != 2 {
		t.Errorf("root node malformed: %+v", root)
	}
	if root.Successors["search"] != "review" {
		t.Errorf("successor not parsed: %v", root.Successors)
	}
	search := root.Tools[0]
	if len(search.Parameters) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(search.Parameters))
	}
	if !search.Parameters[0].Required || search.Parameters[0].Type != "string" {
		t.Errorf("query parameter malformed: %+v", search.Parameters[0])
	}
	if search.Parameters[1].Default != 10 {
		t.Errorf("default not parsed: %v", search.Parameters[1].Default)
	}
	if !file.Nodes[1].Tools[0].Terminal || !file.Nodes[1].Tools[0].Required {
		t.Errorf("tool flags lost: %+v", file.Nodes[1].Tools[0])
	}
}

func TestLoadNodesRejectsInvalidFiles(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty nodes", "nodes: []\n"},
		{"node without id", "nodes:\n  - tools:\n      - name: search\n"},
		{"node without tools", "nodes:\n  - id: root\n"},
		{"unnamed tool", "nodes:\n  - id: root\n    tools:\n      - description: nameless\n"},
		{"unknown parameter type", `
nodes:
  - id: root
    tools:
      - name: search
        parameters:
          - name: query
            type: uuid
`},
		{"duplicate node id", `
nodes:
  - id: root
    tools:
      - name: search
  - id: root
    tools:
      - name: summarize
`},
		{"duplicate tool in node", `
nodes:
  - id: root
    tools:
      - name: search
      - name: search
`},
		{"successor for undeclared tool", `
nodes:
  - id: root
    tools:
      - name: search
    successors:
      fetch: root
`},
		{"successor to undeclared node", `
nodes:
  - id: root
    tools:
      - name: search
    successors:
      search: missing
`},
		{"malformed yaml", "nodes: [\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeNodesFile(t, tc.content)
			if _, err := LoadNodes(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadNodesMissingFile(t *testing.T) {
	if _, err := LoadNodes(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestLoadNodesRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.yaml")
	big := make([]byte, MaxConfigFileSize+1)
	if err := os.WriteFile(path, big, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadNodes(path); err == nil {
		t.Error("oversized file should fail")
	}
}
