// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MaxNodesInArena bounds the declared node graph.
const MaxNodesInArena = 200

// NodesFile is the root structure of a node-wiring YAML file. It declares the
// decision graph — nodes, instructions, tool schemas, successors — while the
// executable half of each tool (availability predicate, execute function) is
// bound in code at assembly time.
type NodesFile struct {
	Nodes []NodeSpec `yaml:"nodes" validate:"required,min=1,dive"`
}

// NodeSpec declares one decision node.
type NodeSpec struct {
	// ID is the node's stable identifier.
	ID string `yaml:"id" validate:"required"`

	// Instruction is the static decision instruction for the node.
	Instruction string `yaml:"instruction"`

	// Tools are the tool declarations for this node.
	Tools []ToolDecl `yaml:"tools" validate:"required,min=1,dive"`

	// Successors maps a tool name to the node reached after executing it.
	Successors map[string]string `yaml:"successors"`
}

// ToolDecl declares one tool's oracle-facing schema.
type ToolDecl struct {
	Name        string          `yaml:"name" validate:"required"`
	Description string          `yaml:"description"`
	Terminal    bool            `yaml:"terminal"`
	Required    bool            `yaml:"required"`
	Parameters  []ParameterDecl `yaml:"parameters" validate:"dive"`
}

// ParameterDecl declares one tool input parameter.
type ParameterDecl struct {
	Name        string `yaml:"name" validate:"required"`
	Type        string `yaml:"type" validate:"omitempty,oneof=string int float bool list map any"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     any    `yaml:"default"`
}

// LoadNodes reads and validates a node-wiring file.
//
// Description:
//
//	Applies the same path and size checks as the main config loader, then
//	validates the declared graph structurally: non-empty nodes, named tools,
//	known parameter types, and successor references to declared node IDs.
//	Structural problems fail the load; they are configuration errors and
//	must surface before a run starts.
//
// Inputs:
//
//	path - The YAML file to load.
//
// Outputs:
//
//	*NodesFile - The validated declaration.
//	error - Non-nil when the file is unreadable, malformed, or structurally
//	  invalid.
func LoadNodes(path string) (*NodesFile, error) {
	data, err := readExternal(path)
	if err != nil {
		return nil, err
	}

	var file NodesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshaling %s: %w", path, err)
	}
	if len(file.Nodes) > MaxNodesInArena {
		return nil, fmt.Errorf("too many nodes: %d (max %d)", len(file.Nodes), MaxNodesInArena)
	}

	if err := validator.New().Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid node wiring: %w", err)
	}

	ids := make(map[string]bool, len(file.Nodes))
	for _, node := range file.Nodes {
		if ids[node.ID] {
			return nil, fmt.Errorf("duplicate node id %q", node.ID)
		}
		ids[node.ID] = true
	}
	for _, node := range file.Nodes {
		declared := make(map[string]bool, len(node.Tools))
		for _, tool := range node.Tools {
			if declared[tool.Name] {
				return nil, fmt.Errorf("node %s: duplicate tool %q", node.ID, tool.Name)
			}
			declared[tool.Name] = true
		}
		for toolName, succ := range node.Successors {
			if !declared[toolName] {
				return nil, fmt.Errorf("node %s: successor for undeclared tool %q", node.ID, toolName)
			}
			if !ids[succ] {
				return nil, fmt.Errorf("node %s: successor %q of tool %q is not a declared node", node.ID, succ, toolName)
			}
		}
	}

	return &file, nil
}
