// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrEmptyRegistry is returned when a run starts with no nodes registered.
	ErrEmptyRegistry = errors.New("tool registry has no nodes")

	// ErrUnknownNode is returned when a node ID is not registered.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNoTools is returned when a node is registered without any tools.
	ErrNoTools = errors.New("node has no tools")

	// ErrDuplicateTool is returned when a node registers two tools with the
	// same name.
	ErrDuplicateTool = errors.New("duplicate tool name")
)

// Node is one location in the action graph: a static instruction, the tools
// selectable there, and the nodes reachable after each tool.
type Node struct {
	// ID is the node's stable identifier within the registry arena.
	ID string

	// Instruction is the static decision instruction for this node.
	Instruction string

	// Tools are the tools registered at this node, in registration order.
	Tools []*Definition

	// Successors maps a tool name to the node ID reached after executing it.
	// Tools without an entry keep the run at the current node.
	Successors map[string]string
}

// Tool returns the definition registered under the given name.
//
// Outputs:
//
//	*Definition - The definition, or nil if not found.
//	bool - True if found.
func (n *Node) Tool(name string) (*Definition, bool) {
	for _, d := range n.Tools {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Registry is an arena of decision nodes indexed by stable string IDs.
//
// Nodes are registered at setup time and are immutable for the run's
// duration. Registration fails fast on structural problems (empty nodes,
// duplicate tool names) so misconfiguration surfaces before the loop begins.
//
// Thread Safety: Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes: make(map[string]*Node),
	}
}

// AddNode registers a node in the arena.
//
// Description:
//
//	Validates the node before registration: the ID must be non-empty, at
//	least one tool must be present, tool names must be unique within the
//	node, every tool needs an Execute function, and successor references
//	may name not-yet-registered nodes (the arena is checked as a whole by
//	Validate).
//
// Inputs:
//
//	node - The node to register. Must not be nil.
//
// Outputs:
//
//	error - Non-nil if the node is structurally invalid or the ID is taken.
func (r *Registry) AddNode(node *Node) error {
	if node == nil {
		return errors.New("node must not be nil")
	}
	if node.ID == "" {
		return errors.New("node ID must not be empty")
	}
	if len(node.Tools) == 0 {
		return fmt.Errorf("%w: %s", ErrNoTools, node.ID)
	}

	seen := make(map[string]bool, len(node.Tools))
	for _, d := range node.Tools {
		if d == nil || d.Name == "" {
			return fmt.Errorf("node %s: tool with empty name", node.ID)
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: %s in node %s", ErrDuplicateTool, d.Name, node.ID)
		}
		if d.Execute == nil {
			return fmt.Errorf("node %s: tool %s has no execute function", node.ID, d.Name)
		}
		seen[d.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[node.ID]; ok {
		return fmt.Errorf("node %s already registered", node.ID)
	}
	r.nodes[node.ID] = node
	return nil
}

// Node returns a registered node by ID.
func (r *Registry) Node(id string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.nodes[id]
	return node, ok
}

// NodeIDs returns all registered node IDs, sorted for deterministic output.
func (r *Registry) NodeIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered nodes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

// Validate checks the arena as a whole before a run starts.
//
// Description:
//
//	Confirms the registry is non-empty, the root node exists, and every
//	successor reference points at a registered node. Cycles are permitted;
//	lookahead traversal caps depth and tracks visited nodes.
//
// Inputs:
//
//	rootID - The node the run starts at.
//
// Outputs:
//
//	error - Non-nil on structural problems. These are configuration errors
//	and must fail the run before the loop begins.
func (r *Registry) Validate(rootID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.nodes) == 0 {
		return ErrEmptyRegistry
	}
	if _, ok := r.nodes[rootID]; !ok {
		return fmt.Errorf("%w: root %s", ErrUnknownNode, rootID)
	}

	for id, node := range r.nodes {
		for toolName, succ := range node.Successors {
			if _, ok := node.Tool(toolName); !ok {
				return fmt.Errorf("node %s: successor for unregistered tool %s", id, toolName)
			}
			if _, ok := r.nodes[succ]; !ok {
				return fmt.Errorf("%w: node %s references %s after %s", ErrUnknownNode, id, succ, toolName)
			}
		}
	}
	return nil
}
