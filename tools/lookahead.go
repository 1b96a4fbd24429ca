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

import "github.com/AleutianAI/kelp/decision"

// Lookahead builds the structural preview of tools reachable after each tool
// at the given node.
//
// Description:
//
//	For every tool at the node, the map value is the lookahead of the node
//	reached after that tool (empty for tools without a successor). Traversal
//	is index-based over the registry arena with a depth cap and a visited
//	set along the current path, so it terminates even if the registration
//	graph contains cycles or shared references.
//
// Inputs:
//
//	reg - The node arena. Must not be nil.
//	nodeID - The node to build the lookahead for.
//	maxDepth - Maximum traversal depth. Values < 1 produce an empty map.
//
// Outputs:
//
//	decision.LookaheadMap - The preview. Never nil for a registered node.
func Lookahead(reg *Registry, nodeID string, maxDepth int) decision.LookaheadMap {
	return lookahead(reg, nodeID, maxDepth, map[string]bool{nodeID: true})
}

func lookahead(reg *Registry, nodeID string, depth int, visited map[string]bool) decision.LookaheadMap {
	node, ok := reg.Node(nodeID)
	if !ok || depth < 1 {
		return decision.LookaheadMap{}
	}

	m := make(decision.LookaheadMap, len(node.Tools))
	for _, d := range node.Tools {
		succ, hasSucc := node.Successors[d.Name]
		if !hasSucc || visited[succ] {
			m[d.Name] = decision.LookaheadMap{}
			continue
		}
		visited[succ] = true
		m[d.Name] = lookahead(reg, succ, depth-1, visited)
		delete(visited, succ)
	}
	return m
}
