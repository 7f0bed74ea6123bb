/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package data

/*
Edge models edges in the graph. An edge connects an ordered list of
targets. Each target may be a node or another edge.
*/
type Edge interface {
	Node

	/*
		Targets returns the ordered target ids of this edge.
	*/
	Targets() []uint64

	/*
		Arity returns the number of targets of this edge.
	*/
	Arity() int

	/*
		HasTarget checks if a given id is among the targets of this edge.
	*/
	HasTarget(id uint64) bool
}

/*
graphEdge data structure
*/
type graphEdge struct {
	*graphNode
	targets []uint64 // Ordered targets of this edge
}

/*
NewGraphEdge creates a new Edge instance.
*/
func NewGraphEdge(id uint64, kind string, targets []uint64) Edge {
	t := make([]uint64, len(targets))
	copy(t, targets)

	return &graphEdge{&graphNode{id, kind, 1, make(map[string]Value)}, t}
}

/*
Targets returns the ordered target ids of this edge.
*/
func (ge *graphEdge) Targets() []uint64 {
	return ge.targets
}

/*
Arity returns the number of targets of this edge.
*/
func (ge *graphEdge) Arity() int {
	return len(ge.targets)
}

/*
HasTarget checks if a given id is among the targets of this edge.
*/
func (ge *graphEdge) HasTarget(id uint64) bool {
	for _, t := range ge.targets {
		if t == id {
			return true
		}
	}

	return false
}

/*
String returns a string representation of this edge.
*/
func (ge *graphEdge) String() string {
	return dataToString("GraphEdge", ge)
}
