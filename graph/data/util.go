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

import "sort"

/*
NodeCompare compares the attributes of two nodes. If no attributes are
given then all attributes are compared.
*/
func NodeCompare(node1 Node, node2 Node, attrs []string) bool {

	if attrs == nil {
		if len(node1.Data()) != len(node2.Data()) {
			return false
		}

		attrs = make([]string, 0, len(node1.Data()))

		for attr := range node1.Data() {
			attrs = append(attrs, attr)
		}
	}

	for _, attr := range attrs {
		if !node1.Attr(attr).Equals(node2.Attr(attr)) {
			return false
		}
	}

	return true
}

/*
NodeClone clones a node. The clone keeps id, kind and version of the
original.
*/
func NodeClone(node Node) Node {
	d := make(map[string]Value)
	for k, v := range node.Data() {
		d[k] = v
	}

	return &graphNode{node.ID(), node.Kind(), node.Version(), d}
}

/*
EdgeClone clones an edge. The clone keeps id, kind, version and targets of
the original.
*/
func EdgeClone(edge Edge) Edge {
	d := make(map[string]Value)
	for k, v := range edge.Data() {
		d[k] = v
	}

	t := make([]uint64, edge.Arity())
	copy(t, edge.Targets())

	return &graphEdge{&graphNode{edge.ID(), edge.Kind(), edge.Version(), d}, t}
}

/*
NodeSort sorts a list of nodes by id.
*/
func NodeSort(list []Node) {
	sort.Sort(NodeSlice(list))
}

/*
NodeSlice attaches the methods of sort.Interface to []Node, sorting in
increasing order by id.
*/
type NodeSlice []Node

func (p NodeSlice) Len() int           { return len(p) }
func (p NodeSlice) Less(i, j int) bool { return p[i].ID() < p[j].ID() }
func (p NodeSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
