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

import "testing"

func TestGraphNode(t *testing.T) {
	node := NewGraphNode(1, "mynode")

	if node.ID() != 1 || node.Kind() != "mynode" || node.Version() != 1 {
		t.Error("Unexpected node state:", node)
		return
	}

	node.SetAttr("name", StringValue("Node1"))

	if node.Version() != 2 {
		t.Error("Version should increase on attribute writes:", node.Version())
		return
	}

	if res := node.Attr("name"); !res.Equals(StringValue("Node1")) {
		t.Error("Unexpected result:", res)
		return
	}

	// A missing attribute reads as null

	if res := node.Attr("foo"); !res.IsNull() {
		t.Error("Unexpected result:", res)
		return
	}

	// Setting null removes the attribute

	node.SetAttr("name", NullValue())

	if _, ok := node.Data()["name"]; ok {
		t.Error("Attribute should have been removed")
		return
	}

	node.SetAttr("name", StringValue("Node1"))
	node.SetAttr("count", IntValue(3))

	if res := node.String(); res != "GraphNode 1 (mynode) v5\n"+
		"  count : 3\n"+
		"  name  : Node1\n" {
		t.Error("Unexpected result:", res)
		return
	}

	clone := NodeClone(node)

	if !NodeCompare(node, clone, nil) || clone.ID() != node.ID() || clone.Version() != node.Version() {
		t.Error("Clone should be identical to the original")
		return
	}

	clone.SetAttr("count", IntValue(4))

	if NodeCompare(node, clone, []string{"count"}) {
		t.Error("Clone should no longer compare equal on count")
		return
	}

	if !NodeCompare(node, clone, []string{"name"}) {
		t.Error("Clone should still compare equal on name")
		return
	}
}

func TestGraphEdge(t *testing.T) {
	edge := NewGraphEdge(9, "myedge", []uint64{1, 2, 9})

	if edge.ID() != 9 || edge.Kind() != "myedge" || edge.Arity() != 3 {
		t.Error("Unexpected edge state:", edge)
		return
	}

	if !edge.HasTarget(2) || edge.HasTarget(3) {
		t.Error("Unexpected target lookup result")
		return
	}

	edge.SetAttr("weight", FloatValue(0.5))

	if res := edge.String(); res != "GraphEdge 9 (myedge) v2\n"+
		"  to     : [1 2 9]\n"+
		"  weight : 0.5\n" {
		t.Error("Unexpected result:", res)
		return
	}

	clone := EdgeClone(edge)

	if clone.Arity() != 3 || !clone.HasTarget(9) || !NodeCompare(edge, clone, nil) {
		t.Error("Clone should be identical to the original")
		return
	}

	// Changing the clone targets must not affect the original

	clone.Targets()[0] = 42

	if edge.Targets()[0] != 1 {
		t.Error("Original targets should be unchanged")
		return
	}
}

func TestNodeSorting(t *testing.T) {
	list := []Node{NewGraphNode(3, "a"), NewGraphNode(1, "a"), NewGraphNode(2, "a")}

	NodeSort(list)

	if list[0].ID() != 1 || list[1].ID() != 2 || list[2].ID() != 3 {
		t.Error("Unexpected sort order:", list)
		return
	}
}
