/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package schema

import (
	"fmt"
	"strings"
	"testing"

	"github.com/krotik/weavedb/graph/data"
)

/*
testSnapshot builds a small schema with multiple inheritance:

	item (abstract, attrs: name required)
	task -> item (attrs: title required, priority int default 1,
	              blocker node ref to task, evidence edge ref to causes)
	event -> item (attrs: timestamp time required)
	milestone -> task, event

	causes  edge (event, event)
	relates edge (any, any)
	annotates edge (edge<causes>, item)
*/
func testSnapshot(t *testing.T) *Snapshot {
	ss, err := NewSnapshot([]NodeKindDef{
		{
			Name:     "item",
			Abstract: true,
			Attrs:    []AttrDef{{Name: "name", Type: data.TypeString, Required: true}},
		},
		{
			Name:    "task",
			Parents: []string{"item"},
			Attrs: []AttrDef{
				{Name: "title", Type: data.TypeString, Required: true},
				{Name: "priority", Type: data.TypeInt, Default: data.IntValue(1)},
				{Name: "blocker", Type: data.TypeNodeRef, RefKind: "task"},
				{Name: "evidence", Type: data.TypeEdgeRef, RefKind: "causes"},
			},
		},
		{
			Name:    "event",
			Parents: []string{"item"},
			Attrs:   []AttrDef{{Name: "timestamp", Type: data.TypeTime, Required: true}},
		},
		{
			Name:    "milestone",
			Parents: []string{"task", "event"},
		},
	}, []EdgeKindDef{
		{
			Name:    "causes",
			Targets: []TargetDef{{Kinds: []string{"event"}}, {Kinds: []string{"event"}}},
		},
		{
			Name:    "relates",
			Targets: []TargetDef{{Any: true}, {Any: true}},
			Attrs:   []AttrDef{{Name: "weight", Type: data.TypeFloat}},
		},
		{
			Name:    "annotates",
			Targets: []TargetDef{{EdgeKind: "causes"}, {Kinds: []string{"item"}}},
		},
	})

	if err != nil {
		t.Error(err)
		return nil
	}

	return ss
}

func TestSnapshotBuild(t *testing.T) {
	ss := testSnapshot(t)
	if ss == nil {
		return
	}

	if res := ss.String(); res != "Schema snapshot - 4 node kinds, 3 edge kinds" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := fmt.Sprint(ss.NodeKinds()); res != "[event item milestone task]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := fmt.Sprint(ss.EdgeKinds()); res != "[annotates causes relates]" {
		t.Error("Unexpected result:", res)
		return
	}

	// Subtype closures are resolved across multiple parents

	if res := fmt.Sprint(ss.Subtypes("item")); res != "[event item milestone task]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := fmt.Sprint(ss.Subtypes("event")); res != "[event milestone]" {
		t.Error("Unexpected result:", res)
		return
	}

	if !ss.IsSubtype("task", "milestone") || ss.IsSubtype("milestone", "task") {
		t.Error("Unexpected subtype result")
		return
	}

	// Milestones inherit attributes from both parents

	if ad := ss.Attr("milestone", "timestamp"); ad == nil || ad.Type != data.TypeTime {
		t.Error("Unexpected result:", ad)
		return
	}

	if ad := ss.Attr("milestone", "priority"); ad == nil || !ad.Default.Equals(data.IntValue(1)) {
		t.Error("Unexpected result:", ad)
		return
	}

	if ad := ss.Attr("task", "timestamp"); ad != nil {
		t.Error("Tasks should not have a timestamp attribute")
		return
	}
}

func TestSnapshotBuildErrors(t *testing.T) {

	_, err := NewSnapshot([]NodeKindDef{
		{Name: "a", Parents: []string{"b"}},
		{Name: "b", Parents: []string{"a"}},
	}, nil)

	if err == nil || !strings.HasPrefix(err.Error(), "Inheritance cycle involving kind:") {
		t.Error("Unexpected result:", err)
		return
	}

	_, err = NewSnapshot([]NodeKindDef{{Name: "a"}, {Name: "a"}}, nil)

	if err == nil || err.Error() != "Duplicate node kind: a" {
		t.Error("Unexpected result:", err)
		return
	}

	_, err = NewSnapshot([]NodeKindDef{{Name: "a", Parents: []string{"x"}}}, nil)

	if err == nil || err.Error() != "Unknown parent kind: x" {
		t.Error("Unexpected result:", err)
		return
	}

	_, err = NewSnapshot([]NodeKindDef{{Name: "a"}}, []EdgeKindDef{{Name: "e"}})

	if err == nil || err.Error() != "Edge kind without targets: e" {
		t.Error("Unexpected result:", err)
		return
	}

	_, err = NewSnapshot([]NodeKindDef{{Name: "a"}},
		[]EdgeKindDef{{Name: "e", Targets: []TargetDef{{Kinds: []string{"x"}}}}})

	if err == nil || err.Error() != "Unknown target kind x on edge kind e" {
		t.Error("Unexpected result:", err)
		return
	}

	_, err = NewSnapshot([]NodeKindDef{
		{Name: "a", Attrs: []AttrDef{{Name: "x", Type: data.TypeInt}}},
		{Name: "b", Attrs: []AttrDef{{Name: "x", Type: data.TypeString}}},
		{Name: "c", Parents: []string{"a", "b"}},
	}, nil)

	if err == nil || err.Error() != "Conflicting inherited attribute x on kind c" {
		t.Error("Unexpected result:", err)
		return
	}
}

/*
testLookup is a simple kind lookup for target checks.
*/
type testLookup map[uint64]string

func (tl testLookup) EntityKind(id uint64) (string, bool) {
	kind := tl[id]
	return kind, kind == "causes" || kind == "relates" || kind == "annotates"
}

func TestAttrChecks(t *testing.T) {
	ss := testSnapshot(t)
	if ss == nil {
		return
	}

	lookup := testLookup{}

	attrs := map[string]data.Value{
		"name":  data.StringValue("t1"),
		"title": data.StringValue("Test"),
	}

	if err := ss.CheckNodeAttrs("task", attrs, lookup); err != nil {
		t.Error(err)
		return
	}

	// The priority default was filled in

	if !attrs["priority"].Equals(data.IntValue(1)) {
		t.Error("Unexpected result:", attrs)
		return
	}

	err := ss.CheckNodeAttrs("task", map[string]data.Value{"name": data.StringValue("t")}, lookup)

	if err == nil || err.Error() != "Required attribute title of kind task is missing" {
		t.Error("Unexpected result:", err)
		return
	}

	err = ss.CheckNodeAttrs("item", map[string]data.Value{}, lookup)

	if err == nil || err.Error() != "Cannot instantiate abstract kind: item" {
		t.Error("Unexpected result:", err)
		return
	}

	err = ss.CheckNodeAttrs("foo", nil, lookup)

	if err == nil || err.Error() != "Unknown node kind: foo" {
		t.Error("Unexpected result:", err)
		return
	}

	err = ss.CheckNodeAttrs("task", map[string]data.Value{
		"name":  data.StringValue("t"),
		"title": data.IntValue(1),
	}, lookup)

	if err == nil || err.Error() != "Attribute title of kind task requires a string value but got int" {
		t.Error("Unexpected result:", err)
		return
	}

	err = ss.CheckAttr("task", "undeclared", data.IntValue(1), lookup)

	if err == nil || err.Error() != "Attribute undeclared is not declared for kind task" {
		t.Error("Unexpected result:", err)
		return
	}

	if err = ss.CheckAttr("task", "priority", data.NullValue(), lookup); err != nil {
		t.Error("Optional attributes should be removable:", err)
		return
	}

	err = ss.CheckAttr("task", "title", data.NullValue(), lookup)

	if err == nil || err.Error() != "Required attribute title of kind task cannot be removed" {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestRefAttrChecks(t *testing.T) {
	ss := testSnapshot(t)
	if ss == nil {
		return
	}

	lookup := testLookup{
		1: "event",
		2: "milestone",
		3: "task",
		4: "causes",
		5: "relates",
	}

	if err := ss.CheckAttr("task", "blocker", data.NodeRefValue(3), lookup); err != nil {
		t.Error(err)
		return
	}

	// Subtypes of the declared reference kind are accepted

	if err := ss.CheckAttr("task", "blocker", data.NodeRefValue(2), lookup); err != nil {
		t.Error(err)
		return
	}

	err := ss.CheckAttr("task", "blocker", data.NodeRefValue(1), lookup)

	if err == nil || err.Error() != "Attribute blocker of kind task must reference a task but 1 is a event" {
		t.Error("Unexpected result:", err)
		return
	}

	err = ss.CheckAttr("task", "blocker", data.NodeRefValue(99), lookup)

	if err == nil || err.Error() != "Attribute blocker of kind task references a nonexistent entity: 99" {
		t.Error("Unexpected result:", err)
		return
	}

	err = ss.CheckAttr("task", "blocker", data.NodeRefValue(4), lookup)

	if err == nil || err.Error() != "Attribute blocker of kind task must reference a node but 4 is a causes edge" {
		t.Error("Unexpected result:", err)
		return
	}

	if err := ss.CheckAttr("task", "evidence", data.EdgeRefValue(4), lookup); err != nil {
		t.Error(err)
		return
	}

	err = ss.CheckAttr("task", "evidence", data.EdgeRefValue(5), lookup)

	if err == nil || err.Error() != "Attribute evidence of kind task must reference a causes but 5 is a relates" {
		t.Error("Unexpected result:", err)
		return
	}

	err = ss.CheckAttr("task", "evidence", data.EdgeRefValue(1), lookup)

	if err == nil || err.Error() != "Attribute evidence of kind task must reference an edge but 1 is a event node" {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestTargetChecks(t *testing.T) {
	ss := testSnapshot(t)
	if ss == nil {
		return
	}

	lookup := testLookup{
		1: "event",
		2: "milestone",
		3: "task",
		4: "causes",
		5: "relates",
	}

	if err := ss.CheckEdgeTargets("causes", []uint64{1, 2}, lookup); err != nil {
		t.Error(err)
		return
	}

	// Any positions accept nodes and edges alike

	if err := ss.CheckEdgeTargets("relates", []uint64{3, 4}, lookup); err != nil {
		t.Error(err)
		return
	}

	// Higher-order target positions require an edge of the right kind

	if err := ss.CheckEdgeTargets("annotates", []uint64{4, 3}, lookup); err != nil {
		t.Error(err)
		return
	}

	err := ss.CheckEdgeTargets("annotates", []uint64{5, 3}, lookup)

	if err == nil || err.Error() != "Target 0 of annotates edge must be a causes edge but is a relates" {
		t.Error("Unexpected result:", err)
		return
	}

	err = ss.CheckEdgeTargets("causes", []uint64{1, 3}, lookup)

	if err == nil || err.Error() != "Target 1 of causes edge cannot be of kind task" {
		t.Error("Unexpected result:", err)
		return
	}

	err = ss.CheckEdgeTargets("causes", []uint64{1, 4}, lookup)

	if err == nil || err.Error() != "Target 1 of causes edge must be a node but is a causes edge" {
		t.Error("Unexpected result:", err)
		return
	}

	err = ss.CheckEdgeTargets("causes", []uint64{1}, lookup)

	if err == nil || err.Error() != "Edge kind causes requires 2 targets but got 1" {
		t.Error("Unexpected result:", err)
		return
	}

	err = ss.CheckEdgeTargets("causes", []uint64{1, 99}, lookup)

	if err == nil || err.Error() != "Target 1 of causes edge does not exist: 99" {
		t.Error("Unexpected result:", err)
		return
	}
}
