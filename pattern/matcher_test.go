/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pattern

import (
	"fmt"
	"testing"

	"github.com/krotik/weavedb/graph/data"
	"github.com/krotik/weavedb/graph/schema"
	"github.com/krotik/weavedb/graph/storage"
)

/*
matcherSnapshot builds the schema used by the matcher tests.
*/
func matcherSnapshot(t *testing.T) *schema.Snapshot {
	snap, err := schema.NewSnapshot([]schema.NodeKindDef{
		{
			Name:     "item",
			Abstract: true,
			Attrs: []schema.AttrDef{
				{Name: "title", Type: data.TypeString},
			},
		},
		{
			Name:    "task",
			Parents: []string{"item"},
			Attrs: []schema.AttrDef{
				{Name: "name", Type: data.TypeString, Unique: true},
				{Name: "effort", Type: data.TypeInt},
			},
		},
		{
			Name:    "event",
			Parents: []string{"item"},
			Attrs: []schema.AttrDef{
				{Name: "timestamp", Type: data.TypeTime},
			},
		},
	}, []schema.EdgeKindDef{
		{
			Name: "causes",
			Targets: []schema.TargetDef{
				{Kinds: []string{"item"}},
				{Kinds: []string{"item"}},
			},
		},
		{
			Name: "notes",
			Targets: []schema.TargetDef{
				{EdgeKind: "causes"},
			},
			Attrs: []schema.AttrDef{
				{Name: "text", Type: data.TypeString},
			},
		},
	})

	if err != nil {
		t.Fatal(err)
	}

	return snap
}

/*
matcherGraph builds the store used by the matcher tests:

	task 1 (name a, effort 1)
	task 2 (name b, effort 2)
	event 3 (timestamp 100)
	causes 4 (1 -> 2)
	causes 5 (2 -> 3)
	notes 6 (-> 4)
*/
func matcherGraph(t *testing.T) *storage.MemoryStore {
	ms := storage.NewMemoryStore("test")

	n1 := data.NewGraphNode(ms.NewID(), "task")
	n1.SetAttr("name", data.StringValue("a"))
	n1.SetAttr("effort", data.IntValue(1))
	ms.InsertNode(n1)

	n2 := data.NewGraphNode(ms.NewID(), "task")
	n2.SetAttr("name", data.StringValue("b"))
	n2.SetAttr("effort", data.IntValue(2))
	ms.InsertNode(n2)

	n3 := data.NewGraphNode(ms.NewID(), "event")
	n3.SetAttr("timestamp", data.TimeValue(100))
	ms.InsertNode(n3)

	ms.InsertEdge(data.NewGraphEdge(ms.NewID(), "causes", []uint64{1, 2}))
	ms.InsertEdge(data.NewGraphEdge(ms.NewID(), "causes", []uint64{2, 3}))
	ms.InsertEdge(data.NewGraphEdge(ms.NewID(), "notes", []uint64{4}))

	return ms
}

/*
allBindings drains an iterator into a string for comparison.
*/
func allBindings(t *testing.T, it *BindingIterator) string {
	var res []string

	for it.HasNext() {
		res = append(res, it.Next().String())
	}

	if it.LastError != nil {
		t.Error("Unexpected error:", it.LastError)
	}

	return fmt.Sprint(res)
}

func TestMatchScan(t *testing.T) {
	m := NewMatcher(matcherSnapshot(t), matcherGraph(t), 100)

	it := m.Match(&Pattern{Vars: []VarDecl{{"x", "task"}}})
	if res := allBindings(t, it); res != "[{x=1} {x=2}]" {
		t.Error("Unexpected result:", res)
		return
	}

	// An abstract kind matches all its subkinds

	it = m.Match(&Pattern{Vars: []VarDecl{{"x", "item"}}})
	if res := allBindings(t, it); res != "[{x=1} {x=2} {x=3}]" {
		t.Error("Unexpected result:", res)
		return
	}

	// Iterators restart from the beginning

	it.Reset()
	if res := allBindings(t, it); res != "[{x=1} {x=2} {x=3}]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := it.Next(); res != nil {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestMatchCondition(t *testing.T) {
	m := NewMatcher(matcherSnapshot(t), matcherGraph(t), 100)

	it := m.Match(&Pattern{
		Vars: []VarDecl{{"x", "task"}},
		Cond: &Binary{OpGt, &AttrAccess{"x", "effort"}, &Literal{data.IntValue(1)}},
	})
	if res := allBindings(t, it); res != "[{x=2}]" {
		t.Error("Unexpected result:", res)
		return
	}

	// A unique attribute equality uses the index lookup

	it = m.Match(&Pattern{
		Vars: []VarDecl{{"x", "task"}},
		Cond: &Binary{OpEq, &AttrAccess{"x", "name"}, &Literal{data.StringValue("a")}},
	})
	if res := allBindings(t, it); res != "[{x=1}]" {
		t.Error("Unexpected result:", res)
		return
	}

	// A constant false condition produces nothing

	it = m.Match(&Pattern{
		Vars: []VarDecl{{"x", "task"}},
		Cond: &Literal{data.BoolValue(false)},
	})
	if res := allBindings(t, it); res != "[]" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestMatchNumericEquality(t *testing.T) {
	snap, err := schema.NewSnapshot([]schema.NodeKindDef{
		{
			Name:  "reading",
			Attrs: []schema.AttrDef{{Name: "weight", Type: data.TypeFloat}},
		},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ms := storage.NewMemoryStore("test")

	n1 := data.NewGraphNode(ms.NewID(), "reading")
	n1.SetAttr("weight", data.FloatValue(2))
	ms.InsertNode(n1)

	n2 := data.NewGraphNode(ms.NewID(), "reading")
	n2.SetAttr("weight", data.FloatValue(2.5))
	ms.InsertNode(n2)

	m := NewMatcher(snap, ms, 100)

	// The index plan must produce the same bindings as the condition
	// semantics - a float attribute pinned by an int literal matches

	it := m.Match(&Pattern{
		Vars: []VarDecl{{"x", "reading"}},
		Cond: &Binary{OpEq, &AttrAccess{"x", "weight"}, &Literal{data.IntValue(2)}},
	})
	if res := allBindings(t, it); res != "[{x=1}]" {
		t.Error("Unexpected result:", res)
		return
	}

	it = m.Match(&Pattern{
		Vars: []VarDecl{{"x", "reading"}},
		Cond: &Binary{OpEq, &AttrAccess{"x", "weight"}, &Literal{data.FloatValue(2)}},
	})
	if res := allBindings(t, it); res != "[{x=1}]" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestMatchEdges(t *testing.T) {
	m := NewMatcher(matcherSnapshot(t), matcherGraph(t), 100)

	it := m.Match(&Pattern{
		Vars:  []VarDecl{{"a", "item"}, {"b", "item"}},
		Edges: []EdgeMatch{{Kind: "causes", Targets: []Term{Var("a"), Var("b")}}},
	})
	if res := allBindings(t, it); res != "[{a=1, b=2} {a=2, b=3}]" {
		t.Error("Unexpected result:", res)
		return
	}

	// An alias binds the matched edge, wildcards match any target

	it = m.Match(&Pattern{
		Vars: []VarDecl{{"a", "item"}},
		Edges: []EdgeMatch{
			{Kind: "causes", Targets: []Term{Var("a"), Wildcard()}, Alias: "c"},
		},
	})
	if res := allBindings(t, it); res != "[{a=1, c=4} {a=2, c=5}]" {
		t.Error("Unexpected result:", res)
		return
	}

	// Edge conditions combine - only 2 has an incoming and an outgoing
	// causes edge

	it = m.Match(&Pattern{
		Vars: []VarDecl{{"a", "item"}},
		Edges: []EdgeMatch{
			{Kind: "causes", Targets: []Term{Wildcard(), Var("a")}},
			{Kind: "causes", Targets: []Term{Var("a"), Wildcard()}},
		},
	})
	if res := allBindings(t, it); res != "[{a=2}]" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestMatchHigherOrder(t *testing.T) {
	m := NewMatcher(matcherSnapshot(t), matcherGraph(t), 100)

	// A declared edge variable is matched by an edge pattern targeting
	// it - only causes edge 4 is annotated

	it := m.Match(&Pattern{
		Vars:  []VarDecl{{"c", "causes"}},
		Edges: []EdgeMatch{{Kind: "notes", Targets: []Term{Var("c")}}},
	})
	if res := allBindings(t, it); res != "[{c=4}]" {
		t.Error("Unexpected result:", res)
		return
	}

	// Edge attributes are reachable through the alias

	ms := matcherGraph(t)
	ms.SetAttr(6, "text", data.StringValue("important"))

	it = NewMatcher(matcherSnapshot(t), ms, 100).Match(&Pattern{
		Vars: []VarDecl{{"c", "causes"}},
		Edges: []EdgeMatch{
			{Kind: "notes", Targets: []Term{Var("c")}, Alias: "n"},
		},
		Cond: &Binary{OpEq, &AttrAccess{"n", "text"},
			&Literal{data.StringValue("important")}},
	})
	if res := allBindings(t, it); res != "[{c=4, n=6}]" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestMatchTransitive(t *testing.T) {
	m := NewMatcher(matcherSnapshot(t), matcherGraph(t), 100)

	it := m.Match(&Pattern{
		Vars: []VarDecl{{"a", "item"}, {"b", "item"}},
		Edges: []EdgeMatch{
			{Kind: "causes", Targets: []Term{Var("a"), Var("b")},
				Transitive: TransitiveOneOrMore},
		},
	})
	if res := allBindings(t, it); res != "[{a=1, b=2} {a=1, b=3} {a=2, b=3}]" {
		t.Error("Unexpected result:", res)
		return
	}

	// Zero-or-more includes the zero hop pairs

	it = m.Match(&Pattern{
		Vars: []VarDecl{{"a", "item"}, {"b", "item"}},
		Edges: []EdgeMatch{
			{Kind: "causes", Targets: []Term{Var("a"), Var("b")},
				Transitive: TransitiveZeroOrMore},
		},
	})
	if res := allBindings(t, it); res != "[{a=1, b=1} {a=1, b=2} {a=1, b=3} {a=2, b=2} {a=2, b=3} {a=3, b=3}]" {
		t.Error("Unexpected result:", res)
		return
	}

	// The traversal depth bound cuts off long chains

	it = NewMatcher(matcherSnapshot(t), matcherGraph(t), 1).Match(&Pattern{
		Vars: []VarDecl{{"a", "item"}, {"b", "item"}},
		Edges: []EdgeMatch{
			{Kind: "causes", Targets: []Term{Var("a"), Var("b")},
				Transitive: TransitiveOneOrMore},
		},
	})
	if res := allBindings(t, it); res != "[{a=1, b=2} {a=2, b=3}]" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestMatchTransitiveCycle(t *testing.T) {
	ms := matcherGraph(t)

	// Close the cycle 1 -> 2 -> 3 -> 1

	ms.InsertEdge(data.NewGraphEdge(ms.NewID(), "causes", []uint64{3, 1}))

	m := NewMatcher(matcherSnapshot(t), ms, 100)

	// In a cycle every entity transitively causes itself

	it := m.Match(&Pattern{
		Vars: []VarDecl{{"e", "item"}},
		Edges: []EdgeMatch{
			{Kind: "causes", Targets: []Term{Var("e"), Var("e")},
				Transitive: TransitiveOneOrMore},
		},
	})
	if res := allBindings(t, it); res != "[{e=1} {e=2} {e=3}]" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestMatchAnchored(t *testing.T) {
	m := NewMatcher(matcherSnapshot(t), matcherGraph(t), 100)

	p := &Pattern{
		Vars:  []VarDecl{{"a", "item"}, {"b", "item"}},
		Edges: []EdgeMatch{{Kind: "causes", Targets: []Term{Var("a"), Var("b")}}},
	}

	it := m.MatchAnchored(p, Binding{"a": 2})
	if res := allBindings(t, it); res != "[{a=2, b=3}]" {
		t.Error("Unexpected result:", res)
		return
	}

	it = m.MatchAnchored(p, Binding{"b": 2})
	if res := allBindings(t, it); res != "[{a=1, b=2}]" {
		t.Error("Unexpected result:", res)
		return
	}

	// An anchor of the wrong kind matches nothing

	it = m.MatchAnchored(&Pattern{Vars: []VarDecl{{"x", "task"}}}, Binding{"x": 3})
	if res := allBindings(t, it); res != "[]" {
		t.Error("Unexpected result:", res)
		return
	}

	// An anchor for an unknown variable matches nothing

	it = m.MatchAnchored(p, Binding{"z": 1})
	if res := allBindings(t, it); res != "[]" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestMatchErrors(t *testing.T) {
	m := NewMatcher(matcherSnapshot(t), matcherGraph(t), 100)

	it := m.Match(&Pattern{Vars: []VarDecl{{"x", "nonexistent"}}})
	if it.HasNext() {
		t.Error("Unexpected result")
		return
	}
	if it.LastError == nil ||
		it.LastError.Error() != "GraphError: Invalid data (Unknown kind in pattern: nonexistent)" {
		t.Error("Unexpected result:", it.LastError)
		return
	}

	it = m.Match(&Pattern{
		Vars:  []VarDecl{{"a", "item"}},
		Edges: []EdgeMatch{{Kind: "causes", Targets: []Term{Var("a")}}},
	})
	if it.HasNext() || it.LastError == nil ||
		it.LastError.Error() != "GraphError: Invalid data (Edge pattern has 1 target but causes needs 2)" {
		t.Error("Unexpected result:", it.LastError)
		return
	}

	// Evaluation errors surface through LastError

	it = m.Match(&Pattern{
		Vars: []VarDecl{{"x", "task"}},
		Cond: &Binary{OpEq,
			&Binary{OpDiv, &AttrAccess{"x", "effort"}, &Literal{data.IntValue(0)}},
			&Literal{data.IntValue(1)}},
	})
	if it.HasNext() {
		t.Error("Unexpected result")
		return
	}
	if it.LastError == nil ||
		it.LastError.Error() != "GraphError: Evaluation failed (Division by zero)" {
		t.Error("Unexpected result:", it.LastError)
		return
	}
}

func TestPatternValidate(t *testing.T) {
	snap := matcherSnapshot(t)

	assertErr := func(p *Pattern, expected string) {
		err := p.Validate(snap)
		if err == nil || err.Error() != expected {
			t.Error("Unexpected result:", err)
		}
	}

	assertErr(&Pattern{Vars: []VarDecl{{"x", "task"}, {"x", "task"}}},
		"GraphError: Invalid data (Duplicate pattern variable: x)")

	assertErr(&Pattern{Edges: []EdgeMatch{{Kind: "nonexistent"}}},
		"GraphError: Invalid data (Unknown edge kind in pattern: nonexistent)")

	assertErr(&Pattern{
		Vars:  []VarDecl{{"a", "item"}},
		Edges: []EdgeMatch{{Kind: "causes", Targets: []Term{Var("a"), Var("b")}}}},
		"GraphError: Invalid data (Undeclared variable in edge pattern: b)")

	assertErr(&Pattern{
		Vars: []VarDecl{{"a", "item"}, {"b", "item"}},
		Edges: []EdgeMatch{{Kind: "causes", Targets: []Term{Var("a"), Var("b")},
			Alias: "c", Transitive: TransitiveOneOrMore}}},
		"GraphError: Invalid data (Transitive pattern cannot bind an edge alias: c)")

	assertErr(&Pattern{
		Vars: []VarDecl{{"a", "item"}},
		Edges: []EdgeMatch{{Kind: "notes", Targets: []Term{Var("a")},
			Transitive: TransitiveOneOrMore}}},
		"GraphError: Invalid data (Transitive pattern needs a binary edge kind: notes)")

	assertErr(&Pattern{
		Vars: []VarDecl{{"x", "task"}},
		Cond: &Binary{OpGt, &AttrAccess{"y", "effort"}, &Literal{data.IntValue(1)}}},
		"GraphError: Invalid data (Undeclared variable in condition: y)")
}
