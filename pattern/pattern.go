/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package pattern contains the pattern engine which matches declarative
structural patterns against a graph.

Patterns arrive in compiled form from an external query compiler. A
pattern declares node variables with a kind constraint, edge patterns
over the variables and an optional boolean condition expression. The
matcher produces a lazy sequence of bindings which map every declared
variable to a concrete entity id.

The engine reads the graph through the Source interface which is
implemented both by the plain entity store and by the overlay view of a
running transaction.
*/
package pattern

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"sort"

	"devt.de/krotik/common/stringutil"
	"github.com/krotik/weavedb/graph/data"
	"github.com/krotik/weavedb/graph/schema"
	"github.com/krotik/weavedb/graph/util"
)

/*
Transitive is the traversal mode of an edge pattern.
*/
type Transitive int

/*
Traversal modes for edge patterns
*/
const (
	TransitiveNone       Transitive = iota // Match a single edge
	TransitiveOneOrMore                    // Match a chain of one or more edges
	TransitiveZeroOrMore                   // Match a chain of zero or more edges
)

/*
VarDecl declares a pattern variable with its kind constraint. The
variable matches entities of the declared kind or any of its subkinds.
*/
type VarDecl struct {
	Name string // Variable name
	Kind string // Kind constraint (node kind or edge kind)
}

/*
Term is a single position in the target list of an edge pattern. A term
is either a variable reference or a wildcard.
*/
type Term struct {
	Var      string // Referenced variable (ignored for wildcards)
	Wildcard bool   // Flag if this position matches anything
}

/*
Wildcard returns a wildcard term.
*/
func Wildcard() Term {
	return Term{Wildcard: true}
}

/*
Var returns a variable term.
*/
func Var(name string) Term {
	return Term{Var: name}
}

/*
EdgeMatch is a structural condition over the declared variables. It
requires an edge of a given kind whose targets line up with the given
terms. An optional alias binds the matched edge itself. A transitive
edge pattern instead requires a chain of edges between the first and
second target.
*/
type EdgeMatch struct {
	Kind       string     // Edge kind to match
	Targets    []Term     // Required target terms
	Alias      string     // Variable bound to the matched edge (optional)
	Transitive Transitive // Traversal mode
}

/*
Pattern is a compiled structural pattern.
*/
type Pattern struct {
	Vars  []VarDecl   // Declared node and edge variables
	Edges []EdgeMatch // Structural edge conditions
	Cond  Expr        // Boolean filter condition (optional)
}

/*
Validate checks a pattern against a schema snapshot. It verifies that
all referenced kinds and variables exist and that transitive edge
patterns are well-formed.
*/
func (p *Pattern) Validate(snap *schema.Snapshot) error {
	declared := make(map[string]bool)

	for _, v := range p.Vars {
		if declared[v.Name] {
			return &util.GraphError{Type: util.ErrInvalidData,
				Detail: fmt.Sprintf("Duplicate pattern variable: %v", v.Name)}
		}
		declared[v.Name] = true

		if snap.NodeKind(v.Kind) == nil && snap.EdgeKind(v.Kind) == nil {
			return &util.GraphError{Type: util.ErrInvalidData,
				Detail: fmt.Sprintf("Unknown kind in pattern: %v", v.Kind)}
		}
	}

	for _, em := range p.Edges {
		ek := snap.EdgeKind(em.Kind)

		if ek == nil {
			return &util.GraphError{Type: util.ErrInvalidData,
				Detail: fmt.Sprintf("Unknown edge kind in pattern: %v", em.Kind)}
		}

		if em.Transitive != TransitiveNone {

			if len(em.Targets) != 2 || len(ek.Targets) != 2 {
				return &util.GraphError{Type: util.ErrInvalidData,
					Detail: fmt.Sprintf("Transitive pattern needs a binary edge kind: %v", em.Kind)}
			}
			if em.Alias != "" {
				return &util.GraphError{Type: util.ErrInvalidData,
					Detail: fmt.Sprintf("Transitive pattern cannot bind an edge alias: %v", em.Alias)}
			}
			if em.Targets[0].Wildcard || em.Targets[1].Wildcard {
				return &util.GraphError{Type: util.ErrInvalidData,
					Detail: fmt.Sprintf("Transitive pattern cannot use wildcards: %v", em.Kind)}
			}

		} else if len(em.Targets) != len(ek.Targets) {
			return &util.GraphError{Type: util.ErrInvalidData,
				Detail: fmt.Sprintf("Edge pattern has %v target%v but %v needs %v",
					len(em.Targets), stringutil.Plural(len(em.Targets)),
					em.Kind, len(ek.Targets))}
		}

		if em.Alias != "" {
			if declared[em.Alias] {
				return &util.GraphError{Type: util.ErrInvalidData,
					Detail: fmt.Sprintf("Duplicate pattern variable: %v", em.Alias)}
			}
			declared[em.Alias] = true
		}

		for _, t := range em.Targets {
			if !t.Wildcard && !declared[t.Var] {
				return &util.GraphError{Type: util.ErrInvalidData,
					Detail: fmt.Sprintf("Undeclared variable in edge pattern: %v", t.Var)}
			}
		}
	}

	if p.Cond != nil {
		for _, v := range freeVars(p.Cond) {
			if !declared[v] {
				return &util.GraphError{Type: util.ErrInvalidData,
					Detail: fmt.Sprintf("Undeclared variable in condition: %v", v)}
			}
		}
	}

	return nil
}

/*
BindingVars returns the result columns of a pattern in a stable order -
declared variables first, then edge aliases.
*/
func (p *Pattern) BindingVars() []string {
	var vars []string

	for _, v := range p.Vars {
		vars = append(vars, v.Name)
	}
	for _, em := range p.Edges {
		if em.Alias != "" {
			vars = append(vars, em.Alias)
		}
	}

	return vars
}

/*
Binding maps pattern variables to entity ids.
*/
type Binding map[string]uint64

/*
Clone returns a copy of this binding.
*/
func (b Binding) Clone() Binding {
	c := make(Binding, len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}

/*
Hash returns a stable hash over this binding. Bindings with the same
variable to id mapping produce the same hash.
*/
func (b Binding) Hash() uint64 {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)

	h := fnv.New64a()
	for _, name := range names {
		fmt.Fprintf(h, "%v=%v;", name, b[name])
	}

	return h.Sum64()
}

/*
String returns a string representation of this binding with the
variables in sorted order.
*/
func (b Binding) String() string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer

	buf.WriteString("{")
	for i, name := range names {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%v=%v", name, b[name])
	}
	buf.WriteString("}")

	return buf.String()
}

/*
Source is the read view of a graph which patterns are matched against.
It is implemented by the entity store and by the overlay view of a
running transaction.
*/
type Source interface {

	/*
		FetchNode fetches a single node. Returns nil if no node with the
		given id exists.
	*/
	FetchNode(id uint64) data.Node

	/*
		FetchEdge fetches a single edge. Returns nil if no edge with the
		given id exists.
	*/
	FetchEdge(id uint64) data.Edge

	/*
		Fetch fetches a single entity (node or edge). Returns nil if no
		entity with the given id exists.
	*/
	Fetch(id uint64) data.Node

	/*
		EntityKind returns the kind of a live entity and whether the
		entity is an edge. Returns an empty kind for unknown ids.
	*/
	EntityKind(id uint64) (string, bool)

	/*
		NodeIDs returns the ids of all nodes of a given kind in ascending
		order.
	*/
	NodeIDs(kind string) []uint64

	/*
		EdgeIDs returns the ids of all edges of a given kind in ascending
		order.
	*/
	EdgeIDs(kind string) []uint64

	/*
		LookupAttr returns the ids of all entities of a given kind whose
		attribute equals the given value.
	*/
	LookupAttr(kind string, attr string, val data.Value) []uint64

	/*
		EdgesWithTarget returns the ids of all edges of a given kind
		which have the given id at a given target position.
	*/
	EdgesWithTarget(kind string, pos int, target uint64) []uint64

	/*
		EdgesTargeting returns the ids of all edges which have the given
		id among their targets.
	*/
	EdgesTargeting(id uint64) []uint64
}
