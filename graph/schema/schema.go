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
Package schema contains the runtime representation of compiled schema
declarations.

A Snapshot is an immutable view of all declared node kinds and edge kinds.
It is built once from a set of definitions and is never modified afterwards.
Schema evolution produces a new Snapshot rather than changing an existing
one which means in-flight operations always see a consistent schema.

Kind inheritance with multiple parents is resolved once at build time into
a subtype closure set per kind. Membership tests during pattern matching
and validation are simple set lookups.
*/
package schema

import (
	"fmt"
	"sort"

	"devt.de/krotik/common/stringutil"

	"github.com/krotik/weavedb/graph/data"
)

/*
AttrDef is the declaration of a single attribute on a node or edge kind.
*/
type AttrDef struct {
	Name     string         // Name of the attribute
	Type     data.ValueType // Declared value type
	RefKind  string         // Required kind for reference types (empty for any)
	Required bool           // Flag if the attribute must be present
	Unique   bool           // Flag if the attribute value must be unique per kind
	Default  data.Value     // Default value (null for no default)
}

/*
NodeKindDef is the declaration of a node kind.
*/
type NodeKindDef struct {
	Name     string    // Name of the kind
	Parents  []string  // Parent kinds (multiple inheritance)
	Abstract bool      // Abstract kinds cannot be instantiated
	Attrs    []AttrDef // Declared attributes
}

/*
TargetDef is the constraint for one target position of an edge kind.
*/
type TargetDef struct {
	Any      bool     // Flag if any entity is accepted
	Kinds    []string // Accepted node kinds (union, subtypes included)
	EdgeKind string   // Accepted edge kind for edge reference positions
}

/*
EdgeKindDef is the declaration of an edge kind. The length of Targets is
the arity of all edges of this kind.
*/
type EdgeKindDef struct {
	Name    string      // Name of the kind
	Targets []TargetDef // Constraint per target position
	Attrs   []AttrDef   // Declared attributes
}

/*
Snapshot is an immutable compiled schema.
*/
type Snapshot struct {
	nodeKinds map[string]*NodeKindDef        // All declared node kinds
	edgeKinds map[string]*EdgeKindDef        // All declared edge kinds
	closure   map[string]map[string]string   // Kind to set of kinds which are subtypes of it
	attrs     map[string]map[string]*AttrDef // Kind to effective (inherited) attributes
}

/*
NewSnapshot compiles a set of definitions into an immutable Snapshot.
*/
func NewSnapshot(nodeKinds []NodeKindDef, edgeKinds []EdgeKindDef) (*Snapshot, error) {
	ss := &Snapshot{
		nodeKinds: make(map[string]*NodeKindDef),
		edgeKinds: make(map[string]*EdgeKindDef),
		closure:   make(map[string]map[string]string),
		attrs:     make(map[string]map[string]*AttrDef),
	}

	for i, nk := range nodeKinds {
		if _, ok := ss.nodeKinds[nk.Name]; ok {
			return nil, fmt.Errorf("Duplicate node kind: %v", nk.Name)
		}

		ss.nodeKinds[nk.Name] = &nodeKinds[i]
	}

	for i, ek := range edgeKinds {
		if _, ok := ss.nodeKinds[ek.Name]; ok {
			return nil, fmt.Errorf("Edge kind clashes with node kind: %v", ek.Name)
		} else if _, ok := ss.edgeKinds[ek.Name]; ok {
			return nil, fmt.Errorf("Duplicate edge kind: %v", ek.Name)
		}

		ss.edgeKinds[ek.Name] = &edgeKinds[i]
	}

	// Resolve the inheritance hierarchy of every node kind

	for name := range ss.nodeKinds {
		if _, err := ss.resolveAttrs(name, nil); err != nil {
			return nil, err
		}
	}

	// Edge kinds do not inherit - still check their declarations

	for name, ek := range ss.edgeKinds {
		if len(ek.Targets) == 0 {
			return nil, fmt.Errorf("Edge kind without targets: %v", name)
		}

		for _, td := range ek.Targets {
			for _, kind := range td.Kinds {
				if _, ok := ss.nodeKinds[kind]; !ok {
					return nil, fmt.Errorf("Unknown target kind %v on edge kind %v", kind, name)
				}
			}

			if td.EdgeKind != "" {
				if _, ok := ss.edgeKinds[td.EdgeKind]; !ok {
					return nil, fmt.Errorf("Unknown target edge kind %v on edge kind %v", td.EdgeKind, name)
				}
			}
		}

		attrs := make(map[string]*AttrDef)
		for i, ad := range ek.Attrs {
			attrs[ad.Name] = &ek.Attrs[i]
		}
		ss.attrs[name] = attrs

		ss.closure[name] = map[string]string{name: ""}
	}

	// Build the subtype closure of every node kind - a kind is always a
	// subtype of itself

	for name := range ss.nodeKinds {
		if _, ok := ss.closure[name]; !ok {
			ss.closure[name] = map[string]string{name: ""}
		}
	}

	for name, nk := range ss.nodeKinds {
		for _, sup := range ss.supertypes(nk) {
			ss.closure[sup][name] = ""
		}
	}

	return ss, nil
}

/*
resolveAttrs computes the effective attribute set of a node kind including
all inherited attributes. Inheritance cycles and conflicting redeclarations
are reported as errors.
*/
func (ss *Snapshot) resolveAttrs(name string, visited []string) (map[string]*AttrDef, error) {

	if res, ok := ss.attrs[name]; ok {
		return res, nil
	}

	for _, v := range visited {
		if v == name {
			return nil, fmt.Errorf("Inheritance cycle involving kind: %v", name)
		}
	}

	nk, ok := ss.nodeKinds[name]
	if !ok {
		return nil, fmt.Errorf("Unknown parent kind: %v", name)
	}

	attrs := make(map[string]*AttrDef)

	for _, parent := range nk.Parents {
		pattrs, err := ss.resolveAttrs(parent, append(visited, name))
		if err != nil {
			return nil, err
		}

		for aname, ad := range pattrs {
			if existing, ok := attrs[aname]; ok && existing.Type != ad.Type {
				return nil, fmt.Errorf("Conflicting inherited attribute %v on kind %v", aname, name)
			}
			attrs[aname] = ad
		}
	}

	for i, ad := range nk.Attrs {
		if existing, ok := attrs[ad.Name]; ok && existing.Type != ad.Type {
			return nil, fmt.Errorf("Conflicting attribute declaration %v on kind %v", ad.Name, name)
		}
		attrs[ad.Name] = &nk.Attrs[i]
	}

	ss.attrs[name] = attrs

	return attrs, nil
}

/*
supertypes returns all (transitive) supertypes of a node kind. The result
does not include the kind itself.
*/
func (ss *Snapshot) supertypes(nk *NodeKindDef) []string {
	var res []string

	seen := make(map[string]bool)

	var visit func(def *NodeKindDef)

	visit = func(def *NodeKindDef) {
		for _, parent := range def.Parents {
			if !seen[parent] {
				seen[parent] = true
				res = append(res, parent)

				if pdef, ok := ss.nodeKinds[parent]; ok {
					visit(pdef)
				}
			}
		}
	}

	visit(nk)

	return res
}

/*
NodeKind looks up a node kind declaration.
*/
func (ss *Snapshot) NodeKind(name string) *NodeKindDef {
	return ss.nodeKinds[name]
}

/*
EdgeKind looks up an edge kind declaration.
*/
func (ss *Snapshot) EdgeKind(name string) *EdgeKindDef {
	return ss.edgeKinds[name]
}

/*
NodeKinds returns the names of all declared node kinds.
*/
func (ss *Snapshot) NodeKinds() []string {
	res := make([]string, 0, len(ss.nodeKinds))
	for name := range ss.nodeKinds {
		res = append(res, name)
	}

	sort.StringSlice(res).Sort()

	return res
}

/*
EdgeKinds returns the names of all declared edge kinds.
*/
func (ss *Snapshot) EdgeKinds() []string {
	res := make([]string, 0, len(ss.edgeKinds))
	for name := range ss.edgeKinds {
		res = append(res, name)
	}

	sort.StringSlice(res).Sort()

	return res
}

/*
Subtypes returns the names of all kinds in the subtype closure of a given
kind (the kind itself included).
*/
func (ss *Snapshot) Subtypes(name string) []string {
	res := make([]string, 0, len(ss.closure[name]))
	for sub := range ss.closure[name] {
		res = append(res, sub)
	}

	sort.StringSlice(res).Sort()

	return res
}

/*
IsSubtype checks if kind is in the subtype closure of super.
*/
func (ss *Snapshot) IsSubtype(super string, kind string) bool {
	set, ok := ss.closure[super]
	if !ok {
		return false
	}

	_, ok = set[kind]

	return ok
}

/*
Attr returns the effective (possibly inherited) attribute declaration of
a kind or nil if the attribute is not declared.
*/
func (ss *Snapshot) Attr(kind string, attr string) *AttrDef {
	return ss.attrs[kind][attr]
}

/*
Attrs returns the effective attribute declarations of a kind.
*/
func (ss *Snapshot) Attrs(kind string) []*AttrDef {
	set := ss.attrs[kind]

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}

	sort.StringSlice(names).Sort()

	res := make([]*AttrDef, 0, len(set))
	for _, name := range names {
		res = append(res, set[name])
	}

	return res
}

/*
String returns a string representation of this snapshot.
*/
func (ss *Snapshot) String() string {
	return fmt.Sprintf("Schema snapshot - %v node kind%v, %v edge kind%v",
		len(ss.nodeKinds), stringutil.Plural(len(ss.nodeKinds)),
		len(ss.edgeKinds), stringutil.Plural(len(ss.edgeKinds)))
}
