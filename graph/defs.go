/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"fmt"

	"github.com/krotik/weavedb/graph/schema"
	"github.com/krotik/weavedb/pattern"
)

/*
ActionOp is the operation of a rule action.
*/
type ActionOp int

/*
Rule action operations
*/
const (
	ActionSpawn  ActionOp = iota // Create a node
	ActionKill                   // Delete a node with its cascade
	ActionLink                   // Create an edge
	ActionUnlink                 // Delete an edge with its cascade
	ActionSet                    // Set an attribute
)

/*
Action is a single step of a rule production. Actions run in order
against the transaction of the triggering mutation. Spawn and link may
name their result which makes the new entity addressable by later
actions of the same production.
*/
type Action struct {
	Op      ActionOp                // Operation to perform
	Kind    string                  // Kind to create (spawn, link)
	Entity  string                  // Scope name of the affected entity (kill, unlink, set)
	Targets []string                // Scope names of the edge targets (link)
	Attrs   map[string]pattern.Expr // Attribute expressions (spawn, link)
	Attr    string                  // Attribute to write (set)
	Val     pattern.Expr            // Value expression (set)
	As      string                  // Scope name for the created entity (spawn, link)
}

/*
String returns a string representation of this action.
*/
func (a *Action) String() string {
	switch a.Op {
	case ActionSpawn:
		return fmt.Sprintf("spawn %v", a.Kind)
	case ActionKill:
		return fmt.Sprintf("kill %v", a.Entity)
	case ActionLink:
		return fmt.Sprintf("link %v %v", a.Kind, a.Targets)
	case ActionUnlink:
		return fmt.Sprintf("unlink %v", a.Entity)
	}
	return fmt.Sprintf("set %v.%v", a.Entity, a.Attr)
}

/*
Rule is a reactive transformation. Whenever a mutation touches an
entity whose kind the rule's pattern can involve, the pattern is
matched around the mutated entity and the production runs once for
every binding which has not fired before within the transaction.
*/
type Rule struct {
	Name     string           // Unique name of the rule
	Pattern  *pattern.Pattern // Trigger pattern
	Actions  []Action         // Production run per new binding
	Priority int              // Rules with higher priority fire first

	affects map[string]bool // Kinds which can trigger this rule
	order   int             // Declaration order for stable firing
}

/*
Constraint is a declarative invariant. Hard constraints abort the
transaction on violation, soft constraints only record a warning.
Deferred constraints are checked once over the full state just before
commit instead of after every mutation.
*/
type Constraint struct {
	Name     string           // Unique name of the constraint
	Pattern  *pattern.Pattern // Structural pattern
	Cond     pattern.Expr     // Condition which must hold for every binding
	Hard     bool             // Flag if a violation aborts the transaction
	Deferred bool             // Flag if checking happens only at commit

	affects map[string]bool // Kinds which can affect this constraint
}

/*
affectedKinds computes the set of entity kinds a mutation of which can
change the match set of a pattern. Node variables contribute their
declared kind and all its subkinds, edge patterns and edge variables
contribute their edge kind.
*/
func affectedKinds(snap *schema.Snapshot, p *pattern.Pattern) map[string]bool {
	affects := make(map[string]bool)

	for _, v := range p.Vars {
		if snap.EdgeKind(v.Kind) != nil {
			affects[v.Kind] = true
			continue
		}
		for _, kind := range snap.Subtypes(v.Kind) {
			affects[kind] = true
		}
	}

	for _, em := range p.Edges {
		affects[em.Kind] = true
	}

	return affects
}

/*
anchorVars returns the pattern variables which an entity of a given
kind could bind. These are the anchor points for mutation-driven
matching.
*/
func anchorVars(snap *schema.Snapshot, p *pattern.Pattern, kind string) []string {
	var vars []string

	isEdgeKind := snap.EdgeKind(kind) != nil

	for _, v := range p.Vars {
		if isEdgeKind {
			if v.Kind == kind {
				vars = append(vars, v.Name)
			}
		} else if snap.IsSubtype(v.Kind, kind) {
			vars = append(vars, v.Name)
		}
	}

	for _, em := range p.Edges {
		if em.Alias != "" && em.Kind == kind {
			vars = append(vars, em.Alias)
		}
	}

	return vars
}
