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

	"github.com/krotik/weavedb/graph/data"
	"github.com/krotik/weavedb/graph/util"
	"github.com/krotik/weavedb/pattern"
)

/*
ruleTrigger is one work-list entry of the rule engine. The depth counts
how many rule firings lead to the mutation.
*/
type ruleTrigger struct {
	mut   mutation
	depth int
}

/*
runRules drives the rule engine to quiescence. Every buffered mutation
is matched against all rules whose affected kind set contains the
mutated kind. Each (rule, binding) pair fires at most once per
transaction which is the loop prevention of the fixed point. Rule
actions produce further mutations which are processed iteratively
through the work-list until no new pair fires.

The returned list contains the given mutations plus all mutations
produced by rule actions.
*/
func (t *Trans) runRules(muts []mutation) ([]mutation, error) {
	all := append([]mutation{}, muts...)

	worklist := make([]ruleTrigger, 0, len(muts))
	for _, m := range muts {
		worklist = append(worklist, ruleTrigger{m, 0})
	}

	for len(worklist) > 0 {
		trig := worklist[0]
		worklist = worklist[1:]

		for _, rule := range t.gm.rules {
			if !rule.affects[trig.mut.kind] {
				continue
			}

			bindings, err := t.matchesAround(rule.Pattern, trig.mut)
			if err != nil {
				return nil, err
			}

			for _, b := range bindings {
				key := fmt.Sprintf("%v@%v", rule.Name, b.Hash())

				if t.fired[key] {
					continue
				}
				t.fired[key] = true

				t.gm.logger.Debug(fmt.Sprintf("Rule %v fires for %v", rule.Name, b))

				produced, err := t.runActions(rule, b)
				if err != nil {
					return nil, err
				}

				if len(produced) > 0 && trig.depth+1 > t.gm.MaxRuleDepth {
					return nil, &util.GraphError{Type: util.ErrLimit,
						Detail: fmt.Sprintf("Maximum rule depth of %v exceeded by rule %v",
							t.gm.MaxRuleDepth, rule.Name)}
				}

				all = append(all, produced...)
				for _, m := range produced {
					worklist = append(worklist, ruleTrigger{m, trig.depth + 1})
				}
			}
		}
	}

	return all, nil
}

/*
runActions executes the production of a rule for one binding. The
binding extended by named action results forms the scope of the action
expressions.
*/
func (t *Trans) runActions(rule *Rule, b pattern.Binding) ([]mutation, error) {
	var produced []mutation

	scope := b.Clone()

	for i := range rule.Actions {
		a := &rule.Actions[i]

		t.actions++
		if t.actions > t.gm.MaxActions {
			return nil, &util.GraphError{Type: util.ErrLimit,
				Detail: fmt.Sprintf("Maximum of %v actions per transaction exceeded by rule %v",
					t.gm.MaxActions, rule.Name)}
		}

		muts, err := t.runAction(rule, a, scope)
		if err != nil {
			return nil, err
		}

		produced = append(produced, muts...)
	}

	return produced, nil
}

/*
runAction executes a single rule action.
*/
func (t *Trans) runAction(rule *Rule, a *Action, scope pattern.Binding) ([]mutation, error) {

	lookup := func(name string) (uint64, error) {
		id, ok := scope[name]
		if !ok {
			return 0, &util.GraphError{Type: util.ErrRule,
				Detail: fmt.Sprintf("Rule %v references unknown name: %v", rule.Name, name)}
		}
		return id, nil
	}

	switch a.Op {

	case ActionSpawn:
		attrs, err := t.evalAttrs(a.Attrs, scope)
		if err != nil {
			return nil, err
		}

		id, err := t.spawnBuffered(a.Kind, attrs)
		if err != nil {
			return nil, err
		}
		if a.As != "" {
			scope[a.As] = id
		}

		return []mutation{{id, a.Kind}}, nil

	case ActionLink:
		targets := make([]uint64, len(a.Targets))
		for i, name := range a.Targets {
			id, err := lookup(name)
			if err != nil {
				return nil, err
			}
			targets[i] = id
		}

		attrs, err := t.evalAttrs(a.Attrs, scope)
		if err != nil {
			return nil, err
		}

		id, err := t.linkBuffered(a.Kind, targets, attrs)
		if err != nil {
			return nil, err
		}
		if a.As != "" {
			scope[a.As] = id
		}

		return []mutation{{id, a.Kind}}, nil

	case ActionKill:
		id, err := lookup(a.Entity)
		if err != nil {
			return nil, err
		}
		return t.deleteBuffered(id, false)

	case ActionUnlink:
		id, err := lookup(a.Entity)
		if err != nil {
			return nil, err
		}
		return t.deleteBuffered(id, true)
	}

	// ActionSet

	id, err := lookup(a.Entity)
	if err != nil {
		return nil, err
	}

	val, err := a.Val.Eval(&pattern.EvalContext{Source: t, Binding: scope})
	if err != nil {
		return nil, err
	}

	mut, err := t.setBuffered(id, a.Attr, val)
	if err != nil {
		return nil, err
	}

	return []mutation{mut}, nil
}

/*
evalAttrs evaluates the attribute expressions of a spawn or link
action.
*/
func (t *Trans) evalAttrs(attrs map[string]pattern.Expr, scope pattern.Binding) (map[string]data.Value, error) {
	vals := make(map[string]data.Value, len(attrs))

	for name, expr := range attrs {
		val, err := expr.Eval(&pattern.EvalContext{Source: t, Binding: scope})
		if err != nil {
			return nil, err
		}
		vals[name] = val
	}

	return vals, nil
}

/*
matchesAround materializes all pattern bindings which involve a mutated
entity. The mutated entity seeds the match as an anchor for every
variable it could bind. Edge mutations additionally seed the target
variables of edge patterns of the mutated kind. Mutations of an edge
kind used transitively fall back to a full match since a single new
edge can connect arbitrary chain ends.
*/
func (t *Trans) matchesAround(p *pattern.Pattern, mut mutation) ([]pattern.Binding, error) {
	matcher := pattern.NewMatcher(t.gm.snap, t, t.gm.MaxTraversalDepth)

	var anchors []pattern.Binding

	fullMatch := false
	for _, em := range p.Edges {
		if em.Transitive != pattern.TransitiveNone && em.Kind == mut.kind {
			fullMatch = true
			break
		}
	}

	if fullMatch {
		anchors = []pattern.Binding{{}}

	} else {

		for _, v := range anchorVars(t.gm.snap, p, mut.kind) {
			anchors = append(anchors, pattern.Binding{v: mut.id})
		}

		// An unaliased edge pattern cannot anchor the edge itself but
		// the targets of the mutated edge pin its variables

		if edge := t.FetchEdge(mut.id); edge != nil {
			for _, em := range p.Edges {
				if em.Transitive != pattern.TransitiveNone ||
					em.Kind != mut.kind || em.Alias != "" {
					continue
				}
				if len(em.Targets) != len(edge.Targets()) {
					continue
				}

				anchor := pattern.Binding{}
				for pos, term := range em.Targets {
					if !term.Wildcard {
						anchor[term.Var] = edge.Targets()[pos]
					}
				}
				if len(anchor) > 0 {
					anchors = append(anchors, anchor)
				}
			}
		}
	}

	var bindings []pattern.Binding
	seen := make(map[uint64]bool)

	for _, anchor := range anchors {
		it := matcher.MatchAnchored(p, anchor)

		for it.HasNext() {
			b := it.Next()
			if h := b.Hash(); !seen[h] {
				seen[h] = true
				bindings = append(bindings, b)
			}
		}

		if it.LastError != nil {
			return nil, it.LastError
		}
	}

	return bindings, nil
}
