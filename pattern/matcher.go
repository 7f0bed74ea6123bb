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

	"devt.de/krotik/common/sortutil"
	"github.com/krotik/weavedb/graph/data"
	"github.com/krotik/weavedb/graph/schema"
)

/*
hiddenPrefix marks internally generated edge alias variables. Hidden
variables never appear in emitted bindings.
*/
const hiddenPrefix = "__edge"

/*
Selectivity scores for the variable ordering heuristic. Lower scores
are picked first, ties resolve in declaration order.
*/
const (
	scoreAdjacency  = 0 // Reachable from a bound variable via an index
	scoreUniqueEq   = 1 // Equality condition on a unique attribute
	scoreIndexedEq  = 2 // Equality condition on a plain attribute
	scoreKindScan   = 3 // Full scan over all entities of the kind
	scoreUnbindable = 4
)

/*
Matcher executes compiled patterns against a graph. The matcher itself
is stateless, every Match call produces an independent iterator.
*/
type Matcher struct {
	snap     *schema.Snapshot // Kind metadata
	src      Source           // Read view of the graph
	maxDepth int              // Depth bound for transitive traversals
}

/*
NewMatcher creates a new pattern matcher.
*/
func NewMatcher(snap *schema.Snapshot, src Source, maxDepth int) *Matcher {
	return &Matcher{snap, src, maxDepth}
}

/*
Match runs a pattern and returns an iterator over all produced
bindings.
*/
func (m *Matcher) Match(p *Pattern) *BindingIterator {
	return m.MatchAnchored(p, nil)
}

/*
MatchAnchored runs a pattern with some variables pinned to given
entities. Anchored matching is used by the rule and constraint engines
to only enumerate bindings which involve a mutated entity.
*/
func (m *Matcher) MatchAnchored(p *Pattern, anchor Binding) *BindingIterator {
	it := &BindingIterator{m: m, p: p, anchor: anchor}
	it.Reset()
	return it
}

/*
eqHint is an equality condition usable for an index lookup.
*/
type eqHint struct {
	attr string     // Constrained attribute
	val  data.Value // Required value
}

/*
condInfo is a single conjunct of the pattern condition with its
referenced variables.
*/
type condInfo struct {
	expr Expr
	vars []string
}

/*
matchFrame is one level of the backtracking search. It holds the
candidate entities for one variable and the current position in them.
*/
type matchFrame struct {
	name       string
	candidates []uint64
	idx        int
}

/*
BindingIterator lazily enumerates the bindings of a pattern match. The
iteration order is deterministic for a given graph state. Errors during
iteration are reported through LastError and end the iteration.
*/
type BindingIterator struct {
	m      *Matcher
	p      *Pattern
	anchor Binding

	varKinds map[string]string // Kind constraint per variable
	varOrder []string          // All variables in declaration order
	aliases  []string          // Alias variable per edge pattern ("" for transitive)
	conds    []condInfo        // Condition conjuncts
	eqHints  map[string][]eqHint

	binding  Binding
	frames   []*matchFrame
	started  bool
	finished bool
	hasNext  bool
	next     Binding

	// LastError contains the last encountered error
	LastError error
}

/*
Reset restarts the iteration from the beginning.
*/
func (it *BindingIterator) Reset() {
	it.binding = make(Binding)
	it.frames = nil
	it.started = false
	it.finished = false
	it.hasNext = false
	it.next = nil
	it.LastError = nil

	if err := it.prepare(); err != nil {
		it.LastError = err
		it.finished = true
	}
}

/*
prepare compiles the iteration metadata from the pattern.
*/
func (it *BindingIterator) prepare() error {
	if err := it.p.Validate(it.m.snap); err != nil {
		return err
	}

	it.varKinds = make(map[string]string)
	it.varOrder = nil
	it.aliases = make([]string, len(it.p.Edges))
	it.eqHints = make(map[string][]eqHint)
	it.conds = nil

	for _, v := range it.p.Vars {
		it.varKinds[v.Name] = v.Kind
		it.varOrder = append(it.varOrder, v.Name)
	}

	// Every plain edge pattern binds its edge through an alias. Patterns
	// without an explicit alias get a hidden one so that all structural
	// conditions can be checked uniformly.

	for i, em := range it.p.Edges {
		if em.Transitive != TransitiveNone {
			continue
		}

		alias := em.Alias
		if alias == "" {
			alias = fmt.Sprintf("%v%v", hiddenPrefix, i)
		}

		it.aliases[i] = alias
		it.varKinds[alias] = em.Kind
		it.varOrder = append(it.varOrder, alias)
	}

	if it.p.Cond != nil {
		for _, c := range conjuncts(it.p.Cond) {
			ci := condInfo{expr: c, vars: freeVars(c)}
			it.conds = append(it.conds, ci)
			it.addEqHint(c)

			// Conjuncts without variables are decided right here

			if len(ci.vars) == 0 {
				val, err := c.Eval(&EvalContext{Source: it.m.src, Binding: it.binding})
				if err != nil {
					return err
				}
				if val.Type() != data.TypeBool || !val.Bool() {
					it.finished = true
				}
			}
		}
	}

	for name := range it.anchor {
		if _, ok := it.varKinds[name]; !ok {
			it.finished = true
		}
	}

	return nil
}

/*
addEqHint records a conjunct of the form variable.attribute = constant
for use by the index lookup heuristic.
*/
func (it *BindingIterator) addEqHint(c Expr) {
	b, ok := c.(*Binary)
	if !ok || b.Op != OpEq {
		return
	}

	record := func(e Expr, other Expr) {
		aa, ok := e.(*AttrAccess)
		if !ok {
			return
		}
		lit, ok := other.(*Literal)
		if !ok {
			return
		}
		it.eqHints[aa.Var] = append(it.eqHints[aa.Var], eqHint{aa.Attr, lit.Val})
	}

	record(b.Left, b.Right)
	record(b.Right, b.Left)
}

/*
HasNext returns if there is a next binding.
*/
func (it *BindingIterator) HasNext() bool {
	if !it.hasNext && !it.finished {
		it.fetchNext()
	}
	return it.hasNext
}

/*
Next returns the next binding or nil if the iteration has ended.
*/
func (it *BindingIterator) Next() Binding {
	if !it.HasNext() {
		return nil
	}
	it.hasNext = false
	return it.next
}

/*
fetchNext advances the backtracking search to the next full binding.
*/
func (it *BindingIterator) fetchNext() {
	advance := it.started
	it.started = true

	for !it.finished {

		if advance {

			// Move the deepest frame to its next accepted candidate;
			// drop the frame if it is exhausted

			if len(it.frames) == 0 {
				it.finished = true
				return
			}

			top := it.frames[len(it.frames)-1]
			delete(it.binding, top.name)

			bound := false
			for top.idx+1 < len(top.candidates) {
				top.idx++
				if it.tryBind(top.name, top.candidates[top.idx]) {
					bound = true
					break
				}
				if it.finished {
					return
				}
			}

			if !bound {
				it.frames = it.frames[:len(it.frames)-1]
				continue
			}

			advance = false
			continue
		}

		// All current frames are bound - either the binding is complete
		// or the next variable gets a frame

		if len(it.binding) == len(it.varOrder) {
			it.next = it.emit()
			it.hasNext = true
			return
		}

		name, candidates := it.chooseNext()
		it.frames = append(it.frames, &matchFrame{name, candidates, -1})
		advance = true
	}
}

/*
emit returns a copy of the current binding without hidden variables.
*/
func (it *BindingIterator) emit() Binding {
	res := make(Binding)
	for name, id := range it.binding {
		if !isHidden(name) {
			res[name] = id
		}
	}
	return res
}

/*
isHidden returns if a variable name is internally generated.
*/
func isHidden(name string) bool {
	return len(name) >= len(hiddenPrefix) && name[:len(hiddenPrefix)] == hiddenPrefix
}

/*
tryBind binds a variable to an entity if all checks pass.
*/
func (it *BindingIterator) tryBind(name string, id uint64) bool {
	it.binding[name] = id

	ok, err := it.checkBinding(name, id)

	if err != nil {
		it.LastError = err
		it.finished = true
	}

	if !ok {
		delete(it.binding, name)
		return false
	}

	return true
}

/*
checkBinding verifies all pattern conditions which become decidable by
binding a variable.
*/
func (it *BindingIterator) checkBinding(name string, id uint64) (bool, error) {
	kind, isEdge := it.m.src.EntityKind(id)
	if kind == "" {
		return false, nil
	}

	declKind := it.varKinds[name]

	if it.m.snap.EdgeKind(declKind) != nil {
		if !isEdge || kind != declKind {
			return false, nil
		}
	} else if isEdge || !it.m.snap.IsSubtype(declKind, kind) {
		return false, nil
	}

	// Structural conditions of the plain edge patterns

	for i, em := range it.p.Edges {
		if em.Transitive != TransitiveNone {
			if !it.checkTransitive(em, name) {
				return false, nil
			}
			continue
		}

		alias := it.aliases[i]
		aliasID, aliasBound := it.binding[alias]

		if alias == name {

			// The variable is the edge itself - its targets must line
			// up with all bound target variables

			edge := it.m.src.FetchEdge(id)
			if edge == nil || len(edge.Targets()) != len(em.Targets) {
				return false, nil
			}

			for pos, term := range em.Targets {
				if term.Wildcard {
					continue
				}
				if tid, ok := it.binding[term.Var]; ok && edge.Targets()[pos] != tid {
					return false, nil
				}
			}

		} else if aliasBound {

			// The variable appears in the target list of a bound edge

			edge := it.m.src.FetchEdge(aliasID)
			if edge == nil {
				return false, nil
			}

			for pos, term := range em.Targets {
				if !term.Wildcard && term.Var == name && edge.Targets()[pos] != id {
					return false, nil
				}
			}
		}
	}

	// Condition conjuncts whose variables are now all bound

	for _, ci := range it.conds {
		if !containsVar(ci.vars, name) || !it.allBound(ci.vars) {
			continue
		}

		val, err := ci.expr.Eval(&EvalContext{Source: it.m.src, Binding: it.binding})
		if err != nil {
			return false, err
		}
		if val.Type() != data.TypeBool || !val.Bool() {
			return false, nil
		}
	}

	return true, nil
}

/*
checkTransitive verifies a transitive edge pattern for a just bound
variable. The check only applies once both endpoints are bound.
*/
func (it *BindingIterator) checkTransitive(em EdgeMatch, name string) bool {
	startVar, endVar := em.Targets[0].Var, em.Targets[1].Var

	if startVar != name && endVar != name {
		return true
	}

	start, sok := it.binding[startVar]
	end, eok := it.binding[endVar]

	if !sok || !eok {
		return true
	}

	reached := it.reach(em.Kind, start, true, em.Transitive == TransitiveZeroOrMore)

	return reached[end]
}

/*
reach computes the set of entities reachable from a start entity over
edges of one kind within the traversal depth bound. Forward traversal
follows edges from their first to their second target. The start entity
is part of the result if includeStart is set or if a cycle leads back
to it.
*/
func (it *BindingIterator) reach(kind string, start uint64, forward bool, includeStart bool) map[uint64]bool {
	reached := make(map[uint64]bool)
	visited := map[uint64]bool{start: true}
	frontier := []uint64{start}

	from, to := 0, 1
	if !forward {
		from, to = 1, 0
	}

	for depth := 0; depth < it.m.maxDepth && len(frontier) > 0; depth++ {
		var next []uint64

		for _, n := range frontier {
			for _, eid := range it.m.src.EdgesWithTarget(kind, from, n) {
				edge := it.m.src.FetchEdge(eid)
				if edge == nil || len(edge.Targets()) != 2 {
					continue
				}

				s := edge.Targets()[to]
				reached[s] = true

				if !visited[s] {
					visited[s] = true
					next = append(next, s)
				}
			}
		}

		frontier = next
	}

	if includeStart {
		reached[start] = true
	}

	return reached
}

/*
allBound returns if all given variables are bound.
*/
func (it *BindingIterator) allBound(vars []string) bool {
	for _, v := range vars {
		if _, ok := it.binding[v]; !ok {
			return false
		}
	}
	return true
}

/*
containsVar returns if a variable list contains a given name.
*/
func containsVar(vars []string, name string) bool {
	for _, v := range vars {
		if v == name {
			return true
		}
	}
	return false
}

// Variable ordering heuristic
// ===========================

/*
chooseNext picks the next unbound variable and its candidate entities.
Anchored variables go first, then the variable with the best
selectivity score. Ties resolve in declaration order.
*/
func (it *BindingIterator) chooseNext() (string, []uint64) {
	for _, name := range it.varOrder {
		if _, bound := it.binding[name]; bound {
			continue
		}
		if id, ok := it.anchor[name]; ok {
			return name, []uint64{id}
		}
	}

	bestName := ""
	bestScore := scoreUnbindable
	var bestCands []uint64

	for _, name := range it.varOrder {
		if _, bound := it.binding[name]; bound {
			continue
		}

		score, cands := it.planVar(name)

		if score < bestScore {
			bestName, bestScore, bestCands = name, score, cands
		}
	}

	return bestName, bestCands
}

/*
planVar determines the selectivity score and candidate entities for one
unbound variable.
*/
func (it *BindingIterator) planVar(name string) (int, []uint64) {

	if cands, ok := it.adjacencyCandidates(name); ok {
		return scoreAdjacency, cands
	}

	if score, cands, ok := it.equalityCandidates(name); ok {
		return score, cands
	}

	return scoreKindScan, it.scanCandidates(name)
}

/*
adjacencyCandidates produces candidates through an index lookup from an
already bound variable.
*/
func (it *BindingIterator) adjacencyCandidates(name string) ([]uint64, bool) {
	for i, em := range it.p.Edges {

		if em.Transitive != TransitiveNone {

			// A transitive pattern with a bound far end enumerates the
			// reachable set

			startVar, endVar := em.Targets[0].Var, em.Targets[1].Var
			include := em.Transitive == TransitiveZeroOrMore

			if name == endVar && startVar != endVar {
				if start, ok := it.binding[startVar]; ok {
					return setToSlice(it.reach(em.Kind, start, true, include)), true
				}
			}
			if name == startVar && startVar != endVar {
				if end, ok := it.binding[endVar]; ok {
					return setToSlice(it.reach(em.Kind, end, false, include)), true
				}
			}

			continue
		}

		alias := it.aliases[i]

		if alias == name {

			// The edge variable itself - use the target index if any
			// target is bound

			for pos, term := range em.Targets {
				if term.Wildcard {
					continue
				}
				if tid, ok := it.binding[term.Var]; ok {
					return it.m.src.EdgesWithTarget(em.Kind, pos, tid), true
				}
			}

			continue
		}

		if aliasID, ok := it.binding[alias]; ok {

			// The edge is bound - the variable is one of its targets

			edge := it.m.src.FetchEdge(aliasID)
			if edge == nil {
				continue
			}

			for pos, term := range em.Targets {
				if !term.Wildcard && term.Var == name && pos < len(edge.Targets()) {
					return []uint64{edge.Targets()[pos]}, true
				}
			}

			continue
		}

		// The edge is unbound but a sibling target is - collect the
		// variable's position over all edges with the bound sibling

		myPos := -1
		boundPos := -1
		var boundID uint64

		for pos, term := range em.Targets {
			if term.Wildcard {
				continue
			}
			if term.Var == name {
				myPos = pos
			} else if tid, ok := it.binding[term.Var]; ok && boundPos == -1 {
				boundPos = pos
				boundID = tid
			}
		}

		if myPos != -1 && boundPos != -1 {
			set := make(map[uint64]bool)

			for _, eid := range it.m.src.EdgesWithTarget(em.Kind, boundPos, boundID) {
				edge := it.m.src.FetchEdge(eid)
				if edge != nil && myPos < len(edge.Targets()) {
					set[edge.Targets()[myPos]] = true
				}
			}

			return setToSlice(set), true
		}
	}

	return nil, false
}

/*
equalityCandidates produces candidates through the attribute equality
index if the condition pins an attribute of the variable to a constant.
*/
func (it *BindingIterator) equalityCandidates(name string) (int, []uint64, bool) {
	hints := it.eqHints[name]
	if len(hints) == 0 {
		return 0, nil, false
	}

	declKind := it.varKinds[name]

	// A unique attribute gives the most selective lookup

	best := hints[0]
	score := scoreIndexedEq

	for _, h := range hints {
		if def := it.m.snap.Attr(declKind, h.attr); def != nil && def.Unique {
			best = h
			score = scoreUniqueEq
			break
		}
	}

	set := make(map[uint64]bool)
	for _, kind := range it.kindsOf(declKind) {
		for _, id := range it.m.src.LookupAttr(kind, best.attr, best.val) {
			set[id] = true
		}
	}

	return score, setToSlice(set), true
}

/*
scanCandidates produces candidates through a full scan over all
entities of the variable's kind and its subkinds.
*/
func (it *BindingIterator) scanCandidates(name string) []uint64 {
	declKind := it.varKinds[name]

	if it.m.snap.EdgeKind(declKind) != nil {
		return it.m.src.EdgeIDs(declKind)
	}

	set := make(map[uint64]bool)
	for _, kind := range it.kindsOf(declKind) {
		for _, id := range it.m.src.NodeIDs(kind) {
			set[id] = true
		}
	}

	return setToSlice(set)
}

/*
kindsOf returns all concrete kinds an entity bound to a variable of the
given declared kind may have.
*/
func (it *BindingIterator) kindsOf(declKind string) []string {
	if it.m.snap.EdgeKind(declKind) != nil {
		return []string{declKind}
	}
	return it.m.snap.Subtypes(declKind)
}

/*
setToSlice returns the ids of a set in ascending order.
*/
func setToSlice(set map[uint64]bool) []uint64 {
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sortutil.UInt64s(ids)
	return ids
}
