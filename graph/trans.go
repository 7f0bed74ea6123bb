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

	"devt.de/krotik/common/sortutil"
	"github.com/krotik/weavedb/graph/data"
	"github.com/krotik/weavedb/graph/storage"
	"github.com/krotik/weavedb/graph/util"
	"github.com/krotik/weavedb/pattern"
)

/*
TransState is the lifecycle state of a transaction.
*/
type TransState int

/*
Transaction states
*/
const (
	StateActive TransState = iota
	StateCommitting
	StateCommitted
	StateAborted
)

/*
String returns a readable name of a transaction state.
*/
func (ts TransState) String() string {
	return [...]string{"active", "committing", "committed", "aborted"}[ts]
}

/*
entityInfo captures kind and shape of an entity at deletion time.
*/
type entityInfo struct {
	kind   string
	isEdge bool
}

/*
AttrChange records one attribute write with its previous value.
*/
type AttrChange struct {
	ID   uint64     // Written entity
	Attr string     // Written attribute
	Old  data.Value // Value before the write
	New  data.Value // Value after the write
}

/*
mutation identifies one buffered change for rule and constraint
processing.
*/
type mutation struct {
	id   uint64
	kind string
}

/*
Trans is a single transaction. All mutations run against an in-memory
buffer which is overlaid on the committed store state for reads. Any
error during a mutation or during commit aborts the transaction and
discards the buffer, nothing becomes visible outside.

A Trans is not safe for concurrent use.
*/
type Trans struct {
	gm    *Manager
	state TransState

	newNodes map[uint64]data.Node   // Nodes created in this transaction
	newEdges map[uint64]data.Edge   // Edges created in this transaction
	updated  map[uint64]data.Node   // Working copies of modified store entities
	deleted  map[uint64]entityInfo  // Deleted store entities (cascade included)
	attrLog  []AttrChange           // All attribute writes in order
	warnings []string               // Soft constraint violations
	fired    map[string]bool        // Rule executions (rule name and binding hash)
	actions  int                    // Executed rule actions
}

/*
newTrans creates a new active transaction.
*/
func newTrans(gm *Manager) *Trans {
	return &Trans{
		gm:       gm,
		state:    StateActive,
		newNodes: make(map[uint64]data.Node),
		newEdges: make(map[uint64]data.Edge),
		updated:  make(map[uint64]data.Node),
		deleted:  make(map[uint64]entityInfo),
		fired:    make(map[string]bool),
	}
}

/*
State returns the lifecycle state of this transaction.
*/
func (t *Trans) State() TransState {
	return t.state
}

/*
Warnings returns all soft constraint violations recorded so far.
*/
func (t *Trans) Warnings() []string {
	return append([]string{}, t.warnings...)
}

/*
AttrChanges returns all attribute writes recorded so far.
*/
func (t *Trans) AttrChanges() []AttrChange {
	return append([]AttrChange{}, t.attrLog...)
}

/*
requireActive checks that this transaction can accept mutations.
*/
func (t *Trans) requireActive() error {
	if t.state != StateActive {
		return &util.GraphError{Type: util.ErrTransaction,
			Detail: fmt.Sprintf("Transaction is %v", t.state)}
	}
	return nil
}

/*
abort discards the buffer and releases the transaction slot.
*/
func (t *Trans) abort() {
	if t.state == StateCommitted || t.state == StateAborted {
		return
	}

	t.newNodes = nil
	t.newEdges = nil
	t.updated = nil
	t.deleted = nil
	t.attrLog = nil
	t.fired = nil

	t.state = StateAborted
	t.gm.mutex.Unlock()
}

/*
fail aborts this transaction and returns the given error.
*/
func (t *Trans) fail(err error) error {
	t.abort()
	return err
}

/*
Rollback discards all buffered changes. Calling Rollback on a finished
transaction has no effect.
*/
func (t *Trans) Rollback() {
	t.abort()
}

// Mutation API
// ============

/*
Spawn creates a new node inside this transaction. Missing attributes
with a declared default are filled in. Returns the id of the new node.
*/
func (t *Trans) Spawn(kind string, attrs map[string]data.Value) (uint64, error) {
	if err := t.requireActive(); err != nil {
		return 0, err
	}

	id, err := t.spawnBuffered(kind, attrs)
	if err != nil {
		return 0, t.fail(err)
	}

	if err := t.processMutations([]mutation{{id, kind}}); err != nil {
		return 0, err
	}

	return id, nil
}

/*
spawnBuffered validates and buffers a node creation.
*/
func (t *Trans) spawnBuffered(kind string, attrs map[string]data.Value) (uint64, error) {
	eff := make(map[string]data.Value)
	for k, v := range attrs {
		if !v.IsNull() {
			eff[k] = v
		}
	}

	if err := t.gm.snap.CheckNodeAttrs(kind, eff, t); err != nil {
		return 0, &util.GraphError{Type: util.ErrValidation, Detail: err.Error()}
	}

	id := t.gm.gs.NewID()
	node := data.NewGraphNode(id, kind)
	for k, v := range eff {
		node.SetAttr(k, v)
	}

	t.newNodes[id] = node

	return id, nil
}

/*
Link creates a new edge inside this transaction. All targets must
resolve to live entities which satisfy the signature of the edge kind.
Returns the id of the new edge.
*/
func (t *Trans) Link(kind string, targets []uint64, attrs map[string]data.Value) (uint64, error) {
	if err := t.requireActive(); err != nil {
		return 0, err
	}

	id, err := t.linkBuffered(kind, targets, attrs)
	if err != nil {
		return 0, t.fail(err)
	}

	if err := t.processMutations([]mutation{{id, kind}}); err != nil {
		return 0, err
	}

	return id, nil
}

/*
linkBuffered validates and buffers an edge creation.
*/
func (t *Trans) linkBuffered(kind string, targets []uint64, attrs map[string]data.Value) (uint64, error) {
	eff := make(map[string]data.Value)
	for k, v := range attrs {
		if !v.IsNull() {
			eff[k] = v
		}
	}

	if err := t.gm.snap.CheckEdgeAttrs(kind, eff, t); err != nil {
		return 0, &util.GraphError{Type: util.ErrValidation, Detail: err.Error()}
	}

	if err := t.gm.snap.CheckEdgeTargets(kind, targets, t); err != nil {
		return 0, &util.GraphError{Type: util.ErrValidation, Detail: err.Error()}
	}

	id := t.gm.gs.NewID()
	edge := data.NewGraphEdge(id, kind, targets)
	for k, v := range eff {
		edge.SetAttr(k, v)
	}

	t.newEdges[id] = edge

	return id, nil
}

/*
Kill deletes a node with its full cascade inside this transaction.
*/
func (t *Trans) Kill(id uint64) error {
	if err := t.requireActive(); err != nil {
		return err
	}

	muts, err := t.deleteBuffered(id, false)
	if err != nil {
		return t.fail(err)
	}

	return t.processMutations(muts)
}

/*
Unlink deletes an edge with its full cascade inside this transaction.
*/
func (t *Trans) Unlink(id uint64) error {
	if err := t.requireActive(); err != nil {
		return err
	}

	muts, err := t.deleteBuffered(id, true)
	if err != nil {
		return t.fail(err)
	}

	return t.processMutations(muts)
}

/*
deleteBuffered removes an entity and its full cascade from the buffered
state. The cascade is computed against the overlay which means edges
created earlier in the transaction cascade as well.
*/
func (t *Trans) deleteBuffered(id uint64, wantEdge bool) ([]mutation, error) {
	kind, isEdge := t.EntityKind(id)

	if kind == "" {
		return nil, &util.GraphError{Type: util.ErrValidation,
			Detail: fmt.Sprintf("Unknown entity: %v", id)}
	}

	if isEdge != wantEdge {
		if wantEdge {
			return nil, &util.GraphError{Type: util.ErrValidation,
				Detail: fmt.Sprintf("Unlink needs an edge: %v", id)}
		}
		return nil, &util.GraphError{Type: util.ErrValidation,
			Detail: fmt.Sprintf("Kill needs a node: %v", id)}
	}

	// Collect the full cascade through the overlay

	doomed := map[uint64]bool{id: true}
	worklist := []uint64{id}

	for len(worklist) > 0 {
		next := worklist[0]
		worklist = worklist[1:]

		for _, eid := range t.EdgesTargeting(next) {
			if !doomed[eid] {
				doomed[eid] = true
				worklist = append(worklist, eid)
			}
		}
	}

	ids := make([]uint64, 0, len(doomed))
	for did := range doomed {
		ids = append(ids, did)
	}
	sortutil.UInt64s(ids)

	muts := make([]mutation, 0, len(ids))

	for _, did := range ids {
		dkind, disEdge := t.EntityKind(did)
		muts = append(muts, mutation{did, dkind})

		if _, ok := t.newNodes[did]; ok {
			delete(t.newNodes, did)
		} else if _, ok := t.newEdges[did]; ok {
			delete(t.newEdges, did)
		} else {
			delete(t.updated, did)
			t.deleted[did] = entityInfo{dkind, disEdge}
		}
	}

	return muts, nil
}

/*
Set writes a single attribute of a node or edge inside this
transaction. Writing null removes the attribute.
*/
func (t *Trans) Set(id uint64, attr string, val data.Value) error {
	if err := t.requireActive(); err != nil {
		return err
	}

	mut, err := t.setBuffered(id, attr, val)
	if err != nil {
		return t.fail(err)
	}

	return t.processMutations([]mutation{mut})
}

/*
setBuffered validates and buffers an attribute write.
*/
func (t *Trans) setBuffered(id uint64, attr string, val data.Value) (mutation, error) {
	kind, _ := t.EntityKind(id)

	if kind == "" {
		return mutation{}, &util.GraphError{Type: util.ErrValidation,
			Detail: fmt.Sprintf("Unknown entity: %v", id)}
	}

	if err := t.gm.snap.CheckAttr(kind, attr, val, t); err != nil {
		return mutation{}, &util.GraphError{Type: util.ErrValidation, Detail: err.Error()}
	}

	entity := t.workingCopy(id)
	old := entity.Attr(attr)

	entity.SetAttr(attr, val)
	t.attrLog = append(t.attrLog, AttrChange{id, attr, old, val})

	return mutation{id, kind}, nil
}

/*
workingCopy returns the buffered entity for an id. Store entities are
cloned into the buffer on their first write.
*/
func (t *Trans) workingCopy(id uint64) data.Node {
	if node, ok := t.newNodes[id]; ok {
		return node
	}
	if edge, ok := t.newEdges[id]; ok {
		return edge
	}
	if entity, ok := t.updated[id]; ok {
		return entity
	}

	var copy data.Node

	if edge := t.gm.gs.FetchEdge(id); edge != nil {
		copy = data.EdgeClone(edge)
	} else {
		copy = data.NodeClone(t.gm.gs.FetchNode(id))
	}

	t.updated[id] = copy

	return copy
}

/*
processMutations runs the rule engine to quiescence and checks the
immediate constraints for a batch of buffered mutations. Any error
aborts the transaction.
*/
func (t *Trans) processMutations(muts []mutation) error {
	all, err := t.runRules(muts)
	if err != nil {
		return t.fail(err)
	}

	if err := t.checkImmediate(all); err != nil {
		return t.fail(err)
	}

	return nil
}

// Commit
// ======

/*
Commit checks all deferred constraints over the fully mutated state and
applies the buffer to the store. On success the committed changes are
journaled and sent to all registered event listeners. Any failure
discards the buffer without touching the store.
*/
func (t *Trans) Commit() error {
	if err := t.requireActive(); err != nil {
		return err
	}

	t.state = StateCommitting

	if err := t.checkDeferred(); err != nil {
		return t.fail(err)
	}

	cs := t.changeSet()

	if err := t.gm.journal.WriteChanges(t.gm.name, cs); err != nil {
		return t.fail(&util.GraphError{Type: util.ErrWriting, Detail: err.Error()})
	}

	if err := t.gm.gs.Apply(cs); err != nil {
		return t.fail(err)
	}

	events := t.commitEvents(cs)

	t.state = StateCommitted
	t.gm.mutex.Unlock()

	for _, ev := range events {
		t.gm.fireEvent(ev.event, ev.id, ev.kind)
	}

	return nil
}

/*
changeSet collects the buffered changes in a deterministic order.
*/
func (t *Trans) changeSet() *storage.ChangeSet {
	cs := &storage.ChangeSet{}

	ids := make([]uint64, 0, len(t.newNodes))
	for id := range t.newNodes {
		ids = append(ids, id)
	}
	sortutil.UInt64s(ids)
	for _, id := range ids {
		cs.NewNodes = append(cs.NewNodes, t.newNodes[id])
	}

	ids = ids[:0]
	for id := range t.newEdges {
		ids = append(ids, id)
	}
	sortutil.UInt64s(ids)
	for _, id := range ids {
		cs.NewEdges = append(cs.NewEdges, t.newEdges[id])
	}

	ids = ids[:0]
	for id := range t.updated {
		ids = append(ids, id)
	}
	sortutil.UInt64s(ids)
	for _, id := range ids {
		cs.Updated = append(cs.Updated, t.updated[id])
	}

	for id := range t.deleted {
		cs.Deleted = append(cs.Deleted, id)
	}
	sortutil.UInt64s(cs.Deleted)

	return cs
}

/*
transEvent is a graph event which is fired after a successful commit.
*/
type transEvent struct {
	event int
	id    uint64
	kind  string
}

/*
commitEvents derives the graph events of a committed change set.
*/
func (t *Trans) commitEvents(cs *storage.ChangeSet) []transEvent {
	var events []transEvent

	for _, node := range cs.NewNodes {
		events = append(events, transEvent{EventNodeCreated, node.ID(), node.Kind()})
	}
	for _, edge := range cs.NewEdges {
		events = append(events, transEvent{EventEdgeCreated, edge.ID(), edge.Kind()})
	}
	for _, entity := range cs.Updated {
		if _, ok := entity.(data.Edge); ok {
			events = append(events, transEvent{EventEdgeUpdated, entity.ID(), entity.Kind()})
		} else {
			events = append(events, transEvent{EventNodeUpdated, entity.ID(), entity.Kind()})
		}
	}
	for _, id := range cs.Deleted {
		info := t.deleted[id]
		if info.isEdge {
			events = append(events, transEvent{EventEdgeDeleted, id, info.kind})
		} else {
			events = append(events, transEvent{EventNodeDeleted, id, info.kind})
		}
	}

	return events
}

// Overlay read view
// =================

/*
Query runs a read-only pattern match against the buffered state of this
transaction. Uncommitted changes are visible to the match.
*/
func (t *Trans) Query(p *pattern.Pattern) *pattern.BindingIterator {
	return pattern.NewMatcher(t.gm.snap, t, t.gm.MaxTraversalDepth).Match(p)
}

/*
FetchNode fetches a single node through the buffer overlay.
*/
func (t *Trans) FetchNode(id uint64) data.Node {
	if _, ok := t.deleted[id]; ok {
		return nil
	}
	if node, ok := t.newNodes[id]; ok {
		return node
	}
	if entity, ok := t.updated[id]; ok {
		if _, isEdge := entity.(data.Edge); !isEdge {
			return entity
		}
		return nil
	}
	return t.gm.gs.FetchNode(id)
}

/*
FetchEdge fetches a single edge through the buffer overlay.
*/
func (t *Trans) FetchEdge(id uint64) data.Edge {
	if _, ok := t.deleted[id]; ok {
		return nil
	}
	if edge, ok := t.newEdges[id]; ok {
		return edge
	}
	if entity, ok := t.updated[id]; ok {
		if edge, isEdge := entity.(data.Edge); isEdge {
			return edge
		}
		return nil
	}
	return t.gm.gs.FetchEdge(id)
}

/*
Fetch fetches a single entity through the buffer overlay.
*/
func (t *Trans) Fetch(id uint64) data.Node {
	if _, ok := t.deleted[id]; ok {
		return nil
	}
	if node, ok := t.newNodes[id]; ok {
		return node
	}
	if edge, ok := t.newEdges[id]; ok {
		return edge
	}
	if entity, ok := t.updated[id]; ok {
		return entity
	}
	return t.gm.gs.Fetch(id)
}

/*
EntityKind returns the kind of a live entity through the buffer overlay
and whether the entity is an edge.
*/
func (t *Trans) EntityKind(id uint64) (string, bool) {
	if _, ok := t.deleted[id]; ok {
		return "", false
	}
	if node, ok := t.newNodes[id]; ok {
		return node.Kind(), false
	}
	if edge, ok := t.newEdges[id]; ok {
		return edge.Kind(), true
	}
	return t.gm.gs.EntityKind(id)
}

/*
NodeIDs returns the ids of all nodes of a given kind through the buffer
overlay.
*/
func (t *Trans) NodeIDs(kind string) []uint64 {
	var ids []uint64

	for _, id := range t.gm.gs.NodeIDs(kind) {
		if _, ok := t.deleted[id]; !ok {
			ids = append(ids, id)
		}
	}
	for id, node := range t.newNodes {
		if node.Kind() == kind {
			ids = append(ids, id)
		}
	}

	sortutil.UInt64s(ids)

	return ids
}

/*
EdgeIDs returns the ids of all edges of a given kind through the buffer
overlay.
*/
func (t *Trans) EdgeIDs(kind string) []uint64 {
	var ids []uint64

	for _, id := range t.gm.gs.EdgeIDs(kind) {
		if _, ok := t.deleted[id]; !ok {
			ids = append(ids, id)
		}
	}
	for id, edge := range t.newEdges {
		if edge.Kind() == kind {
			ids = append(ids, id)
		}
	}

	sortutil.UInt64s(ids)

	return ids
}

/*
LookupAttr returns the ids of all entities of a given kind whose
attribute equals the given value through the buffer overlay.
*/
func (t *Trans) LookupAttr(kind string, attr string, val data.Value) []uint64 {
	var ids []uint64

	// Store results are valid unless the entity was deleted or has a
	// buffered working copy with possibly changed attributes

	for _, id := range t.gm.gs.LookupAttr(kind, attr, val) {
		_, del := t.deleted[id]
		_, upd := t.updated[id]
		if !del && !upd {
			ids = append(ids, id)
		}
	}

	match := func(entity data.Node) bool {
		if entity.Kind() != kind {
			return false
		}
		av, ok := entity.Data()[attr]
		return ok && av.Equals(val)
	}

	for id, node := range t.newNodes {
		if match(node) {
			ids = append(ids, id)
		}
	}
	for id, edge := range t.newEdges {
		if match(edge) {
			ids = append(ids, id)
		}
	}
	for id, entity := range t.updated {
		if match(entity) {
			ids = append(ids, id)
		}
	}

	sortutil.UInt64s(ids)

	return ids
}

/*
EdgesWithTarget returns the ids of all edges of a given kind which have
the given id at a given target position through the buffer overlay.
*/
func (t *Trans) EdgesWithTarget(kind string, pos int, target uint64) []uint64 {
	var ids []uint64

	for _, id := range t.gm.gs.EdgesWithTarget(kind, pos, target) {
		if _, ok := t.deleted[id]; !ok {
			ids = append(ids, id)
		}
	}
	for id, edge := range t.newEdges {
		if edge.Kind() == kind && pos < len(edge.Targets()) && edge.Targets()[pos] == target {
			ids = append(ids, id)
		}
	}

	sortutil.UInt64s(ids)

	return ids
}

/*
EdgesTargeting returns the ids of all edges which have the given id
among their targets through the buffer overlay.
*/
func (t *Trans) EdgesTargeting(id uint64) []uint64 {
	var ids []uint64

	for _, eid := range t.gm.gs.EdgesTargeting(id) {
		if _, ok := t.deleted[eid]; !ok {
			ids = append(ids, eid)
		}
	}
	for eid, edge := range t.newEdges {
		if edge.HasTarget(id) {
			ids = append(ids, eid)
		}
	}

	sortutil.UInt64s(ids)

	return ids
}
