/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package storage

import (
	"fmt"
	"strconv"
	"strings"

	"devt.de/krotik/common/sortutil"
	"github.com/krotik/weavedb/graph/data"
	"github.com/krotik/weavedb/graph/util"
)

/*
idxSep is the separator for composite index keys. It cannot appear in
kind names or attribute names.
*/
const idxSep = "\x00"

/*
MemoryStore data structure
*/
type MemoryStore struct {
	name      string                       // Name of the store
	lastID    uint64                       // Last handed out entity id
	nodes     map[uint64]data.Node         // Table of all nodes
	edges     map[uint64]data.Edge         // Table of all edges
	kinds     map[string]map[uint64]bool   // Ids of all entities of a kind
	attrIdx   map[string]map[uint64]bool   // Equality index (kind, attr, value key)
	attrVals  map[string]map[uint64]data.Value // Attribute values (kind, attr) for range lookups
	tgtIdx    map[string]map[uint64]bool   // Target index (edge kind, position, target id)
	targeting map[uint64]map[uint64]bool   // Higher-order index (target id to edge ids)
}

/*
NewMemoryStore creates a new memory-only store.
*/
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{name, 0,
		make(map[uint64]data.Node), make(map[uint64]data.Edge),
		make(map[string]map[uint64]bool), make(map[string]map[uint64]bool),
		make(map[string]map[uint64]data.Value), make(map[string]map[uint64]bool),
		make(map[uint64]map[uint64]bool)}
}

/*
Name returns the name of the store instance.
*/
func (ms *MemoryStore) Name() string {
	return ms.name
}

/*
NewID returns the next id from the combined node and edge id space.
*/
func (ms *MemoryStore) NewID() uint64 {
	ms.lastID++
	return ms.lastID
}

/*
InsertNode inserts a new node.
*/
func (ms *MemoryStore) InsertNode(node data.Node) error {
	if err := ms.checkInsert(node); err != nil {
		return err
	}

	ms.nodes[node.ID()] = node
	ms.indexEntity(node)

	return nil
}

/*
InsertEdge inserts a new edge.
*/
func (ms *MemoryStore) InsertEdge(edge data.Edge) error {
	if err := ms.checkInsert(edge); err != nil {
		return err
	}

	ms.edges[edge.ID()] = edge
	ms.indexEntity(edge)

	for pos, target := range edge.Targets() {
		key := tgtKey(edge.Kind(), pos, target)

		ids, ok := ms.tgtIdx[key]
		if !ok {
			ids = make(map[uint64]bool)
			ms.tgtIdx[key] = ids
		}
		ids[edge.ID()] = true

		tids, ok := ms.targeting[target]
		if !ok {
			tids = make(map[uint64]bool)
			ms.targeting[target] = tids
		}
		tids[edge.ID()] = true
	}

	return nil
}

/*
checkInsert checks a new entity before it is inserted.
*/
func (ms *MemoryStore) checkInsert(entity data.Node) error {
	id := entity.ID()

	if id == 0 {
		return &util.GraphError{Type: util.ErrInvalidData, Detail: "Entity is missing an id"}
	} else if id > ms.lastID {
		return &util.GraphError{Type: util.ErrInvalidData,
			Detail: fmt.Sprintf("Entity id was not produced by this store: %v", id)}
	}

	_, nok := ms.nodes[id]
	_, eok := ms.edges[id]
	if nok || eok {
		return &util.GraphError{Type: util.ErrInvalidData,
			Detail: fmt.Sprintf("Entity id exists already: %v", id)}
	}

	return nil
}

/*
FetchNode fetches a single node.
*/
func (ms *MemoryStore) FetchNode(id uint64) data.Node {
	if node, ok := ms.nodes[id]; ok {
		return node
	}
	return nil
}

/*
FetchEdge fetches a single edge.
*/
func (ms *MemoryStore) FetchEdge(id uint64) data.Edge {
	if edge, ok := ms.edges[id]; ok {
		return edge
	}
	return nil
}

/*
Fetch fetches a single entity (node or edge).
*/
func (ms *MemoryStore) Fetch(id uint64) data.Node {
	if node, ok := ms.nodes[id]; ok {
		return node
	}
	if edge, ok := ms.edges[id]; ok {
		return edge
	}
	return nil
}

/*
EntityKind returns the kind of a live entity and whether the entity is an
edge.
*/
func (ms *MemoryStore) EntityKind(id uint64) (string, bool) {
	if node, ok := ms.nodes[id]; ok {
		return node.Kind(), false
	}
	if edge, ok := ms.edges[id]; ok {
		return edge.Kind(), true
	}
	return "", false
}

/*
SetAttr sets a single attribute on a node or edge.
*/
func (ms *MemoryStore) SetAttr(id uint64, attr string, val data.Value) error {
	entity := ms.Fetch(id)

	if entity == nil {
		return &util.GraphError{Type: util.ErrInvalidData,
			Detail: fmt.Sprintf("Unknown entity: %v", id)}
	}

	ms.deindexAttr(entity, attr)
	entity.SetAttr(attr, val)
	ms.indexAttr(entity, attr)

	return nil
}

/*
Delete removes an entity with its full cascade.
*/
func (ms *MemoryStore) Delete(id uint64) ([]uint64, error) {
	if ms.Fetch(id) == nil {
		return nil, nil
	}

	// Collect the full cascade set - every edge targeting a deleted
	// entity is deleted as well which may cascade further

	doomed := map[uint64]bool{id: true}
	worklist := []uint64{id}

	for len(worklist) > 0 {
		next := worklist[0]
		worklist = worklist[1:]

		for eid := range ms.targeting[next] {
			if !doomed[eid] {
				doomed[eid] = true
				worklist = append(worklist, eid)
			}
		}
	}

	removed := make([]uint64, 0, len(doomed))
	for did := range doomed {
		ms.removeEntity(did)
		removed = append(removed, did)
	}

	sortutil.UInt64s(removed)

	return removed, nil
}

/*
removeEntity removes a single entity and all its index entries.
*/
func (ms *MemoryStore) removeEntity(id uint64) {
	entity := ms.Fetch(id)
	if entity == nil {
		return
	}

	ms.deindexEntity(entity)

	if edge, ok := entity.(data.Edge); ok {
		for pos, target := range edge.Targets() {
			key := tgtKey(edge.Kind(), pos, target)

			if ids, ok := ms.tgtIdx[key]; ok {
				delete(ids, id)
				if len(ids) == 0 {
					delete(ms.tgtIdx, key)
				}
			}
			if tids, ok := ms.targeting[target]; ok {
				delete(tids, id)
				if len(tids) == 0 {
					delete(ms.targeting, target)
				}
			}
		}

		delete(ms.edges, id)

	} else {
		delete(ms.nodes, id)
	}
}

/*
NodeIDs returns the ids of all nodes of a given kind in ascending order.
*/
func (ms *MemoryStore) NodeIDs(kind string) []uint64 {
	return ms.kindIDs(kind)
}

/*
EdgeIDs returns the ids of all edges of a given kind in ascending order.
*/
func (ms *MemoryStore) EdgeIDs(kind string) []uint64 {
	return ms.kindIDs(kind)
}

/*
kindIDs returns all ids of a given kind in ascending order. Node and edge
kind names never clash.
*/
func (ms *MemoryStore) kindIDs(kind string) []uint64 {
	ids := make([]uint64, 0, len(ms.kinds[kind]))
	for id := range ms.kinds[kind] {
		ids = append(ids, id)
	}
	sortutil.UInt64s(ids)
	return ids
}

/*
LookupAttr returns the ids of all entities of a given kind whose attribute
equals the given value.
*/
func (ms *MemoryStore) LookupAttr(kind string, attr string, val data.Value) []uint64 {
	ids := make([]uint64, 0, 2)

	// The index key groups all candidates - ints and floats share one key
	// space so the stored value must be confirmed

	for id := range ms.attrIdx[eqKey(kind, attr, val)] {
		if entity := ms.Fetch(id); entity != nil && entity.Attr(attr).Equals(val) {
			ids = append(ids, id)
		}
	}
	sortutil.UInt64s(ids)
	return ids
}

/*
RangeAttr returns the ids of all entities of a given kind whose attribute
value lies in the given range.
*/
func (ms *MemoryStore) RangeAttr(kind string, attr string, from data.Value, to data.Value) []uint64 {
	var ids []uint64

	for id, val := range ms.attrVals[kind+idxSep+attr] {

		if !from.IsNull() {
			if res, ok := val.Compare(from); !ok || res < 0 {
				continue
			}
		}
		if !to.IsNull() {
			if res, ok := val.Compare(to); !ok || res > 0 {
				continue
			}
		}

		ids = append(ids, id)
	}

	sortutil.UInt64s(ids)

	return ids
}

/*
EdgesWithTarget returns the ids of all edges of a given kind which have
the given id at a given target position.
*/
func (ms *MemoryStore) EdgesWithTarget(kind string, pos int, target uint64) []uint64 {
	ids := make([]uint64, 0, 2)
	for id := range ms.tgtIdx[tgtKey(kind, pos, target)] {
		ids = append(ids, id)
	}
	sortutil.UInt64s(ids)
	return ids
}

/*
EdgesTargeting returns the ids of all edges which have the given id among
their targets.
*/
func (ms *MemoryStore) EdgesTargeting(id uint64) []uint64 {
	ids := make([]uint64, 0, 2)
	for eid := range ms.targeting[id] {
		ids = append(ids, eid)
	}
	sortutil.UInt64s(ids)
	return ids
}

/*
Counts returns the number of stored nodes and edges.
*/
func (ms *MemoryStore) Counts() (int, int) {
	return len(ms.nodes), len(ms.edges)
}

/*
Apply installs a committed change set in one call.
*/
func (ms *MemoryStore) Apply(cs *ChangeSet) error {

	// The deleted list holds the full cascade so every id can be removed
	// directly

	for _, id := range cs.Deleted {
		ms.removeEntity(id)
	}

	for _, node := range cs.NewNodes {
		if err := ms.InsertNode(node); err != nil {
			return err
		}
	}

	for _, edge := range cs.NewEdges {
		if err := ms.InsertEdge(edge); err != nil {
			return err
		}
	}

	for _, entity := range cs.Updated {
		stored := ms.Fetch(entity.ID())

		if stored == nil {
			return &util.GraphError{Type: util.ErrInvalidData,
				Detail: fmt.Sprintf("Unknown entity: %v", entity.ID())}
		}

		for attr := range stored.Data() {
			if _, ok := entity.Data()[attr]; !ok {
				ms.deindexAttr(stored, attr)
				stored.SetAttr(attr, data.NullValue())
			}
		}
		for attr, val := range entity.Data() {
			ms.deindexAttr(stored, attr)
			stored.SetAttr(attr, val)
			ms.indexAttr(stored, attr)
		}
	}

	return nil
}

/*
String returns a string representation of this store.
*/
func (ms *MemoryStore) String() string {
	nc, ec := ms.Counts()
	return fmt.Sprintf("MemoryStore %v (%v nodes, %v edges)", ms.name, nc, ec)
}

// Index maintenance
// =================

/*
indexEntity adds all index entries for a new entity.
*/
func (ms *MemoryStore) indexEntity(entity data.Node) {
	kind := entity.Kind()

	ids, ok := ms.kinds[kind]
	if !ok {
		ids = make(map[uint64]bool)
		ms.kinds[kind] = ids
	}
	ids[entity.ID()] = true

	for attr := range entity.Data() {
		ms.indexAttr(entity, attr)
	}
}

/*
deindexEntity removes the kind and attribute index entries of an entity.
*/
func (ms *MemoryStore) deindexEntity(entity data.Node) {
	kind := entity.Kind()

	if ids, ok := ms.kinds[kind]; ok {
		delete(ids, entity.ID())
		if len(ids) == 0 {
			delete(ms.kinds, kind)
		}
	}

	for attr := range entity.Data() {
		ms.deindexAttr(entity, attr)
	}
}

/*
indexAttr adds the index entries for a single attribute.
*/
func (ms *MemoryStore) indexAttr(entity data.Node, attr string) {
	val, ok := entity.Data()[attr]
	if !ok {
		return
	}

	key := eqKey(entity.Kind(), attr, val)

	ids, ok := ms.attrIdx[key]
	if !ok {
		ids = make(map[uint64]bool)
		ms.attrIdx[key] = ids
	}
	ids[entity.ID()] = true

	vkey := entity.Kind() + idxSep + attr

	vals, ok := ms.attrVals[vkey]
	if !ok {
		vals = make(map[uint64]data.Value)
		ms.attrVals[vkey] = vals
	}
	vals[entity.ID()] = val
}

/*
deindexAttr removes the index entries for a single attribute.
*/
func (ms *MemoryStore) deindexAttr(entity data.Node, attr string) {
	val, ok := entity.Data()[attr]
	if !ok {
		return
	}

	key := eqKey(entity.Kind(), attr, val)

	if ids, ok := ms.attrIdx[key]; ok {
		delete(ids, entity.ID())
		if len(ids) == 0 {
			delete(ms.attrIdx, key)
		}
	}

	if vals, ok := ms.attrVals[entity.Kind()+idxSep+attr]; ok {
		delete(vals, entity.ID())
		if len(vals) == 0 {
			delete(ms.attrVals, entity.Kind()+idxSep+attr)
		}
	}
}

/*
eqKey builds a composite key for the equality index.
*/
func eqKey(kind string, attr string, val data.Value) string {
	return strings.Join([]string{kind, attr, val.IndexKey()}, idxSep)
}

/*
tgtKey builds a composite key for the target index.
*/
func tgtKey(kind string, pos int, target uint64) string {
	return strings.Join([]string{kind, strconv.Itoa(pos),
		strconv.FormatUint(target, 10)}, idxSep)
}
