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
Package storage contains the entity store which models the storage backend
for the graph engine.

The store is a pure indexed container. All entities live in flat
id-indexed tables and relationships between them are plain id values which
means cyclic structures never create ownership problems. The store never
validates kinds, attributes or constraints - that is the job of the layers
above it.

The only mutating operations are the Insert/SetAttr/Delete primitives and
Apply which installs a full committed change set. Deleting an entity
always performs the complete cascade: every edge which has the deleted
entity among its targets is deleted first and deleting an edge cascades in
turn to all edges targeting it. Callers never observe a half-cascaded
state.
*/
package storage

import "github.com/krotik/weavedb/graph/data"

/*
Store models the storage backend for the graph engine.
*/
type Store interface {

	/*
	   Name returns the name of the store instance.
	*/
	Name() string

	/*
		NewID returns the next id from the combined node and edge id space.
		Ids are handed out once and never reused.
	*/
	NewID() uint64

	/*
		InsertNode inserts a new node. The node id must have been produced
		by NewID.
	*/
	InsertNode(node data.Node) error

	/*
		InsertEdge inserts a new edge. The edge id must have been produced
		by NewID.
	*/
	InsertEdge(edge data.Edge) error

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
		EntityKind returns the kind of a live entity and whether the entity
		is an edge. Returns an empty kind for unknown ids.
	*/
	EntityKind(id uint64) (string, bool)

	/*
		SetAttr sets a single attribute on a node or edge.
	*/
	SetAttr(id uint64, attr string, val data.Value) error

	/*
		Delete removes an entity with its full cascade. The returned list
		holds the ids of all removed entities in ascending order. The list
		is empty if no entity with the given id exists.
	*/
	Delete(id uint64) ([]uint64, error)

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
		RangeAttr returns the ids of all entities of a given kind whose
		attribute value lies in the given range. Null bounds leave the
		range open on that side.
	*/
	RangeAttr(kind string, attr string, from data.Value, to data.Value) []uint64

	/*
		EdgesWithTarget returns the ids of all edges of a given kind which
		have the given id at a given target position.
	*/
	EdgesWithTarget(kind string, pos int, target uint64) []uint64

	/*
		EdgesTargeting returns the ids of all edges (of any kind) which
		have the given id among their targets. This is the higher-order
		index - the target may itself be an edge.
	*/
	EdgesTargeting(id uint64) []uint64

	/*
		Counts returns the number of stored nodes and edges.
	*/
	Counts() (int, int)

	/*
		Apply installs a committed change set in one call.
	*/
	Apply(cs *ChangeSet) error
}

/*
ChangeSet is the collected outcome of a transaction which should be
applied to a store.
*/
type ChangeSet struct {
	NewNodes []data.Node // Created nodes
	NewEdges []data.Edge // Created edges
	Updated  []data.Node // Existing entities (nodes or edges) with changed attributes
	Deleted  []uint64    // Removed entity ids (full cascade included)
}

/*
IsEmpty returns if this change set contains no changes.
*/
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.NewNodes) == 0 && len(cs.NewEdges) == 0 &&
		len(cs.Updated) == 0 && len(cs.Deleted) == 0
}
