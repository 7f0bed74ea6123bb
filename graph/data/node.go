/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package data

import (
	"bytes"
	"fmt"
	"sort"
)

type Node interface {

	/*
	   ID returns the unique numeric id of this node. Ids are unique within
	   the combined node and edge id space and are never reused.
	*/
	ID() uint64

	/*
	   Kind returns a human-readable kind for this node.
	*/
	Kind() string

	/*
	   Version returns the version counter of this node. The counter is
	   increased on every attribute write.
	*/
	Version() uint64

	/*
		Data returns the attribute data of this node.
	*/
	Data() map[string]Value

	/*
		Attr returns an attribute of this node. A missing attribute is
		returned as the null value.
	*/
	Attr(attr string) Value

	/*
		SetAttr sets an attribute of this node. Setting the null value
		removes the attribute. Every call increases the version counter.
	*/
	SetAttr(attr string, val Value)

	/*
	   String returns a string representation of this node.
	*/
	String() string
}

/*
graphNode data structure.
*/
type graphNode struct {
	id      uint64           // Unique id of this node
	kind    string           // Kind of this node
	version uint64           // Version counter
	data    map[string]Value // Attribute data which is held by this node
}

/*
NewGraphNode creates a new Node instance.
*/
func NewGraphNode(id uint64, kind string) Node {
	return &graphNode{id, kind, 1, make(map[string]Value)}
}

/*
ID returns the unique numeric id of this node.
*/
func (gn *graphNode) ID() uint64 {
	return gn.id
}

/*
Kind returns a human-readable kind for this node.
*/
func (gn *graphNode) Kind() string {
	return gn.kind
}

/*
Version returns the version counter of this node.
*/
func (gn *graphNode) Version() uint64 {
	return gn.version
}

/*
Data returns the attribute data of this node.
*/
func (gn *graphNode) Data() map[string]Value {
	return gn.data
}

/*
Attr returns an attribute of this node.
*/
func (gn *graphNode) Attr(attr string) Value {
	return gn.data[attr]
}

/*
SetAttr sets an attribute of this node. Setting the null value removes
the attribute.
*/
func (gn *graphNode) SetAttr(attr string, val Value) {
	gn.version++

	if !val.IsNull() {
		gn.data[attr] = val
	} else {
		delete(gn.data, attr)
	}
}

/*
String returns a string representation of this node.
*/
func (gn *graphNode) String() string {
	return dataToString("GraphNode", gn)
}

/*
dataToString returns a string representation of a node or edge.
*/
func dataToString(dtype string, gn Node) string {
	var buf bytes.Buffer

	attrlist := make([]string, 0, len(gn.Data()))
	maxlen := 4

	for attr := range gn.Data() {
		attrlist = append(attrlist, attr)

		if alen := len(attr); alen > maxlen {
			maxlen = alen
		}
	}

	sort.StringSlice(attrlist).Sort()

	buf.WriteString(fmt.Sprintf("%v %v (%v) v%v\n", dtype, gn.ID(), gn.Kind(), gn.Version()))

	if edge, ok := gn.(Edge); ok {
		buf.WriteString(fmt.Sprintf("  %-"+fmt.Sprint(maxlen)+"v : %v\n", "to", edge.Targets()))
	}

	for _, attr := range attrlist {
		buf.WriteString(fmt.Sprintf("  %-"+fmt.Sprint(maxlen)+"v : %v\n", attr, gn.Attr(attr)))
	}

	return buf.String()
}
