/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package schema

import (
	"encoding/json"
	"fmt"

	"github.com/krotik/weavedb/graph/data"
)

/*
JSON document form of a schema declaration:

	{
	    "node_kinds" : [
	        {
	            "name"     : "task",
	            "parents"  : [ "item" ],
	            "abstract" : false,
	            "attrs"    : [
	                { "name" : "title", "type" : "string", "required" : true }
	            ]
	        }
	    ],
	    "edge_kinds" : [
	        {
	            "name"    : "causes",
	            "targets" : [ { "kinds" : [ "item" ] }, { "any" : true } ],
	            "attrs"   : []
	        }
	    ]
	}
*/

type schemaDoc struct {
	NodeKinds []nodeKindDoc `json:"node_kinds"`
	EdgeKinds []edgeKindDoc `json:"edge_kinds"`
}

type nodeKindDoc struct {
	Name     string    `json:"name"`
	Parents  []string  `json:"parents"`
	Abstract bool      `json:"abstract"`
	Attrs    []attrDoc `json:"attrs"`
}

type edgeKindDoc struct {
	Name    string      `json:"name"`
	Targets []targetDoc `json:"targets"`
	Attrs   []attrDoc   `json:"attrs"`
}

type targetDoc struct {
	Any      bool     `json:"any"`
	Kinds    []string `json:"kinds"`
	EdgeKind string   `json:"edge_kind"`
}

type attrDoc struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	RefKind  string      `json:"ref_kind"`
	Required bool        `json:"required"`
	Unique   bool        `json:"unique"`
	Default  interface{} `json:"default"`
}

/*
FromJSON compiles a schema declaration in JSON document form into an
immutable Snapshot.
*/
func FromJSON(src []byte) (*Snapshot, error) {
	var doc schemaDoc

	if err := json.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("Could not decode schema: %v", err)
	}

	nodeKinds := make([]NodeKindDef, 0, len(doc.NodeKinds))

	for _, nk := range doc.NodeKinds {
		attrs, err := attrsFromDocs(nk.Name, nk.Attrs)
		if err != nil {
			return nil, err
		}

		nodeKinds = append(nodeKinds, NodeKindDef{
			Name:     nk.Name,
			Parents:  nk.Parents,
			Abstract: nk.Abstract,
			Attrs:    attrs,
		})
	}

	edgeKinds := make([]EdgeKindDef, 0, len(doc.EdgeKinds))

	for _, ek := range doc.EdgeKinds {
		attrs, err := attrsFromDocs(ek.Name, ek.Attrs)
		if err != nil {
			return nil, err
		}

		targets := make([]TargetDef, 0, len(ek.Targets))
		for _, td := range ek.Targets {
			targets = append(targets, TargetDef{
				Any:      td.Any,
				Kinds:    td.Kinds,
				EdgeKind: td.EdgeKind,
			})
		}

		edgeKinds = append(edgeKinds, EdgeKindDef{
			Name:    ek.Name,
			Targets: targets,
			Attrs:   attrs,
		})
	}

	return NewSnapshot(nodeKinds, edgeKinds)
}

/*
attrsFromDocs converts attribute declarations of a kind.
*/
func attrsFromDocs(kind string, docs []attrDoc) ([]AttrDef, error) {
	attrs := make([]AttrDef, 0, len(docs))

	for _, ad := range docs {
		vtype, ok := valueTypeByName(ad.Type)
		if !ok {
			return nil, fmt.Errorf("Unknown attribute type %v on kind %v", ad.Type, kind)
		}

		def := AttrDef{
			Name:     ad.Name,
			Type:     vtype,
			RefKind:  ad.RefKind,
			Required: ad.Required,
			Unique:   ad.Unique,
			Default:  data.NullValue(),
		}

		if ad.Default != nil {
			val, err := data.ValueFromJSON(ad.Default, vtype)
			if err != nil {
				return nil, fmt.Errorf("Invalid default for attribute %v on kind %v: %v",
					ad.Name, kind, err)
			}
			def.Default = val
		}

		attrs = append(attrs, def)
	}

	return attrs, nil
}

/*
valueTypeByName looks up a value type by its name.
*/
func valueTypeByName(name string) (data.ValueType, bool) {

	for _, vt := range []data.ValueType{data.TypeBool, data.TypeInt,
		data.TypeFloat, data.TypeString, data.TypeTime, data.TypeDuration,
		data.TypeNodeRef, data.TypeEdgeRef} {

		if vt.String() == name {
			return vt, true
		}
	}

	return 0, false
}
