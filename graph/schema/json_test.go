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
	"fmt"
	"strings"
	"testing"

	"github.com/krotik/weavedb/graph/data"
)

func TestFromJSON(t *testing.T) {

	ss, err := FromJSON([]byte(`
{
    "node_kinds" : [
        {
            "name"     : "item",
            "abstract" : true,
            "attrs"    : [
                { "name" : "name", "type" : "string", "required" : true }
            ]
        },
        {
            "name"    : "task",
            "parents" : [ "item" ],
            "attrs"   : [
                { "name" : "title", "type" : "string", "required" : true },
                { "name" : "priority", "type" : "int", "default" : 1 },
                { "name" : "due", "type" : "time" }
            ]
        }
    ],
    "edge_kinds" : [
        {
            "name"    : "causes",
            "targets" : [ { "kinds" : [ "item" ] }, { "any" : true } ],
            "attrs"   : [ { "name" : "weight", "type" : "float" } ]
        },
        {
            "name"    : "annotates",
            "targets" : [ { "edge_kind" : "causes" }, { "kinds" : [ "item" ] } ]
        }
    ]
}
`))

	if err != nil {
		t.Error(err)
		return
	}

	if res := fmt.Sprint(ss.NodeKinds()); res != "[item task]" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := fmt.Sprint(ss.EdgeKinds()); res != "[annotates causes]" {
		t.Error("Unexpected result:", res)
		return
	}

	if ad := ss.Attr("task", "priority"); ad == nil || !ad.Default.Equals(data.IntValue(1)) {
		t.Error("Unexpected result:", ad)
		return
	}

	if ad := ss.Attr("task", "name"); ad == nil || !ad.Required {
		t.Error("Unexpected result:", ad)
		return
	}

	ek := ss.EdgeKind("annotates")

	if ek == nil || ek.Targets[0].EdgeKind != "causes" || ek.Targets[1].Any {
		t.Error("Unexpected result:", ek)
		return
	}
}

func TestFromJSONErrors(t *testing.T) {

	_, err := FromJSON([]byte("{x"))

	if err == nil || !strings.HasPrefix(err.Error(), "Could not decode schema:") {
		t.Error("Unexpected result:", err)
		return
	}

	_, err = FromJSON([]byte(`
{
    "node_kinds" : [
        { "name" : "task", "attrs" : [ { "name" : "title", "type" : "frob" } ] }
    ]
}
`))

	if err == nil || err.Error() != "Unknown attribute type frob on kind task" {
		t.Error("Unexpected result:", err)
		return
	}

	_, err = FromJSON([]byte(`
{
    "node_kinds" : [
        { "name" : "task", "attrs" : [ { "name" : "priority", "type" : "int", "default" : "x" } ] }
    ]
}
`))

	if err == nil || err.Error() != `Invalid default for attribute priority on kind task: Cannot convert "x" to int` {
		t.Error("Unexpected result:", err)
		return
	}

	// Snapshot validation also applies to documents

	_, err = FromJSON([]byte(`
{
    "edge_kinds" : [
        { "name" : "causes", "targets" : [ { "kinds" : [ "nonexistent" ] } ] }
    ]
}
`))

	if err == nil || err.Error() != "Unknown target kind nonexistent on edge kind causes" {
		t.Error("Unexpected result:", err)
		return
	}
}
