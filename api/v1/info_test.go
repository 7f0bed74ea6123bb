/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package v1

import (
	"testing"
)

func TestInfoQuery(t *testing.T) {
	queryURL := "http://localhost" + TESTPORT + EndpointInfoQuery

	if res := sendTestRequest(queryURL, "GET", nil); res != `
{
  "constraints": [],
  "edge_counts": {
    "causes": 1,
    "notes": 1
  },
  "edge_kinds": [
    "causes",
    "notes"
  ],
  "name": "main",
  "node_counts": {
    "event": 1,
    "item": 0,
    "task": 2
  },
  "node_kinds": [
    "event",
    "item",
    "task"
  ],
  "rules": []
}`[1:] {
		t.Error("Unexpected response:", res)
		return
	}
}

func TestInfoKindQuery(t *testing.T) {
	queryURL := "http://localhost" + TESTPORT + EndpointInfoQuery

	if res := sendTestRequest(queryURL+"kind", "GET", nil); res != "Missing kind" {
		t.Error("Unexpected response:", res)
		return
	}

	if res := sendTestRequest(queryURL+"kind/foo", "GET", nil); res != "Unknown kind foo" {
		t.Error("Unexpected response:", res)
		return
	}

	// Node kinds report their effective attributes and subtypes

	if res := sendTestRequest(queryURL+"kind/task", "GET", nil); res != `
{
  "attrs": [
    {
      "name": "created_at",
      "required": false,
      "type": "time",
      "unique": false
    },
    {
      "name": "effort",
      "required": false,
      "type": "int",
      "unique": false
    },
    {
      "name": "owner",
      "required": false,
      "type": "string",
      "unique": false
    },
    {
      "name": "title",
      "required": true,
      "type": "string",
      "unique": false
    }
  ],
  "subtypes": [
    "task"
  ]
}`[1:] {
		t.Error("Unexpected response:", res)
		return
	}

	if res := sendTestRequest(queryURL+"kind/item", "GET", nil); res != `
{
  "attrs": [
    {
      "name": "title",
      "required": false,
      "type": "string",
      "unique": false
    }
  ],
  "subtypes": [
    "event",
    "item",
    "task"
  ]
}`[1:] {
		t.Error("Unexpected response:", res)
		return
	}

	// Edge kinds report their targets

	if res := sendTestRequest(queryURL+"kind/notes", "GET", nil); res != `
{
  "attrs": [
    {
      "name": "text",
      "required": false,
      "type": "string",
      "unique": false
    }
  ],
  "targets": [
    {
      "any": false,
      "edge_kind": "causes",
      "kinds": null
    }
  ]
}`[1:] {
		t.Error("Unexpected response:", res)
		return
	}

	if res := sendTestRequest(queryURL+"kind/causes", "GET", nil); res != `
{
  "attrs": [
    {
      "name": "weight",
      "required": false,
      "type": "int",
      "unique": false
    }
  ],
  "targets": [
    {
      "any": false,
      "edge_kind": "",
      "kinds": [
        "item"
      ]
    },
    {
      "any": false,
      "edge_kind": "",
      "kinds": [
        "item"
      ]
    }
  ]
}`[1:] {
		t.Error("Unexpected response:", res)
		return
	}
}
