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
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/krotik/weavedb/api"
	"github.com/krotik/weavedb/graph"
	"github.com/krotik/weavedb/graph/data"
)

/*
EndpointTransaction is the transaction endpoint URL (rooted). Handles everything under tx/...
*/
const EndpointTransaction = api.APIRoot + APIv1 + "/tx/"

/*
TransactionEndpointInst creates a new endpoint handler.
*/
func TransactionEndpointInst() api.RestEndpointHandler {
	return &transactionEndpoint{}
}

/*
Handler object for transaction operations.
*/
type transactionEndpoint struct {
	*api.DefaultEndpointHandler
}

/*
HandlePOST runs a batch of mutations as a single transaction. The body
must contain an operation list:

	{ "ops" : [
	    { "op" : "spawn",  "kind" : "task", "attrs" : { ... }, "as" : "t" },
	    { "op" : "link",   "kind" : "causes", "targets" : [ "t", 5 ], "as" : "c" },
	    { "op" : "set",    "id" : "t", "attr" : "title", "value" : "..." },
	    { "op" : "kill",   "id" : 5 },
	    { "op" : "unlink", "id" : "c" }
	] }

Entity references are either plain ids or the names of earlier spawn and
link results. Either all operations are applied or none.
*/
func (te *transactionEndpoint) HandlePOST(w http.ResponseWriter, r *http.Request, resources []string) {

	var doc struct {
		Ops []map[string]interface{} `json:"ops"`
	}

	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "Could not decode request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	trans := api.GM.Begin()

	names := make(map[string]uint64)

	fail := func(err error) {
		if trans.State() == graph.StateActive {
			trans.Rollback()
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
	}

	for _, op := range doc.Ops {

		if err := te.runOp(trans, op, names); err != nil {
			fail(err)
			return
		}
	}

	if err := trans.Commit(); err != nil {
		fail(err)
		return
	}

	warnings := trans.Warnings()

	// Write data

	w.Header().Set("content-type", "application/json; charset=utf-8")

	json.NewEncoder(w).Encode(map[string]interface{}{
		"ids":      names,
		"warnings": warnings,
	})
}

/*
runOp runs a single operation of a transaction batch.
*/
func (te *transactionEndpoint) runOp(trans *graph.Trans, op map[string]interface{},
	names map[string]uint64) error {

	switch op["op"] {

	case "spawn":
		kind, _ := op["kind"].(string)

		attrs, err := te.decodeAttrs(kind, op["attrs"])
		if err != nil {
			return err
		}

		id, err := trans.Spawn(kind, attrs)
		if err != nil {
			return err
		}

		if as, ok := op["as"].(string); ok {
			names[as] = id
		}

	case "link":
		kind, _ := op["kind"].(string)

		attrs, err := te.decodeAttrs(kind, op["attrs"])
		if err != nil {
			return err
		}

		tlist, ok := op["targets"].([]interface{})
		if !ok {
			return fmt.Errorf("Link operation needs a target list")
		}

		targets := make([]uint64, 0, len(tlist))
		for _, t := range tlist {
			id, err := te.resolveID(t, names)
			if err != nil {
				return err
			}
			targets = append(targets, id)
		}

		id, err := trans.Link(kind, targets, attrs)
		if err != nil {
			return err
		}

		if as, ok := op["as"].(string); ok {
			names[as] = id
		}

	case "set":
		id, err := te.resolveID(op["id"], names)
		if err != nil {
			return err
		}

		attr, ok := op["attr"].(string)
		if !ok {
			return fmt.Errorf("Set operation needs an attribute name")
		}

		kind, _ := trans.EntityKind(id)
		if kind == "" {
			return fmt.Errorf("Unknown entity: %v", id)
		}

		val, err := te.decodeAttr(kind, attr, op["value"])
		if err != nil {
			return err
		}

		return trans.Set(id, attr, val)

	case "kill":
		id, err := te.resolveID(op["id"], names)
		if err != nil {
			return err
		}
		return trans.Kill(id)

	case "unlink":
		id, err := te.resolveID(op["id"], names)
		if err != nil {
			return err
		}
		return trans.Unlink(id)

	default:
		return fmt.Errorf("Unknown operation: %v", op["op"])
	}

	return nil
}

/*
resolveID resolves an entity reference - either a plain id or the name
of an earlier spawn or link result.
*/
func (te *transactionEndpoint) resolveID(ref interface{}, names map[string]uint64) (uint64, error) {

	switch r := ref.(type) {

	case float64:
		return uint64(r), nil

	case string:
		if id, ok := names[r]; ok {
			return id, nil
		}
		return 0, fmt.Errorf("Unknown entity name: %v", r)
	}

	return 0, fmt.Errorf("Invalid entity reference: %v", ref)
}

/*
decodeAttrs decodes an attribute map using the declared attribute types
of a kind.
*/
func (te *transactionEndpoint) decodeAttrs(kind string, doc interface{}) (map[string]data.Value, error) {

	if doc == nil {
		return nil, nil
	}

	adoc, ok := doc.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("Attributes must be an object")
	}

	attrs := make(map[string]data.Value)

	for attr, val := range adoc {
		v, err := te.decodeAttr(kind, attr, val)
		if err != nil {
			return nil, err
		}
		attrs[attr] = v
	}

	return attrs, nil
}

/*
decodeAttr decodes a single attribute value using its declared type.
*/
func (te *transactionEndpoint) decodeAttr(kind string, attr string, val interface{}) (data.Value, error) {

	ad := api.GM.Schema().Attr(kind, attr)
	if ad == nil {
		return data.NullValue(), fmt.Errorf("Attribute %v is not declared for kind %v", attr, kind)
	}

	return data.ValueFromJSON(val, ad.Type)
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (te *transactionEndpoint) SwaggerDefs(s map[string]interface{}) {

	s["paths"].(map[string]interface{})["/v1/tx"] = map[string]interface{}{
		"post": map[string]interface{}{
			"summary": "Run a batch of mutations as a single transaction.",
			"description": "Runs spawn, link, set, kill and unlink operations in one " +
				"transaction. Either all operations are applied or none. The response " +
				"contains the ids of all named spawn and link results and all " +
				"constraint warnings.",
			"produces": []string{
				"text/plain",
				"application/json",
			},
			"parameters": []map[string]interface{}{
				{
					"name":        "body",
					"in":          "body",
					"description": "Operation list to run.",
					"required":    true,
					"schema": map[string]interface{}{
						"type": "object",
					},
				},
			},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "Transaction result with created ids and warnings",
				},
				"default": map[string]interface{}{
					"description": "Error response",
					"schema": map[string]interface{}{
						"$ref": "#/definitions/Error",
					},
				},
			},
		},
	}
}
