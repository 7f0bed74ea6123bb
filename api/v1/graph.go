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
	"net/http"
	"strconv"

	"github.com/krotik/weavedb/api"
	"github.com/krotik/weavedb/graph/data"
)

/*
EndpointGraph is the graph endpoint URL (rooted). Handles everything under graph/...
*/
const EndpointGraph = api.APIRoot + APIv1 + "/graph/"

/*
GraphEndpointInst creates a new endpoint handler.
*/
func GraphEndpointInst() api.RestEndpointHandler {
	return &graphEndpoint{}
}

/*
Handler object for graph operations.
*/
type graphEndpoint struct {
	*api.DefaultEndpointHandler
}

/*
HandleGET handles REST calls to retrieve data from the graph.
*/
func (ge *graphEndpoint) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {

	// Check parameters

	if !checkResources(w, resources, 2, 3, "Need an entity type (n or e) and a kind; optional entity id") {
		return
	}

	if resources[0] != "n" && resources[0] != "e" {
		http.Error(w, "Entity type must be n (nodes) or e (edges)", http.StatusBadRequest)
		return
	}

	isNode := resources[0] == "n"
	kind := resources[1]

	if (isNode && api.GM.Schema().NodeKind(kind) == nil) ||
		(!isNode && api.GM.Schema().EdgeKind(kind) == nil) {
		http.Error(w, "Unknown kind: "+kind, http.StatusBadRequest)
		return
	}

	if len(resources) == 2 {

		// Iterate over all entities of the kind

		limit, ok := queryParamPosNum(w, r, "limit")
		if !ok {
			return
		}

		offset, ok := queryParamPosNum(w, r, "offset")
		if !ok {
			return
		}
		if offset == -1 {
			offset = 0
		}

		var ids []uint64

		if isNode {
			ids = api.GM.Store().NodeIDs(kind)
		} else {
			ids = api.GM.Store().EdgeIDs(kind)
		}

		if offset > len(ids) {
			http.Error(w, "Offset exceeds available entities", http.StatusBadRequest)
			return
		}

		page := ids[offset:]
		if limit != -1 && limit < len(page) {
			page = page[:limit]
		}

		ret := make([]interface{}, 0, len(page))

		for _, id := range page {
			if isNode {
				ret = append(ret, data.NodeJSON(api.GM.Store().FetchNode(id)))
			} else {
				ret = append(ret, data.EdgeJSON(api.GM.Store().FetchEdge(id)))
			}
		}

		// Set total count header

		w.Header().Add(HTTPHeaderTotalCount, strconv.Itoa(len(ids)))

		// Write data

		w.Header().Set("content-type", "application/json; charset=utf-8")

		json.NewEncoder(w).Encode(ret)

		return
	}

	// Fetch a specific entity

	id, ok := parseID(w, resources[2])
	if !ok {
		return
	}

	var ret map[string]interface{}

	if isNode {
		node := api.GM.Store().FetchNode(id)

		if node == nil || node.Kind() != kind {
			http.Error(w, "Unknown node: "+resources[2], http.StatusBadRequest)
			return
		}

		ret = data.NodeJSON(node)

	} else {
		edge := api.GM.Store().FetchEdge(id)

		if edge == nil || edge.Kind() != kind {
			http.Error(w, "Unknown edge: "+resources[2], http.StatusBadRequest)
			return
		}

		ret = data.EdgeJSON(edge)
	}

	// Write data

	w.Header().Set("content-type", "application/json; charset=utf-8")

	json.NewEncoder(w).Encode(ret)
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (ge *graphEndpoint) SwaggerDefs(s map[string]interface{}) {

	s["paths"].(map[string]interface{})["/v1/graph/{type}/{kind}"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "List all entities of a kind.",
			"description": "Returns the entities of a given kind with optional limit and offset.",
			"parameters": []map[string]interface{}{
				{
					"name":        "type",
					"in":          "path",
					"description": "Entity type - n (nodes) or e (edges).",
					"required":    true,
					"type":        "string",
				},
				{
					"name":        "kind",
					"in":          "path",
					"description": "Kind of the entities.",
					"required":    true,
					"type":        "string",
				},
				{
					"name":        "limit",
					"in":          "query",
					"description": "Maximum number of entities to return.",
					"required":    false,
					"type":        "number",
				},
				{
					"name":        "offset",
					"in":          "query",
					"description": "Offset of the first entity to return.",
					"required":    false,
					"type":        "number",
				},
			},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "List of entity objects",
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

	s["paths"].(map[string]interface{})["/v1/graph/{type}/{kind}/{id}"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Return a single entity.",
			"description": "Returns a node or edge of a given kind by its id.",
			"parameters": []map[string]interface{}{
				{
					"name":        "type",
					"in":          "path",
					"description": "Entity type - n (nodes) or e (edges).",
					"required":    true,
					"type":        "string",
				},
				{
					"name":        "kind",
					"in":          "path",
					"description": "Kind of the entity.",
					"required":    true,
					"type":        "string",
				},
				{
					"name":        "id",
					"in":          "path",
					"description": "Id of the entity.",
					"required":    true,
					"type":        "number",
				},
			},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "Entity object",
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
