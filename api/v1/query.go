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
	"time"

	"devt.de/krotik/common/datautil"
	"github.com/krotik/weavedb/api"
	"github.com/krotik/weavedb/graph/data"
	"github.com/krotik/weavedb/pattern"
)

/*
ResultCacheMaxSize is the maximum size for the result cache
*/
var ResultCacheMaxSize uint64

/*
ResultCacheMaxAge is the maximum age a result cache entry can have in seconds
*/
var ResultCacheMaxAge int64

/*
ResultCache is a cache for result sets (by default no expiry and no limit)
*/
var ResultCache *datautil.MapCache

/*
idCount is an ID counter for results
*/
var idCount = time.Now().Unix()

/*
EndpointQuery is the query endpoint URL (rooted). Handles everything under query/...
*/
const EndpointQuery = api.APIRoot + APIv1 + "/query/"

/*
QueryEndpointInst creates a new endpoint handler.
*/
func QueryEndpointInst() api.RestEndpointHandler {

	// Init the result cache if necessary

	if ResultCache == nil {
		ResultCache = datautil.NewMapCache(ResultCacheMaxSize, ResultCacheMaxAge)
	}

	return &queryEndpoint{}
}

/*
Handler object for search queries.
*/
type queryEndpoint struct {
	*api.DefaultEndpointHandler
}

/*
queryResult is a materialized query result which is kept in the result
cache.
*/
type queryResult struct {
	Vars []string   // Bound variables (columns)
	Rows [][]uint64 // Matched entity ids (one row per binding)
}

/*
HandlePOST runs a pattern query against the graph. The body must contain
a pattern document. The full result is stored in the result cache and
its ID returned in the X-Cache-Id header.
*/
func (eq *queryEndpoint) HandlePOST(w http.ResponseWriter, r *http.Request, resources []string) {

	limit, ok := queryParamPosNum(w, r, "limit")
	if !ok {
		return
	}

	offset, ok := queryParamPosNum(w, r, "offset")
	if !ok {
		return
	}

	var doc map[string]interface{}

	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "Could not decode request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	p, err := pattern.DecodePattern(doc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Run the query and materialize the result

	it := api.GM.Query(p)

	res := &queryResult{Rows: [][]uint64{}}

	for it.HasNext() {
		b := it.Next()

		if res.Vars == nil {
			res.Vars = p.BindingVars()
		}

		row := make([]uint64, 0, len(res.Vars))
		for _, v := range res.Vars {
			row = append(row, b[v])
		}
		res.Rows = append(res.Rows, row)
	}

	if it.LastError != nil {
		http.Error(w, it.LastError.Error(), http.StatusBadRequest)
		return
	}

	if res.Vars == nil {
		res.Vars = p.BindingVars()
	}

	// Store the result in the cache

	resID := genID()

	ResultCache.Put(resID, res)

	eq.writeResultData(w, r, res, resID, offset, limit)
}

/*
HandleGET serves a follow up request for a cached query result. The
result ID must be given as the rid parameter.
*/
func (eq *queryEndpoint) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {

	limit, ok := queryParamPosNum(w, r, "limit")
	if !ok {
		return
	}

	offset, ok := queryParamPosNum(w, r, "offset")
	if !ok {
		return
	}

	resID := r.URL.Query().Get("rid")
	if resID == "" {
		http.Error(w, "Missing result ID (rid parameter)", http.StatusBadRequest)
		return
	}

	res, ok := ResultCache.Get(resID)
	if !ok {
		http.Error(w, "Unknown result ID (rid parameter)", http.StatusBadRequest)
		return
	}

	eq.writeResultData(w, r, res.(*queryResult), resID, offset, limit)
}

/*
writeResultData writes result data for the client.
*/
func (eq *queryEndpoint) writeResultData(w http.ResponseWriter, r *http.Request,
	res *queryResult, resID string, offset int, limit int) {

	rows := res.Rows

	if offset > 0 {
		if offset >= len(rows) {
			http.Error(w, "Offset exceeds available rows", http.StatusBadRequest)
			return
		}
		rows = rows[offset:]
	}

	if limit != -1 && limit < len(rows) {
		rows = rows[:limit]
	}

	resdata := map[string]interface{}{
		"vars": res.Vars,
		"rows": rows,
	}

	// Resolve the matched entities if requested

	if r.URL.Query().Get("resolve") != "" {
		entities := make([][]interface{}, 0, len(rows))

		for _, row := range rows {
			rowEntities := make([]interface{}, 0, len(row))

			for _, id := range row {
				if edge := api.GM.Store().FetchEdge(id); edge != nil {
					rowEntities = append(rowEntities, data.EdgeJSON(edge))
				} else if node := api.GM.Store().FetchNode(id); node != nil {
					rowEntities = append(rowEntities, data.NodeJSON(node))
				} else {
					rowEntities = append(rowEntities, nil)
				}
			}

			entities = append(entities, rowEntities)
		}

		resdata["entities"] = entities
	}

	// Set response header values

	w.Header().Add(HTTPHeaderTotalCount, fmt.Sprint(len(res.Rows)))
	w.Header().Add(HTTPHeaderCacheID, resID)

	w.Header().Set("content-type", "application/json; charset=utf-8")

	json.NewEncoder(w).Encode(resdata)
}

/*
genID generates a unique ID.
*/
func genID() string {
	idCount++
	return fmt.Sprint(idCount)
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (eq *queryEndpoint) SwaggerDefs(s map[string]interface{}) {

	s["paths"].(map[string]interface{})["/v1/query"] = map[string]interface{}{
		"post": map[string]interface{}{
			"summary": "Run a pattern query against the graph.",
			"description": "The query endpoint runs a compiled pattern against the last " +
				"committed state. The full result gets an ID and is stored in a cache. " +
				"The ID is returned in the X-Cache-Id header. Subsequent requests for " +
				"the same result can use the ID instead of a query.",
			"produces": []string{
				"text/plain",
				"application/json",
			},
			"parameters": []map[string]interface{}{
				{
					"name":        "body",
					"in":          "body",
					"description": "Pattern document to match.",
					"required":    true,
					"schema": map[string]interface{}{
						"type": "object",
					},
				},
				{
					"name":        "limit",
					"in":          "query",
					"description": "How many rows to return.",
					"required":    false,
					"type":        "number",
					"format":      "integer",
				},
				{
					"name":        "offset",
					"in":          "query",
					"description": "Offset in the result.",
					"required":    false,
					"type":        "number",
					"format":      "integer",
				},
				{
					"name":        "resolve",
					"in":          "query",
					"description": "Include the matched entities in the result if set to any value.",
					"required":    false,
					"type":        "number",
					"format":      "integer",
				},
			},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "A query result",
					"schema": map[string]interface{}{
						"$ref": "#/definitions/QueryResult",
					},
				},
				"default": map[string]interface{}{
					"description": "Error response",
					"schema": map[string]interface{}{
						"$ref": "#/definitions/Error",
					},
				},
			},
		},
		"get": map[string]interface{}{
			"summary":     "Retrieve a cached query result.",
			"description": "Serves a follow up request for a cached query result page.",
			"produces": []string{
				"text/plain",
				"application/json",
			},
			"parameters": []map[string]interface{}{
				{
					"name":        "rid",
					"in":          "query",
					"description": "Result ID to retrieve from the result cache.",
					"required":    true,
					"type":        "number",
					"format":      "integer",
				},
				{
					"name":        "limit",
					"in":          "query",
					"description": "How many rows to return.",
					"required":    false,
					"type":        "number",
					"format":      "integer",
				},
				{
					"name":        "offset",
					"in":          "query",
					"description": "Offset in the result.",
					"required":    false,
					"type":        "number",
					"format":      "integer",
				},
			},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "A query result",
					"schema": map[string]interface{}{
						"$ref": "#/definitions/QueryResult",
					},
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

	// Add QueryResult to definitions

	s["definitions"].(map[string]interface{})["QueryResult"] = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"vars": map[string]interface{}{
				"description": "Bound variables of the result (columns).",
				"type":        "array",
				"items": map[string]interface{}{
					"description": "Variable name.",
					"type":        "string",
				},
			},
			"rows": map[string]interface{}{
				"description": "Matched bindings (one row of entity ids per binding).",
				"type":        "array",
				"items": map[string]interface{}{
					"description": "Entity ids bound by one match.",
					"type":        "array",
					"items": map[string]interface{}{
						"description": "Entity id.",
						"type":        "number",
					},
				},
			},
			"entities": map[string]interface{}{
				"description": "Matched entities (only present with the resolve parameter).",
				"type":        "array",
				"items": map[string]interface{}{
					"description": "Entity objects of one row.",
					"type":        "array",
				},
			},
		},
	}
}
