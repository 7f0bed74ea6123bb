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

	"devt.de/krotik/common/datautil"
	"github.com/krotik/weavedb/api"
)

/*
EndpointQueryResult is the queryresult endpoint URL (rooted). Handles everything under queryresult/...
*/
const EndpointQueryResult = api.APIRoot + APIv1 + "/queryresult/"

/*
QueryResultEndpointInst creates a new endpoint handler.
*/
func QueryResultEndpointInst() api.RestEndpointHandler {
	return &queryResultEndpoint{}
}

/*
Handler object for query result operations.
*/
type queryResultEndpoint struct {
	*api.DefaultEndpointHandler
}

/*
HandleGET returns a cached query result in full.
*/
func (qre *queryResultEndpoint) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {

	res, ok := qre.fetchResult(w, resources)
	if !ok {
		return
	}

	w.Header().Add(HTTPHeaderTotalCount, fmt.Sprint(len(res.Rows)))
	w.Header().Add(HTTPHeaderCacheID, resources[0])

	w.Header().Set("content-type", "application/json; charset=utf-8")

	json.NewEncoder(w).Encode(map[string]interface{}{
		"vars": res.Vars,
		"rows": res.Rows,
	})
}

/*
HandleDELETE removes a cached query result.
*/
func (qre *queryResultEndpoint) HandleDELETE(w http.ResponseWriter, r *http.Request, resources []string) {

	if _, ok := qre.fetchResult(w, resources); !ok {
		return
	}

	ResultCache.Remove(resources[0])

	w.Header().Set("content-type", "application/json; charset=utf-8")

	json.NewEncoder(w).Encode(resources[0])
}

/*
fetchResult fetches the addressed result from the result cache.
*/
func (qre *queryResultEndpoint) fetchResult(w http.ResponseWriter, resources []string) (*queryResult, bool) {

	if ResultCache == nil {
		ResultCache = datautil.NewMapCache(ResultCacheMaxSize, ResultCacheMaxAge)
	}

	if !checkResources(w, resources, 1, 1, "Need a result ID") {
		return nil, false
	}

	res, ok := ResultCache.Get(resources[0])
	if !ok {
		http.Error(w, "Unknown result ID: "+resources[0], http.StatusBadRequest)
		return nil, false
	}

	return res.(*queryResult), true
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (qre *queryResultEndpoint) SwaggerDefs(s map[string]interface{}) {

	s["paths"].(map[string]interface{})["/v1/queryresult/{rid}"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Return a cached query result in full.",
			"description": "Returns all rows of a cached query result.",
			"parameters": []map[string]interface{}{
				{
					"name":        "rid",
					"in":          "path",
					"description": "Result ID of the cached result.",
					"required":    true,
					"type":        "string",
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
		"delete": map[string]interface{}{
			"summary":     "Remove a cached query result.",
			"description": "Removes a query result from the result cache.",
			"parameters": []map[string]interface{}{
				{
					"name":        "rid",
					"in":          "path",
					"description": "Result ID of the cached result.",
					"required":    true,
					"type":        "string",
				},
			},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "Removed result ID",
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
