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
)

/*
EndpointInfoQuery is the info endpoint URL (rooted). Handles everything under info/...
*/
const EndpointInfoQuery = api.APIRoot + APIv1 + "/info/"

/*
InfoEndpointInst creates a new endpoint handler.
*/
func InfoEndpointInst() api.RestEndpointHandler {
	return &infoEndpoint{}
}

/*
Handler object for info queries.
*/
type infoEndpoint struct {
	*api.DefaultEndpointHandler
}

/*
HandleGET handles an info query REST call.
*/
func (ie *infoEndpoint) HandleGET(w http.ResponseWriter, r *http.Request, resources []string) {

	data := make(map[string]interface{})

	if len(resources) > 0 {

		if resources[0] == "kind" {

			// Kind info is requested

			if len(resources) == 1 {
				http.Error(w, "Missing kind", http.StatusBadRequest)
				return
			}

			kind := resources[1]
			snap := api.GM.Schema()

			if snap.NodeKind(kind) == nil && snap.EdgeKind(kind) == nil {
				http.Error(w, fmt.Sprint("Unknown kind ", kind), http.StatusBadRequest)
				return
			}

			attrs := make([]map[string]interface{}, 0)
			for _, ad := range snap.Attrs(kind) {
				attrs = append(attrs, map[string]interface{}{
					"name":     ad.Name,
					"type":     ad.Type.String(),
					"required": ad.Required,
					"unique":   ad.Unique,
				})
			}
			data["attrs"] = attrs

			if ek := snap.EdgeKind(kind); ek != nil {
				targets := make([]map[string]interface{}, 0, len(ek.Targets))
				for _, td := range ek.Targets {
					targets = append(targets, map[string]interface{}{
						"any":       td.Any,
						"kinds":     td.Kinds,
						"edge_kind": td.EdgeKind,
					})
				}
				data["targets"] = targets

			} else {
				data["subtypes"] = snap.Subtypes(kind)
			}
		}

	} else {

		// Get general information

		data["name"] = api.GM.Name()

		nks := api.GM.Schema().NodeKinds()
		data["node_kinds"] = nks

		ncs := make(map[string]int)
		for _, nk := range nks {
			ncs[nk] = len(api.GM.Store().NodeIDs(nk))
		}

		data["node_counts"] = ncs

		eks := api.GM.Schema().EdgeKinds()
		data["edge_kinds"] = eks

		ecs := make(map[string]int)
		for _, ek := range eks {
			ecs[ek] = len(api.GM.Store().EdgeIDs(ek))
		}

		data["edge_counts"] = ecs

		rules := make([]string, 0)
		for _, rule := range api.GM.Rules() {
			rules = append(rules, rule.Name)
		}
		data["rules"] = rules

		constraints := make([]string, 0)
		for _, c := range api.GM.Constraints() {
			constraints = append(constraints, c.Name)
		}
		data["constraints"] = constraints
	}

	// Write data

	w.Header().Set("content-type", "application/json; charset=utf-8")

	ret := json.NewEncoder(w)
	ret.Encode(data)
}

/*
SwaggerDefs is used to describe the endpoint in swagger.
*/
func (ie *infoEndpoint) SwaggerDefs(s map[string]interface{}) {

	s["paths"].(map[string]interface{})["/v1/info"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary": "Return general graph information.",
			"description": "The info endpoint returns general graph information " +
				"such as known kinds, entity counts and registered rules and constraints.",
			"produces": []string{
				"text/plain",
				"application/json",
			},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "General graph information.",
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

	s["paths"].(map[string]interface{})["/v1/info/kind/{kind}"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "Return schema information of a kind.",
			"description": "The info kind endpoint returns the declared attributes and targets of a kind.",
			"produces": []string{
				"text/plain",
				"application/json",
			},
			"parameters": []map[string]interface{}{
				{
					"name":        "kind",
					"in":          "path",
					"description": "Kind to lookup.",
					"required":    true,
					"type":        "string",
				},
			},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{
					"description": "Schema information of the kind.",
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
