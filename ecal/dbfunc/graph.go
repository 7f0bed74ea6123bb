/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package dbfunc

import (
	"fmt"

	"devt.de/krotik/ecal/parser"
	"devt.de/krotik/ecal/scope"
	"github.com/krotik/weavedb/graph"
	"github.com/krotik/weavedb/graph/data"
	"github.com/krotik/weavedb/pattern"
)

/*
FetchNodeFunc fetches a node in WeaveDB.
*/
type FetchNodeFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *FetchNodeFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var res interface{}
	var err error

	if len(args) != 1 {
		err = fmt.Errorf("Function requires 1 parameter: node id")
	}

	if err == nil {
		var id uint64

		if id, err = idArg(args[0]); err == nil {

			if node := f.GM.Store().FetchNode(id); node != nil {
				res = scope.ConvertJSONToECALObject(data.NodeJSON(node))
			}
		}
	}

	return res, err
}

/*
DocString returns a descriptive string.
*/
func (f *FetchNodeFunc) DocString() (string, error) {
	return "Fetches a node in WeaveDB.", nil
}

/*
FetchEdgeFunc fetches an edge in WeaveDB.
*/
type FetchEdgeFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *FetchEdgeFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var res interface{}
	var err error

	if len(args) != 1 {
		err = fmt.Errorf("Function requires 1 parameter: edge id")
	}

	if err == nil {
		var id uint64

		if id, err = idArg(args[0]); err == nil {

			if edge := f.GM.Store().FetchEdge(id); edge != nil {
				res = scope.ConvertJSONToECALObject(data.EdgeJSON(edge))
			}
		}
	}

	return res, err
}

/*
DocString returns a descriptive string.
*/
func (f *FetchEdgeFunc) DocString() (string, error) {
	return "Fetches an edge in WeaveDB.", nil
}

/*
QueryFunc runs a pattern query in WeaveDB.
*/
type QueryFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *QueryFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var res interface{}
	var err error

	if len(args) != 1 {
		err = fmt.Errorf("Function requires 1 parameter: pattern document")
	}

	if err == nil {
		var p *pattern.Pattern

		doc, ok := scope.ConvertECALToJSONObject(args[0]).(map[string]interface{})
		if !ok {
			err = fmt.Errorf("Parameter must be a pattern document")
		}

		if err == nil {
			p, err = pattern.DecodePattern(doc)
		}

		if err == nil {
			vars := p.BindingVars()
			rows := make([]interface{}, 0)

			it := f.GM.Query(p)

			for it.HasNext() {
				b := it.Next()

				row := make([]interface{}, 0, len(vars))
				for _, v := range vars {
					row = append(row, b[v])
				}
				rows = append(rows, row)
			}

			if err = it.LastError; err == nil {
				varList := make([]interface{}, 0, len(vars))
				for _, v := range vars {
					varList = append(varList, v)
				}

				res = scope.ConvertJSONToECALObject(map[string]interface{}{
					"vars": varList,
					"rows": rows,
				})
			}
		}
	}

	return res, err
}

/*
DocString returns a descriptive string.
*/
func (f *QueryFunc) DocString() (string, error) {
	return "Runs a pattern query in WeaveDB. Returns the bound variables and the matched rows.", nil
}
