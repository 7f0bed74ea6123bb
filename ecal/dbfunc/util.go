/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package dbfunc contains WeaveDB related ECAL stdlib functions.
*/
package dbfunc

import (
	"fmt"

	"devt.de/krotik/ecal/scope"
	"github.com/krotik/weavedb/graph"
	"github.com/krotik/weavedb/graph/data"
)

/*
idArg converts an entity id parameter. ECAL numbers arrive as float64
but ids produced by other db functions keep their original type.
*/
func idArg(arg interface{}) (uint64, error) {

	switch n := arg.(type) {
	case uint64:
		return n, nil
	case int64:
		return uint64(n), nil
	case int:
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	}

	return 0, fmt.Errorf("Parameter must be an entity id: %v", arg)
}

/*
transArg converts a transaction parameter.
*/
func transArg(arg interface{}) (*graph.Trans, error) {

	if trans, ok := arg.(*graph.Trans); ok {
		return trans, nil
	}

	return nil, fmt.Errorf("Parameter must be a transaction: %v", arg)
}

/*
attrsFromECALMap converts an ECAL attribute map into typed attribute
values using the declared attribute types of a kind.
*/
func attrsFromECALMap(gm *graph.Manager, kind string, m map[interface{}]interface{}) (map[string]data.Value, error) {
	attrs := make(map[string]data.Value)

	for k, v := range m {
		name := fmt.Sprint(k)

		def := gm.Schema().Attr(kind, name)
		if def == nil {
			return nil, fmt.Errorf("Attribute %v is not declared for kind %v", name, kind)
		}

		val, err := data.ValueFromJSON(scope.ConvertECALToJSONObject(v), def.Type)
		if err != nil {
			return nil, err
		}

		attrs[name] = val
	}

	return attrs, nil
}

/*
runInTrans runs a mutation in a given transaction or in a one-shot
transaction if none was given.
*/
func runInTrans(gm *graph.Manager, trans *graph.Trans, op func(*graph.Trans) error) error {

	if trans != nil {
		return op(trans)
	}

	trans = gm.Begin()

	if err := op(trans); err != nil {
		trans.Rollback()
		return err
	}

	return trans.Commit()
}
