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
)

/*
NewTransFunc creates a new transaction for WeaveDB.
*/
type NewTransFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *NewTransFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var err error

	if len(args) != 0 {
		err = fmt.Errorf("Function does not require any parameters")
	}

	if err != nil {
		return nil, err
	}

	return f.GM.Begin(), nil
}

/*
DocString returns a descriptive string.
*/
func (f *NewTransFunc) DocString() (string, error) {
	return "Creates a new transaction for WeaveDB. The transaction holds " +
		"the write lock until it is committed or rolled back.", nil
}

/*
CommitTransFunc commits an existing transaction for WeaveDB.
*/
type CommitTransFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *CommitTransFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var res interface{}
	var err error

	if len(args) != 1 {
		err = fmt.Errorf("Function requires the transaction to commit as parameter")
	}

	if err == nil {
		var trans *graph.Trans

		if trans, err = transArg(args[0]); err == nil {

			if err = trans.Commit(); err == nil {
				warnings := make([]interface{}, 0)
				for _, w := range trans.Warnings() {
					warnings = append(warnings, w)
				}
				res = warnings
			}
		}
	}

	return res, err
}

/*
DocString returns a descriptive string.
*/
func (f *CommitTransFunc) DocString() (string, error) {
	return "Commits an existing transaction for WeaveDB. Returns the list " +
		"of warnings from soft constraint violations.", nil
}

/*
RollbackTransFunc rolls back an existing transaction for WeaveDB.
*/
type RollbackTransFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *RollbackTransFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var err error

	if len(args) != 1 {
		err = fmt.Errorf("Function requires the transaction to roll back as parameter")
	}

	if err == nil {
		var trans *graph.Trans

		if trans, err = transArg(args[0]); err == nil {
			trans.Rollback()
		}
	}

	return nil, err
}

/*
DocString returns a descriptive string.
*/
func (f *RollbackTransFunc) DocString() (string, error) {
	return "Rolls back an existing transaction for WeaveDB.", nil
}

/*
SpawnFunc creates a node in WeaveDB.
*/
type SpawnFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *SpawnFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var res interface{}
	var err error

	if arglen := len(args); arglen != 2 && arglen != 3 {
		err = fmt.Errorf("Function requires 2 or 3 parameters: kind, attribute" +
			" map and optionally a transaction")
	}

	if err == nil {
		var trans *graph.Trans

		kind := fmt.Sprint(args[0])
		attrMap, ok := args[1].(map[interface{}]interface{})

		if !ok {
			err = fmt.Errorf("Second parameter must be a map")
		}

		if err == nil && len(args) > 2 {
			trans, err = transArg(args[2])
		}

		if err == nil {
			var attrs map[string]data.Value

			if attrs, err = attrsFromECALMap(f.GM, kind, attrMap); err == nil {

				err = runInTrans(f.GM, trans, func(t *graph.Trans) error {
					var serr error
					res, serr = t.Spawn(kind, attrs)
					return serr
				})
			}
		}
	}

	return res, err
}

/*
DocString returns a descriptive string.
*/
func (f *SpawnFunc) DocString() (string, error) {
	return "Creates a node in WeaveDB. Returns the id of the new node.", nil
}

/*
LinkFunc creates an edge in WeaveDB.
*/
type LinkFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *LinkFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var res interface{}
	var err error

	if arglen := len(args); arglen != 3 && arglen != 4 {
		err = fmt.Errorf("Function requires 3 or 4 parameters: kind, target" +
			" list, attribute map and optionally a transaction")
	}

	if err == nil {
		var trans *graph.Trans
		var targets []uint64

		kind := fmt.Sprint(args[0])

		targetList, ok := args[1].([]interface{})
		if !ok {
			err = fmt.Errorf("Second parameter must be a list")
		}

		attrMap, ok := args[2].(map[interface{}]interface{})
		if err == nil && !ok {
			err = fmt.Errorf("Third parameter must be a map")
		}

		if err == nil && len(args) > 3 {
			trans, err = transArg(args[3])
		}

		if err == nil {
			for _, t := range targetList {
				var id uint64

				if id, err = idArg(t); err != nil {
					break
				}
				targets = append(targets, id)
			}
		}

		if err == nil {
			var attrs map[string]data.Value

			if attrs, err = attrsFromECALMap(f.GM, kind, attrMap); err == nil {

				err = runInTrans(f.GM, trans, func(t *graph.Trans) error {
					var serr error
					res, serr = t.Link(kind, targets, attrs)
					return serr
				})
			}
		}
	}

	return res, err
}

/*
DocString returns a descriptive string.
*/
func (f *LinkFunc) DocString() (string, error) {
	return "Creates an edge in WeaveDB. Returns the id of the new edge.", nil
}

/*
SetAttrFunc updates an attribute of a node or edge in WeaveDB.
*/
type SetAttrFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *SetAttrFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var err error

	if arglen := len(args); arglen != 3 && arglen != 4 {
		err = fmt.Errorf("Function requires 3 or 4 parameters: entity id," +
			" attribute name, value and optionally a transaction")
	}

	if err == nil {
		var trans *graph.Trans
		var id uint64

		if id, err = idArg(args[0]); err == nil {
			attr := fmt.Sprint(args[1])

			if len(args) > 3 {
				trans, err = transArg(args[3])
			}

			if err == nil {
				err = runInTrans(f.GM, trans, func(t *graph.Trans) error {
					kind, _ := t.EntityKind(id)

					if kind == "" {
						return fmt.Errorf("Unknown entity: %v", id)
					}

					def := f.GM.Schema().Attr(kind, attr)
					if def == nil {
						return fmt.Errorf("Attribute %v is not declared for kind %v", attr, kind)
					}

					val, serr := data.ValueFromJSON(scope.ConvertECALToJSONObject(args[2]), def.Type)
					if serr != nil {
						return serr
					}

					return t.Set(id, attr, val)
				})
			}
		}
	}

	return nil, err
}

/*
DocString returns a descriptive string.
*/
func (f *SetAttrFunc) DocString() (string, error) {
	return "Updates an attribute of a node or edge in WeaveDB.", nil
}

/*
KillFunc removes a node in WeaveDB. All edges targeting the node are
removed as well.
*/
type KillFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *KillFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var err error

	if arglen := len(args); arglen != 1 && arglen != 2 {
		err = fmt.Errorf("Function requires 1 or 2 parameters: node id and" +
			" optionally a transaction")
	}

	if err == nil {
		var trans *graph.Trans
		var id uint64

		if id, err = idArg(args[0]); err == nil {

			if len(args) > 1 {
				trans, err = transArg(args[1])
			}

			if err == nil {
				err = runInTrans(f.GM, trans, func(t *graph.Trans) error {
					return t.Kill(id)
				})
			}
		}
	}

	return nil, err
}

/*
DocString returns a descriptive string.
*/
func (f *KillFunc) DocString() (string, error) {
	return "Removes a node in WeaveDB. All edges targeting the node are removed as well.", nil
}

/*
UnlinkFunc removes an edge in WeaveDB.
*/
type UnlinkFunc struct {
	GM *graph.Manager
}

/*
Run executes the ECAL function.
*/
func (f *UnlinkFunc) Run(instanceID string, vs parser.Scope, is map[string]interface{}, tid uint64, args []interface{}) (interface{}, error) {
	var err error

	if arglen := len(args); arglen != 1 && arglen != 2 {
		err = fmt.Errorf("Function requires 1 or 2 parameters: edge id and" +
			" optionally a transaction")
	}

	if err == nil {
		var trans *graph.Trans
		var id uint64

		if id, err = idArg(args[0]); err == nil {

			if len(args) > 1 {
				trans, err = transArg(args[1])
			}

			if err == nil {
				err = runInTrans(f.GM, trans, func(t *graph.Trans) error {
					return t.Unlink(id)
				})
			}
		}
	}

	return nil, err
}

/*
DocString returns a descriptive string.
*/
func (f *UnlinkFunc) DocString() (string, error) {
	return "Removes an edge in WeaveDB.", nil
}
