/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pattern

import (
	"fmt"

	"github.com/krotik/weavedb/graph/data"
	"github.com/krotik/weavedb/graph/util"
)

/*
binaryOpNames maps operation names of the wire format to binary
operations.
*/
var binaryOpNames = map[string]BinaryOp{
	"add": OpAdd, "sub": OpSub, "mul": OpMul, "div": OpDiv, "mod": OpMod,
	"eq": OpEq, "neq": OpNeq, "lt": OpLt, "lte": OpLte, "gt": OpGt,
	"gte": OpGte, "and": OpAnd, "or": OpOr,
}

/*
unaryOpNames maps operation names of the wire format to unary
operations.
*/
var unaryOpNames = map[string]UnaryOp{
	"not": OpNot, "neg": OpNeg,
}

/*
decodeErr returns a decoding error.
*/
func decodeErr(detail string, args ...interface{}) error {
	return &util.GraphError{Type: util.ErrInvalidData,
		Detail: fmt.Sprintf(detail, args...)}
}

/*
DecodePattern decodes a pattern from its JSON document form. The
document has a list of variable declarations, a list of edge patterns
and an optional condition expression:

	{
	    "vars"  : [ { "name" : "x", "kind" : "task" } ],
	    "edges" : [ { "kind" : "causes", "targets" : [ "x", "*" ],
	                  "alias" : "c", "transitive" : "" } ],
	    "cond"  : { "op" : "eq", "args" : [ ... ] }
	}

The transitive field is "" for plain edges, "+" for one or more hops
and "*" for zero or more hops.
*/
func DecodePattern(doc map[string]interface{}) (*Pattern, error) {
	p := &Pattern{}

	vars, ok := doc["vars"].([]interface{})
	if !ok {
		return nil, decodeErr("Pattern needs a list of vars")
	}

	for _, v := range vars {
		vdoc, ok := v.(map[string]interface{})
		if !ok {
			return nil, decodeErr("Pattern var is not an object: %v", v)
		}

		name, ok1 := vdoc["name"].(string)
		kind, ok2 := vdoc["kind"].(string)
		if !ok1 || !ok2 {
			return nil, decodeErr("Pattern var needs a name and a kind: %v", v)
		}

		p.Vars = append(p.Vars, VarDecl{Name: name, Kind: kind})
	}

	if edges, ok := doc["edges"].([]interface{}); ok {

		for _, e := range edges {
			edoc, ok := e.(map[string]interface{})
			if !ok {
				return nil, decodeErr("Edge pattern is not an object: %v", e)
			}

			em, err := decodeEdgeMatch(edoc)
			if err != nil {
				return nil, err
			}

			p.Edges = append(p.Edges, *em)
		}
	}

	if cdoc, ok := doc["cond"]; ok && cdoc != nil {
		cond, err := DecodeExpr(cdoc)
		if err != nil {
			return nil, err
		}
		p.Cond = cond
	}

	return p, nil
}

/*
decodeEdgeMatch decodes a single edge pattern.
*/
func decodeEdgeMatch(edoc map[string]interface{}) (*EdgeMatch, error) {
	kind, ok := edoc["kind"].(string)
	if !ok {
		return nil, decodeErr("Edge pattern needs a kind: %v", edoc)
	}

	em := &EdgeMatch{Kind: kind}

	targets, ok := edoc["targets"].([]interface{})
	if !ok {
		return nil, decodeErr("Edge pattern needs a list of targets: %v", edoc)
	}

	for _, t := range targets {
		ts, ok := t.(string)
		if !ok {
			return nil, decodeErr("Edge pattern target is not a string: %v", t)
		}

		if ts == "*" {
			em.Targets = append(em.Targets, Wildcard())
		} else {
			em.Targets = append(em.Targets, Var(ts))
		}
	}

	if alias, ok := edoc["alias"].(string); ok {
		em.Alias = alias
	}

	if trans, ok := edoc["transitive"].(string); ok {

		switch trans {
		case "":
			em.Transitive = TransitiveNone
		case "+":
			em.Transitive = TransitiveOneOrMore
		case "*":
			em.Transitive = TransitiveZeroOrMore
		default:
			return nil, decodeErr("Unknown transitive mode: %v", trans)
		}
	}

	return em, nil
}

/*
DecodeExpr decodes a condition expression from its JSON document form.
Expression nodes are objects with a discriminating key:

	{ "var" : "x" }                            variable reference
	{ "var" : "x", "attr" : "name" }           attribute access
	{ "lit" : 42 }                             literal
	{ "lit" : "2h", "type" : "duration" }      typed literal
	{ "op" : "and", "args" : [ ... ] }         operation
	{ "call" : "now", "args" : [] }            function call
*/
func DecodeExpr(doc interface{}) (Expr, error) {
	edoc, ok := doc.(map[string]interface{})
	if !ok {
		return nil, decodeErr("Expression is not an object: %v", doc)
	}

	if name, ok := edoc["var"].(string); ok {

		if attr, ok := edoc["attr"].(string); ok {
			return &AttrAccess{Var: name, Attr: attr}, nil
		}

		return &VarRef{Name: name}, nil
	}

	if _, ok := edoc["lit"]; ok {
		val, err := decodeLiteral(edoc)
		if err != nil {
			return nil, err
		}

		return &Literal{Val: val}, nil
	}

	if opname, ok := edoc["op"].(string); ok {
		args, err := decodeArgs(edoc)
		if err != nil {
			return nil, err
		}

		if op, ok := binaryOpNames[opname]; ok {
			if len(args) != 2 {
				return nil, decodeErr("Operation %v needs 2 arguments", opname)
			}

			return &Binary{Op: op, Left: args[0], Right: args[1]}, nil
		}

		if op, ok := unaryOpNames[opname]; ok {
			if len(args) != 1 {
				return nil, decodeErr("Operation %v needs 1 argument", opname)
			}

			return &Unary{Op: op, Operand: args[0]}, nil
		}

		return nil, decodeErr("Unknown operation: %v", opname)
	}

	if name, ok := edoc["call"].(string); ok {
		args, err := decodeArgs(edoc)
		if err != nil {
			return nil, err
		}

		return &Call{Name: name, Args: args}, nil
	}

	return nil, decodeErr("Cannot decode expression: %v", doc)
}

/*
decodeArgs decodes the argument list of an operation or call node.
*/
func decodeArgs(edoc map[string]interface{}) ([]Expr, error) {
	var args []Expr

	adocs, ok := edoc["args"].([]interface{})
	if !ok {
		return nil, decodeErr("Expression needs a list of args: %v", edoc)
	}

	for _, adoc := range adocs {
		arg, err := DecodeExpr(adoc)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	return args, nil
}

/*
decodeLiteral decodes a literal node. An explicit type name forces the
value type, otherwise the type follows the JSON value with integral
numbers becoming int values.
*/
func decodeLiteral(edoc map[string]interface{}) (data.Value, error) {
	lit := edoc["lit"]

	if tname, ok := edoc["type"].(string); ok {

		for _, vt := range []data.ValueType{data.TypeNull, data.TypeBool,
			data.TypeInt, data.TypeFloat, data.TypeString, data.TypeTime,
			data.TypeDuration, data.TypeNodeRef, data.TypeEdgeRef} {

			if vt.String() == tname {
				return data.ValueFromJSON(lit, vt)
			}
		}

		return data.NullValue(), decodeErr("Unknown value type: %v", tname)
	}

	switch l := lit.(type) {
	case nil:
		return data.NullValue(), nil
	case bool:
		return data.BoolValue(l), nil
	case string:
		return data.StringValue(l), nil
	case float64:
		if l == float64(int64(l)) {
			return data.IntValue(int64(l)), nil
		}
		return data.FloatValue(l), nil
	}

	return data.NullValue(), decodeErr("Cannot decode literal: %#v", lit)
}
