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
	"sort"
	"strings"
	"time"

	"github.com/krotik/weavedb/graph/data"
	"github.com/krotik/weavedb/graph/util"
)

/*
EvalContext is the environment of a single expression evaluation.
*/
type EvalContext struct {
	Source  Source  // Read view of the graph
	Binding Binding // Current variable binding
}

/*
Expr is a compiled expression tree. Expressions arrive from an external
query compiler which has already resolved names and checked operand
types. Evaluation can still fail at runtime (e.g. integer division by
zero) which is reported as an evaluation error.
*/
type Expr interface {

	/*
	   Eval evaluates this expression under a given context.
	*/
	Eval(ec *EvalContext) (data.Value, error)

	/*
	   String returns a string representation of this expression.
	*/
	String() string

	/*
	   collectVars adds all referenced variables to the given set.
	*/
	collectVars(set map[string]bool)
}

/*
freeVars returns all variables referenced by an expression in sorted
order.
*/
func freeVars(e Expr) []string {
	set := make(map[string]bool)
	e.collectVars(set)

	vars := make([]string, 0, len(set))
	for v := range set {
		vars = append(vars, v)
	}
	sort.Strings(vars)

	return vars
}

/*
conjuncts splits an expression into its top-level and-connected parts.
*/
func conjuncts(e Expr) []Expr {
	if b, ok := e.(*Binary); ok && b.Op == OpAnd {
		return append(conjuncts(b.Left), conjuncts(b.Right)...)
	}
	return []Expr{e}
}

/*
evalErr returns a new evaluation error.
*/
func evalErr(detail string, args ...interface{}) error {
	return &util.GraphError{Type: util.ErrEvaluation,
		Detail: fmt.Sprintf(detail, args...)}
}

// Literals and references
// =======================

/*
Literal is a constant value.
*/
type Literal struct {
	Val data.Value
}

/*
Eval evaluates this expression under a given context.
*/
func (l *Literal) Eval(ec *EvalContext) (data.Value, error) {
	return l.Val, nil
}

/*
String returns a string representation of this expression.
*/
func (l *Literal) String() string {
	if l.Val.Type() == data.TypeString {
		return fmt.Sprintf("%q", l.Val.Str())
	}
	return l.Val.String()
}

func (l *Literal) collectVars(set map[string]bool) {}

/*
VarRef is a reference to a pattern variable. It evaluates to a node or
edge reference value.
*/
type VarRef struct {
	Name string
}

/*
Eval evaluates this expression under a given context.
*/
func (vr *VarRef) Eval(ec *EvalContext) (data.Value, error) {
	id, ok := ec.Binding[vr.Name]
	if !ok {
		return data.NullValue(), evalErr("Unbound variable: %v", vr.Name)
	}

	if _, isEdge := ec.Source.EntityKind(id); isEdge {
		return data.EdgeRefValue(id), nil
	}

	return data.NodeRefValue(id), nil
}

/*
String returns a string representation of this expression.
*/
func (vr *VarRef) String() string {
	return vr.Name
}

func (vr *VarRef) collectVars(set map[string]bool) {
	set[vr.Name] = true
}

/*
AttrAccess reads an attribute of a bound variable. Missing attributes
and deleted entities read as null.
*/
type AttrAccess struct {
	Var  string
	Attr string
}

/*
Eval evaluates this expression under a given context.
*/
func (aa *AttrAccess) Eval(ec *EvalContext) (data.Value, error) {
	id, ok := ec.Binding[aa.Var]
	if !ok {
		return data.NullValue(), evalErr("Unbound variable: %v", aa.Var)
	}

	entity := ec.Source.Fetch(id)
	if entity == nil {
		return data.NullValue(), nil
	}

	return entity.Attr(aa.Attr), nil
}

/*
String returns a string representation of this expression.
*/
func (aa *AttrAccess) String() string {
	return fmt.Sprintf("%v.%v", aa.Var, aa.Attr)
}

func (aa *AttrAccess) collectVars(set map[string]bool) {
	set[aa.Var] = true
}

// Operators
// =========

/*
UnaryOp is the operator of a unary expression.
*/
type UnaryOp int

/*
Unary operators
*/
const (
	OpNot UnaryOp = iota
	OpNeg
)

/*
Unary is a unary operator expression.
*/
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

/*
Eval evaluates this expression under a given context.
*/
func (u *Unary) Eval(ec *EvalContext) (data.Value, error) {
	val, err := u.Operand.Eval(ec)
	if err != nil {
		return data.NullValue(), err
	}

	if val.IsNull() {
		return data.NullValue(), nil
	}

	switch u.Op {

	case OpNot:
		if val.Type() == data.TypeBool {
			return data.BoolValue(!val.Bool()), nil
		}

	case OpNeg:
		switch val.Type() {
		case data.TypeInt:
			return data.IntValue(-val.Int()), nil
		case data.TypeFloat:
			return data.FloatValue(-val.Float()), nil
		case data.TypeDuration:
			return data.DurationValue(-val.Int()), nil
		}
	}

	return data.NullValue(), evalErr("Invalid operand for %v: %v", u.opString(), val)
}

/*
String returns a string representation of this expression.
*/
func (u *Unary) String() string {
	return fmt.Sprintf("%v%v", u.opString(), u.Operand)
}

func (u *Unary) opString() string {
	if u.Op == OpNot {
		return "not "
	}
	return "-"
}

func (u *Unary) collectVars(set map[string]bool) {
	u.Operand.collectVars(set)
}

/*
BinaryOp is the operator of a binary expression.
*/
type BinaryOp int

/*
Binary operators
*/
const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
)

var binaryOpStrings = map[BinaryOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpEq: "=", OpNeq: "!=", OpLt: "<", OpLte: "<=", OpGt: ">",
	OpGte: ">=", OpAnd: "and", OpOr: "or",
}

/*
Binary is a binary operator expression.
*/
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

/*
Eval evaluates this expression under a given context. Logical and/or
short-circuit on a decided left operand. Null propagates through
arithmetic to null. Comparisons involving null are false except
equality of null with null.
*/
func (b *Binary) Eval(ec *EvalContext) (data.Value, error) {
	left, err := b.Left.Eval(ec)
	if err != nil {
		return data.NullValue(), err
	}

	// Logical operators short-circuit before the right side is touched

	if b.Op == OpAnd && left.Type() == data.TypeBool && !left.Bool() {
		return data.BoolValue(false), nil
	}
	if b.Op == OpOr && left.Type() == data.TypeBool && left.Bool() {
		return data.BoolValue(true), nil
	}

	right, err := b.Right.Eval(ec)
	if err != nil {
		return data.NullValue(), err
	}

	switch b.Op {

	case OpAnd, OpOr:
		if left.IsNull() || right.IsNull() {
			return data.NullValue(), nil
		}
		if left.Type() != data.TypeBool || right.Type() != data.TypeBool {
			return data.NullValue(), evalErr("Invalid operands for %v: %v and %v",
				binaryOpStrings[b.Op], left, right)
		}
		if b.Op == OpAnd {
			return data.BoolValue(left.Bool() && right.Bool()), nil
		}
		return data.BoolValue(left.Bool() || right.Bool()), nil

	case OpEq:
		return data.BoolValue(left.Equals(right)), nil

	case OpNeq:
		if left.IsNull() || right.IsNull() {
			return data.BoolValue(false), nil
		}
		return data.BoolValue(!left.Equals(right)), nil

	case OpLt, OpLte, OpGt, OpGte:
		res, ok := left.Compare(right)
		if !ok {
			return data.BoolValue(false), nil
		}
		switch b.Op {
		case OpLt:
			return data.BoolValue(res < 0), nil
		case OpLte:
			return data.BoolValue(res <= 0), nil
		case OpGt:
			return data.BoolValue(res > 0), nil
		}
		return data.BoolValue(res >= 0), nil
	}

	return b.evalArith(left, right)
}

/*
evalArith evaluates the arithmetic operators.
*/
func (b *Binary) evalArith(left data.Value, right data.Value) (data.Value, error) {
	if left.IsNull() || right.IsNull() {
		return data.NullValue(), nil
	}

	lt, rt := left.Type(), right.Type()

	if b.Op == OpAdd && lt == data.TypeString && rt == data.TypeString {
		return data.StringValue(left.Str() + right.Str()), nil
	}

	// Timestamp and duration arithmetic on the millisecond level

	if lt == data.TypeTime || rt == data.TypeTime ||
		lt == data.TypeDuration || rt == data.TypeDuration {

		if res, ok := b.evalTimeArith(left, right); ok {
			return res, nil
		}

		return data.NullValue(), evalErr("Invalid operands for %v: %v and %v",
			binaryOpStrings[b.Op], left, right)
	}

	if lt == data.TypeFloat || rt == data.TypeFloat {
		return b.evalFloatArith(left, right)
	}

	if lt != data.TypeInt || rt != data.TypeInt {
		return data.NullValue(), evalErr("Invalid operands for %v: %v and %v",
			binaryOpStrings[b.Op], left, right)
	}

	l, r := left.Int(), right.Int()

	switch b.Op {
	case OpAdd:
		return data.IntValue(l + r), nil
	case OpSub:
		return data.IntValue(l - r), nil
	case OpMul:
		return data.IntValue(l * r), nil
	case OpDiv:
		if r == 0 {
			return data.NullValue(), evalErr("Division by zero")
		}
		return data.IntValue(l / r), nil
	}

	if r == 0 {
		return data.NullValue(), evalErr("Division by zero")
	}
	return data.IntValue(l % r), nil
}

/*
evalFloatArith evaluates arithmetic with at least one float operand.
Division by zero follows IEEE semantics here.
*/
func (b *Binary) evalFloatArith(left data.Value, right data.Value) (data.Value, error) {
	if !isNumericValue(left) || !isNumericValue(right) {
		return data.NullValue(), evalErr("Invalid operands for %v: %v and %v",
			binaryOpStrings[b.Op], left, right)
	}

	l, r := floatOf(left), floatOf(right)

	switch b.Op {
	case OpAdd:
		return data.FloatValue(l + r), nil
	case OpSub:
		return data.FloatValue(l - r), nil
	case OpMul:
		return data.FloatValue(l * r), nil
	case OpDiv:
		return data.FloatValue(l / r), nil
	}

	return data.NullValue(), evalErr("Invalid operands for %%: %v and %v", left, right)
}

/*
evalTimeArith evaluates arithmetic involving timestamps or durations.
*/
func (b *Binary) evalTimeArith(left data.Value, right data.Value) (data.Value, bool) {
	lt, rt := left.Type(), right.Type()

	switch b.Op {

	case OpAdd:
		if lt == data.TypeTime && rt == data.TypeDuration {
			return data.TimeValue(left.Int() + right.Int()), true
		}
		if lt == data.TypeDuration && rt == data.TypeTime {
			return data.TimeValue(left.Int() + right.Int()), true
		}
		if lt == data.TypeDuration && rt == data.TypeDuration {
			return data.DurationValue(left.Int() + right.Int()), true
		}

	case OpSub:
		if lt == data.TypeTime && rt == data.TypeTime {
			return data.DurationValue(left.Int() - right.Int()), true
		}
		if lt == data.TypeTime && rt == data.TypeDuration {
			return data.TimeValue(left.Int() - right.Int()), true
		}
		if lt == data.TypeDuration && rt == data.TypeDuration {
			return data.DurationValue(left.Int() - right.Int()), true
		}

	case OpMul:
		if lt == data.TypeDuration && rt == data.TypeInt {
			return data.DurationValue(left.Int() * right.Int()), true
		}
		if lt == data.TypeInt && rt == data.TypeDuration {
			return data.DurationValue(left.Int() * right.Int()), true
		}
	}

	return data.NullValue(), false
}

/*
String returns a string representation of this expression.
*/
func (b *Binary) String() string {
	return fmt.Sprintf("(%v %v %v)", b.Left, binaryOpStrings[b.Op], b.Right)
}

func (b *Binary) collectVars(set map[string]bool) {
	b.Left.collectVars(set)
	b.Right.collectVars(set)
}

// Builtin functions
// =================

/*
Call is a builtin function call. Available functions are now, len, abs,
min, max and coalesce.
*/
type Call struct {
	Name string
	Args []Expr
}

/*
Eval evaluates this expression under a given context.
*/
func (c *Call) Eval(ec *EvalContext) (data.Value, error) {
	args := make([]data.Value, len(c.Args))

	for i, a := range c.Args {
		val, err := a.Eval(ec)
		if err != nil {
			return data.NullValue(), err
		}
		args[i] = val
	}

	switch c.Name {

	case "now":
		if len(args) == 0 {
			return data.TimeValue(time.Now().UnixNano() / int64(time.Millisecond)), nil
		}

	case "len":
		if len(args) == 1 {
			if args[0].IsNull() {
				return data.NullValue(), nil
			}
			if args[0].Type() == data.TypeString {
				return data.IntValue(int64(len(args[0].Str()))), nil
			}
		}

	case "abs":
		if len(args) == 1 {
			switch args[0].Type() {
			case data.TypeNull:
				return data.NullValue(), nil
			case data.TypeInt:
				if args[0].Int() < 0 {
					return data.IntValue(-args[0].Int()), nil
				}
				return args[0], nil
			case data.TypeFloat:
				if args[0].Float() < 0 {
					return data.FloatValue(-args[0].Float()), nil
				}
				return args[0], nil
			}
		}

	case "min", "max":
		if len(args) >= 1 {
			best := args[0]
			for _, a := range args[1:] {
				if a.IsNull() || best.IsNull() {
					return data.NullValue(), nil
				}
				res, ok := a.Compare(best)
				if !ok {
					return data.NullValue(), evalErr(
						"Invalid arguments for %v: %v and %v", c.Name, best, a)
				}
				if (c.Name == "min" && res < 0) || (c.Name == "max" && res > 0) {
					best = a
				}
			}
			return best, nil
		}

	case "coalesce":
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return data.NullValue(), nil

	default:
		return data.NullValue(), evalErr("Unknown function: %v", c.Name)
	}

	return data.NullValue(), evalErr("Invalid arguments for %v", c.Name)
}

/*
String returns a string representation of this expression.
*/
func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%v(%v)", c.Name, strings.Join(args, ", "))
}

func (c *Call) collectVars(set map[string]bool) {
	for _, a := range c.Args {
		a.collectVars(set)
	}
}

/*
isNumericValue returns if a value is an integer or float.
*/
func isNumericValue(v data.Value) bool {
	return v.Type() == data.TypeInt || v.Type() == data.TypeFloat
}

/*
floatOf returns the float content of an integer or float value.
*/
func floatOf(v data.Value) float64 {
	if v.Type() == data.TypeInt {
		return float64(v.Int())
	}
	return v.Float()
}
