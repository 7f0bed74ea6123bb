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
Package data contains classes and functions to handle graph data.

Values

Attribute values are modelled as a tagged union over null, boolean, 64-bit
integer, 64-bit float, string, millisecond timestamp, millisecond duration
and references to nodes or edges. Values are immutable - operations on
values always produce new values.

Nodes

Nodes are items stored in the graph. Every node has an immutable numeric
id which is unique within the combined node and edge id space, a kind, a
version counter and a set of attribute values. The version counter is
increased on every attribute write.

Edges

Edges are items stored in the graph which connect other items. An edge has
an ordered list of target ids. A target may be a node or another edge which
makes edges in this model higher-order constructs. The number of targets is
the arity of the edge and is fixed by the edge kind.
*/
package data

import (
	"fmt"
	"strconv"
	"time"
)

/*
ValueType is the type tag of a Value.
*/
type ValueType int

/*
Possible value types
*/
const (
	TypeNull ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeTime
	TypeDuration
	TypeNodeRef
	TypeEdgeRef
)

/*
String returns a human-readable name of a value type.
*/
func (vt ValueType) String() string {
	switch vt {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeTime:
		return "time"
	case TypeDuration:
		return "duration"
	case TypeNodeRef:
		return "node"
	case TypeEdgeRef:
		return "edge"
	}

	return fmt.Sprintf("ValueType(%v)", int(vt))
}

/*
Value is a single attribute value.
*/
type Value struct {
	vtype ValueType
	b     bool
	i     int64 // Holds ints, timestamps, durations and reference ids
	f     float64
	s     string
}

/*
NullValue returns the null value.
*/
func NullValue() Value {
	return Value{}
}

/*
BoolValue creates a boolean value.
*/
func BoolValue(b bool) Value {
	return Value{vtype: TypeBool, b: b}
}

/*
IntValue creates an integer value.
*/
func IntValue(i int64) Value {
	return Value{vtype: TypeInt, i: i}
}

/*
FloatValue creates a float value.
*/
func FloatValue(f float64) Value {
	return Value{vtype: TypeFloat, f: f}
}

/*
StringValue creates a string value.
*/
func StringValue(s string) Value {
	return Value{vtype: TypeString, s: s}
}

/*
TimeValue creates a timestamp value from milliseconds since the epoch.
*/
func TimeValue(millis int64) Value {
	return Value{vtype: TypeTime, i: millis}
}

/*
DurationValue creates a duration value from milliseconds.
*/
func DurationValue(millis int64) Value {
	return Value{vtype: TypeDuration, i: millis}
}

/*
NodeRefValue creates a node reference value.
*/
func NodeRefValue(id uint64) Value {
	return Value{vtype: TypeNodeRef, i: int64(id)}
}

/*
EdgeRefValue creates an edge reference value.
*/
func EdgeRefValue(id uint64) Value {
	return Value{vtype: TypeEdgeRef, i: int64(id)}
}

/*
Type returns the type tag of this value.
*/
func (v Value) Type() ValueType {
	return v.vtype
}

/*
IsNull returns if this value is the null value.
*/
func (v Value) IsNull() bool {
	return v.vtype == TypeNull
}

/*
Bool returns the boolean content of this value.
*/
func (v Value) Bool() bool {
	return v.b
}

/*
Int returns the integer content of this value. Timestamps and durations
are returned as milliseconds.
*/
func (v Value) Int() int64 {
	return v.i
}

/*
Float returns the float content of this value.
*/
func (v Value) Float() float64 {
	return v.f
}

/*
Str returns the string content of this value.
*/
func (v Value) Str() string {
	return v.s
}

/*
Ref returns the referenced entity id of this value.
*/
func (v Value) Ref() uint64 {
	return uint64(v.i)
}

/*
IsRef returns if this value is a node or edge reference.
*/
func (v Value) IsRef() bool {
	return v.vtype == TypeNodeRef || v.vtype == TypeEdgeRef
}

/*
Equals compares two values for equality. Null equals only null. Integers
and floats compare across their two types by numeric value. Float
comparison follows IEEE semantics - NaN is never equal to anything
including itself. All other types equal only values of the same type.
*/
func (v Value) Equals(o Value) bool {

	if v.vtype == TypeNull || o.vtype == TypeNull {
		return v.vtype == TypeNull && o.vtype == TypeNull
	}

	if isNumeric(v.vtype) && isNumeric(o.vtype) {
		if v.vtype == TypeFloat || o.vtype == TypeFloat {
			return v.numFloat() == o.numFloat()
		}
		return v.i == o.i
	}

	if v.vtype != o.vtype {
		return false
	}

	switch v.vtype {
	case TypeBool:
		return v.b == o.b
	case TypeString:
		return v.s == o.s
	}

	return v.i == o.i
}

/*
Compare orders two values. The result is -1, 0 or 1 if this value is less
than, equal to or greater than the other value. The second return value is
false if the values cannot be ordered (type mismatch, null operands or NaN).
*/
func (v Value) Compare(o Value) (int, bool) {

	if v.vtype == TypeNull || o.vtype == TypeNull {
		return 0, false
	}

	if isNumeric(v.vtype) && isNumeric(o.vtype) {

		if v.vtype == TypeFloat || o.vtype == TypeFloat {
			f1, f2 := v.numFloat(), o.numFloat()

			if f1 != f1 || f2 != f2 {

				// NaN never orders

				return 0, false
			}

			if f1 < f2 {
				return -1, true
			} else if f1 > f2 {
				return 1, true
			}
			return 0, true
		}

		if v.i < o.i {
			return -1, true
		} else if v.i > o.i {
			return 1, true
		}
		return 0, true
	}

	if v.vtype != o.vtype {
		return 0, false
	}

	switch v.vtype {

	case TypeString:
		if v.s < o.s {
			return -1, true
		} else if v.s > o.s {
			return 1, true
		}
		return 0, true

	case TypeTime, TypeDuration:
		if v.i < o.i {
			return -1, true
		} else if v.i > o.i {
			return 1, true
		}
		return 0, true
	}

	return 0, false
}

/*
IndexKey returns a canonical string representation of this value which can
be used as an index lookup key. Values which are equal produce the same
index key. Integers and floats share one numeric key space so that an
index lookup finds every entry the Equals semantics accept - a key match
is a candidate match and lookups must confirm it with Equals.
*/
func (v Value) IndexKey() string {

	switch v.vtype {

	case TypeNull:
		return "n:"

	case TypeBool:
		return fmt.Sprintf("b:%v", v.b)

	case TypeString:
		return "s:" + v.s

	case TypeInt, TypeFloat:
		f := v.numFloat()
		if f == 0 {

			// Fold -0.0 and 0 into one key

			f = 0
		}
		return "#:" + strconv.FormatFloat(f, 'g', -1, 64)

	case TypeTime:
		return fmt.Sprintf("t:%v", v.i)

	case TypeDuration:
		return fmt.Sprintf("d:%v", v.i)
	}

	return fmt.Sprintf("r:%v:%v", v.vtype, uint64(v.i))
}

/*
String returns a string representation of this value.
*/
func (v Value) String() string {

	switch v.vtype {

	case TypeNull:
		return "null"

	case TypeBool:
		return fmt.Sprint(v.b)

	case TypeInt:
		return fmt.Sprint(v.i)

	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)

	case TypeString:
		return v.s

	case TypeTime:
		return time.Unix(0, v.i*int64(time.Millisecond)).UTC().Format(time.RFC3339)

	case TypeDuration:
		return (time.Duration(v.i) * time.Millisecond).String()

	case TypeNodeRef:
		return fmt.Sprintf("node(%v)", uint64(v.i))
	}

	return fmt.Sprintf("edge(%v)", uint64(v.i))
}

/*
numFloat returns the numeric content of this value as a float.
*/
func (v Value) numFloat() float64 {
	if v.vtype == TypeFloat {
		return v.f
	}

	return float64(v.i)
}

/*
isNumeric returns if a value type compares across types by numeric value.
*/
func isNumeric(vt ValueType) bool {
	return vt == TypeInt || vt == TypeFloat
}
