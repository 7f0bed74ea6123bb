/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package data

import (
	"fmt"
	"math"
	"time"
)

/*
JSON returns a plain data representation of a value which can be given
to a JSON encoder. Times are rendered as RFC3339 strings, durations as
duration strings and references as plain ids.
*/
func (v Value) JSON() interface{} {
	switch v.vtype {
	case TypeNull:
		return nil
	case TypeBool:
		return v.b
	case TypeInt:
		return v.i
	case TypeFloat:
		return v.f
	case TypeString:
		return v.s
	case TypeTime:
		return time.Unix(0, v.i*int64(time.Millisecond)).UTC().Format(time.RFC3339Nano)
	case TypeDuration:
		return (time.Duration(v.i) * time.Millisecond).String()
	}

	return v.i
}

/*
ValueFromJSON converts plain data from a JSON decoder into a value of a
declared type. Numbers arrive as float64 from the decoder and are
coerced according to the declared type. Times accept RFC3339 strings or
millisecond numbers, durations accept duration strings or millisecond
numbers.
*/
func ValueFromJSON(val interface{}, vtype ValueType) (Value, error) {

	if val == nil {
		return NullValue(), nil
	}

	fail := func() (Value, error) {
		return NullValue(), fmt.Errorf("Cannot convert %#v to %v", val, vtype)
	}

	num := func() (int64, bool) {
		switch n := val.(type) {
		case float64:
			if n != math.Trunc(n) {
				return 0, false
			}
			return int64(n), true
		case int64:
			return n, true
		case int:
			return int64(n), true
		}
		return 0, false
	}

	switch vtype {

	case TypeBool:
		if b, ok := val.(bool); ok {
			return BoolValue(b), nil
		}

	case TypeInt:
		if i, ok := num(); ok {
			return IntValue(i), nil
		}

	case TypeFloat:
		switch f := val.(type) {
		case float64:
			return FloatValue(f), nil
		case int64:
			return FloatValue(float64(f)), nil
		case int:
			return FloatValue(float64(f)), nil
		}

	case TypeString:
		if s, ok := val.(string); ok {
			return StringValue(s), nil
		}

	case TypeTime:
		if s, ok := val.(string); ok {
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return fail()
			}
			return TimeValue(ts.UnixNano() / int64(time.Millisecond)), nil
		}
		if i, ok := num(); ok {
			return TimeValue(i), nil
		}

	case TypeDuration:
		if s, ok := val.(string); ok {
			d, err := time.ParseDuration(s)
			if err != nil {
				return fail()
			}
			return DurationValue(int64(d / time.Millisecond)), nil
		}
		if i, ok := num(); ok {
			return DurationValue(i), nil
		}

	case TypeNodeRef:
		if i, ok := num(); ok {
			return NodeRefValue(uint64(i)), nil
		}

	case TypeEdgeRef:
		if i, ok := num(); ok {
			return EdgeRefValue(uint64(i)), nil
		}
	}

	return fail()
}

/*
NodeJSON returns a plain data representation of a node which can be
given to a JSON encoder.
*/
func NodeJSON(node Node) map[string]interface{} {
	ret := map[string]interface{}{
		"id":   node.ID(),
		"kind": node.Kind(),
	}

	attrs := make(map[string]interface{})
	for attr, val := range node.Data() {
		attrs[attr] = val.JSON()
	}
	ret["attrs"] = attrs

	return ret
}

/*
EdgeJSON returns a plain data representation of an edge which can be
given to a JSON encoder.
*/
func EdgeJSON(edge Edge) map[string]interface{} {
	ret := NodeJSON(edge)
	ret["targets"] = edge.Targets()

	return ret
}
