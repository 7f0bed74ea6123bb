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
Package util contains utility classes for the graph engine.

GraphError

Models a graph related error. Low-level errors should be wrapped in a
GraphError before they are returned to a client. The Type field holds one
of the error kind variables below and can be used for equality checks.

ViolationError

Models a hard constraint violation. It carries the name of the violated
constraint and the variable binding for which the condition evaluated to
false.
*/
package util

import (
	"errors"
	"fmt"
	"sort"
)

/*
GraphError is a graph related error
*/
type GraphError struct {
	Type   error  // Error type (to be used for equal checks)
	Detail string // Details of this error
}

/*
Error returns a human-readable string representation of this error.
*/
func (ge *GraphError) Error() string {
	if ge.Detail != "" {
		return fmt.Sprintf("GraphError: %v (%v)", ge.Type, ge.Detail)
	}

	return fmt.Sprintf("GraphError: %v", ge.Type)
}

/*
Graph related error types
*/
var (
	ErrInvalidData = errors.New("Invalid data")
	ErrValidation  = errors.New("Validation failed")
	ErrConstraint  = errors.New("Constraint violated")
	ErrLimit       = errors.New("Execution limit exceeded")
	ErrEvaluation  = errors.New("Evaluation failed")
	ErrTransaction = errors.New("Invalid transaction state")
	ErrReading     = errors.New("Could not read graph information")
	ErrWriting     = errors.New("Could not write graph information")
	ErrRule        = errors.New("Graph rule error")
)

/*
ViolationError is returned when a hard constraint evaluated to false.
*/
type ViolationError struct {
	Constraint string            // Name of the violated constraint
	Binding    map[string]uint64 // Binding for which the condition failed
}

/*
Error returns a human-readable string representation of this error.
*/
func (ve *ViolationError) Error() string {
	vars := make([]string, 0, len(ve.Binding))
	for v := range ve.Binding {
		vars = append(vars, v)
	}

	sort.StringSlice(vars).Sort()

	detail := ""
	for i, v := range vars {
		if i > 0 {
			detail += ", "
		}
		detail += fmt.Sprintf("%v=%v", v, ve.Binding[v])
	}

	return fmt.Sprintf("Constraint %v violated for binding {%v}", ve.Constraint, detail)
}
