/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"github.com/krotik/weavedb/graph/data"
	"github.com/krotik/weavedb/graph/util"
	"github.com/krotik/weavedb/pattern"
)

/*
checkImmediate checks all non-deferred constraints which a batch of
buffered mutations can affect. The pattern match is seeded with the
mutated entity so only bindings involving it are evaluated. A hard
violation aborts with the constraint name and the failing binding, a
soft violation only records a warning.
*/
func (t *Trans) checkImmediate(muts []mutation) error {
	for _, c := range t.gm.constraints {
		if c.Deferred {
			continue
		}

		for _, mut := range muts {
			if !c.affects[mut.kind] {
				continue
			}

			bindings, err := t.matchesAround(c.Pattern, mut)
			if err != nil {
				return err
			}

			if err := t.evalConstraint(c, bindings); err != nil {
				return err
			}
		}
	}

	return nil
}

/*
checkDeferred checks all deferred constraints over the fully mutated
state. Deferred constraints run exactly once per transaction, just
before commit.
*/
func (t *Trans) checkDeferred() error {
	matcher := pattern.NewMatcher(t.gm.snap, t, t.gm.MaxTraversalDepth)

	for _, c := range t.gm.constraints {
		if !c.Deferred {
			continue
		}

		var bindings []pattern.Binding

		it := matcher.Match(c.Pattern)
		for it.HasNext() {
			bindings = append(bindings, it.Next())
		}
		if it.LastError != nil {
			return it.LastError
		}

		if err := t.evalConstraint(c, bindings); err != nil {
			return err
		}
	}

	return nil
}

/*
evalConstraint evaluates the condition of a constraint for a list of
bindings.
*/
func (t *Trans) evalConstraint(c *Constraint, bindings []pattern.Binding) error {
	for _, b := range bindings {
		val, err := c.Cond.Eval(&pattern.EvalContext{Source: t, Binding: b})
		if err != nil {
			return err
		}

		if val.Type() == data.TypeBool && val.Bool() {
			continue
		}

		violation := &util.ViolationError{Constraint: c.Name, Binding: map[string]uint64(b)}

		if c.Hard {
			return violation
		}

		t.gm.logger.Warning(violation.Error())
		t.warnings = append(t.warnings, violation.Error())
	}

	return nil
}
