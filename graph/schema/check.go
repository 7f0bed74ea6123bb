/*
 * WeaveDB
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package schema

import (
	"fmt"

	"devt.de/krotik/common/stringutil"

	"github.com/krotik/weavedb/graph/data"
)

/*
CheckAttr checks a single attribute value against the declaration on a
given kind. Writing the null value is treated as removing the attribute
which is rejected for required attributes. Reference values must point
to a live entity of the right sort and, if the declaration restricts the
referenced kind, of that kind or a subtype of it.
*/
func (ss *Snapshot) CheckAttr(kind string, attr string, val data.Value, lookup EntityKindLookup) error {

	ad := ss.Attr(kind, attr)
	if ad == nil {
		return fmt.Errorf("Attribute %v is not declared for kind %v", attr, kind)
	}

	if val.IsNull() {
		if ad.Required {
			return fmt.Errorf("Required attribute %v of kind %v cannot be removed", attr, kind)
		}
		return nil
	}

	if val.Type() != ad.Type {
		return fmt.Errorf("Attribute %v of kind %v requires a %v value but got %v",
			attr, kind, ad.Type, val.Type())
	}

	if val.IsRef() {
		return ss.checkRefAttr(kind, ad, val, lookup)
	}

	return nil
}

/*
checkRefAttr checks a reference value against its attribute declaration.
*/
func (ss *Snapshot) checkRefAttr(kind string, ad *AttrDef, val data.Value, lookup EntityKindLookup) error {

	tkind, isEdge := lookup.EntityKind(val.Ref())

	if tkind == "" {
		return fmt.Errorf("Attribute %v of kind %v references a nonexistent entity: %v",
			ad.Name, kind, val.Ref())
	}

	if val.Type() == data.TypeNodeRef && isEdge {
		return fmt.Errorf("Attribute %v of kind %v must reference a node but %v is a %v edge",
			ad.Name, kind, val.Ref(), tkind)
	} else if val.Type() == data.TypeEdgeRef && !isEdge {
		return fmt.Errorf("Attribute %v of kind %v must reference an edge but %v is a %v node",
			ad.Name, kind, val.Ref(), tkind)
	}

	if ad.RefKind != "" && !ss.IsSubtype(ad.RefKind, tkind) {
		return fmt.Errorf("Attribute %v of kind %v must reference a %v but %v is a %v",
			ad.Name, kind, ad.RefKind, val.Ref(), tkind)
	}

	return nil
}

/*
CheckNodeAttrs checks a full attribute set for a node of a given kind.
Missing attributes with a declared default are filled in; missing required
attributes without a default are an error. The given map is modified in
place. Abstract kinds are rejected.
*/
func (ss *Snapshot) CheckNodeAttrs(kind string, attrs map[string]data.Value, lookup EntityKindLookup) error {

	nk := ss.NodeKind(kind)
	if nk == nil {
		return fmt.Errorf("Unknown node kind: %v", kind)
	} else if nk.Abstract {
		return fmt.Errorf("Cannot instantiate abstract kind: %v", kind)
	}

	return ss.checkAttrSet(kind, attrs, lookup)
}

/*
CheckEdgeAttrs checks a full attribute set for an edge of a given kind.
*/
func (ss *Snapshot) CheckEdgeAttrs(kind string, attrs map[string]data.Value, lookup EntityKindLookup) error {

	if ss.EdgeKind(kind) == nil {
		return fmt.Errorf("Unknown edge kind: %v", kind)
	}

	return ss.checkAttrSet(kind, attrs, lookup)
}

/*
checkAttrSet checks a full attribute set against the effective attribute
declarations of a kind.
*/
func (ss *Snapshot) checkAttrSet(kind string, attrs map[string]data.Value, lookup EntityKindLookup) error {

	for attr, val := range attrs {
		if err := ss.CheckAttr(kind, attr, val, lookup); err != nil {
			return err
		}
	}

	for _, ad := range ss.Attrs(kind) {
		if _, ok := attrs[ad.Name]; ok {
			continue
		}

		if !ad.Default.IsNull() {
			attrs[ad.Name] = ad.Default
		} else if ad.Required {
			return fmt.Errorf("Required attribute %v of kind %v is missing", ad.Name, kind)
		}
	}

	return nil
}

/*
EntityKindLookup resolves an id to the kind of a live entity and whether
the entity is an edge. It is implemented by the entity store and by
transaction overlays.
*/
type EntityKindLookup interface {

	/*
		EntityKind returns the kind of the entity with the given id and
		whether the entity is an edge. Returns an empty kind if no entity
		with the id exists.
	*/
	EntityKind(id uint64) (string, bool)
}

/*
CheckEdgeTargets checks an ordered target list against the signature of an
edge kind. Every target must resolve to a live entity which satisfies the
constraint declared for its position.
*/
func (ss *Snapshot) CheckEdgeTargets(kind string, targets []uint64, lookup EntityKindLookup) error {

	ek := ss.EdgeKind(kind)
	if ek == nil {
		return fmt.Errorf("Unknown edge kind: %v", kind)
	}

	if len(targets) != len(ek.Targets) {
		return fmt.Errorf("Edge kind %v requires %v target%v but got %v",
			kind, len(ek.Targets), stringutil.Plural(len(ek.Targets)), len(targets))
	}

	for i, target := range targets {
		tkind, isEdge := lookup.EntityKind(target)

		if tkind == "" {
			return fmt.Errorf("Target %v of %v edge does not exist: %v", i, kind, target)
		}

		td := ek.Targets[i]

		if td.Any {
			continue
		}

		if td.EdgeKind != "" {
			if !isEdge || !ss.IsSubtype(td.EdgeKind, tkind) {
				return fmt.Errorf("Target %v of %v edge must be a %v edge but is a %v",
					i, kind, td.EdgeKind, tkind)
			}
			continue
		}

		if isEdge {
			return fmt.Errorf("Target %v of %v edge must be a node but is a %v edge",
				i, kind, tkind)
		}

		ok := false
		for _, accepted := range td.Kinds {
			if ss.IsSubtype(accepted, tkind) {
				ok = true
				break
			}
		}

		if !ok {
			return fmt.Errorf("Target %v of %v edge cannot be of kind %v", i, kind, tkind)
		}
	}

	return nil
}
