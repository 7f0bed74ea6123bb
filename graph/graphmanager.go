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
Package graph contains the reactive mutation engine.

The Manager ties the entity store, a schema snapshot, registered rules
and registered constraints together. All mutations run through
transactions which validate every change, fire rules to a fixed point
and check constraints before anything becomes visible outside the
transaction.

Transactions are serialized - the Manager admits exactly one writing
transaction at a time. Read-only queries run against the last committed
state.
*/
package graph

import (
	"fmt"
	"sort"
	"sync"

	"devt.de/krotik/common/logutil"
	"github.com/krotik/weavedb/graph/schema"
	"github.com/krotik/weavedb/graph/storage"
	"github.com/krotik/weavedb/graph/util"
	"github.com/krotik/weavedb/pattern"
)

/*
Default execution limits
*/
const (
	DefaultMaxTraversalDepth = 100   // Depth bound for transitive pattern traversals
	DefaultMaxRuleDepth      = 100   // Maximum nesting of rule-triggered mutations
	DefaultMaxActions        = 10000 // Maximum rule actions per transaction
)

/*
Graph events which are sent to registered listeners after a commit
*/
const (
	EventNodeCreated = iota
	EventNodeUpdated
	EventNodeDeleted
	EventEdgeCreated
	EventEdgeUpdated
	EventEdgeDeleted
)

/*
EventNames maps event codes to readable names.
*/
var EventNames = map[int]string{
	EventNodeCreated: "node.created",
	EventNodeUpdated: "node.updated",
	EventNodeDeleted: "node.deleted",
	EventEdgeCreated: "edge.created",
	EventEdgeUpdated: "edge.updated",
	EventEdgeDeleted: "edge.deleted",
}

/*
Listener receives graph events after a transaction commit. Listener
errors are logged and never affect the committed transaction.
*/
type Listener interface {
	HandleGraphEvent(event int, id uint64, kind string) error
}

/*
Manager is the central API to the graph engine.
*/
type Manager struct {
	name        string                 // Name of this graph
	gs          storage.Store          // Underlying entity store
	snap        *schema.Snapshot       // Compiled schema
	journal     Journal                // Journal receiving committed change sets
	rules       []*Rule                // Registered rules
	constraints []*Constraint          // Registered constraints
	names       map[string]bool        // All registered rule and constraint names
	listeners   map[string]Listener    // Registered event listeners
	logger      logutil.Logger
	mutex       sync.Mutex             // Serializes transactions

	// Execution limits (effective for all transactions started after a change)

	MaxTraversalDepth int
	MaxRuleDepth      int
	MaxActions        int
}

/*
NewManager creates a new Manager for a given store and schema.
*/
func NewManager(name string, gs storage.Store, snap *schema.Snapshot) *Manager {
	return &Manager{
		name:              name,
		gs:                gs,
		snap:              snap,
		journal:           &NullJournal{},
		names:             make(map[string]bool),
		listeners:         make(map[string]Listener),
		logger:            logutil.GetLogger("graph"),
		MaxTraversalDepth: DefaultMaxTraversalDepth,
		MaxRuleDepth:      DefaultMaxRuleDepth,
		MaxActions:        DefaultMaxActions,
	}
}

/*
Name returns the name of this graph.
*/
func (gm *Manager) Name() string {
	return gm.name
}

/*
Schema returns the schema snapshot of this graph.
*/
func (gm *Manager) Schema() *schema.Snapshot {
	return gm.snap
}

/*
Store returns the underlying entity store.
*/
func (gm *Manager) Store() storage.Store {
	return gm.gs
}

/*
SetJournal sets the journal which receives all committed change sets.
*/
func (gm *Manager) SetJournal(j Journal) {
	gm.journal = j
}

/*
AddRule registers a rule. The rule pattern is validated against the
schema and its affected kind set is precomputed.
*/
func (gm *Manager) AddRule(r *Rule) error {
	if err := gm.checkDefName(r.Name); err != nil {
		return err
	}
	if err := r.Pattern.Validate(gm.snap); err != nil {
		return err
	}

	for i := range r.Actions {
		if err := gm.checkAction(&r.Actions[i]); err != nil {
			return err
		}
	}

	r.affects = affectedKinds(gm.snap, r.Pattern)
	r.order = len(gm.rules)

	gm.rules = append(gm.rules, r)
	gm.names[r.Name] = true

	// Keep rules in firing order - priority descending, declaration
	// order for equal priorities

	sort.SliceStable(gm.rules, func(i, j int) bool {
		if gm.rules[i].Priority != gm.rules[j].Priority {
			return gm.rules[i].Priority > gm.rules[j].Priority
		}
		return gm.rules[i].order < gm.rules[j].order
	})

	return nil
}

/*
checkAction validates a single rule action at registration time.
*/
func (gm *Manager) checkAction(a *Action) error {
	switch a.Op {

	case ActionSpawn:
		if gm.snap.NodeKind(a.Kind) == nil {
			return &util.GraphError{Type: util.ErrInvalidData,
				Detail: fmt.Sprintf("Unknown kind in rule action: %v", a.Kind)}
		}

	case ActionLink:
		ek := gm.snap.EdgeKind(a.Kind)
		if ek == nil {
			return &util.GraphError{Type: util.ErrInvalidData,
				Detail: fmt.Sprintf("Unknown edge kind in rule action: %v", a.Kind)}
		}
		if len(a.Targets) != len(ek.Targets) {
			return &util.GraphError{Type: util.ErrInvalidData,
				Detail: fmt.Sprintf("Rule action has %v targets but %v needs %v",
					len(a.Targets), a.Kind, len(ek.Targets))}
		}

	case ActionKill, ActionUnlink:
		if a.Entity == "" {
			return &util.GraphError{Type: util.ErrInvalidData,
				Detail: fmt.Sprintf("Rule action needs an entity: %v", a.String())}
		}

	case ActionSet:
		if a.Entity == "" || a.Attr == "" || a.Val == nil {
			return &util.GraphError{Type: util.ErrInvalidData,
				Detail: fmt.Sprintf("Rule action needs entity, attribute and value: %v", a.String())}
		}
	}

	return nil
}

/*
AddConstraint registers a constraint. The constraint pattern is
validated against the schema and its affected kind set is precomputed.
*/
func (gm *Manager) AddConstraint(c *Constraint) error {
	if err := gm.checkDefName(c.Name); err != nil {
		return err
	}
	if err := c.Pattern.Validate(gm.snap); err != nil {
		return err
	}
	if c.Cond == nil {
		return &util.GraphError{Type: util.ErrInvalidData,
			Detail: fmt.Sprintf("Constraint needs a condition: %v", c.Name)}
	}

	c.affects = affectedKinds(gm.snap, c.Pattern)

	gm.constraints = append(gm.constraints, c)
	gm.names[c.Name] = true

	return nil
}

/*
checkDefName checks a rule or constraint name for uniqueness.
*/
func (gm *Manager) checkDefName(name string) error {
	if name == "" {
		return &util.GraphError{Type: util.ErrInvalidData,
			Detail: "Rules and constraints need a name"}
	}
	if gm.names[name] {
		return &util.GraphError{Type: util.ErrInvalidData,
			Detail: fmt.Sprintf("Name exists already: %v", name)}
	}
	return nil
}

/*
Rules returns all registered rules in firing order.
*/
func (gm *Manager) Rules() []*Rule {
	return append([]*Rule{}, gm.rules...)
}

/*
Constraints returns all registered constraints.
*/
func (gm *Manager) Constraints() []*Constraint {
	return append([]*Constraint{}, gm.constraints...)
}

/*
AddListener registers an event listener under a given name. An existing
listener of the same name is replaced.
*/
func (gm *Manager) AddListener(name string, l Listener) {
	gm.listeners[name] = l
}

/*
RemoveListener removes a registered event listener.
*/
func (gm *Manager) RemoveListener(name string) {
	delete(gm.listeners, name)
}

/*
fireEvent notifies all registered listeners.
*/
func (gm *Manager) fireEvent(event int, id uint64, kind string) {
	names := make([]string, 0, len(gm.listeners))
	for name := range gm.listeners {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := gm.listeners[name].HandleGraphEvent(event, id, kind); err != nil {
			gm.logger.Error(fmt.Sprintf("Listener %v failed for %v: %v",
				name, EventNames[event], err))
		}
	}
}

/*
Query runs a read-only pattern match against the last committed state.
*/
func (gm *Manager) Query(p *pattern.Pattern) *pattern.BindingIterator {
	return pattern.NewMatcher(gm.snap, gm.gs, gm.MaxTraversalDepth).Match(p)
}

/*
Begin starts a new transaction. The call blocks until any other running
transaction has finished.
*/
func (gm *Manager) Begin() *Trans {
	gm.mutex.Lock()
	return newTrans(gm)
}
