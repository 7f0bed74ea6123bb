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
Package ecal contains the main API for the event condition action language (ECAL).
*/
package ecal

import (
	"fmt"
	"strings"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/ecal/engine"
	"devt.de/krotik/ecal/scope"
	"devt.de/krotik/ecal/util"
	"github.com/krotik/weavedb/graph"
	"github.com/krotik/weavedb/graph/data"
)

/*
EventMapping is a mapping between WeaveDB event types to WeaveDB specific event kinds in ECAL.
*/
var EventMapping = map[int]string{

	/*
	   EventNodeCreated is thrown after a transaction commit created a node.

	   State: id and kind of the created node, the created node
	*/
	graph.EventNodeCreated: "db.node.created",

	/*
	   EventNodeUpdated is thrown after a transaction commit updated a node.

	   State: id and kind of the updated node, the updated node
	*/
	graph.EventNodeUpdated: "db.node.updated",

	/*
	   EventNodeDeleted is thrown after a transaction commit deleted a node.

	   State: id and kind of the deleted node
	*/
	graph.EventNodeDeleted: "db.node.deleted",

	/*
	   EventEdgeCreated is thrown after a transaction commit created an edge.

	   State: id and kind of the created edge, the created edge
	*/
	graph.EventEdgeCreated: "db.edge.created",

	/*
	   EventEdgeUpdated is thrown after a transaction commit updated an edge.

	   State: id and kind of the updated edge, the updated edge
	*/
	graph.EventEdgeUpdated: "db.edge.updated",

	/*
	   EventEdgeDeleted is thrown after a transaction commit deleted an edge.

	   State: id and kind of the deleted edge
	*/
	graph.EventEdgeDeleted: "db.edge.deleted",
}

/*
EventBridge is a graph event listener which forwards all graph events to ECAL.
*/
type EventBridge struct {
	GM        *graph.Manager
	Processor engine.Processor
	Logger    util.Logger
}

/*
HandleGraphEvent handles a graph event after a transaction commit.
*/
func (eb *EventBridge) HandleGraphEvent(event int, id uint64, kind string) error {
	var err error

	if name, ok := EventMapping[event]; ok {
		eventName := fmt.Sprintf("WeaveDB: %v", name)
		eventKind := strings.Split(name, ".")

		// Construct an event which can be used to check if any rule will trigger.
		// This is to avoid the relative costly state construction below for events
		// which would not trigger any rules.

		triggerCheckEvent := engine.NewEvent(eventName, eventKind, nil)

		if !eb.Processor.IsTriggering(triggerCheckEvent) {
			return nil
		}

		// Build up state

		state := map[interface{}]interface{}{
			"id":   id,
			"kind": kind,
		}

		// Deleted entities are gone from the store - all other events
		// can include the live entity

		switch event {

		case graph.EventNodeCreated, graph.EventNodeUpdated:
			if node := eb.GM.Store().FetchNode(id); node != nil {
				state["node"] = scope.ConvertJSONToECALObject(data.NodeJSON(node))
			}

		case graph.EventEdgeCreated, graph.EventEdgeUpdated:
			if edge := eb.GM.Store().FetchEdge(id); edge != nil {
				state["edge"] = scope.ConvertJSONToECALObject(data.EdgeJSON(edge))
			}
		}

		// Try to inject the event

		ecalEvent := engine.NewEvent(eventName, eventKind, state)

		var m engine.Monitor
		m, err = eb.Processor.AddEventAndWait(ecalEvent, nil)

		if err == nil {

			// If there was no direct error adding the event then check if an
			// error was raised in a sink

			if errs := m.(*engine.RootMonitor).AllErrors(); len(errs) > 0 {
				var errList []error

				for _, e := range errs {
					errList = append(errList, e)
				}

				err = &errorutil.CompositeError{Errors: errList}
			}
		}

		if err != nil {
			eb.Logger.LogDebug(fmt.Sprintf("WeaveDB event %v was handled by ECAL and returned: %v", name, err))
		}
	}

	return err
}
