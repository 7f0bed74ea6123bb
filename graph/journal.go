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
	"sync"

	"github.com/krotik/weavedb/graph/storage"
)

/*
Journal receives the change set of every committing transaction before
it is applied to the store. A journal error aborts the commit. Crash
recovery from journal records is the job of an external component.
*/
type Journal interface {

	/*
	   WriteChanges records the change set of a committing transaction.
	*/
	WriteChanges(graphName string, cs *storage.ChangeSet) error
}

/*
NullJournal is a Journal which discards all records. It is the default
journal of a new Manager.
*/
type NullJournal struct {
}

/*
WriteChanges records the change set of a committing transaction.
*/
func (nj *NullJournal) WriteChanges(graphName string, cs *storage.ChangeSet) error {
	return nil
}

/*
MemJournal is a Journal which keeps all records in memory. It is mainly
useful for testing and debugging.
*/
type MemJournal struct {
	records []*storage.ChangeSet
	mutex   sync.Mutex
}

/*
WriteChanges records the change set of a committing transaction.
*/
func (mj *MemJournal) WriteChanges(graphName string, cs *storage.ChangeSet) error {
	mj.mutex.Lock()
	defer mj.mutex.Unlock()

	mj.records = append(mj.records, cs)

	return nil
}

/*
Records returns all recorded change sets.
*/
func (mj *MemJournal) Records() []*storage.ChangeSet {
	mj.mutex.Lock()
	defer mj.mutex.Unlock()

	return append([]*storage.ChangeSet{}, mj.records...)
}
